package state

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/eventbus"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

func TestSetSelectedZonePublishesEvent(t *testing.T) {
	bus := testBus()
	received := make(chan eventbus.Event, 1)
	bus.Subscribe("selected_zone_changed", func(e eventbus.Event) error {
		received <- e
		return nil
	})
	zones := NewZoneService(testZoneConfig(), nil, nil, "", zerolog.Nop())
	app := NewAppStateService(zones, nil, bus, "", zerolog.Nop())
	app.SetSelectedZone("porch")

	select {
	case e := <-received:
		if e.Payload["zone"] != "porch" {
			t.Fatalf("payload zone = %v, want porch", e.Payload["zone"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for selected_zone_changed")
	}
	if app.Snapshot().SelectedZone != zonespec.ID("porch") {
		t.Fatalf("SelectedZone = %v, want porch", app.Snapshot().SelectedZone)
	}
}

func TestLampWhiteTogglesAndRestores(t *testing.T) {
	zones := NewZoneService(testZoneConfig(), nil, nil, "", zerolog.Nop())
	if err := zones.SetColor("porch", colorspec.FromRGB(10, 20, 30)); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if err := zones.SetBrightness("porch", 40); err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}

	app := NewAppStateService(zones, nil, nil, "", zerolog.Nop())
	if err := app.SetLampWhite("porch", true); err != nil {
		t.Fatalf("SetLampWhite(on): %v", err)
	}
	st, _ := zones.Get("porch")
	r, g, b := st.Color.ToRGB()
	if r != 255 || g != 255 || b != 255 {
		t.Fatalf("expected full white while lamp-white is on, got (%d,%d,%d)", r, g, b)
	}

	if err := app.SetLampWhite("porch", false); err != nil {
		t.Fatalf("SetLampWhite(off): %v", err)
	}
	st, _ = zones.Get("porch")
	r, g, b = st.Color.ToRGB()
	if r != 10 || g != 20 || b != 30 {
		t.Fatalf("expected restored color (10,20,30), got (%d,%d,%d)", r, g, b)
	}
	if st.Brightness != 40 {
		t.Fatalf("expected restored brightness 40, got %d", st.Brightness)
	}
}

func TestLampWhiteNoopWhenAlreadyInState(t *testing.T) {
	zones := NewZoneService(testZoneConfig(), nil, nil, "", zerolog.Nop())
	app := NewAppStateService(zones, nil, nil, "", zerolog.Nop())
	if err := app.SetLampWhite("porch", false); err != nil {
		t.Fatalf("expected no-op to succeed, got %v", err)
	}
}
