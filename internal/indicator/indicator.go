// Package indicator implements the Selected-Zone Indicator (§4.11, C11): a
// low-duty PULSE-priority producer that tints the currently-selected zone
// with a sinusoidal brightness envelope while the user is in edit mode.
package indicator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/eventbus"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// Submitter is the subset of framemanager.Manager the indicator needs.
type Submitter interface {
	SubmitZoneFrame(frame.Frame)
	ClearPriority(frame.Priority)
}

const pulsePeriod = time.Second

// Indicator never touches hardware directly; it only submits PULSE-priority
// ZoneFrames while enabled.
type Indicator struct {
	sub  Submitter
	bus  *eventbus.Bus
	tick time.Duration

	mu       sync.Mutex
	enabled  bool
	selected zonespec.ID
	color    colorspec.Color
	hasZone  bool

	cancel context.CancelFunc
}

// New builds an Indicator and subscribes it to selected_zone_changed,
// render_mode_changed, and edit_mode_changed.
func New(sub Submitter, bus *eventbus.Bus) *Indicator {
	ind := &Indicator{sub: sub, bus: bus, tick: 33 * time.Millisecond, color: colorspec.FromRGB(255, 255, 255)}

	bus.Subscribe("selected_zone_changed", func(e eventbus.Event) error {
		z, _ := e.Payload["zone"].(string)
		c, _ := e.Payload["color"].(colorspec.Color)
		ind.mu.Lock()
		ind.selected = zonespec.ID(z)
		ind.hasZone = z != ""
		if c != (colorspec.Color{}) {
			ind.color = c
		}
		clear := !ind.hasZone
		ind.mu.Unlock()
		if clear {
			ind.sub.ClearPriority(frame.PriorityPulse)
		}
		return nil
	})
	bus.Subscribe("edit_mode_changed", func(e eventbus.Event) error {
		on, _ := e.Payload["enabled"].(bool)
		ind.mu.Lock()
		ind.enabled = on
		ind.mu.Unlock()
		if !on {
			// Drop the retained PULSE frame immediately: the pulse loop will
			// simply stop submitting, and the last pulse frame would
			// otherwise stay over ANIMATION/STATIC until its 2*tick TTL ran out.
			ind.sub.ClearPriority(frame.PriorityPulse)
		}
		return nil
	})
	bus.Subscribe("render_mode_changed", func(e eventbus.Event) error {
		// Render-mode switches away from the selection don't disable the
		// indicator outright; they just ride along on the next Publish of
		// selected_zone_changed/edit_mode_changed the caller is expected
		// to also send. Kept as a distinct subscription per the
		// specification even though it is currently a no-op hook point.
		return nil
	})

	return ind
}

// Start runs the pulse loop until ctx is cancelled.
func (ind *Indicator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	ind.cancel = cancel
	ticker := time.NewTicker(ind.tick)
	defer ticker.Stop()
	startedAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ind.pulse(now, startedAt)
		}
	}
}

// Stop halts the pulse loop.
func (ind *Indicator) Stop() {
	if ind.cancel != nil {
		ind.cancel()
	}
}

func (ind *Indicator) pulse(now, startedAt time.Time) {
	ind.mu.Lock()
	enabled, zone, color, hasZone := ind.enabled, ind.selected, ind.color, ind.hasZone
	ind.mu.Unlock()

	if !enabled || !hasZone {
		return
	}

	elapsed := now.Sub(startedAt).Seconds()
	phase := 2 * math.Pi * elapsed / pulsePeriod.Seconds()
	brightness := int(50 + 50*math.Sin(phase)) // oscillates 0..100
	tinted := color.WithBrightness(brightness)

	ind.sub.SubmitZoneFrame(frame.NewZoneFrame(
		map[zonespec.ID]colorspec.Color{zone: tinted},
		frame.PriorityPulse,
		frame.SourcePulse,
		2*ind.tick,
		now,
	))
}
