package colorspec

import (
	"encoding/json"
	"testing"
)

func TestJSONRoundTripHue(t *testing.T) {
	original := FromHue(200)
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Color
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Fatalf("decoded = %v, want %v", decoded, original)
	}
}

func TestJSONRoundTripRGB(t *testing.T) {
	original := FromRGB(12, 34, 56)
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Color
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Fatalf("decoded = %v, want %v", decoded, original)
	}
}

func TestFromHueRoundTrip(t *testing.T) {
	for h := 0; h < 360; h++ {
		got := FromHue(h).ToHue()
		if got != h {
			t.Fatalf("FromHue(%d).ToHue() = %d, want %d", h, got, h)
		}
	}
}

func TestFromHueNormalizes(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"negative", -10, 350},
		{"over", 370, 10},
		{"exact wrap", 360, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromHue(tt.in).ToHue(); got != tt.want {
				t.Errorf("FromHue(%d).ToHue() = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromPresetRoundTrip(t *testing.T) {
	rgb := [3]uint8{10, 20, 30}
	c := FromPreset("amber", rgb)
	r, g, b := c.ToRGB()
	if r != rgb[0] || g != rgb[1] || b != rgb[2] {
		t.Fatalf("ToRGB() = (%d,%d,%d), want %v", r, g, b, rgb)
	}
	if c.PresetName() != "amber" {
		t.Fatalf("PresetName() = %q, want amber", c.PresetName())
	}
}

func TestWithBrightness(t *testing.T) {
	c := FromRGB(200, 100, 50).WithBrightness(50)
	r, g, b := c.ToRGB()
	if r != 100 || g != 50 || b != 25 {
		t.Fatalf("WithBrightness(50) = (%d,%d,%d), want (100,50,25)", r, g, b)
	}
}

func TestWithBrightnessClamps(t *testing.T) {
	c := FromRGB(10, 10, 10).WithBrightness(150)
	r, _, _ := c.ToRGB()
	if r != 10 {
		t.Fatalf("expected clamp to 100%%, got r=%d", r)
	}
}

func TestAdjustHue(t *testing.T) {
	c := FromHue(350).AdjustHue(20)
	if got := c.ToHue(); got != 10 {
		t.Fatalf("AdjustHue wrap = %d, want 10", got)
	}
}

func TestPresetCycling(t *testing.T) {
	table := NewPresetTable([]Preset{
		{Name: "red", RGB: [3]uint8{255, 0, 0}},
		{Name: "green", RGB: [3]uint8{0, 255, 0}},
		{Name: "blue", RGB: [3]uint8{0, 0, 255}},
	})
	c, err := table.Resolve("red")
	if err != nil {
		t.Fatalf("Resolve(red) error: %v", err)
	}
	next := table.NextPreset(c)
	if next.PresetName() != "green" {
		t.Fatalf("NextPreset(red) = %q, want green", next.PresetName())
	}
	wrapped := table.NextPreset(table.NextPreset(next))
	if wrapped.PresetName() != "red" {
		t.Fatalf("NextPreset wrap = %q, want red", wrapped.PresetName())
	}
	prev := table.PreviousPreset(c)
	if prev.PresetName() != "blue" {
		t.Fatalf("PreviousPreset(red) = %q, want blue (wrap)", prev.PresetName())
	}
}

func TestPresetResolveUnknown(t *testing.T) {
	table := NewPresetTable(nil)
	if _, err := table.Resolve("nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestBlackIsZeroRGB(t *testing.T) {
	r, g, b := Black.ToRGB()
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("Black = (%d,%d,%d), want (0,0,0)", r, g, b)
	}
}
