// Package colorspec implements the Color value type: a rendering
// representation that is always total and deterministic when projected to
// RGB, regardless of which of the three construction modes produced it.
//
// Grounded on the teacher's pkg/rpi5matrix/matrix.go hsvToRGB stub, replaced
// here with a complete conversion since the package's round-trip invariants
// require one.
package colorspec

import (
	"encoding/json"
	"fmt"
)

// Mode identifies which representation a Color was constructed from.
type Mode int

const (
	ModeRGB Mode = iota
	ModeHue
	ModePreset
)

func (m Mode) String() string {
	switch m {
	case ModeHue:
		return "hue"
	case ModePreset:
		return "preset"
	case ModeRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// Color is immutable after construction. All mutators return new values.
type Color struct {
	mode       Mode
	hue        int // degrees, 0..359; meaningful when mode == ModeHue
	presetName string
	r, g, b    uint8 // resolved projection, valid for every mode
}

// Black is the zero-value color: RGB mode, all channels zero.
var Black = FromRGB(0, 0, 0)

// FromHue builds a full-saturation, full-value color from a hue in degrees.
// h is normalized into [0, 359] first, so ToHue is an exact inverse.
func FromHue(h int) Color {
	h = normalizeHue(h)
	r, g, b := hsvToRGB(float64(h), 1, 1)
	return Color{mode: ModeHue, hue: h, r: r, g: g, b: b}
}

// FromPreset builds a color from a named preset table entry. The RGB value
// is resolved at construction time and carried in the value, so ToRGB never
// needs the preset table again.
func FromPreset(name string, rgb [3]uint8) Color {
	return Color{mode: ModePreset, presetName: name, r: rgb[0], g: rgb[1], b: rgb[2]}
}

// FromRGB builds a color directly from channel values.
func FromRGB(r, g, b uint8) Color {
	return Color{mode: ModeRGB, r: r, g: g, b: b}
}

// ToRGB projects the color to its (r, g, b) triple. Total and deterministic
// for every mode, since the projection is computed once at construction.
func (c Color) ToRGB() (r, g, b uint8) {
	return c.r, c.g, c.b
}

// Mode reports which construction mode produced this value.
func (c Color) Mode() Mode {
	return c.mode
}

// ToHue reports the hue degrees for a HUE-mode color. For non-HUE colors it
// derives the hue of the resolved RGB value instead of panicking, so callers
// that blindly call ToHue on an arbitrary Color still get a sensible answer.
func (c Color) ToHue() int {
	if c.mode == ModeHue {
		return c.hue
	}
	h, _, _ := rgbToHSV(c.r, c.g, c.b)
	return int(h + 0.5)
}

// PresetName reports the preset name for a PRESET-mode color, or "".
func (c Color) PresetName() string {
	return c.presetName
}

// AdjustHue returns a new HUE-mode color shifted by delta degrees. If the
// receiver was not already HUE-mode, its current hue is derived from its RGB
// projection first.
func (c Color) AdjustHue(delta int) Color {
	return FromHue(c.ToHue() + delta)
}

// WithBrightness returns a new RGB-mode color scaled to pct percent (0..100)
// of its current channel values. Brightness is a separate concept from
// Color's own representation (ZoneState carries a brightness percentage
// too), but the mutator lets a Color be pre-scaled when a caller needs one.
func (c Color) WithBrightness(pct int) Color {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	scale := func(v uint8) uint8 {
		return uint8(uint32(v) * uint32(pct) / 100)
	}
	return FromRGB(scale(c.r), scale(c.g), scale(c.b))
}

func (c Color) String() string {
	return fmt.Sprintf("Color{mode=%s r=%d g=%d b=%d}", c.mode, c.r, c.g, c.b)
}

// colorJSON is the wire shape a Color persists as, so saved state survives
// a round trip through whichever mode originally constructed it.
type colorJSON struct {
	Mode   string `json:"mode"`
	Hue    int    `json:"hue,omitempty"`
	Preset string `json:"preset,omitempty"`
	R      uint8  `json:"r"`
	G      uint8  `json:"g"`
	B      uint8  `json:"b"`
}

// MarshalJSON implements json.Marshaler.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(colorJSON{
		Mode:   c.mode.String(),
		Hue:    c.hue,
		Preset: c.presetName,
		R:      c.r,
		G:      c.g,
		B:      c.b,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Color) UnmarshalJSON(data []byte) error {
	var wire colorJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Mode {
	case "hue":
		*c = FromHue(wire.Hue)
	case "preset":
		*c = FromPreset(wire.Preset, [3]uint8{wire.R, wire.G, wire.B})
	default:
		*c = FromRGB(wire.R, wire.G, wire.B)
	}
	return nil
}

func normalizeHue(h int) int {
	h %= 360
	if h < 0 {
		h += 360
	}
	return h
}

// hsvToRGB converts h in [0,360), s and v in [0,1] to 8-bit RGB channels.
func hsvToRGB(h, s, v float64) (r, g, b uint8) {
	if s <= 0 {
		gray := uint8(v*255 + 0.5)
		return gray, gray, gray
	}
	hh := h / 60
	i := int(hh)
	f := hh - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var rf, gf, bf float64
	switch i % 6 {
	case 0:
		rf, gf, bf = v, t, p
	case 1:
		rf, gf, bf = q, v, p
	case 2:
		rf, gf, bf = p, v, t
	case 3:
		rf, gf, bf = p, q, v
	case 4:
		rf, gf, bf = t, p, v
	default:
		rf, gf, bf = v, p, q
	}
	return to8(rf), to8(gf), to8(bf)
}

func to8(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

// rgbToHSV converts 8-bit RGB channels to h in [0,360), s and v in [0,1].
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := maxf(rf, gf, bf)
	min := minf(rf, gf, bf)
	v = max
	delta := max - min
	if max == 0 {
		return 0, 0, v
	}
	s = delta / max
	if delta == 0 {
		return 0, s, v
	}
	switch max {
	case rf:
		h = 60 * (gf-bf)/delta
	case gf:
		h = 60*(bf-rf)/delta + 120
	default:
		h = 60*(rf-gf)/delta + 240
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func maxf(vs ...float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minf(vs ...float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
