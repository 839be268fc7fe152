package colorspec

import "fmt"

// Preset is one entry of the static color-presets config (§6).
type Preset struct {
	Name     string
	RGB      [3]uint8
	Category string
}

// PresetTable is the loaded preset config: the named entries plus a
// deterministic cycling order used by NextPreset/PreviousPreset.
type PresetTable struct {
	byName map[string]Preset
	order  []string
}

// NewPresetTable builds a table from an ordered preset list. Order defines
// both iteration and the cycling sequence.
func NewPresetTable(presets []Preset) *PresetTable {
	t := &PresetTable{byName: make(map[string]Preset, len(presets)), order: make([]string, 0, len(presets))}
	for _, p := range presets {
		t.byName[p.Name] = p
		t.order = append(t.order, p.Name)
	}
	return t
}

// Lookup resolves a preset by name.
func (t *PresetTable) Lookup(name string) (Preset, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// Resolve builds a Color from a preset name, erroring if unknown.
func (t *PresetTable) Resolve(name string) (Color, error) {
	p, ok := t.byName[name]
	if !ok {
		return Color{}, fmt.Errorf("colorspec: unknown preset %q", name)
	}
	return FromPreset(p.Name, p.RGB), nil
}

// NextPreset returns the color for the preset that follows c's preset in the
// table's cycling order, wrapping around. If c is not a preset color, or its
// preset is unknown to this table, the first entry in order is returned.
func (t *PresetTable) NextPreset(c Color) Color {
	return t.step(c, 1)
}

// PreviousPreset is the inverse of NextPreset.
func (t *PresetTable) PreviousPreset(c Color) Color {
	return t.step(c, -1)
}

func (t *PresetTable) step(c Color, delta int) Color {
	if len(t.order) == 0 {
		return c
	}
	idx := indexOf(t.order, c.presetName)
	if idx < 0 {
		idx = -delta // so idx+delta lands on 0 for next, len-1 for previous
	}
	n := len(t.order)
	next := ((idx+delta)%n + n) % n
	name := t.order[next]
	p := t.byName[name]
	return FromPreset(p.Name, p.RGB)
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
