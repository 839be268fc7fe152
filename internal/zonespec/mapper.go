package zonespec

// Mapper is pure and stateless after construction: logical zone index ->
// absolute physical pixel index, honoring each zone's Reversed flag.
type Mapper struct {
	zones   map[ID]Config
	indices map[ID][]int
	order   []ID
}

// NewMapper builds a Mapper from the zones of a single GPIO/channel. Zones
// must already carry their computed StartIndex/EndIndex (see ComputeIndices).
func NewMapper(zones []Config) *Mapper {
	m := &Mapper{
		zones:   make(map[ID]Config, len(zones)),
		indices: make(map[ID][]int, len(zones)),
		order:   make([]ID, 0, len(zones)),
	}
	for _, z := range zones {
		m.zones[z.ID] = z
		m.order = append(m.order, z.ID)

		n := z.EndIndex - z.StartIndex
		idx := make([]int, n)
		for i := 0; i < n; i++ {
			idx[i] = z.StartIndex + i
		}
		if z.Reversed {
			reverse(idx)
		}
		m.indices[z.ID] = idx
	}
	return m
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// AllZoneIDs returns zone IDs in config order.
func (m *Mapper) AllZoneIDs() []ID {
	out := make([]ID, len(m.order))
	copy(out, m.order)
	return out
}

// GetIndices returns the absolute physical pixel indices for z, in logical
// order (index 0 of the slice is logical pixel 0 of the zone).
func (m *Mapper) GetIndices(z ID) []int {
	return m.indices[z]
}

// GetZoneLength returns the logical pixel count of z, or 0 if unknown.
func (m *Mapper) GetZoneLength(z ID) int {
	return len(m.indices[z])
}

// Config returns the zone's config and whether it is known to this mapper.
func (m *Mapper) Config(z ID) (Config, bool) {
	c, ok := m.zones[z]
	return c, ok
}

// Has reports whether z is known to this mapper.
func (m *Mapper) Has(z ID) bool {
	_, ok := m.zones[z]
	return ok
}
