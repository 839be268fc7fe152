package zonespec

import (
	"reflect"
	"testing"
)

func TestComputeIndicesAndTiling(t *testing.T) {
	zones := ComputeIndices([]Config{
		{ID: Floor, PixelCount: 10, Enabled: true},
		{ID: Lamp, PixelCount: 5, Enabled: false},
		{ID: Desk, PixelCount: 3, Enabled: true},
	})

	if zones[0].StartIndex != 0 || zones[0].EndIndex != 10 {
		t.Fatalf("FLOOR range = [%d,%d), want [0,10)", zones[0].StartIndex, zones[0].EndIndex)
	}
	if zones[1].StartIndex != 10 || zones[1].EndIndex != 15 {
		t.Fatalf("LAMP range = [%d,%d), want [10,15)", zones[1].StartIndex, zones[1].EndIndex)
	}
	if zones[2].StartIndex != 15 || zones[2].EndIndex != 18 {
		t.Fatalf("DESK range = [%d,%d), want [15,18)", zones[2].StartIndex, zones[2].EndIndex)
	}

	if err := ValidateTiling(zones, 18); err != nil {
		t.Fatalf("ValidateTiling: %v", err)
	}
	if err := ValidateTiling(zones, 17); err == nil {
		t.Fatal("expected ValidateTiling to fail on mismatched strip length")
	}
}

func TestMapperBijection(t *testing.T) {
	zones := ComputeIndices([]Config{
		{ID: Floor, PixelCount: 3, Enabled: true},
		{ID: Lamp, PixelCount: 2, Enabled: true, Reversed: true},
	})
	m := NewMapper(zones)

	seen := make(map[int]bool)
	for _, z := range m.AllZoneIDs() {
		for _, idx := range m.GetIndices(z) {
			if seen[idx] {
				t.Fatalf("index %d owned by two zones", idx)
			}
			seen[idx] = true
		}
	}
	for i := 0; i < 5; i++ {
		if !seen[i] {
			t.Fatalf("index %d not covered by any zone", i)
		}
	}
}

func TestMapperReversed(t *testing.T) {
	zones := ComputeIndices([]Config{
		{ID: Gate, PixelCount: 4, Reversed: true, Enabled: true},
	})
	m := NewMapper(zones)
	got := m.GetIndices(Gate)
	want := []int{3, 2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetIndices(reversed) = %v, want %v", got, want)
	}
}

func TestMapperForward(t *testing.T) {
	zones := ComputeIndices([]Config{
		{ID: Gate, PixelCount: 4, Reversed: false, Enabled: true},
	})
	m := NewMapper(zones)
	got := m.GetIndices(Gate)
	want := []int{0, 1, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetIndices(forward) = %v, want %v", got, want)
	}
}
