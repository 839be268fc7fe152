package animation

import "github.com/fcurrie/ledcore/internal/colorspec"
import "github.com/fcurrie/ledcore/internal/zonespec"

// UpdateKind distinguishes the three shapes of micro-update an Animation's
// Tick can append to a MicroUpdateBuffer.
type UpdateKind int

const (
	UpdateFullStrip UpdateKind = iota
	UpdateZone
	UpdatePixel
)

// MicroUpdate is one scheduling step's worth of intended pixel state.
type MicroUpdate struct {
	Kind       UpdateKind
	Zone       zonespec.ID // meaningful for UpdateZone, UpdatePixel
	PixelIndex int         // meaningful for UpdatePixel
	Color      colorspec.Color
}

// MicroUpdateBuffer accumulates the updates one Animation.Tick call
// produces. Reused across calls via Reset to avoid per-tick allocation.
type MicroUpdateBuffer struct {
	updates []MicroUpdate
}

// SetFullStrip appends a full-strip update: every zone takes c.
func (b *MicroUpdateBuffer) SetFullStrip(c colorspec.Color) {
	b.updates = append(b.updates, MicroUpdate{Kind: UpdateFullStrip, Color: c})
}

// SetZone appends a whole-zone update.
func (b *MicroUpdateBuffer) SetZone(z zonespec.ID, c colorspec.Color) {
	b.updates = append(b.updates, MicroUpdate{Kind: UpdateZone, Zone: z, Color: c})
}

// SetPixel appends a single logical-pixel update within zone z.
func (b *MicroUpdateBuffer) SetPixel(z zonespec.ID, index int, c colorspec.Color) {
	b.updates = append(b.updates, MicroUpdate{Kind: UpdatePixel, Zone: z, PixelIndex: index, Color: c})
}

// Len reports how many updates are currently buffered.
func (b *MicroUpdateBuffer) Len() int { return len(b.updates) }

// Updates returns the buffered updates in append order.
func (b *MicroUpdateBuffer) Updates() []MicroUpdate { return b.updates }

// Reset empties the buffer for reuse on the next Tick call.
func (b *MicroUpdateBuffer) Reset() { b.updates = b.updates[:0] }
