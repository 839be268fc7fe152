package framemanager

import (
	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// ChannelRegistry resolves which ledchannel.Channel owns a given zone, and
// enumerates all channels a full-strip push must reach. Built once at
// startup from the static zone config; read-only afterward.
type ChannelRegistry struct {
	byZone   map[zonespec.ID]*ledchannel.Channel
	channels []*ledchannel.Channel
}

// NewChannelRegistry indexes channels by every zone each one's mapper owns.
func NewChannelRegistry(channels []*ledchannel.Channel) *ChannelRegistry {
	r := &ChannelRegistry{
		byZone:   make(map[zonespec.ID]*ledchannel.Channel),
		channels: append([]*ledchannel.Channel(nil), channels...),
	}
	for _, ch := range channels {
		for _, z := range ch.Mapper().AllZoneIDs() {
			r.byZone[z] = ch
		}
	}
	return r
}

// ChannelForZone returns the channel owning z, or nil if z is unknown.
func (r *ChannelRegistry) ChannelForZone(z zonespec.ID) *ledchannel.Channel {
	return r.byZone[z]
}

// AllChannels returns every registered channel, in registration order.
func (r *ChannelRegistry) AllChannels() []*ledchannel.Channel {
	out := make([]*ledchannel.Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// ZoneSnapshot reads z's current on-hardware pixel values, in logical
// zone-relative order, or nil if z is unknown.
func (r *ChannelRegistry) ZoneSnapshot(z zonespec.ID) []colorspec.Color {
	ch := r.ChannelForZone(z)
	if ch == nil {
		return nil
	}
	indices := ch.Mapper().GetIndices(z)
	full := ch.GetFrame()
	out := make([]colorspec.Color, len(indices))
	for i, idx := range indices {
		if idx >= 0 && idx < len(full) {
			out[i] = full[idx]
		}
	}
	return out
}
