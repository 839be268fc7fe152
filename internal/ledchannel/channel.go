// Package ledchannel implements the LED Channel (§4.3, C3): one per GPIO,
// owning exactly one stripio.PhysicalStrip plus the zonespec.Mapper that
// translates zone-relative pixel offsets onto it.
package ledchannel

import (
	"fmt"
	"sync"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// Channel binds a physical strip to the zone layout sharing its GPIO.
type Channel struct {
	mu     sync.Mutex
	strip  stripio.PhysicalStrip
	mapper *zonespec.Mapper
	name   string
}

// New binds strip and mapper into one channel. name is used only in error
// messages and logging.
func New(name string, strip stripio.PhysicalStrip, mapper *zonespec.Mapper) *Channel {
	return &Channel{strip: strip, mapper: mapper, name: name}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) Mapper() *zonespec.Mapper { return c.mapper }

func (c *Channel) PixelCount() int { return c.strip.PixelCount() }

// ApplyPixelFrame delegates to the strip; afterward GetFrame() equals pixels
// padded or truncated to PixelCount() (the strip itself guarantees this).
func (c *Channel) ApplyPixelFrame(pixels []colorspec.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.strip.ApplyFrame(pixels); err != nil {
		return fmt.Errorf("ledchannel %s: %w", c.name, err)
	}
	return nil
}

// GetFrame returns the strip's current on-hardware pixel snapshot.
func (c *Channel) GetFrame() []colorspec.Color {
	return c.strip.GetFrame()
}

// BuildFrameFromZones starts from the current on-hardware frame (never
// black) and overlays zoneColors, returning the full absolute-pixel array
// ready for ApplyPixelFrame. Zones absent from zoneColors, or not owned by
// this channel, keep their current pixel values untouched — this is the
// contract that makes partial frames possible.
func (c *Channel) BuildFrameFromZones(zoneColors map[zonespec.ID]colorspec.Color) []colorspec.Color {
	out := c.GetFrame()
	for z, color := range zoneColors {
		if !c.mapper.Has(z) {
			continue
		}
		for _, idx := range c.mapper.GetIndices(z) {
			if idx < 0 || idx >= len(out) {
				continue
			}
			out[idx] = color
		}
	}
	return out
}

// BuildFrameFromZonePixels starts from the current on-hardware frame and
// overlays zonePixels at their mapped physical indices, honoring each
// zone's Reversed flag. A zone's pixel list shorter than its logical length
// overwrites only that prefix; trailing pixels are untouched.
func (c *Channel) BuildFrameFromZonePixels(zonePixels map[zonespec.ID][]colorspec.Color) []colorspec.Color {
	out := c.GetFrame()
	for z, pixels := range zonePixels {
		if !c.mapper.Has(z) {
			continue
		}
		indices := c.mapper.GetIndices(z)
		n := len(pixels)
		if n > len(indices) {
			n = len(indices)
		}
		for i := 0; i < n; i++ {
			idx := indices[i]
			if idx < 0 || idx >= len(out) {
				continue
			}
			out[idx] = pixels[i]
		}
	}
	return out
}

// SetZoneColor is the convenience single-zone write: build-from-zones then
// apply, in one call.
func (c *Channel) SetZoneColor(z zonespec.ID, color colorspec.Color) error {
	if !c.mapper.Has(z) {
		return fmt.Errorf("ledchannel %s: zone %s: %w", c.name, z, corerr.NotFound)
	}
	frame := c.BuildFrameFromZones(map[zonespec.ID]colorspec.Color{z: color})
	return c.ApplyPixelFrame(frame)
}

// SetPixel is the convenience single-absolute-pixel write.
func (c *Channel) SetPixel(index int, color colorspec.Color) error {
	if index < 0 || index >= c.PixelCount() {
		return fmt.Errorf("ledchannel %s: pixel %d: %w", c.name, index, corerr.InvalidArgument)
	}
	frame := c.GetFrame()
	frame[index] = color
	return c.ApplyPixelFrame(frame)
}

// Clear blanks every pixel on this channel.
func (c *Channel) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.strip.Clear(); err != nil {
		return fmt.Errorf("ledchannel %s: %w", c.name, err)
	}
	return nil
}

// Close releases the underlying strip's hardware resources.
func (c *Channel) Close() error {
	return c.strip.Close()
}
