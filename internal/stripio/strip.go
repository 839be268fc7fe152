// Package stripio defines the PhysicalStrip capability (§4.1, C1): buffered
// pixel I/O to one physical, GPIO-bound LED chain, plus the channel-order
// remap shared by every backend.
//
// The SPI/DMA/PIO internals behind ApplyFrame are explicitly out of scope
// per the specification (§1): PhysicalStrip is an opaque capability, and the
// backends in gpiostrip/ and piostrip/ are two concrete, swappable
// implementations of it.
package stripio

import "github.com/fcurrie/ledcore/internal/colorspec"

// ColorOrder names the physical channel ordering of one strip's wire
// protocol, as declared in the static hardware config (§6).
type ColorOrder string

const (
	OrderRGB ColorOrder = "RGB"
	OrderRBG ColorOrder = "RBG"
	OrderGRB ColorOrder = "GRB"
	OrderGBR ColorOrder = "GBR"
	OrderBRG ColorOrder = "BRG"
	OrderBGR ColorOrder = "BGR"
)

// PhysicalStrip is the opaque hardware capability every LED Channel owns
// exactly one of.
type PhysicalStrip interface {
	PixelCount() int
	SetPixel(index int, c colorspec.Color)
	GetPixel(index int) colorspec.Color
	GetFrame() []colorspec.Color
	// ApplyFrame atomically pushes a whole frame in one transfer. Its
	// length is min(len(pixels), PixelCount()); the buffer afterward equals
	// pixels padded (with black) or truncated to PixelCount().
	ApplyFrame(pixels []colorspec.Color) error
	Show() error
	Clear() error
	Close() error
}

// Remap reorders a color's channels into the wire order a strip expects,
// returning bytes in transmission order.
func Remap(c colorspec.Color, order ColorOrder) [3]byte {
	r, g, b := c.ToRGB()
	switch order {
	case OrderRBG:
		return [3]byte{r, b, g}
	case OrderGRB:
		return [3]byte{g, r, b}
	case OrderGBR:
		return [3]byte{g, b, r}
	case OrderBRG:
		return [3]byte{b, r, g}
	case OrderBGR:
		return [3]byte{b, g, r}
	default: // OrderRGB and unknown orders fall back to RGB
		return [3]byte{r, g, b}
	}
}

// PadOrTruncate returns pixels resized to exactly n entries: truncated if
// longer, padded with black if shorter. This realizes the ApplyFrame
// post-condition every PhysicalStrip backend must uphold.
func PadOrTruncate(pixels []colorspec.Color, n int) []colorspec.Color {
	out := make([]colorspec.Color, n)
	copy(out, pixels)
	// copy leaves any remaining entries at their zero value, which for
	// colorspec.Color is already black (mode ModeRGB, r=g=b=0).
	for i := len(pixels); i < n; i++ {
		out[i] = colorspec.Black
	}
	return out
}
