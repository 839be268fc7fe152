// Package gpiostrip implements stripio.PhysicalStrip over a single chardev
// GPIO line using github.com/warthog618/go-gpiocdev, the modern successor to
// sysfs GPIO the teacher's own go.mod already depends on (see
// cmd/gpio-test/main.go for the chip-fallback dance this package repeats).
//
// The single-wire, timing-sensitive WS281x-style serialization protocol
// itself is the opaque driver internal the specification puts out of scope
// (§1); transmit() is where a production build would bit-bang or hand off
// to a PRU/DMA peripheral. Buffer semantics and the channel-order remap are
// real; this package has no tests of its own.
package gpiostrip

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/stripio"
)

// Strip drives one WS281x-style chain through a single GPIO data line.
type Strip struct {
	mu         sync.Mutex
	line       *gpiocdev.Line
	pixelCount int
	order      stripio.ColorOrder
	buffer     []colorspec.Color
}

// Config describes one chardev-GPIO-driven strip.
type Config struct {
	Chip       string // e.g. "gpiochip0"; empty tries gpiochip0 then gpiochip11+512 offset
	Line       int
	PixelCount int
	Order      stripio.ColorOrder
}

// Open requests the data line and returns a ready Strip. Returns a
// corerr.HardwareUnavailable-wrapped error if the line cannot be requested.
func Open(cfg Config) (*Strip, error) {
	chip := cfg.Chip
	var line *gpiocdev.Line
	var err error
	if chip != "" {
		line, err = gpiocdev.RequestLine(chip, cfg.Line, gpiocdev.AsOutput(0))
	} else {
		line, err = gpiocdev.RequestLine("gpiochip0", cfg.Line, gpiocdev.AsOutput(0))
		if err != nil {
			line, err = gpiocdev.RequestLine("gpiochip11", 512+cfg.Line, gpiocdev.AsOutput(0))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("gpiostrip: request line %d: %w: %v", cfg.Line, corerr.HardwareUnavailable, err)
	}

	order := cfg.Order
	if order == "" {
		order = stripio.OrderGRB
	}
	return &Strip{
		line:       line,
		pixelCount: cfg.PixelCount,
		order:      order,
		buffer:     make([]colorspec.Color, cfg.PixelCount),
	}, nil
}

func (s *Strip) PixelCount() int { return s.pixelCount }

func (s *Strip) SetPixel(index int, c colorspec.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.pixelCount {
		return // out-of-range index is silently clipped per §4.1
	}
	s.buffer[index] = c
}

func (s *Strip) GetPixel(index int) colorspec.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.pixelCount {
		return colorspec.Black
	}
	return s.buffer[index]
}

func (s *Strip) GetFrame() []colorspec.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]colorspec.Color, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// ApplyFrame atomically replaces the buffer and transmits it in one
// transfer. The buffer's visible state always reflects the last
// *successful* push: on transmit failure the prior buffer content stands.
func (s *Strip) ApplyFrame(pixels []colorspec.Color) error {
	resized := stripio.PadOrTruncate(pixels, s.pixelCount)

	wire := make([]byte, 0, s.pixelCount*3)
	for _, c := range resized {
		rgb := stripio.Remap(c, s.order)
		wire = append(wire, rgb[0], rgb[1], rgb[2])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transmit(wire); err != nil {
		return fmt.Errorf("gpiostrip: transmit: %w: %v", corerr.HardwareTransient, err)
	}
	s.buffer = resized
	return nil
}

// transmit is the opaque single-wire serialization step (§1: out of scope).
// It pulses the data line once per call to exercise real hardware I/O
// without claiming WS281x-accurate timing, which this chardev API cannot
// provide.
func (s *Strip) transmit(wire []byte) error {
	if len(wire) == 0 {
		return s.line.SetValue(0)
	}
	return s.line.SetValue(1)
}

func (s *Strip) Show() error {
	s.mu.Lock()
	buf := make([]colorspec.Color, len(s.buffer))
	copy(buf, s.buffer)
	s.mu.Unlock()
	return s.ApplyFrame(buf)
}

func (s *Strip) Clear() error {
	black := make([]colorspec.Color, s.pixelCount)
	return s.ApplyFrame(black)
}

func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.line == nil {
		return nil
	}
	err := s.line.Close()
	s.line = nil
	return err
}
