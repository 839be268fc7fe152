// Package piostrip implements stripio.PhysicalStrip over the Raspberry Pi 5
// PIO block, for installations wired through a PIO state machine instead of
// a single serial data line.
//
// Adapted from the teacher's pkg/pio (PIO register access, FIFO transfer)
// and pkg/mmap (the underlying /dev/mem mapping pkg/pio itself wraps); the
// teacher's pkg/rpi5matrix/driver.go modeled a 2-D HUB75 matrix (x, y
// addressing, a RGBMatrix type) and called pio.NewPIOState/WriteFIFO(data,
// row) signatures that don't exist on pkg/pio.PIO. This package is the
// linear-strip rewrite: one buffer indexed by pixel, pkg/pio.PIO's actual
// NewPIO/ConfigureHUB75Pins/WriteFIFO API, and the stripio.PhysicalStrip
// contract instead of a display-widget API.
package piostrip

import (
	"fmt"
	"sync"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/pkg/pio"
)

// Strip drives one PIO-addressed LED chain.
type Strip struct {
	mu         sync.Mutex
	pio        *pio.PIO
	pixelCount int
	order      stripio.ColorOrder
	buffer     []colorspec.Color
}

// Open configures the PIO's HUB75-style pin set and returns a ready Strip.
func Open(pixelCount int, order stripio.ColorOrder) (*Strip, error) {
	p, err := pio.NewPIO()
	if err != nil {
		return nil, fmt.Errorf("piostrip: open PIO: %w: %v", corerr.HardwareUnavailable, err)
	}
	if err := p.ConfigureHUB75Pins(); err != nil {
		p.Close()
		return nil, fmt.Errorf("piostrip: configure pins: %w: %v", corerr.HardwareUnavailable, err)
	}
	if order == "" {
		order = stripio.OrderGRB
	}
	return &Strip{
		pio:        p,
		pixelCount: pixelCount,
		order:      order,
		buffer:     make([]colorspec.Color, pixelCount),
	}, nil
}

func (s *Strip) PixelCount() int { return s.pixelCount }

func (s *Strip) SetPixel(index int, c colorspec.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.pixelCount {
		return
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

func (s *Strip) ApplyFrame(pixels []colorspec.Color) error {
	resized := stripio.PadOrTruncate(pixels, s.pixelCount)

	wire := make([]byte, 0, s.pixelCount*3)
	for _, c := range resized {
		rgb := stripio.Remap(c, s.order)
		wire = append(wire, rgb[0], rgb[1], rgb[2])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pio.WriteFIFO(wire); err != nil {
		return fmt.Errorf("piostrip: write FIFO: %w: %v", corerr.HardwareTransient, err)
	}
	s.buffer = resized
	return nil
}

func (s *Strip) Show() error {
	s.mu.Lock()
	buf := make([]colorspec.Color, len(s.buffer))
	copy(buf, s.buffer)
	s.mu.Unlock()
	return s.ApplyFrame(buf)
}

func (s *Strip) Clear() error {
	return s.ApplyFrame(make([]colorspec.Color, s.pixelCount))
}

func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pio == nil {
		return nil
	}
	err := s.pio.Close()
	s.pio = nil
	return err
}
