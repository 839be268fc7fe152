package transition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	frames []frame.Frame
}

func (r *recordingSubmitter) SubmitPixelFrame(f frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingSubmitter) snapshot() []frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]frame.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

type fakeStrip struct {
	buf []colorspec.Color
}

func newFakeStrip(n int) *fakeStrip { return &fakeStrip{buf: make([]colorspec.Color, n)} }

func (f *fakeStrip) PixelCount() int { return len(f.buf) }
func (f *fakeStrip) SetPixel(i int, c colorspec.Color) {
	if i >= 0 && i < len(f.buf) {
		f.buf[i] = c
	}
}
func (f *fakeStrip) GetPixel(i int) colorspec.Color {
	if i < 0 || i >= len(f.buf) {
		return colorspec.Black
	}
	return f.buf[i]
}
func (f *fakeStrip) GetFrame() []colorspec.Color {
	out := make([]colorspec.Color, len(f.buf))
	copy(out, f.buf)
	return out
}
func (f *fakeStrip) ApplyFrame(pixels []colorspec.Color) error {
	f.buf = stripio.PadOrTruncate(pixels, len(f.buf))
	return nil
}
func (f *fakeStrip) Show() error  { return f.ApplyFrame(f.buf) }
func (f *fakeStrip) Clear() error { return f.ApplyFrame(make([]colorspec.Color, len(f.buf))) }
func (f *fakeStrip) Close() error { return nil }

// fakeRegistry is a minimal Snapshotter over one channel/zone.
type fakeRegistry struct {
	ch *ledchannel.Channel
	z  zonespec.ID
}

func (r *fakeRegistry) ChannelForZone(z zonespec.ID) *ledchannel.Channel {
	if z == r.z {
		return r.ch
	}
	return nil
}

func (r *fakeRegistry) ZoneSnapshot(z zonespec.ID) []colorspec.Color {
	if z != r.z {
		return nil
	}
	indices := r.ch.Mapper().GetIndices(z)
	full := r.ch.GetFrame()
	out := make([]colorspec.Color, len(indices))
	for i, idx := range indices {
		out[i] = full[idx]
	}
	return out
}

func testSetup(t *testing.T) (*Service, *recordingSubmitter, *fakeRegistry) {
	t.Helper()
	zones := zonespec.ComputeIndices([]zonespec.Config{{ID: zonespec.Floor, PixelCount: 3, Enabled: true}})
	mapper := zonespec.NewMapper(zones)
	strip := newFakeStrip(3)
	ch := ledchannel.New("test", strip, mapper)
	reg := &fakeRegistry{ch: ch, z: zonespec.Floor}
	sub := &recordingSubmitter{}
	return New(sub, reg), sub, reg
}

func TestFadeInStartsBlackEndsTarget(t *testing.T) {
	s, sub, _ := testSetup(t)
	target := colorspec.FromRGB(100, 150, 200)
	zp := ZonePixels{zonespec.Floor: {target, target, target}}

	err := s.FadeIn(context.Background(), zp, Config{Duration: 20 * time.Millisecond, Steps: 4})
	if err != nil {
		t.Fatalf("FadeIn: %v", err)
	}

	frames := sub.snapshot()
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5 (steps+1)", len(frames))
	}
	firstPixels, _ := frames[0].ZonePixels()
	if firstPixels[zonespec.Floor][0] != colorspec.Black {
		t.Fatalf("first frame = %v, want black", firstPixels[zonespec.Floor][0])
	}
	lastPixels, _ := frames[len(frames)-1].ZonePixels()
	if lastPixels[zonespec.Floor][0] != target {
		t.Fatalf("last frame = %v, want %v", lastPixels[zonespec.Floor][0], target)
	}
	for _, f := range frames {
		if f.Priority() != frame.PriorityTransition {
			t.Fatalf("frame priority = %v, want TRANSITION", f.Priority())
		}
	}
}

func TestCrossfadeDefaultsFromToHardwareSnapshot(t *testing.T) {
	s, _, reg := testSetup(t)
	existing := colorspec.FromRGB(5, 5, 5)
	reg.ch.ApplyPixelFrame([]colorspec.Color{existing, existing, existing})

	target := colorspec.FromRGB(250, 250, 250)
	to := ZonePixels{zonespec.Floor: {target, target, target}}

	err := s.Crossfade(context.Background(), nil, to, Config{Duration: 10 * time.Millisecond, Steps: 2})
	if err != nil {
		t.Fatalf("Crossfade: %v", err)
	}
}

func TestNewTransitionCancelsPreviousOnSameChannel(t *testing.T) {
	s, sub, _ := testSetup(t)
	target1 := colorspec.FromRGB(10, 10, 10)
	target2 := colorspec.FromRGB(20, 20, 20)

	errc := make(chan error, 1)
	go func() {
		errc <- s.FadeIn(context.Background(), ZonePixels{zonespec.Floor: {target1, target1, target1}}, Config{Duration: 200 * time.Millisecond, Steps: 50})
	}()
	time.Sleep(5 * time.Millisecond)

	if err := s.FadeIn(context.Background(), ZonePixels{zonespec.Floor: {target2, target2, target2}}, Config{Duration: 10 * time.Millisecond, Steps: 2}); err != nil {
		t.Fatalf("second FadeIn: %v", err)
	}

	firstErr := <-errc
	if firstErr == nil {
		t.Fatal("first transition should have been cancelled by the second")
	}

	frames := sub.snapshot()
	last := frames[len(frames)-1]
	lastPixels, _ := last.ZonePixels()
	if lastPixels[zonespec.Floor][0] != target2 {
		t.Fatalf("final frame = %v, want second transition's target %v", lastPixels[zonespec.Floor][0], target2)
	}
}

func TestWaitForIdleReturnsImmediatelyWhenNothingActive(t *testing.T) {
	s, _, _ := testSetup(t)
	done := make(chan struct{})
	go func() {
		s.WaitForIdle(zonespec.Floor)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForIdle blocked with no active transition")
	}
}
