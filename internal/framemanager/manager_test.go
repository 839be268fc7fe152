package framemanager

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

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

func testRegistry(t *testing.T) (*ChannelRegistry, *fakeStrip) {
	t.Helper()
	zones := zonespec.ComputeIndices([]zonespec.Config{
		{ID: zonespec.Floor, PixelCount: 3, Enabled: true},
		{ID: zonespec.Lamp, PixelCount: 2, Enabled: true},
	})
	mapper := zonespec.NewMapper(zones)
	strip := newFakeStrip(5)
	ch := ledchannel.New("test", strip, mapper)
	return NewChannelRegistry([]*ledchannel.Channel{ch}), strip
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestHighestPriorityWins(t *testing.T) {
	reg, strip := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())

	now := time.Now()
	low := frame.NewFullStrip(colorspec.FromRGB(1, 0, 0), frame.PriorityAnimation, frame.SourceAnimation, 0, now)
	high := frame.NewFullStrip(colorspec.FromRGB(0, 1, 0), frame.PriorityTransition, frame.SourceTransition, 0, now)
	m.SubmitFullStrip(low)
	m.SubmitFullStrip(high)

	m.tick(now)

	select {
	case job := <-m.jobs:
		m.render(job.winner, job.now)
	case <-time.After(time.Second):
		t.Fatal("no render job queued")
	}

	if strip.buf[0] != colorspec.FromRGB(0, 1, 0) {
		t.Fatalf("hardware = %v, want high-priority green", strip.buf[0])
	}
}

func TestChangeDetectionSkipsSameToken(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())

	now := time.Now()
	f := frame.NewFullStrip(colorspec.FromRGB(1, 2, 3), frame.PriorityManual, frame.SourceManual, 0, now)
	m.SubmitFullStrip(f)

	m.tick(now)
	if len(m.jobs) != 1 {
		t.Fatalf("expected one queued job after first tick, got %d", len(m.jobs))
	}
	job := <-m.jobs
	m.render(job.winner, job.now)

	if m.Stats().FramesRendered != 1 {
		t.Fatalf("FramesRendered = %d, want 1", m.Stats().FramesRendered)
	}

	m.tick(now) // same retained frame, same token
	if len(m.jobs) != 0 {
		t.Fatal("identical token should not re-enqueue a render job")
	}
	if m.Stats().DMASkipped != 1 {
		t.Fatalf("DMASkipped = %d, want 1", m.Stats().DMASkipped)
	}
}

func TestIdleFallbackIsStickyOnce(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())
	now := time.Now()

	m.tick(now)
	if len(m.jobs) != 1 {
		t.Fatalf("expected one idle fallback job, got %d", len(m.jobs))
	}
	<-m.jobs

	m.tick(now.Add(time.Millisecond))
	if len(m.jobs) != 0 {
		t.Fatal("idle fallback should be sticky: no second push with nothing submitted")
	}
}

func TestPauseSkipsSelection(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())
	m.Pause()

	now := time.Now()
	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(9, 9, 9), frame.PriorityManual, frame.SourceManual, 0, now))
	m.tick(now)
	if len(m.jobs) != 0 {
		t.Fatal("paused manager should not enqueue a render job")
	}
}

func TestStepFrameConsumesOneTickThenRepauses(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())
	m.Pause()

	now := time.Now()
	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(9, 9, 9), frame.PriorityManual, frame.SourceManual, 0, now))
	m.StepFrame()
	m.tick(now)
	if len(m.jobs) != 1 {
		t.Fatal("StepFrame should allow exactly one tick through")
	}
	<-m.jobs

	m.tick(now.Add(time.Millisecond))
	if len(m.jobs) != 0 {
		t.Fatal("manager should re-pause after consuming its one step")
	}
}

func TestClearBelowPriorityDropsLowerFrames(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())
	now := time.Now()

	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(1, 1, 1), frame.PriorityAnimation, frame.SourceAnimation, 0, now))
	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(2, 2, 2), frame.PriorityDebug, frame.SourceDebug, 0, now))

	m.ClearBelowPriority(frame.PriorityDebug)

	m.mu.Lock()
	_, hasAnimation := m.retained[frame.PriorityAnimation]
	_, hasDebug := m.retained[frame.PriorityDebug]
	m.mu.Unlock()

	if hasAnimation {
		t.Fatal("ClearBelowPriority should have discarded the animation-level frame")
	}
	if !hasDebug {
		t.Fatal("ClearBelowPriority should preserve frames at or above the cutoff")
	}
}

func TestClearPriorityDropsOnlyThatLevel(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())
	now := time.Now()

	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(1, 1, 1), frame.PriorityAnimation, frame.SourceAnimation, 0, now))
	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(2, 2, 2), frame.PriorityDebug, frame.SourceDebug, 0, now))

	m.ClearPriority(frame.PriorityDebug)

	m.mu.Lock()
	_, hasAnimation := m.retained[frame.PriorityAnimation]
	_, hasDebug := m.retained[frame.PriorityDebug]
	m.mu.Unlock()

	if !hasAnimation {
		t.Fatal("ClearPriority should not touch other levels")
	}
	if hasDebug {
		t.Fatal("ClearPriority should discard exactly the given level")
	}
}

func TestExpiredFrameIsDiscarded(t *testing.T) {
	reg, _ := testRegistry(t)
	m := New(Config{TickRateHz: 1000}, reg, testLogger())
	now := time.Now()

	m.SubmitFullStrip(frame.NewFullStrip(colorspec.FromRGB(1, 1, 1), frame.PriorityManual, frame.SourceManual, time.Millisecond, now))

	later := now.Add(time.Second)
	m.tick(later)

	m.mu.Lock()
	_, has := m.retained[frame.PriorityManual]
	m.mu.Unlock()
	if has {
		t.Fatal("expired frame should have been discarded during arbitration")
	}
}
