package animation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/internal/tasks"
	"github.com/fcurrie/ledcore/internal/transition"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

type fakeStrip struct{ buf []colorspec.Color }

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

type recordingSubmitter struct {
	mu     sync.Mutex
	frames []frame.Frame
}

func (r *recordingSubmitter) SubmitPixelFrame(f frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingSubmitter) last() (frame.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return frame.Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type fakeRegistry struct {
	ch map[zonespec.ID]*ledchannel.Channel
}

func (r *fakeRegistry) ChannelForZone(z zonespec.ID) *ledchannel.Channel { return r.ch[z] }
func (r *fakeRegistry) ZoneSnapshot(z zonespec.ID) []colorspec.Color {
	ch := r.ch[z]
	if ch == nil {
		return nil
	}
	indices := ch.Mapper().GetIndices(z)
	full := ch.GetFrame()
	out := make([]colorspec.Color, len(indices))
	for i, idx := range indices {
		out[i] = full[idx]
	}
	return out
}

func testHarness(t *testing.T) (*Engine, *recordingSubmitter, *fakeRegistry) {
	t.Helper()
	zones := zonespec.ComputeIndices([]zonespec.Config{{ID: zonespec.Floor, PixelCount: 4, Enabled: true}})
	mapper := zonespec.NewMapper(zones)
	strip := newFakeStrip(4)
	ch := ledchannel.New("test", strip, mapper)
	reg := &fakeRegistry{ch: map[zonespec.ID]*ledchannel.Channel{zonespec.Floor: ch}}

	sub := &recordingSubmitter{}
	trans := transition.New(sub, reg)
	taskReg := tasks.New(zerolog.Nop(), nil)
	engine := New(sub, reg, trans, nil, taskReg, zerolog.Nop())
	return engine, sub, reg
}

// solidAnimation emits one full-zone color update per tick, cycling never.
type solidAnimation struct {
	color    colorspec.Color
	interval time.Duration
	zones    []zonespec.ID
}

func (a *solidAnimation) Tick(now time.Time, out *MicroUpdateBuffer) {
	for _, z := range a.zones {
		out.SetZone(z, a.color)
	}
}
func (a *solidAnimation) Interval(now time.Time) time.Duration { return a.interval }

func TestStartSubmitsFromFrameThenRunsAnimation(t *testing.T) {
	engine, sub, _ := testHarness(t)
	target := colorspec.FromRGB(10, 20, 30)

	factory := func(zones []zonespec.ID, params ParameterValues) Animation {
		return &solidAnimation{color: target, interval: time.Millisecond, zones: zones}
	}

	err := engine.Start(context.Background(), factory, []zonespec.ID{zonespec.Floor}, StartOptions{
		Transition: &transitionConfigFast,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f, ok := sub.last(); ok && f.Priority() == frame.PriorityAnimation {
			pixels, _ := f.ZonePixels()
			if pixels[zonespec.Floor][0] == target {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run loop never submitted the animation's color at ANIMATION priority")
}

func TestFreezeSuppressesSubmission(t *testing.T) {
	engine, sub, _ := testHarness(t)
	factory := func(zones []zonespec.ID, params ParameterValues) Animation {
		return &solidAnimation{color: colorspec.FromRGB(1, 1, 1), interval: time.Millisecond, zones: zones}
	}
	if err := engine.Start(context.Background(), factory, []zonespec.ID{zonespec.Floor}, StartOptions{Transition: &transitionConfigFast}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	engine.Freeze()
	time.Sleep(10 * time.Millisecond)
	before := sub.count()
	time.Sleep(30 * time.Millisecond)
	after := sub.count()
	if after != before {
		t.Fatalf("frozen engine should not submit new frames: before=%d after=%d", before, after)
	}
}

func TestExcludedZonesNeverSubmitted(t *testing.T) {
	engine, sub, reg := testHarness(t)
	_ = reg
	factory := func(zones []zonespec.ID, params ParameterValues) Animation {
		return &solidAnimation{color: colorspec.FromRGB(1, 1, 1), interval: time.Millisecond, zones: zones}
	}
	err := engine.Start(context.Background(), factory, []zonespec.ID{zonespec.Floor}, StartOptions{
		ExcludedZones: []zonespec.ID{zonespec.Floor},
		Transition:    &transitionConfigFast,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if f, ok := sub.last(); ok {
		pixels, isPixel := f.ZonePixels()
		if isPixel {
			if _, present := pixels[zonespec.Floor]; present && len(pixels) > 0 {
				// the excluded zone must never appear with animation content
				for _, c := range pixels[zonespec.Floor] {
					if c == colorspec.FromRGB(1, 1, 1) {
						t.Fatal("excluded zone should never receive the animation's color")
					}
				}
			}
		}
	}
}

var transitionConfigFast = transition.Config{Duration: 5 * time.Millisecond, Steps: 1}
