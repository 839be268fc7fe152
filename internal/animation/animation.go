// Package animation implements the Animation Engine (§4.7, C7): it owns
// the currently running Animation, if any, drives it through an
// explicit-step Tick/Interval contract (the systems-language substitute for
// the Python source's generator-based animation functions, per §9 Design
// Notes), and submits the resulting frames at ANIMATION priority.
package animation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/tasks"
	"github.com/fcurrie/ledcore/internal/transition"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// Animation is a fresh-per-start, explicit-step frame producer.
type Animation interface {
	// Tick appends this step's micro-updates to out. Called repeatedly by
	// the engine's run loop at the cadence Interval reports.
	Tick(now time.Time, out *MicroUpdateBuffer)
	// Interval reports how long the engine should wait before the next
	// Tick call.
	Interval(now time.Time) time.Duration
}

// ParameterValues carries an animation's typed start parameters.
type ParameterValues map[string]float64

// Factory instantiates a fresh Animation bound to zones and params. Must be
// pure aside from the returned Animation's Tick buffer writes.
type Factory func(zones []zonespec.ID, params ParameterValues) Animation

// StartOptions configures one Start call.
type StartOptions struct {
	ExcludedZones []zonespec.ID
	Transition    *transition.Config
	FromFrame     transition.ZonePixels // optional; defaults to hardware snapshot
	Parameters    ParameterValues
}

// Submitter is the subset of framemanager.Manager the engine needs.
type Submitter interface {
	SubmitPixelFrame(frame.Frame)
}

// ZoneInfo resolves zone length and ownership, the same shape
// framemanager.ChannelRegistry already implements.
type ZoneInfo interface {
	ZoneSnapshot(z zonespec.ID) []colorspec.Color
	ChannelForZone(z zonespec.ID) *ledchannel.Channel
}

// StaticZoneSource reports the zones currently in STATIC render mode and
// their resolved, brightness-applied color, so the run loop can merge them
// into the same PixelFrame it submits for animated zones.
type StaticZoneSource interface {
	StaticZoneColors(zones []zonespec.ID) map[zonespec.ID]colorspec.Color
}

const (
	firstFrameMinUpdates   = 15
	firstFrameSafetyCap    = 100
	firstFrameMaxElapsed   = 250 * time.Millisecond
	fromFrameTTL           = 5 * time.Second
)

// Engine owns the currently-running animation.
type Engine struct {
	sub    Submitter
	zones  ZoneInfo
	trans  *transition.Service
	static StaticZoneSource
	tasks  *tasks.Registry
	log    zerolog.Logger

	mu      sync.Mutex
	current *runningAnimation
}

type runningAnimation struct {
	id       uint64
	anim     Animation
	zones    []zonespec.ID
	excluded map[zonespec.ID]bool
	payload  map[zonespec.ID][]colorspec.Color
	frozen   atomic.Bool
	cancel   context.CancelFunc
	task     *tasks.Task
}

var engineGen uint64

// New builds an Engine. static may be nil if no zones are ever STATIC.
func New(sub Submitter, zones ZoneInfo, trans *transition.Service, static StaticZoneSource, taskRegistry *tasks.Registry, log zerolog.Logger) *Engine {
	return &Engine{
		sub:    sub,
		zones:  zones,
		trans:  trans,
		static: static,
		tasks:  taskRegistry,
		log:    log.With().Str("component", "animation_engine").Logger(),
	}
}

// Start begins factory's animation over zones. If another animation is
// already running, this performs a Switch: stop-without-fade the old one,
// crossfade old->new first frame, avoiding a black flash.
func (e *Engine) Start(ctx context.Context, factory Factory, zones []zonespec.ID, opts StartOptions) error {
	e.trans.WaitForIdle(zones...)

	excluded := make(map[zonespec.ID]bool, len(opts.ExcludedZones))
	for _, z := range opts.ExcludedZones {
		excluded[z] = true
	}
	activeZones := make([]zonespec.ID, 0, len(zones))
	for _, z := range zones {
		if !excluded[z] {
			activeZones = append(activeZones, z)
		}
	}

	fromFrame := opts.FromFrame
	if fromFrame == nil {
		fromFrame = e.snapshotZones(activeZones)
	}

	e.mu.Lock()
	prev := e.current
	e.current = nil
	e.mu.Unlock()
	if prev != nil {
		e.stopRunning(prev, nil, true)
	}

	anim := factory(activeZones, opts.Parameters)

	firstFrame := e.collectFirstFrame(anim, activeZones)

	e.sub.SubmitPixelFrame(frame.NewPixelFrame(toFrameMap(fromFrame), frame.PriorityManual, frame.SourceManual, fromFrameTTL, time.Now()))

	cfg := transition.Config{Duration: 500 * time.Millisecond, Steps: 20}
	if opts.Transition != nil {
		cfg = *opts.Transition
	}
	sameShape := zoneShapesMatch(fromFrame, firstFrame)
	var transErr error
	if sameShape {
		transErr = e.trans.Crossfade(ctx, fromFrame, firstFrame, cfg)
	} else {
		transErr = e.trans.FadeIn(ctx, firstFrame, cfg)
	}
	if transErr != nil && transErr != corerr.Cancelled {
		e.log.Warn().Err(transErr).Msg("start transition did not complete cleanly")
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := atomic.AddUint64(&engineGen, 1)
	run := &runningAnimation{
		id:       id,
		anim:     anim,
		zones:    activeZones,
		excluded: excluded,
		payload:  initPayload(firstFrame, activeZones, e.zones),
		cancel:   cancel,
	}

	e.mu.Lock()
	e.current = run
	e.mu.Unlock()

	run.task = e.tasks.CreateTrackedTask(runCtx, func(taskCtx context.Context) error {
		e.runLoop(taskCtx, run)
		return nil
	}, tasks.CategoryAnimation, "animation run loop")

	return nil
}

// Switch is an alias for Start: starting a new animation while one is
// running always performs the crossfade switch described above.
func (e *Engine) Switch(ctx context.Context, factory Factory, zones []zonespec.ID, opts StartOptions) error {
	return e.Start(ctx, factory, zones, opts)
}

// Stop halts the running animation. If skipFade is false and transitionCfg
// is non-nil, a FadeOut plays first; otherwise buffers are cleared
// immediately with no visual transition.
func (e *Engine) Stop(transitionCfg *transition.Config, skipFade bool) {
	e.mu.Lock()
	run := e.current
	e.current = nil
	e.mu.Unlock()
	if run == nil {
		return
	}
	e.stopRunning(run, transitionCfg, skipFade)
}

func (e *Engine) stopRunning(run *runningAnimation, transitionCfg *transition.Config, skipFade bool) {
	run.cancel()
	if !skipFade && transitionCfg != nil {
		if err := e.trans.FadeOut(context.Background(), run.zones, *transitionCfg); err != nil && err != corerr.Cancelled {
			e.log.Warn().Err(err).Msg("stop fade-out did not complete cleanly")
		}
	}
	for z := range run.payload {
		run.payload[z] = nil
	}
}

// Freeze suspends submission: the run loop keeps ticking the generator (so
// its internal timing stays consistent) but no frame reaches the Frame
// Manager.
func (e *Engine) Freeze() {
	e.mu.Lock()
	run := e.current
	e.mu.Unlock()
	if run != nil {
		run.frozen.Store(true)
	}
}

// Unfreeze resumes submission.
func (e *Engine) Unfreeze() {
	e.mu.Lock()
	run := e.current
	e.mu.Unlock()
	if run != nil {
		run.frozen.Store(false)
	}
}

func (e *Engine) runLoop(ctx context.Context, run *runningAnimation) {
	buf := &MicroUpdateBuffer{}
	now := time.Now()
	timer := time.NewTimer(run.anim.Interval(now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now = <-timer.C:
		}

		func() {
			defer func() {
				if p := recover(); p != nil {
					e.log.Error().Interface("panic", p).Msg("animation Tick panicked; stopping")
					run.cancel()
				}
			}()
			buf.Reset()
			run.anim.Tick(now, buf)
			e.applyUpdates(run, buf)
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}
		timer.Reset(run.anim.Interval(now))

		if run.frozen.Load() {
			continue
		}
		e.submitPayload(run)
	}
}

func (e *Engine) applyUpdates(run *runningAnimation, buf *MicroUpdateBuffer) {
	if buf.Len() == 0 {
		return
	}
	for _, u := range buf.Updates() {
		switch u.Kind {
		case UpdateFullStrip:
			for _, z := range run.zones {
				fillZone(run.payload, z, u.Color)
			}
		case UpdateZone:
			if !run.excluded[u.Zone] {
				fillZone(run.payload, u.Zone, u.Color)
			}
		case UpdatePixel:
			if run.excluded[u.Zone] {
				continue
			}
			pixels := run.payload[u.Zone]
			if u.PixelIndex >= 0 && u.PixelIndex < len(pixels) {
				pixels[u.PixelIndex] = u.Color
			}
		}
	}

	if e.static != nil {
		for z, c := range e.static.StaticZoneColors(run.zones) {
			if run.excluded[z] {
				continue
			}
			fillZone(run.payload, z, c)
		}
	}
}

func (e *Engine) submitPayload(run *runningAnimation) {
	snapshot := make(map[zonespec.ID][]colorspec.Color, len(run.payload))
	for z, pixels := range run.payload {
		cp := make([]colorspec.Color, len(pixels))
		copy(cp, pixels)
		snapshot[z] = cp
	}
	e.sub.SubmitPixelFrame(frame.NewPixelFrame(snapshot, frame.PriorityAnimation, frame.SourceAnimation, 0, time.Now()))
}

func (e *Engine) snapshotZones(zones []zonespec.ID) transition.ZonePixels {
	out := make(transition.ZonePixels, len(zones))
	for _, z := range zones {
		out[z] = e.zones.ZoneSnapshot(z)
	}
	return out
}

func (e *Engine) collectFirstFrame(anim Animation, zones []zonespec.ID) transition.ZonePixels {
	payload := initPayload(nil, zones, e.zones)
	buf := &MicroUpdateBuffer{}
	start := time.Now()
	total := 0
	for {
		now := time.Now()
		buf.Reset()
		anim.Tick(now, buf)
		for _, u := range buf.Updates() {
			switch u.Kind {
			case UpdateFullStrip:
				for _, z := range zones {
					fillZone(payload, z, u.Color)
				}
			case UpdateZone:
				fillZone(payload, u.Zone, u.Color)
			case UpdatePixel:
				pixels := payload[u.Zone]
				if u.PixelIndex >= 0 && u.PixelIndex < len(pixels) {
					pixels[u.PixelIndex] = u.Color
				}
			}
		}
		total += buf.Len()
		if total >= firstFrameMinUpdates || total >= firstFrameSafetyCap || time.Since(start) >= firstFrameMaxElapsed {
			break
		}
		if buf.Len() == 0 {
			time.Sleep(anim.Interval(now))
		}
	}
	return transition.ZonePixels(payload)
}

func initPayload(seed transition.ZonePixels, zones []zonespec.ID, info ZoneInfo) map[zonespec.ID][]colorspec.Color {
	out := make(map[zonespec.ID][]colorspec.Color, len(zones))
	for _, z := range zones {
		if seeded, ok := seed[z]; ok {
			cp := make([]colorspec.Color, len(seeded))
			copy(cp, seeded)
			out[z] = cp
			continue
		}
		ch := info.ChannelForZone(z)
		n := 0
		if ch != nil {
			n = ch.Mapper().GetZoneLength(z)
		}
		out[z] = make([]colorspec.Color, n)
	}
	return out
}

func fillZone(payload map[zonespec.ID][]colorspec.Color, z zonespec.ID, c colorspec.Color) {
	pixels, ok := payload[z]
	if !ok {
		return
	}
	for i := range pixels {
		pixels[i] = c
	}
}

func toFrameMap(zp transition.ZonePixels) map[zonespec.ID][]colorspec.Color {
	return map[zonespec.ID][]colorspec.Color(zp)
}

func zoneShapesMatch(a, b transition.ZonePixels) bool {
	if len(a) != len(b) {
		return false
	}
	for z, pixels := range b {
		other, ok := a[z]
		if !ok || len(other) != len(pixels) {
			return false
		}
	}
	return true
}
