// Package framemanager implements the Frame Manager (§4.5, C5): the
// priority arbitration core that accepts frames from many producers, picks
// a winner at a fixed tick rate, and pushes it to hardware with
// token-based change detection so redundant transfers are skipped.
package framemanager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// priorityLevels is every priority the arbitration loop considers, lowest
// to highest. Kept explicit rather than derived so iteration order never
// depends on map ordering.
var priorityLevels = []frame.Priority{
	frame.PriorityIdle,
	frame.PriorityManual,
	frame.PriorityAnimation,
	frame.PriorityPulse,
	frame.PriorityTransition,
	frame.PriorityDebug,
}

// SourceFunc is a pull source polled once per tick, treated equivalently to
// a submitted frame at the priority it returns. ok=false means "nothing to
// contribute this tick".
type SourceFunc func(now time.Time) (f frame.Frame, ok bool)

// Config configures the fixed-rate arbitration loop.
type Config struct {
	TickRateHz   int // default 60, valid 1..240
	WorkerCount  int // hardware-push worker pool size, default 2
	QueueDepth   int // hardware-push job queue depth, default 8
}

func (c Config) withDefaults() Config {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.TickRateHz > 240 {
		c.TickRateHz = 240
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 8
	}
	return c
}

// Manager is the arbitration core. Zero value is not usable; build with New.
type Manager struct {
	cfg      Config
	registry *ChannelRegistry
	log      zerolog.Logger

	mu       sync.Mutex
	retained map[frame.Priority]frame.Frame
	sources  map[int]SourceFunc
	nextSrc  int
	paused   bool
	stepOnce bool

	lastRenderedToken uint64
	stickyIdle        bool

	framesRendered uint64
	dmaSkipped     uint64

	jobs   chan renderJob
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type renderJob struct {
	winner frame.Frame
	now    time.Time
}

// New builds a Manager bound to registry. Call Run to start its tick loop.
func New(cfg Config, registry *ChannelRegistry, log zerolog.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:      cfg,
		registry: registry,
		log:      log.With().Str("component", "frame_manager").Logger(),
		retained: make(map[frame.Priority]frame.Frame),
		sources:  make(map[int]SourceFunc),
		jobs:     make(chan renderJob, cfg.QueueDepth),
	}
}

// SubmitFullStrip retains f as the latest frame at its priority level.
func (m *Manager) SubmitFullStrip(f frame.Frame) { m.submit(f) }

// SubmitZoneFrame retains f as the latest frame at its priority level.
func (m *Manager) SubmitZoneFrame(f frame.Frame) { m.submit(f) }

// SubmitPixelFrame retains f as the latest frame at its priority level.
func (m *Manager) SubmitPixelFrame(f frame.Frame) { m.submit(f) }

func (m *Manager) submit(f frame.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Backpressure per §4.5.5: newest per priority wins, intermediate
	// frames at the same level are simply overwritten (never queued).
	m.retained[f.Priority()] = f
}

// AddSource registers a pull source polled each tick. Returns a handle for
// RemoveSource.
func (m *Manager) AddSource(fn SourceFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSrc
	m.nextSrc++
	m.sources[id] = fn
	return id
}

// RemoveSource unregisters a pull source previously added with AddSource.
func (m *Manager) RemoveSource(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, id)
}

// Pause suspends selection+flush; the tick loop keeps running internally.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume clears Pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.stepOnce = false
}

// StepFrame is valid only while paused: it consumes exactly one tick's
// worth of selection+flush, then re-pauses.
func (m *Manager) StepFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		m.stepOnce = true
	}
}

// ClearBelowPriority discards all retained frames below p.
func (m *Manager) ClearBelowPriority(p frame.Priority) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for level := range m.retained {
		if level < p {
			delete(m.retained, level)
		}
	}
}

// ClearPriority discards the retained frame at exactly priority p, if any.
func (m *Manager) ClearPriority(p frame.Priority) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retained, p)
}

// Stats reports the running render/skip counters.
type Stats struct {
	FramesRendered uint64
	DMASkipped     uint64
}

func (m *Manager) Stats() Stats {
	return Stats{
		FramesRendered: atomic.LoadUint64(&m.framesRendered),
		DMASkipped:     atomic.LoadUint64(&m.dmaSkipped),
	}
}

// Run starts the fixed-rate tick loop and the hardware-push worker pool. It
// blocks until ctx is cancelled, then drains the worker pool.
func (m *Manager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for i := 0; i < m.cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.renderWorker()
	}

	interval := time.Second / time.Duration(m.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(m.jobs)
			m.wg.Wait()
			return
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

// Stop cancels the tick loop and waits for in-flight hardware pushes to
// finish draining.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
}

func (m *Manager) tick(now time.Time) {
	m.mu.Lock()
	if m.paused && !m.stepOnce {
		m.mu.Unlock()
		return
	}
	m.stepOnce = false

	for _, src := range m.sources {
		if f, ok := src(now); ok {
			m.retained[f.Priority()] = f
		}
	}

	var winner frame.Frame
	haveWinner := false
	for _, level := range priorityLevels {
		f, ok := m.retained[level]
		if !ok {
			continue
		}
		if f.IsExpired(now) {
			delete(m.retained, level)
			continue
		}
		winner = f
		haveWinner = true
	}

	if !haveWinner {
		if m.stickyIdle {
			m.mu.Unlock()
			return
		}
		m.stickyIdle = true
		winner = frame.NewFullStrip(colorspec.Black, frame.PriorityIdle, frame.SourceIdle, 0, now)
		haveWinner = true
	} else {
		m.stickyIdle = false
	}
	m.mu.Unlock()

	if winner.Token() == atomic.LoadUint64(&m.lastRenderedToken) {
		atomic.AddUint64(&m.dmaSkipped, 1)
		return
	}

	select {
	case m.jobs <- renderJob{winner: winner, now: now}:
	default:
		// Queue saturated: drop this tick's push rather than block the
		// ticker. The next tick will resubmit if the winner is unchanged.
		m.log.Warn().Msg("render queue saturated, dropping tick")
	}
}

func (m *Manager) renderWorker() {
	defer m.wg.Done()
	for job := range m.jobs {
		m.render(job.winner, job.now)
	}
}

func (m *Manager) render(winner frame.Frame, now time.Time) {
	if err := m.materialize(winner); err != nil {
		m.log.Error().Err(err).Str("source", string(winner.Source())).Msg("materialize failed")
		return
	}
	atomic.StoreUint64(&m.lastRenderedToken, winner.Token())
	atomic.AddUint64(&m.framesRendered, 1)
}

func (m *Manager) materialize(f frame.Frame) error {
	switch f.Kind() {
	case frame.KindFullStrip:
		color, _ := f.FullColor()
		return m.pushFullStrip(color)
	case frame.KindZone:
		colors, _ := f.ZoneColors()
		return m.pushZoneFrame(colors)
	case frame.KindPixel:
		pixels, _ := f.ZonePixels()
		return m.pushPixelFrame(pixels)
	default:
		return fmt.Errorf("framemanager: unknown frame kind %d: %w", f.Kind(), corerr.InvalidArgument)
	}
}

func (m *Manager) pushFullStrip(c colorspec.Color) error {
	var firstErr error
	for _, ch := range m.registry.AllChannels() {
		pixels := make([]colorspec.Color, ch.PixelCount())
		for i := range pixels {
			pixels[i] = c
		}
		if err := ch.ApplyPixelFrame(pixels); err != nil {
			m.log.Error().Err(err).Str("channel", ch.Name()).Msg("full-strip push failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) pushZoneFrame(colors map[zonespec.ID]colorspec.Color) error {
	byChannel := make(map[*ledchannel.Channel]map[zonespec.ID]colorspec.Color)
	for z, c := range colors {
		ch := m.registry.ChannelForZone(z)
		if ch == nil {
			m.log.Warn().Str("zone", string(z)).Msg("zone frame references unknown zone, dropping")
			continue
		}
		if byChannel[ch] == nil {
			byChannel[ch] = make(map[zonespec.ID]colorspec.Color)
		}
		byChannel[ch][z] = c
	}
	var firstErr error
	for ch, zoneColors := range byChannel {
		frameOut := ch.BuildFrameFromZones(zoneColors)
		if err := ch.ApplyPixelFrame(frameOut); err != nil {
			m.log.Error().Err(err).Str("channel", ch.Name()).Msg("zone push failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) pushPixelFrame(zonePixels map[zonespec.ID][]colorspec.Color) error {
	byChannel := make(map[*ledchannel.Channel]map[zonespec.ID][]colorspec.Color)
	for z, pixels := range zonePixels {
		ch := m.registry.ChannelForZone(z)
		if ch == nil {
			m.log.Warn().Str("zone", string(z)).Msg("pixel frame references unknown zone, dropping")
			continue
		}
		if byChannel[ch] == nil {
			byChannel[ch] = make(map[zonespec.ID][]colorspec.Color)
		}
		byChannel[ch][z] = pixels
	}
	var firstErr error
	for ch, zonePx := range byChannel {
		frameOut := ch.BuildFrameFromZonePixels(zonePx)
		if err := ch.ApplyPixelFrame(frameOut); err != nil {
			m.log.Error().Err(err).Str("channel", ch.Name()).Msg("pixel push failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
