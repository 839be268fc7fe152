// Package transition implements the Transition Service (§4.6, C6): a pure
// producer of interpolated PixelFrames driving a fade or crossfade between
// two zone-pixel snapshots over time.
package transition

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/frame"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// Submitter is the subset of framemanager.Manager the Transition Service
// needs: somewhere to push the interpolated frames it produces.
type Submitter interface {
	SubmitPixelFrame(frame.Frame)
}

// Snapshotter resolves a zone's current on-hardware pixels and the channel
// that owns it, so a transition can default "from" to hardware state and
// detect per-channel collisions with another in-flight transition.
type Snapshotter interface {
	ZoneSnapshot(z zonespec.ID) []colorspec.Color
	ChannelForZone(z zonespec.ID) *ledchannel.Channel
}

// Config parameterizes one transition.
type Config struct {
	Duration time.Duration
	Steps    int     // default 20
	Easing   Easing  // default Linear
}

func (c Config) withDefaults() Config {
	if c.Steps <= 0 {
		c.Steps = 20
	}
	if c.Easing == nil {
		c.Easing = Linear
	}
	if c.Duration <= 0 {
		c.Duration = 500 * time.Millisecond
	}
	return c
}

// ZonePixels is a per-zone pixel snapshot, the unit the service interpolates
// over.
type ZonePixels map[zonespec.ID][]colorspec.Color

// Service runs at most one transition per channel at a time.
type Service struct {
	sub  Submitter
	snap Snapshotter

	mu         sync.Mutex
	generation map[*ledchannel.Channel]uint64
	idleCond   map[*ledchannel.Channel]chan struct{}
}

// New builds a Service that submits through sub and reads hardware state
// through snap.
func New(sub Submitter, snap Snapshotter) *Service {
	return &Service{
		sub:        sub,
		snap:       snap,
		generation: make(map[*ledchannel.Channel]uint64),
		idleCond:   make(map[*ledchannel.Channel]chan struct{}),
	}
}

// FadeIn fades from black to target over cfg.
func (s *Service) FadeIn(ctx context.Context, target ZonePixels, cfg Config) error {
	from := make(ZonePixels, len(target))
	for z, pixels := range target {
		from[z] = make([]colorspec.Color, len(pixels))
	}
	return s.run(ctx, from, target, cfg)
}

// FadeOut fades from the current hardware snapshot of the named zones to
// black over cfg.
func (s *Service) FadeOut(ctx context.Context, zones []zonespec.ID, cfg Config) error {
	from := make(ZonePixels, len(zones))
	to := make(ZonePixels, len(zones))
	for _, z := range zones {
		snap := s.snap.ZoneSnapshot(z)
		from[z] = snap
		to[z] = make([]colorspec.Color, len(snap))
	}
	return s.run(ctx, from, to, cfg)
}

// Crossfade fades from one zone-pixel snapshot to another over cfg. A nil
// "from" zone falls back to the zone's current hardware snapshot.
func (s *Service) Crossfade(ctx context.Context, from, to ZonePixels, cfg Config) error {
	resolved := make(ZonePixels, len(to))
	for z, pixels := range to {
		if existing, ok := from[z]; ok && existing != nil {
			resolved[z] = existing
		} else {
			resolved[z] = s.snap.ZoneSnapshot(z)
		}
		_ = pixels
	}
	return s.run(ctx, resolved, to, cfg)
}

// WaitForIdle blocks until no transition is active on any channel backing
// zones. If none of the zones currently have an active transition, it
// returns immediately.
func (s *Service) WaitForIdle(zones ...zonespec.ID) {
	for _, z := range zones {
		ch := s.snap.ChannelForZone(z)
		if ch == nil {
			continue
		}
		s.mu.Lock()
		done := s.idleCond[ch]
		s.mu.Unlock()
		if done != nil {
			<-done
		}
	}
}

// run drives steps+1 PixelFrame submissions from "from" to "to" at
// cfg.Duration/cfg.Steps intervals, blocking until complete or cancelled. A
// later call targeting the same channel cancels this one at its next step
// boundary.
func (s *Service) run(ctx context.Context, from, to ZonePixels, cfg Config) error {
	cfg = cfg.withDefaults()
	if len(to) == 0 {
		return fmt.Errorf("transition: empty target: %w", corerr.InvalidArgument)
	}

	channels := s.channelsFor(to)
	myGen, done := s.claim(channels)
	defer s.release(channels, myGen, done)

	interval := cfg.Duration / time.Duration(cfg.Steps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for step := 0; step <= cfg.Steps; step++ {
		if !s.stillCurrent(channels, myGen) {
			return corerr.Cancelled
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := cfg.Easing(float64(step) / float64(cfg.Steps))
		payload := lerpZones(from, to, t)
		s.sub.SubmitPixelFrame(frame.NewPixelFrame(payload, frame.PriorityTransition, frame.SourceTransition, 0, time.Now()))

		if step == cfg.Steps {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) channelsFor(zones ZonePixels) []*ledchannel.Channel {
	seen := make(map[*ledchannel.Channel]bool)
	var out []*ledchannel.Channel
	for z := range zones {
		ch := s.snap.ChannelForZone(z)
		if ch == nil || seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}

// claim bumps the generation on every involved channel, cancelling any
// transition already running on them, and installs a fresh idle gate.
func (s *Service) claim(channels []*ledchannel.Channel) (uint64, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gen uint64
	newDone := make(chan struct{})
	for _, ch := range channels {
		gen = s.generation[ch] + 1
		s.generation[ch] = gen
		s.idleCond[ch] = newDone
	}
	return gen, newDone
}

func (s *Service) stillCurrent(channels []*ledchannel.Channel, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if s.generation[ch] != gen {
			return false
		}
	}
	return true
}

func (s *Service) release(channels []*ledchannel.Channel, gen uint64, done chan struct{}) {
	s.mu.Lock()
	for _, ch := range channels {
		if s.generation[ch] == gen && s.idleCond[ch] == done {
			delete(s.idleCond, ch)
		}
	}
	s.mu.Unlock()
	close(done)
}

func lerpZones(from, to ZonePixels, t float64) map[zonespec.ID][]colorspec.Color {
	out := make(map[zonespec.ID][]colorspec.Color, len(to))
	for z, toPixels := range to {
		fromPixels := from[z]
		n := len(toPixels)
		row := make([]colorspec.Color, n)
		for i := 0; i < n; i++ {
			var fc colorspec.Color
			if i < len(fromPixels) {
				fc = fromPixels[i]
			}
			row[i] = lerpColor(fc, toPixels[i], t)
		}
		out[z] = row
	}
	return out
}

func lerpColor(from, to colorspec.Color, t float64) colorspec.Color {
	fr, fg, fb := from.ToRGB()
	tr, tg, tb := to.ToRGB()
	return colorspec.FromRGB(
		lerpChannel(fr, tr, t),
		lerpChannel(fg, tg, t),
		lerpChannel(fb, tb, t),
	)
}

func lerpChannel(from, to uint8, t float64) uint8 {
	v := float64(from) + (float64(to)-float64(from))*t
	v = math.RoundToEven(v)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
