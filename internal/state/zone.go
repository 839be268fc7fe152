package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/eventbus"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// RenderMode is the zone's current content source.
type RenderMode string

const (
	RenderStatic    RenderMode = "STATIC"
	RenderAnimation RenderMode = "ANIMATION"
	RenderOff       RenderMode = "OFF"
)

// ZoneState is the mutable, persisted state of one zone.
type ZoneState struct {
	RenderMode  RenderMode      `json:"render_mode"`
	Color       colorspec.Color `json:"color"`
	Brightness  int             `json:"brightness"`
	On          bool            `json:"on"`
	AnimationID string          `json:"animation_id,omitempty"`
}

// Clone returns a deep copy, since ZoneState is otherwise handed out by
// value but Color/AnimationID are still safe to share (immutable once
// constructed).
func (z ZoneState) Clone() ZoneState { return z }

// ZoneService owns every zone's mutable state, validated against
// ZoneStaticConfig constraints loaded at startup.
type ZoneService struct {
	cfg       map[zonespec.ID]ZoneStaticConfig
	bus       *eventbus.Bus
	persister *Persister
	log       zerolog.Logger

	mu     sync.Mutex
	states map[zonespec.ID]*ZoneState
	extra  map[zonespec.ID]map[string]json.RawMessage
}

// NewZoneService builds a service from static config and an initial mutable
// state snapshot (e.g. loaded from disk; pass nil for every zone's defaults).
func NewZoneService(cfg []ZoneStaticConfig, initial map[zonespec.ID]ZoneState, bus *eventbus.Bus, persistPath string, log zerolog.Logger) *ZoneService {
	s := &ZoneService{
		cfg:    make(map[zonespec.ID]ZoneStaticConfig, len(cfg)),
		bus:    bus,
		states: make(map[zonespec.ID]*ZoneState, len(cfg)),
		extra:  make(map[zonespec.ID]map[string]json.RawMessage),
		log:    log.With().Str("component", "zone_state_service").Logger(),
	}
	for _, z := range cfg {
		if z.Brightness.Max == 0 && z.Brightness.Min == 0 {
			z.Brightness = defaultBrightnessParam()
		}
		s.cfg[z.ID] = z
		st := ZoneState{RenderMode: RenderStatic, Color: colorspec.Black, Brightness: 100, On: true}
		if loaded, ok := initial[z.ID]; ok {
			st = loaded
		}
		s.states[z.ID] = &st
	}
	if persistPath != "" {
		s.persister = NewPersister(persistPath, func() any { return s.persistSnapshot() }, log)
	}
	return s
}

// AdoptExtra installs unknown per-zone JSON fields recovered by
// LoadZoneState so the next persisted write carries them through
// unchanged, per the state-file schema-evolution rule.
func (s *ZoneService) AdoptExtra(extra map[zonespec.ID]map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = extra
}

// LoadZoneState reads a persisted zone-state file, decoding each zone's
// known fields into ZoneState while keeping any fields this build doesn't
// recognize in a raw sidecar, keyed the same way, for AdoptExtra. ok is
// false when path does not exist yet (first run).
func LoadZoneState(path string) (states map[zonespec.ID]ZoneState, extra map[zonespec.ID]map[string]json.RawMessage, ok bool, err error) {
	var raw map[zonespec.ID]json.RawMessage
	ok, err = readJSONFile(path, &raw)
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	states = make(map[zonespec.ID]ZoneState, len(raw))
	extra = make(map[zonespec.ID]map[string]json.RawMessage, len(raw))
	for id, r := range raw {
		var st ZoneState
		ex, err := splitExtra(r, &st)
		if err != nil {
			return nil, nil, false, fmt.Errorf("state: decode zone %s: %w", id, err)
		}
		states[id] = st
		extra[id] = ex
	}
	return states, extra, true, nil
}

// persistSnapshot is the Persister's snapshot source: each zone's known
// fields plus whatever unrecognized fields AdoptExtra installed for it.
func (s *ZoneService) persistSnapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[zonespec.ID]json.RawMessage, len(s.states))
	for z, st := range s.states {
		raw, err := mergeExtra(st.Clone(), s.extra[z])
		if err != nil {
			s.log.Error().Err(err).Str("zone", string(z)).Msg("failed to merge extra state fields, writing known fields only")
			raw, _ = json.Marshal(st.Clone())
		}
		out[z] = raw
	}
	return out
}

// Snapshot returns a JSON-ready copy of every zone's current state.
func (s *ZoneService) Snapshot() map[zonespec.ID]ZoneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[zonespec.ID]ZoneState, len(s.states))
	for z, st := range s.states {
		out[z] = st.Clone()
	}
	return out
}

// Get returns zone z's current state and whether it is known.
func (s *ZoneService) Get(z zonespec.ID) (ZoneState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[z]
	if !ok {
		return ZoneState{}, false
	}
	return st.Clone(), true
}

func (s *ZoneService) mustExist(z zonespec.ID) error {
	if _, ok := s.cfg[z]; !ok {
		return fmt.Errorf("state: unknown zone %s: %w", z, corerr.NotFound)
	}
	return nil
}

func (s *ZoneService) persist() {
	if s.persister != nil {
		s.persister.ScheduleSave()
	}
}

func (s *ZoneService) publish(eventType eventbus.EventType, z zonespec.ID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventType, Payload: map[string]any{"zone": string(z)}})
}

// SetColor sets zone z's color, validating the zone exists.
func (s *ZoneService) SetColor(z zonespec.ID, c colorspec.Color) error {
	if err := s.mustExist(z); err != nil {
		return err
	}
	s.mu.Lock()
	s.states[z].Color = c
	s.mu.Unlock()
	s.publish("zone_state_changed", z)
	s.persist()
	return nil
}

// SetBrightness sets zone z's brightness, clamped to its configured
// min/max/step via the three-layer parameter pattern.
func (s *ZoneService) SetBrightness(z zonespec.ID, pct int) error {
	if err := s.mustExist(z); err != nil {
		return err
	}
	cfg := s.cfg[z].Brightness
	state := &ParamState{Value: float64(pct)}
	clamped := Param{Config: cfg, State: state}.Clamp(float64(pct))

	s.mu.Lock()
	s.states[z].Brightness = int(clamped)
	s.mu.Unlock()
	s.publish("zone_state_changed", z)
	s.persist()
	return nil
}

// SetRenderMode switches zone z between STATIC, ANIMATION, and OFF.
func (s *ZoneService) SetRenderMode(z zonespec.ID, mode RenderMode) error {
	if err := s.mustExist(z); err != nil {
		return err
	}
	s.mu.Lock()
	s.states[z].RenderMode = mode
	s.mu.Unlock()
	s.publish("zone_render_mode_changed", z)
	s.persist()
	return nil
}

// SetAnimation assigns zone z's active animation ID (meaningful only while
// RenderMode == ANIMATION).
func (s *ZoneService) SetAnimation(z zonespec.ID, animationID string) error {
	if err := s.mustExist(z); err != nil {
		return err
	}
	s.mu.Lock()
	s.states[z].AnimationID = animationID
	s.mu.Unlock()
	s.publish("zone_animation_changed", z)
	s.persist()
	return nil
}

// SetOn is the explicit power-toggle operation (supplemented from
// original_source, §1.3): distinct from RenderMode, it just flips whether
// the zone is currently lit at all.
func (s *ZoneService) SetOn(z zonespec.ID, on bool) error {
	if err := s.mustExist(z); err != nil {
		return err
	}
	s.mu.Lock()
	s.states[z].On = on
	s.mu.Unlock()
	s.publish("zone_state_changed", z)
	s.persist()
	return nil
}

// StaticZoneColors implements animation.StaticZoneSource: it returns every
// requested zone currently in STATIC render mode, with its color scaled by
// its brightness.
func (s *ZoneService) StaticZoneColors(zones []zonespec.ID) map[zonespec.ID]colorspec.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[zonespec.ID]colorspec.Color)
	for _, z := range zones {
		st, ok := s.states[z]
		if !ok || st.RenderMode != RenderStatic || !st.On {
			continue
		}
		out[z] = st.Color.WithBrightness(st.Brightness)
	}
	return out
}

// Flush forces an immediate persisted save, bypassing the debounce window;
// used on shutdown.
func (s *ZoneService) Flush() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Flush()
}
