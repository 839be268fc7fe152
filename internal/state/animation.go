package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/corerr"
	"github.com/fcurrie/ledcore/internal/eventbus"
)

// AnimationInstanceState is the mutable, persisted state of one installed
// animation: its current parameter values and whether it is the one
// currently running somewhere.
type AnimationInstanceState struct {
	Parameters map[string]float64 `json:"parameters"`
	Running    bool               `json:"running"`
}

func (a AnimationInstanceState) clone() AnimationInstanceState {
	params := make(map[string]float64, len(a.Parameters))
	for k, v := range a.Parameters {
		params[k] = v
	}
	return AnimationInstanceState{Parameters: params, Running: a.Running}
}

// AnimationService tracks every installed animation's parameter values,
// validated against the ParamConfig bounds loaded from static config. It
// does not itself run animations (internal/animation.Engine does that); it
// is the durable, adjustable knob set a UI or API layer mutates.
type AnimationService struct {
	cfg       map[string]AnimationStaticConfig
	bus       *eventbus.Bus
	persister *Persister
	log       zerolog.Logger

	mu     sync.Mutex
	states map[string]*AnimationInstanceState
	extra  map[string]map[string]json.RawMessage
	active string // ID of the animation currently marked running, or "".
}

// NewAnimationService builds a service from static config and an initial
// mutable state snapshot (pass nil to default every parameter to its
// ParamConfig Min).
func NewAnimationService(cfg []AnimationStaticConfig, initial map[string]AnimationInstanceState, bus *eventbus.Bus, persistPath string, log zerolog.Logger) *AnimationService {
	s := &AnimationService{
		cfg:    make(map[string]AnimationStaticConfig, len(cfg)),
		bus:    bus,
		states: make(map[string]*AnimationInstanceState, len(cfg)),
		extra:  make(map[string]map[string]json.RawMessage),
		log:    log.With().Str("component", "animation_state_service").Logger(),
	}
	for _, a := range cfg {
		s.cfg[a.ID] = a
		st := AnimationInstanceState{Parameters: defaultParameters(a.Parameters)}
		if loaded, ok := initial[a.ID]; ok {
			st = loaded.clone()
		}
		s.states[a.ID] = &st
		if st.Running {
			s.active = a.ID
		}
	}
	if persistPath != "" {
		s.persister = NewPersister(persistPath, func() any { return s.persistSnapshot() }, log)
	}
	return s
}

// AdoptExtra installs unknown per-animation JSON fields recovered by
// LoadAnimationState so the next persisted write carries them through
// unchanged, per the state-file schema-evolution rule.
func (s *AnimationService) AdoptExtra(extra map[string]map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = extra
}

// LoadAnimationState reads a persisted animation-state file, decoding each
// animation's known fields into AnimationInstanceState while keeping any
// fields this build doesn't recognize in a raw sidecar for AdoptExtra. ok
// is false when path does not exist yet (first run).
func LoadAnimationState(path string) (states map[string]AnimationInstanceState, extra map[string]map[string]json.RawMessage, ok bool, err error) {
	var raw map[string]json.RawMessage
	ok, err = readJSONFile(path, &raw)
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	states = make(map[string]AnimationInstanceState, len(raw))
	extra = make(map[string]map[string]json.RawMessage, len(raw))
	for id, r := range raw {
		var st AnimationInstanceState
		ex, err := splitExtra(r, &st)
		if err != nil {
			return nil, nil, false, fmt.Errorf("state: decode animation %s: %w", id, err)
		}
		states[id] = st
		extra[id] = ex
	}
	return states, extra, true, nil
}

// persistSnapshot is the Persister's snapshot source: each animation's
// known fields plus whatever unrecognized fields AdoptExtra installed for
// it.
func (s *AnimationService) persistSnapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage, len(s.states))
	for id, st := range s.states {
		raw, err := mergeExtra(st.clone(), s.extra[id])
		if err != nil {
			s.log.Error().Err(err).Str("animation", id).Msg("failed to merge extra state fields, writing known fields only")
			raw, _ = json.Marshal(st.clone())
		}
		out[id] = raw
	}
	return out
}

func defaultParameters(params map[string]ParamConfig) map[string]float64 {
	out := make(map[string]float64, len(params))
	for name, cfg := range params {
		out[name] = cfg.Min
	}
	return out
}

// Snapshot returns a JSON-ready copy of every animation's current state.
func (s *AnimationService) Snapshot() map[string]AnimationInstanceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]AnimationInstanceState, len(s.states))
	for id, st := range s.states {
		out[id] = st.clone()
	}
	return out
}

// Get returns animation id's current state and whether it is known.
func (s *AnimationService) Get(id string) (AnimationInstanceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return AnimationInstanceState{}, false
	}
	return st.clone(), true
}

// List returns every installed animation's static config, in no particular
// order.
func (s *AnimationService) List() []AnimationStaticConfig {
	out := make([]AnimationStaticConfig, 0, len(s.cfg))
	for _, c := range s.cfg {
		out = append(out, c)
	}
	return out
}

func (s *AnimationService) paramConfig(id, name string) (ParamConfig, error) {
	cfg, ok := s.cfg[id]
	if !ok {
		return ParamConfig{}, fmt.Errorf("state: unknown animation %s: %w", id, corerr.NotFound)
	}
	pc, ok := cfg.Parameters[name]
	if !ok {
		return ParamConfig{}, fmt.Errorf("state: animation %s has no parameter %q: %w", id, name, corerr.NotFound)
	}
	return pc, nil
}

// SetParameter clamps value to the named parameter's configured bounds and
// stores it.
func (s *AnimationService) SetParameter(id, name string, value float64) (float64, error) {
	pc, err := s.paramConfig(id, name)
	if err != nil {
		return 0, err
	}
	clamped := Param{Config: pc, State: &ParamState{Value: value}}.Clamp(value)

	s.mu.Lock()
	s.states[id].Parameters[name] = clamped
	s.mu.Unlock()

	s.publish("animation_parameter_changed", id, map[string]any{"parameter": name, "value": clamped})
	s.persist()
	return clamped, nil
}

// AdjustParameter nudges the named parameter by delta and returns its new
// value.
func (s *AnimationService) AdjustParameter(id, name string, delta float64) (float64, error) {
	pc, err := s.paramConfig(id, name)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	current := s.states[id].Parameters[name]
	next := Param{Config: pc, State: &ParamState{Value: current}}.Adjust(delta)
	s.states[id].Parameters[name] = next
	s.mu.Unlock()

	s.publish("animation_parameter_changed", id, map[string]any{"parameter": name, "value": next})
	s.persist()
	return next, nil
}

// MarkStarted records that animation id is now the one running, clearing
// the Running flag on whatever was previously active.
func (s *AnimationService) MarkStarted(id string) error {
	if _, ok := s.cfg[id]; !ok {
		return fmt.Errorf("state: unknown animation %s: %w", id, corerr.NotFound)
	}
	s.mu.Lock()
	if s.active != "" && s.active != id {
		if prev, ok := s.states[s.active]; ok {
			prev.Running = false
		}
	}
	s.states[id].Running = true
	s.active = id
	s.mu.Unlock()

	s.publish("animation_started", id, nil)
	s.persist()
	return nil
}

// MarkStopped clears the Running flag for id, if it is the active one.
func (s *AnimationService) MarkStopped(id string) {
	s.mu.Lock()
	if st, ok := s.states[id]; ok {
		st.Running = false
	}
	if s.active == id {
		s.active = ""
	}
	s.mu.Unlock()

	s.publish("animation_stopped", id, nil)
	s.persist()
}

// Active returns the ID of the currently-running animation, or "" if none.
func (s *AnimationService) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *AnimationService) persist() {
	if s.persister != nil {
		s.persister.ScheduleSave()
	}
}

func (s *AnimationService) publish(eventType eventbus.EventType, id string, extra map[string]any) {
	if s.bus == nil {
		return
	}
	payload := map[string]any{"animation": id}
	for k, v := range extra {
		payload[k] = v
	}
	s.bus.Publish(eventbus.Event{Type: eventType, Payload: payload})
}

// Flush forces an immediate persisted save, bypassing the debounce window.
func (s *AnimationService) Flush() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Flush()
}
