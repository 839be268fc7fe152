package state

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/colorspec"
	"github.com/fcurrie/ledcore/internal/eventbus"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

func lampWhite() colorspec.Color {
	return colorspec.FromRGB(255, 255, 255)
}

// AppState is the mutable, persisted app-wide UI state: which zone is
// selected for editing, whether edit mode is on, and which zones are
// currently in lamp-white override mode.
type AppState struct {
	SelectedZone   zonespec.ID          `json:"selected_zone,omitempty"`
	EditMode       bool                 `json:"edit_mode"`
	RenderMode     string               `json:"render_mode,omitempty"`
	LampWhiteZones map[zonespec.ID]bool `json:"lamp_white_zones,omitempty"`
}

func (a AppState) clone() AppState {
	zones := make(map[zonespec.ID]bool, len(a.LampWhiteZones))
	for z, v := range a.LampWhiteZones {
		zones[z] = v
	}
	a.LampWhiteZones = zones
	return a
}

// AppStateService owns the single app-wide UI state blob.
//
// Lamp-white mode (supplemented from original_source §1.3) snapshots the
// zone's prior ZoneState before overriding it to full white, so toggling it
// back off restores exactly what was showing before.
type AppStateService struct {
	zones     *ZoneService
	bus       *eventbus.Bus
	persister *Persister
	log       zerolog.Logger

	mu      sync.Mutex
	state   AppState
	priorOf map[zonespec.ID]ZoneState
	extra   map[string]json.RawMessage
}

// NewAppStateService builds a service wired to a ZoneService (for snapshot
// and restore on lamp-white toggling), with an optional initial state
// snapshot.
func NewAppStateService(zones *ZoneService, initial *AppState, bus *eventbus.Bus, persistPath string, log zerolog.Logger) *AppStateService {
	s := &AppStateService{
		zones:   zones,
		bus:     bus,
		log:     log.With().Str("component", "app_state_service").Logger(),
		priorOf: make(map[zonespec.ID]ZoneState),
	}
	if initial != nil {
		s.state = initial.clone()
	} else {
		s.state = AppState{LampWhiteZones: make(map[zonespec.ID]bool)}
	}
	if persistPath != "" {
		s.persister = NewPersister(persistPath, func() any { return s.persistSnapshot() }, log)
	}
	return s
}

// AdoptExtra installs unknown top-level JSON fields recovered by
// LoadAppState so the next persisted write carries them through unchanged,
// per the state-file schema-evolution rule.
func (s *AppStateService) AdoptExtra(extra map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = extra
}

// LoadAppState reads a persisted app-state file, decoding its known fields
// into an AppState while keeping any fields this build doesn't recognize
// in a raw sidecar for AdoptExtra. ok is false when path does not exist
// yet (first run).
func LoadAppState(path string) (state *AppState, extra map[string]json.RawMessage, ok bool, err error) {
	var raw json.RawMessage
	ok, err = readJSONFile(path, &raw)
	if err != nil || !ok {
		return nil, nil, ok, err
	}
	var st AppState
	extra, err = splitExtra(raw, &st)
	if err != nil {
		return nil, nil, false, err
	}
	return &st, extra, true, nil
}

// persistSnapshot is the Persister's snapshot source: the app state's
// known fields plus whatever unrecognized fields AdoptExtra installed.
func (s *AppStateService) persistSnapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := mergeExtra(s.state.clone(), s.extra)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to merge extra state fields, writing known fields only")
		raw, _ = json.Marshal(s.state.clone())
	}
	return raw
}

// Snapshot returns a JSON-ready copy of the current app state.
func (s *AppStateService) Snapshot() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// SetSelectedZone changes which zone is selected for editing.
func (s *AppStateService) SetSelectedZone(z zonespec.ID) {
	s.mu.Lock()
	s.state.SelectedZone = z
	s.mu.Unlock()
	s.publish("selected_zone_changed", map[string]any{"zone": string(z)})
	s.persist()
}

// SetEditMode toggles whether edits apply to the selected zone.
func (s *AppStateService) SetEditMode(on bool) {
	s.mu.Lock()
	s.state.EditMode = on
	s.mu.Unlock()
	s.publish("edit_mode_changed", map[string]any{"enabled": on})
	s.persist()
}

// SetRenderMode records the installation-wide render mode label (used by
// indicator subscribers; this service doesn't interpret its value).
func (s *AppStateService) SetRenderMode(mode string) {
	s.mu.Lock()
	s.state.RenderMode = mode
	s.mu.Unlock()
	s.publish("render_mode_changed", map[string]any{"mode": mode})
	s.persist()
}

// SetLampWhite toggles lamp-white override mode for zone z. Turning it on
// snapshots the zone's current ZoneState (so it can be restored later) and
// forces it to full-brightness white; turning it off restores whatever was
// snapshotted, or leaves the zone as-is if nothing was captured (e.g. after
// a restart with no snapshot persisted).
func (s *AppStateService) SetLampWhite(z zonespec.ID, on bool) error {
	s.mu.Lock()
	currentlyOn := s.state.LampWhiteZones[z]
	if on == currentlyOn {
		s.mu.Unlock()
		return nil
	}
	if on {
		if prior, ok := s.zones.Get(z); ok {
			s.priorOf[z] = prior
		}
	}
	s.state.LampWhiteZones[z] = on
	var prior ZoneState
	var hadPrior bool
	if !on {
		prior, hadPrior = s.priorOf[z]
		delete(s.priorOf, z)
	}
	s.mu.Unlock()

	s.publish("lamp_white_mode_changed", map[string]any{"zone": string(z), "enabled": on})
	s.persist()

	if on {
		if err := s.zones.SetColor(z, lampWhite()); err != nil {
			return err
		}
		if err := s.zones.SetBrightness(z, 100); err != nil {
			return err
		}
		return s.zones.SetRenderMode(z, RenderStatic)
	}
	if hadPrior {
		if err := s.zones.SetColor(z, prior.Color); err != nil {
			return err
		}
		if err := s.zones.SetBrightness(z, prior.Brightness); err != nil {
			return err
		}
		return s.zones.SetRenderMode(z, prior.RenderMode)
	}
	return nil
}

func (s *AppStateService) persist() {
	if s.persister != nil {
		s.persister.ScheduleSave()
	}
}

func (s *AppStateService) publish(eventType eventbus.EventType, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventType, Payload: payload})
}

// Flush forces an immediate persisted save, bypassing the debounce window.
func (s *AppStateService) Flush() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Flush()
}
