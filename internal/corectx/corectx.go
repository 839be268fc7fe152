// Package corectx assembles every component into one acyclic ownership
// tree (§9 Design Notes: "Module-level singletons -> explicit context").
// CoreContext owns the channels, the Frame Manager, and every service built
// on top of it; nothing below it reaches back up through a package-level
// global.
package corectx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/animation"
	"github.com/fcurrie/ledcore/internal/debugctl"
	"github.com/fcurrie/ledcore/internal/eventbus"
	"github.com/fcurrie/ledcore/internal/eventws"
	"github.com/fcurrie/ledcore/internal/framemanager"
	"github.com/fcurrie/ledcore/internal/hwconfig"
	"github.com/fcurrie/ledcore/internal/indicator"
	"github.com/fcurrie/ledcore/internal/ledchannel"
	"github.com/fcurrie/ledcore/internal/shutdown"
	"github.com/fcurrie/ledcore/internal/state"
	"github.com/fcurrie/ledcore/internal/stripio"
	"github.com/fcurrie/ledcore/internal/stripio/gpiostrip"
	"github.com/fcurrie/ledcore/internal/stripio/piostrip"
	"github.com/fcurrie/ledcore/internal/tasks"
	"github.com/fcurrie/ledcore/internal/transition"
	"github.com/fcurrie/ledcore/internal/zonespec"
)

// Paths names the files CoreContext loads at startup.
type Paths struct {
	HardwareConfig     string // hwconfig JSON: strips + zone layout
	StaticConfig       string // state YAML: brightness/parameter bounds
	ZoneStateFile      string // persisted state.ZoneState snapshot
	AnimationStateFile string // persisted state.AnimationInstanceState snapshot
	AppStateFile       string // persisted state.AppState snapshot
}

// CoreContext is the fully wired core. Build it with New, then Run it; Shut
// it down through its own Shutdown coordinator.
type CoreContext struct {
	Log zerolog.Logger

	Tasks      *tasks.Registry
	Bus        *eventbus.Bus
	Registry   *framemanager.ChannelRegistry
	Frames     *framemanager.Manager
	Transition *transition.Service
	Animation  *animation.Engine
	Indicator  *indicator.Indicator
	Debug      *debugctl.Controller
	Shutdown   *shutdown.Coordinator
	EventHub   *eventws.Hub

	Zones      *state.ZoneService
	Animations *state.AnimationService
	App        *state.AppStateService

	channels []*ledchannel.Channel
}

// New loads static config, opens every configured physical strip, and wires
// every component together. Callers still need to call Run to start the
// Frame Manager's tick loop and the Indicator's pulse loop.
func New(paths Paths, log zerolog.Logger) (*CoreContext, error) {
	hw, err := hwconfig.Load(paths.HardwareConfig)
	if err != nil {
		return nil, err
	}
	staticCfg, err := state.LoadStaticConfig(paths.StaticConfig)
	if err != nil {
		return nil, err
	}

	channels, err := openChannels(hw, log)
	if err != nil {
		return nil, err
	}

	// Registry and Bus each depend on the other: build the Registry with no
	// publisher, build the Bus from it, then wire the publisher back in.
	taskRegistry := tasks.New(log, nil)
	bus := eventbus.New(log, taskRegistry, 0)
	taskRegistry.SetPublisher(eventbus.TaskEventAdapter{Bus: bus})

	registry := framemanager.NewChannelRegistry(channels)
	frameMgr := framemanager.New(framemanager.Config{}, registry, log)
	transitionSvc := transition.New(frameMgr, registry)

	// Load whatever was persisted from a prior run; on first run (or a
	// missing file) these come back empty and every service falls back to
	// its config defaults, per the state-file schema-evolution rule.
	zoneInitial, zoneExtra, _, err := state.LoadZoneState(paths.ZoneStateFile)
	if err != nil {
		return nil, fmt.Errorf("corectx: load zone state: %w", err)
	}
	animInitial, animExtra, _, err := state.LoadAnimationState(paths.AnimationStateFile)
	if err != nil {
		return nil, fmt.Errorf("corectx: load animation state: %w", err)
	}
	appInitial, appExtra, _, err := state.LoadAppState(paths.AppStateFile)
	if err != nil {
		return nil, fmt.Errorf("corectx: load app state: %w", err)
	}

	zoneSvc := state.NewZoneService(staticCfg.Zones, zoneInitial, bus, paths.ZoneStateFile, log)
	zoneSvc.AdoptExtra(zoneExtra)
	animSvc := state.NewAnimationService(staticCfg.Animations, animInitial, bus, paths.AnimationStateFile, log)
	animSvc.AdoptExtra(animExtra)
	appSvc := state.NewAppStateService(zoneSvc, appInitial, bus, paths.AppStateFile, log)
	appSvc.AdoptExtra(appExtra)

	animEngine := animation.New(frameMgr, registry, transitionSvc, zoneSvc, taskRegistry, log)
	ind := indicator.New(frameMgr, bus)
	debug := debugctl.New(frameMgr)
	hub := eventws.NewHub(bus, log)

	shutdownCfg := shutdown.Config{}
	coordinator := shutdown.New(shutdownCfg, log)
	registerShutdownHandlers(coordinator, frameMgr, ind, zoneSvc, animSvc, appSvc, channels, log)

	return &CoreContext{
		Log:        log,
		Tasks:      taskRegistry,
		Bus:        bus,
		Registry:   registry,
		Frames:     frameMgr,
		Transition: transitionSvc,
		Animation:  animEngine,
		Indicator:  ind,
		Debug:      debug,
		Shutdown:   coordinator,
		EventHub:   hub,
		Zones:      zoneSvc,
		Animations: animSvc,
		App:        appSvc,
		channels:   channels,
	}, nil
}

func openChannels(hw *hwconfig.Config, log zerolog.Logger) ([]*ledchannel.Channel, error) {
	zonesByStrip := hw.ZonesByStrip()
	channels := make([]*ledchannel.Channel, 0, len(hw.Strips))
	for _, sc := range hw.Strips {
		strip, err := openStrip(sc)
		if err != nil {
			return nil, fmt.Errorf("corectx: open strip %s: %w", sc.Name, err)
		}
		mapper := zonespec.NewMapper(zonesByStrip[sc.Name])
		channels = append(channels, ledchannel.New(sc.Name, strip, mapper))
		log.Info().Str("strip", sc.Name).Int("pixels", sc.PixelCount).Msg("opened physical strip")
	}
	return channels, nil
}

func openStrip(sc hwconfig.StripConfig) (stripio.PhysicalStrip, error) {
	switch sc.Backend {
	case hwconfig.BackendPIO:
		return piostrip.Open(sc.PixelCount, sc.Order)
	default:
		return gpiostrip.Open(gpiostrip.Config{
			Chip:       sc.Chip,
			Line:       sc.Line,
			PixelCount: sc.PixelCount,
			Order:      sc.Order,
		})
	}
}

func registerShutdownHandlers(
	coordinator *shutdown.Coordinator,
	frameMgr *framemanager.Manager,
	ind *indicator.Indicator,
	zoneSvc *state.ZoneService,
	animSvc *state.AnimationService,
	appSvc *state.AppStateService,
	channels []*ledchannel.Channel,
	log zerolog.Logger,
) {
	coordinator.Register(shutdown.HandlerFunc{Name: "indicator", Prio: 90, Fn: func(ctx context.Context) error {
		ind.Stop()
		return nil
	}})
	coordinator.Register(shutdown.HandlerFunc{Name: "frame_manager", Prio: 80, Fn: func(ctx context.Context) error {
		frameMgr.Stop()
		return nil
	}})
	coordinator.Register(shutdown.HandlerFunc{Name: "state_flush", Prio: 50, Fn: func(ctx context.Context) error {
		if err := zoneSvc.Flush(); err != nil {
			return err
		}
		if err := animSvc.Flush(); err != nil {
			return err
		}
		return appSvc.Flush()
	}})
	coordinator.Register(shutdown.HandlerFunc{Name: "strips", Prio: 10, Fn: func(ctx context.Context) error {
		for _, ch := range channels {
			if err := ch.Close(); err != nil {
				log.Warn().Err(err).Str("channel", ch.Name()).Msg("error closing channel during shutdown")
			}
		}
		return nil
	}})
}

// Run starts the Frame Manager's render loop and the Indicator's pulse
// loop. Blocks until ctx is cancelled.
func (c *CoreContext) Run(ctx context.Context) {
	go c.Frames.Run(ctx)
	go c.Indicator.Start(ctx)
	go c.EventHub.Run(ctx)
	<-ctx.Done()
}
