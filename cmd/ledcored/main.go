// Command ledcored is the consolidated daemon entrypoint: it wires a
// CoreContext from the static hardware/config files, starts the render and
// pulse loops, serves the outbound event WebSocket, and blocks on
// SIGINT/SIGTERM before running the Shutdown Coordinator's teardown
// sequence.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/corectx"
)

func main() {
	hardwareConfig := flag.String("hardware-config", "hardware.json", "path to the physical strip/zone layout file")
	staticConfig := flag.String("static-config", "static.yaml", "path to the zone/animation parameter bounds file")
	zoneState := flag.String("zone-state", "zone_state.json", "path to the persisted zone state file")
	animationState := flag.String("animation-state", "animation_state.json", "path to the persisted animation state file")
	appState := flag.String("app-state", "app_state.json", "path to the persisted app state file")
	listenAddr := flag.String("listen", ":8080", "address to serve the event WebSocket on")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	core, err := corectx.New(corectx.Paths{
		HardwareConfig:     *hardwareConfig,
		StaticConfig:       *staticConfig,
		ZoneStateFile:      *zoneState,
		AnimationStateFile: *animationState,
		AppStateFile:       *appState,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize core")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go core.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/events", core.EventHub)
	server := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", *listenAddr).Msg("serving event websocket")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("event websocket server failed")
		}
	}()

	// WatchSignals blocks until SIGINT/SIGTERM arrives, then runs the full
	// shutdown sequence itself before returning.
	core.Shutdown.WatchSignals(ctx)

	log.Info().Msg("shutting down")
	server.Shutdown(context.Background())
	cancel()
}
