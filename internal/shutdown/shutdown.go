// Package shutdown implements the Shutdown Coordinator (§4.10, C10):
// priority-ordered, timeout-bounded teardown started by Trigger, or by
// SIGINT/SIGTERM through WatchSignals. It does not watch the Task Registry:
// a failed task, in a critical category or not, does not start a shutdown.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Handler is one teardown step, run in priority-descending order.
type Handler interface {
	Priority() int
	Shutdown(ctx context.Context) error
}

// HandlerFunc adapts a plain function plus a fixed priority into a Handler.
type HandlerFunc struct {
	Name     string
	Prio     int
	Fn       func(ctx context.Context) error
}

func (h HandlerFunc) Priority() int                      { return h.Prio }
func (h HandlerFunc) Shutdown(ctx context.Context) error { return h.Fn(ctx) }

// Config bounds the coordinator's timeouts.
type Config struct {
	PerHandlerTimeout time.Duration // default 5s
	TotalTimeout      time.Duration // default 15s
}

func (c Config) withDefaults() Config {
	if c.PerHandlerTimeout <= 0 {
		c.PerHandlerTimeout = 5 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 15 * time.Second
	}
	return c
}

// Coordinator collects Handlers and runs them on signal or explicit Trigger.
type Coordinator struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	handlers []Handler

	once sync.Once
	done chan struct{}
}

// New builds a Coordinator.
func New(cfg Config, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:  cfg.withDefaults(),
		log:  log.With().Str("component", "shutdown_coordinator").Logger(),
		done: make(chan struct{}),
	}
}

// Register adds a Handler to the teardown sequence.
func (c *Coordinator) Register(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Done returns a channel closed once shutdown has been signaled (the
// shutdown_event in the specification's terms).
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// WatchSignals traps SIGINT/SIGTERM and triggers shutdown on receipt. It
// runs until ctx is cancelled or a signal arrives.
func (c *Coordinator) WatchSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		c.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		c.Trigger(context.Background())
	case <-ctx.Done():
	case <-c.done:
	}
}

// Trigger runs the shutdown sequence exactly once; subsequent calls are
// no-ops that return immediately once the first run has finished.
func (c *Coordinator) Trigger(ctx context.Context) {
	c.once.Do(func() {
		close(c.done)
		c.runSequence(ctx)
	})
}

func (c *Coordinator) runSequence(ctx context.Context) {
	c.mu.Lock()
	ordered := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})

	totalCtx, cancelTotal := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancelTotal()

	for _, h := range ordered {
		select {
		case <-totalCtx.Done():
			c.log.Warn().Msg("shutdown sequence exceeded total timeout, aborting remaining handlers")
			return
		default:
		}

		handlerCtx, cancel := context.WithTimeout(totalCtx, c.cfg.PerHandlerTimeout)
		err := h.Shutdown(handlerCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.log.Warn().Int("priority", h.Priority()).Msg("shutdown handler timed out")
		case err != nil:
			c.log.Error().Err(err).Int("priority", h.Priority()).Msg("shutdown handler returned error")
		}
	}
}
