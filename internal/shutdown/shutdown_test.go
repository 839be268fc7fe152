package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHandlersRunInPriorityDescendingOrder(t *testing.T) {
	c := New(Config{PerHandlerTimeout: time.Second, TotalTimeout: time.Second}, zerolog.Nop())
	var mu sync.Mutex
	var order []string

	c.Register(HandlerFunc{Name: "low", Prio: 0, Fn: func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "low")
		mu.Unlock()
		return nil
	}})
	c.Register(HandlerFunc{Name: "high", Prio: 10, Fn: func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "high")
		mu.Unlock()
		return nil
	}})

	c.Trigger(context.Background())

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("order = %v, want [high low]", order)
	}
}

func TestHandlerErrorDoesNotAbortSequence(t *testing.T) {
	c := New(Config{PerHandlerTimeout: time.Second, TotalTimeout: time.Second}, zerolog.Nop())
	ran := make(chan struct{}, 1)

	c.Register(HandlerFunc{Prio: 10, Fn: func(ctx context.Context) error {
		return errors.New("boom")
	}})
	c.Register(HandlerFunc{Prio: 0, Fn: func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}})

	c.Trigger(context.Background())

	select {
	case <-ran:
	default:
		t.Fatal("second handler should still run after first errors")
	}
}

func TestHandlerTimeoutMovesOn(t *testing.T) {
	c := New(Config{PerHandlerTimeout: 10 * time.Millisecond, TotalTimeout: time.Second}, zerolog.Nop())
	ran := make(chan struct{}, 1)

	c.Register(HandlerFunc{Prio: 10, Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	c.Register(HandlerFunc{Prio: 0, Fn: func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}})

	c.Trigger(context.Background())
	select {
	case <-ran:
	default:
		t.Fatal("handler after a timed-out one should still run")
	}
}

func TestTriggerOnlyRunsOnce(t *testing.T) {
	c := New(Config{PerHandlerTimeout: time.Second, TotalTimeout: time.Second}, zerolog.Nop())
	var calls int
	c.Register(HandlerFunc{Prio: 0, Fn: func(ctx context.Context) error {
		calls++
		return nil
	}})

	c.Trigger(context.Background())
	c.Trigger(context.Background())

	if calls != 1 {
		t.Fatalf("calls = %d, want exactly 1", calls)
	}
}

func TestDoneClosesOnTrigger(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	select {
	case <-c.Done():
		t.Fatal("Done() should not be closed before Trigger")
	default:
	}
	c.Trigger(context.Background())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done() should be closed after Trigger")
	}
}
