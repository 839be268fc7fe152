// Package eventbus implements the in-process publish/subscribe Event Bus
// (§4.8, C8): subscriptions ordered by descending priority, a FIFO
// middleware pipeline, a bounded event history ring buffer, and per-type
// single-goroutine dispatch so publish order is preserved.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcurrie/ledcore/internal/tasks"
)

// EventType names one category of event.
type EventType string

// Event is one published occurrence.
type Event struct {
	Type      EventType
	Payload   map[string]any
	CreatedAt time.Time
}

// Handler receives a dispatched event. Its error return is only meaningful
// for async (goroutine-backed) handlers, where it becomes the tracked
// task's terminal error; synchronous handlers' errors are logged and
// otherwise ignored, since Publish itself is fire-and-forget.
type Handler func(Event) error

// Middleware inspects/mutates an event before it reaches subscribers.
// Returning cont=false cancels the publish: no ring-buffer entry, no
// subscriber invocation.
type Middleware func(Event) (Event, bool)

type subscription struct {
	handler  Handler
	priority int
	filter   func(Event) bool
	async    bool
	seq      int
}

// SubscribeOption configures a single Subscribe call.
type SubscribeOption func(*subscription)

// WithPriority sets dispatch priority; higher runs first. Default 0.
func WithPriority(p int) SubscribeOption {
	return func(s *subscription) { s.priority = p }
}

// WithFilter gates the handler: it only runs when filter(event) is true.
func WithFilter(filter func(Event) bool) SubscribeOption {
	return func(s *subscription) { s.filter = filter }
}

// Async marks the handler as goroutine-backed: the bus does not wait for it
// before advancing to the next priority tier, but tracks it via the Task
// Registry (category EVENTBUS) so shutdown can drain it.
func Async() SubscribeOption {
	return func(s *subscription) { s.async = true }
}

// Bus is the process-wide event dispatcher. Build with New.
type Bus struct {
	log   zerolog.Logger
	tasks *tasks.Registry

	mu         sync.Mutex
	subs       map[EventType][]*subscription
	middleware []Middleware
	nextSeq    int

	ringMu sync.Mutex
	ring   []Event
	ringCap int

	queueMu sync.Mutex
	queues  map[EventType]chan Event
}

// New builds a Bus. taskRegistry tracks async handler goroutines for
// drain-on-shutdown; pass nil if none is wired yet.
func New(log zerolog.Logger, taskRegistry *tasks.Registry, ringCapacity int) *Bus {
	if ringCapacity <= 0 {
		ringCapacity = 100
	}
	return &Bus{
		log:     log.With().Str("component", "event_bus").Logger(),
		tasks:   taskRegistry,
		subs:    make(map[EventType][]*subscription),
		ringCap: ringCapacity,
		queues:  make(map[EventType]chan Event),
	}
}

// Subscribe registers handler for eventType. Multiple handlers per type are
// allowed; dispatch order is descending priority, ties in registration
// order.
func (b *Bus) Subscribe(eventType EventType, handler Handler, opts ...SubscribeOption) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &subscription{handler: handler, seq: b.nextSeq}
	b.nextSeq++
	for _, opt := range opts {
		opt(s)
	}
	b.subs[eventType] = append(b.subs[eventType], s)
	sortSubscriptions(b.subs[eventType])
}

func sortSubscriptions(subs []*subscription) {
	for i := 1; i < len(subs); i++ {
		for j := i; j > 0 && less(subs[j], subs[j-1]); j-- {
			subs[j], subs[j-1] = subs[j-1], subs[j]
		}
	}
}

// less reports whether a should dispatch before b: higher priority first,
// ties broken by earlier registration.
func less(a, b *subscription) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

// AddMiddleware appends fn to the FIFO middleware pipeline.
func (b *Bus) AddMiddleware(fn Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, fn)
}

// Publish runs middleware and enqueues event onto that type's dispatch
// queue on the caller's goroutine, then returns; the queue's own goroutine
// does the actual handler dispatch. Publish must not hand off to a fresh
// goroutine before enqueuing: two Publish calls for the same EventType
// from one goroutine must reach queueFor in the order they were called, or
// they could be enqueued out of order and violate publish-order delivery.
func (b *Bus) Publish(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	b.publishSync(event)
}

func (b *Bus) publishSync(event Event) {
	b.mu.Lock()
	middleware := append([]Middleware(nil), b.middleware...)
	b.mu.Unlock()

	for _, mw := range middleware {
		var cont bool
		event, cont = mw(event)
		if !cont {
			return
		}
	}

	queue := b.queueFor(event.Type)
	queue <- event
}

// queueFor returns (creating if needed) the single dispatch goroutine's
// input channel for eventType.
func (b *Bus) queueFor(eventType EventType) chan Event {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	ch, ok := b.queues[eventType]
	if ok {
		return ch
	}
	ch = make(chan Event, 64)
	b.queues[eventType] = ch
	go b.dispatchLoop(eventType, ch)
	return ch
}

func (b *Bus) dispatchLoop(eventType EventType, ch chan Event) {
	for event := range ch {
		b.appendRing(event)
		b.dispatch(event)
	}
}

func (b *Bus) appendRing(event Event) {
	b.ringMu.Lock()
	defer b.ringMu.Unlock()
	b.ring = append(b.ring, event)
	if len(b.ring) > b.ringCap {
		b.ring = b.ring[len(b.ring)-b.ringCap:]
	}
}

// History returns a copy of the last N published events, most recent last.
func (b *Bus) History() []Event {
	b.ringMu.Lock()
	defer b.ringMu.Unlock()
	out := make([]Event, len(b.ring))
	copy(out, b.ring)
	return out
}

func (b *Bus) dispatch(event Event) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[event.Type]...)
	b.mu.Unlock()

	var tierPriority int
	tierStarted := false
	for _, s := range subs {
		if !tierStarted || s.priority != tierPriority {
			tierPriority = s.priority
			tierStarted = true
		}
		if s.filter != nil && !s.filter(event) {
			continue
		}
		if s.async {
			b.runAsync(event, s)
		} else {
			b.runSync(event, s)
		}
	}
}

func (b *Bus) runSync(event Event, s *subscription) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error().Interface("panic", p).Str("event_type", string(event.Type)).Msg("event handler panicked")
		}
	}()
	if err := s.handler(event); err != nil {
		b.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("event handler returned error")
	}
}

func (b *Bus) runAsync(event Event, s *subscription) {
	if b.tasks == nil {
		go b.runSync(event, s)
		return
	}
	b.tasks.CreateTrackedTask(context.Background(), func(ctx context.Context) error {
		return s.handler(event)
	}, tasks.CategoryEventBus, "event handler: "+string(event.Type))
}

// TaskEventAdapter lets a Bus satisfy tasks.EventPublisher, closing the
// loop so the Task Registry can broadcast task:created/failed/etc back
// onto the same bus that tracks its async handlers.
type TaskEventAdapter struct {
	Bus *Bus
}

// Publish implements tasks.EventPublisher.
func (a TaskEventAdapter) Publish(eventType string, payload map[string]any) {
	a.Bus.Publish(Event{Type: EventType(eventType), Payload: payload})
}
