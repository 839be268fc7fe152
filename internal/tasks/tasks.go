// Package tasks implements the Task Registry (§4.9, C9): a process-wide
// tracker for every long-lived goroutine the core spawns, so the Shutdown
// Coordinator can enumerate and drain them.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Category groups tasks for introspection and shutdown-critical detection.
type Category string

const (
	CategoryAPI        Category = "API"
	CategoryHardware   Category = "HARDWARE"
	CategoryRender     Category = "RENDER"
	CategoryAnimation  Category = "ANIMATION"
	CategoryInput      Category = "INPUT"
	CategoryEventBus   Category = "EVENTBUS"
	CategoryTransition Category = "TRANSITION"
	CategorySystem     Category = "SYSTEM"
	CategoryBackground Category = "BACKGROUND"
	CategoryGeneral    Category = "GENERAL"
)

// CriticalCategories marks the categories whose failure counts as critical.
// Neither the Registry nor the Shutdown Coordinator reads it: a failed task
// in one of these categories is recorded like any other failure.
var CriticalCategories = map[Category]bool{
	CategoryAPI:      true,
	CategoryHardware: true,
	CategoryRender:   true,
	CategoryInput:    true,
}

// State is a task's dynamic lifecycle state.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ID identifies one tracked task.
type ID uint64

// Task is the immutable metadata plus the mutable lifecycle snapshot of one
// tracked goroutine, read via Registry.Active()/Failed()/etc.
type Task struct {
	ID           ID
	Category     Category
	Description  string
	CreatedAt    time.Time
	CreatedBy    string
	ParentTaskID ID // zero means no parent

	state      int32 // atomic State
	finishedAt atomic.Value // time.Time
	err        atomic.Value // error
	cancel     context.CancelFunc
}

func (t *Task) State() State {
	return State(atomic.LoadInt32(&t.state))
}

func (t *Task) FinishedAt() (time.Time, bool) {
	v, _ := t.finishedAt.Load().(time.Time)
	return v, !v.IsZero()
}

func (t *Task) Err() error {
	v, _ := t.err.Load().(error)
	return v
}

// Cancel requests cooperative cancellation of the task's context.
func (t *Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Task) finish(state State, err error) {
	atomic.StoreInt32(&t.state, int32(state))
	t.finishedAt.Store(time.Now())
	if err != nil {
		t.err.Store(err)
	}
}

// EventPublisher is the narrow slice of the Event Bus the registry needs to
// broadcast task lifecycle events; left unset (nil), broadcasting is a
// no-op — useful in tests and during early bring-up before the bus exists.
type EventPublisher interface {
	Publish(eventType string, payload map[string]any)
}

// Registry is the process-wide task tracker. The zero value is not usable;
// build with New.
type Registry struct {
	log zerolog.Logger
	pub EventPublisher

	mu      sync.RWMutex
	tasks   map[ID]*Task
	nextID  uint64
}

// New builds a Registry. pub may be nil if no event bus is wired yet.
func New(log zerolog.Logger, pub EventPublisher) *Registry {
	return &Registry{
		log:   log.With().Str("component", "task_registry").Logger(),
		pub:   pub,
		tasks: make(map[ID]*Task),
	}
}

// SetPublisher wires (or rewires) the registry's event publisher. Exists so
// a Registry and an Event Bus that each depend on the other at construction
// can still both be built: construct the Registry with a nil publisher,
// build the Bus from it, then call SetPublisher. Not safe to call
// concurrently with task creation.
func (r *Registry) SetPublisher(pub EventPublisher) {
	r.pub = pub
}

// CreateTrackedTask spawns fn on its own goroutine and registers it
// atomically before returning, so a caller can never observe a task in the
// registry's map whose goroutine hasn't started.
func (r *Registry) CreateTrackedTask(ctx context.Context, fn func(context.Context) error, category Category, description string) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	id := ID(atomic.AddUint64(&r.nextID, 1))
	t := &Task{
		ID:          id,
		Category:    category,
		Description: description,
		CreatedAt:   time.Now(),
		cancel:      cancel,
	}

	r.mu.Lock()
	r.tasks[id] = t
	r.mu.Unlock()
	r.broadcast("task:created", t)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("task %d panicked: %v", id, p)
				t.finish(StateFailed, err)
				r.log.Error().Uint64("task_id", uint64(id)).Interface("panic", p).Msg("tracked task panicked")
				r.broadcast("task:failed", t)
				return
			}
		}()
		err := fn(taskCtx)
		switch {
		case errors.Is(err, context.Canceled):
			t.finish(StateCancelled, err)
			r.broadcast("task:cancelled", t)
		case err != nil:
			t.finish(StateFailed, err)
			r.log.Error().Uint64("task_id", uint64(id)).Err(err).Msg("tracked task failed")
			r.broadcast("task:failed", t)
		default:
			t.finish(StateCompleted, nil)
			r.broadcast("task:completed", t)
		}
	}()

	return t
}

func (r *Registry) broadcast(eventType string, t *Task) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(eventType, map[string]any{
		"task_id":  t.ID,
		"category": t.Category,
	})
}

// Active returns every task still running.
func (r *Registry) Active() []*Task { return r.byState(StateRunning) }

// Failed returns every task that ended in StateFailed.
func (r *Registry) Failed() []*Task { return r.byState(StateFailed) }

// Cancelled returns every task that ended in StateCancelled.
func (r *Registry) Cancelled() []*Task { return r.byState(StateCancelled) }

func (r *Registry) byState(want State) []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Task
	for _, t := range r.tasks {
		if t.State() == want {
			out = append(out, t)
		}
	}
	return out
}

// Stats summarizes the registry's task population.
type Stats struct {
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// GetStats tallies every tracked task by current state.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, t := range r.tasks {
		switch t.State() {
		case StateRunning:
			s.Running++
		case StateCompleted:
			s.Completed++
		case StateFailed:
			s.Failed++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Summary returns every tracked task, regardless of state, in creation
// order by ID.
func (r *Registry) Summary() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sortByID(out)
	return out
}

// GetTaskTree groups every tracked task by its ParentTaskID, zero meaning
// root-level.
func (r *Registry) GetTaskTree() map[ID][]*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tree := make(map[ID][]*Task)
	for _, t := range r.tasks {
		tree[t.ParentTaskID] = append(tree[t.ParentTaskID], t)
	}
	return tree
}

// GetTasksForShutdown enumerates every still-running task, excluding the
// given IDs (typically the coordinator's own bookkeeping tasks).
func (r *Registry) GetTasksForShutdown(exclude ...ID) []*Task {
	excluded := make(map[ID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Task
	for _, t := range r.tasks {
		if t.State() == StateRunning && !excluded[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func sortByID(tasks []*Task) {
	for i := 1; i < len(tasks); i++ {
		for j := i; j > 0 && tasks[j].ID < tasks[j-1].ID; j-- {
			tasks[j], tasks[j-1] = tasks[j-1], tasks[j]
		}
	}
}
