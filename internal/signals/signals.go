// Package signals is an in-process publish/subscribe bus that lets plugins
// react to changes in plans, cases, runs and their satellites.
package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Signal names an event the service layer emits.
type Signal string

// Signals emitted by the service layer.
const (
	PlanCreated          Signal = "plan_created"
	CaseCreated          Signal = "case_created"
	RunCreated           Signal = "run_created"
	RunFinished          Signal = "run_finished"
	CaseRunStatusChanged Signal = "caserun_status_changed"
	CommentPosted        Signal = "comment_posted"
	IssueAttached        Signal = "issue_attached"
)

// All lists every signal.
var All = []Signal{
	PlanCreated,
	CaseCreated,
	RunCreated,
	RunFinished,
	CaseRunStatusChanged,
	CommentPosted,
	IssueAttached,
}

// Event describes one occurrence of a signal.
type Event struct {
	Signal     Signal            `json:"signal"`
	ObjectType string            `json:"object_type"`
	ObjectID   string            `json:"object_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	At         time.Time         `json:"at"`
}

// Handler reacts to an event.
type Handler func(ctx context.Context, e Event) error

// Bus dispatches events to connected handlers synchronously, in connection
// order. It is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Signal][]Handler
	logger   *zap.Logger
}

// NewBus creates an empty bus. A nil logger discards handler failures.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[Signal][]Handler),
		logger:   logger,
	}
}

// Connect registers h for sig.
func (b *Bus) Connect(sig Signal, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[sig] = append(b.handlers[sig], h)
}

// ConnectAll registers h for every signal.
func (b *Bus) ConnectAll(h Handler) {
	for _, sig := range All {
		b.Connect(sig, h)
	}
}

// Send delivers e to every handler connected to sig and returns the number
// of handlers that succeeded. Handler errors and panics are logged and never
// reach the sender.
func (b *Bus) Send(ctx context.Context, sig Signal, e Event) int {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[sig]...)
	b.mu.RUnlock()

	e.Signal = sig
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	ok := 0
	for i, h := range handlers {
		if err := b.call(ctx, h, e); err != nil {
			b.logger.Warn("signal handler failed",
				zap.String("signal", string(sig)),
				zap.Int("handler", i),
				zap.String("object_id", e.ObjectID),
				zap.Error(err))
			continue
		}
		ok++
	}
	return ok
}

func (b *Bus) call(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}
