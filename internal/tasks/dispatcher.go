// Package tasks dispatches named background tasks inline, on goroutines, or
// through a Redis list consumed by a Worker.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/metrics"
)

// Mode selects how Dispatch executes tasks.
type Mode string

// Dispatch modes.
const (
	ModeDisabled  Mode = "disabled"  // run inline, in the caller's goroutine
	ModeGoroutine Mode = "goroutine" // run on a tracked goroutine
	ModeQueue     Mode = "queue"     // push onto a Redis list for a Worker
)

// Errors returned by the dispatcher.
var (
	ErrUnknownTask = errors.New("unknown task")
	ErrUnknownMode = errors.New("unknown async mode")
	ErrNoQueue     = errors.New("queue mode requires a redis client")
)

// Func is the body of a task. The payload is the JSON encoding of the value
// passed to Dispatch.
type Func func(ctx context.Context, payload json.RawMessage) error

// Job is the wire form of a queued task.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// QueueKey returns the Redis list a deployment's jobs are queued on.
// Pattern: nitrate:{instance}:tasks
func QueueKey(instance string) string {
	return fmt.Sprintf("nitrate:%s:tasks", instance)
}

// Options configures a Dispatcher.
type Options struct {
	Mode    Mode
	Redis   *redis.Client // required in queue mode
	Queue   string        // list key; defaults to QueueKey("default")
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Dispatcher runs registered tasks in the configured mode. It is safe for
// concurrent use.
type Dispatcher struct {
	mode    Mode
	rdb     *redis.Client
	queue   string
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	registry map[string]Func
	wg       sync.WaitGroup
}

// NewDispatcher validates opts and returns a dispatcher with no tasks
// registered. An empty mode means disabled.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeDisabled
	}
	switch mode {
	case ModeDisabled, ModeGoroutine:
	case ModeQueue:
		if opts.Redis == nil {
			return nil, ErrNoQueue
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	queue := opts.Queue
	if queue == "" {
		queue = QueueKey("default")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	return &Dispatcher{
		mode:     mode,
		rdb:      opts.Redis,
		queue:    queue,
		logger:   logger,
		metrics:  m,
		registry: make(map[string]Func),
	}, nil
}

// Mode returns the dispatch mode.
func (d *Dispatcher) Mode() Mode { return d.mode }

// Register binds name to fn, replacing any earlier registration.
func (d *Dispatcher) Register(name string, fn Func) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry[name] = fn
}

func (d *Dispatcher) lookup(name string) (Func, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.registry[name]
	return fn, ok
}

// Dispatch executes the task called name with payload. In disabled mode the
// task's error is returned; in goroutine mode it is logged; in queue mode
// only enqueue failures are returned.
// Returns ErrUnknownTask if name is not registered.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload any) error {
	fn, ok := d.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", name, err)
	}
	d.metrics.TasksDispatched.WithLabelValues(name, string(d.mode)).Inc()

	switch d.mode {
	case ModeGoroutine:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.execute(context.WithoutCancel(ctx), name, fn, raw)
		}()
		return nil
	case ModeQueue:
		return d.enqueue(ctx, name, raw)
	default:
		return d.execute(ctx, name, fn, raw)
	}
}

// Wait blocks until every goroutine started by Dispatch has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) enqueue(ctx context.Context, name string, raw json.RawMessage) error {
	job := Job{ID: uuid.NewString(), Name: name, Payload: raw, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	if err := d.rdb.LPush(ctx, d.queue, data).Err(); err != nil {
		return fmt.Errorf("enqueueing %s: %w", name, err)
	}
	d.logger.Debug("task enqueued", zap.String("task", name), zap.String("job_id", job.ID))
	return nil
}

// execute runs fn and records failures.
func (d *Dispatcher) execute(ctx context.Context, name string, fn Func, payload json.RawMessage) error {
	start := time.Now()
	err := fn(ctx, payload)
	if err != nil {
		d.metrics.TasksFailed.WithLabelValues(name).Inc()
		d.logger.Warn("task failed", zap.String("task", name), zap.Error(err))
		return fmt.Errorf("running %s: %w", name, err)
	}
	d.logger.Debug("task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	return nil
}
