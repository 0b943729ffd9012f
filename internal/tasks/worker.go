package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Worker consumes queued jobs and runs them through the dispatcher's
// registry.
type Worker struct {
	d    *Dispatcher
	poll time.Duration
}

// NewWorker creates a worker for d. poll bounds each BRPOP wait so that Run
// notices cancellation; zero means one second.
func NewWorker(d *Dispatcher, poll time.Duration) *Worker {
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{d: d, poll: poll}
}

// Run processes jobs until ctx is cancelled. Failing jobs are logged and
// dropped. Returns ErrNoQueue if the dispatcher has no Redis client.
func (w *Worker) Run(ctx context.Context) error {
	if w.d.rdb == nil {
		return ErrNoQueue
	}
	w.d.logger.Info("worker started", zap.String("queue", w.d.queue))
	for {
		if ctx.Err() != nil {
			w.d.logger.Info("worker stopped")
			return nil
		}
		if _, err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.d.logger.Warn("processing job", zap.Error(err))
		}
	}
}

// ProcessOne waits up to the poll interval for a job and runs it. It reports
// whether a job was taken from the queue.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	if w.d.rdb == nil {
		return false, ErrNoQueue
	}
	res, err := w.d.rdb.BRPop(ctx, w.poll, w.d.queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("popping job: %w", err)
	}

	// BRPOP returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return true, fmt.Errorf("decoding job: %w", err)
	}
	fn, ok := w.d.lookup(job.Name)
	if !ok {
		return true, fmt.Errorf("%w: %s", ErrUnknownTask, job.Name)
	}
	return true, w.d.execute(ctx, job.Name, fn, job.Payload)
}
