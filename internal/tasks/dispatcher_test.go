package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// setupRedis starts a miniredis server and returns a client for it.
func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

func TestNewDispatcher_Modes(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    Mode
		wantErr error
	}{
		{"default is disabled", Options{}, ModeDisabled, nil},
		{"goroutine", Options{Mode: ModeGoroutine}, ModeGoroutine, nil},
		{"queue without redis", Options{Mode: ModeQueue}, "", ErrNoQueue},
		{"unknown", Options{Mode: "celery"}, "", ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDispatcher(tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Mode())
		})
	}
}

func TestDispatch_UnknownTask(t *testing.T) {
	d, err := NewDispatcher(Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, d.Dispatch(context.Background(), "nope", nil), ErrUnknownTask)
}

func TestDispatch_DisabledRunsInline(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := NewDispatcher(Options{Mode: ModeDisabled})
	require.NoError(t, err)

	var got string
	d.Register("echo", func(_ context.Context, payload json.RawMessage) error {
		return json.Unmarshal(payload, &got)
	})
	boom := errors.New("boom")
	d.Register("fail", func(context.Context, json.RawMessage) error { return boom })

	require.NoError(t, d.Dispatch(context.Background(), "echo", "hello"))
	assert.Equal(t, "hello", got, "inline tasks finish before Dispatch returns")
	assert.ErrorIs(t, d.Dispatch(context.Background(), "fail", nil), boom)
}

func TestDispatch_GoroutineWait(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := NewDispatcher(Options{Mode: ModeGoroutine})
	require.NoError(t, err)

	var n atomic.Int32
	d.Register("count", func(ctx context.Context, _ json.RawMessage) error {
		time.Sleep(5 * time.Millisecond)
		n.Add(1)
		return ctx.Err()
	})
	d.Register("fail", func(context.Context, json.RawMessage) error { return errors.New("ignored") })

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Dispatch(ctx, "count", i))
	}
	require.NoError(t, d.Dispatch(ctx, "fail", nil), "goroutine failures are logged, not returned")
	cancel()

	d.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestDispatch_QueueAndWorker(t *testing.T) {
	rdb, mr := setupRedis(t)
	d, err := NewDispatcher(Options{Mode: ModeQueue, Redis: rdb, Queue: QueueKey("test")})
	require.NoError(t, err)

	var got []int
	d.Register("collect", func(_ context.Context, payload json.RawMessage) error {
		var v int
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		got = append(got, v)
		return nil
	})

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, d.Dispatch(ctx, "collect", i))
	}
	assert.Empty(t, got, "queued tasks wait for a worker")
	items, err := mr.List(QueueKey("test"))
	require.NoError(t, err)
	assert.Len(t, items, 3)

	w := NewWorker(d, 50*time.Millisecond)
	for range 3 {
		took, err := w.ProcessOne(ctx)
		require.NoError(t, err)
		assert.True(t, took)
	}
	assert.Equal(t, []int{1, 2, 3}, got, "jobs run in FIFO order")

	took, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.False(t, took, "empty queue times out")
}

func TestWorker_UnknownJob(t *testing.T) {
	rdb, _ := setupRedis(t)
	d, err := NewDispatcher(Options{Mode: ModeQueue, Redis: rdb})
	require.NoError(t, err)

	data, err := json.Marshal(Job{ID: "j1", Name: "ghost"})
	require.NoError(t, err)
	require.NoError(t, rdb.LPush(context.Background(), QueueKey("default"), data).Err())

	took, err := NewWorker(d, 50*time.Millisecond).ProcessOne(context.Background())
	assert.True(t, took)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	rdb, _ := setupRedis(t)
	d, err := NewDispatcher(Options{Mode: ModeQueue, Redis: rdb})
	require.NoError(t, err)

	done := make(chan struct{})
	d.Register("signal", func(context.Context, json.RawMessage) error {
		close(done)
		return nil
	})
	require.NoError(t, d.Dispatch(context.Background(), "signal", nil))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewWorker(d, 20*time.Millisecond).Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not run the job")
	}
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_NoQueue(t *testing.T) {
	d, err := NewDispatcher(Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, NewWorker(d, 0).Run(context.Background()), ErrNoQueue)
}
