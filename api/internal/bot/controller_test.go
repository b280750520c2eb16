package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// blockingRunner считает живые воркеры и ждёт отмены.
type blockingRunner struct {
	live     atomic.Int32
	launched atomic.Int32
}

func (b *blockingRunner) Run(ctx context.Context) error {
	b.launched.Add(1)
	b.live.Add(1)
	defer b.live.Add(-1)
	<-ctx.Done()
	return ctx.Err()
}

func newTestController(t *testing.T, r Runner) *Controller {
	t.Helper()
	c := NewController(context.Background(), r, logger.Nop(), metrics.New(prometheus.NewRegistry()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, c.Shutdown(ctx))
	})
	return c
}

// race запускает n вызовов fn одновременно и возвращает число true.
func race(n int, fn func() bool) int {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		wins  atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if fn() {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return int(wins.Load())
}

func TestConcurrentStartHasOneWinner(t *testing.T) {
	br := &blockingRunner{}
	c := newTestController(t, br.Run)

	wins := race(64, c.Start)

	assert.Equal(t, 1, wins)
	assert.True(t, c.Running())
	require.Eventually(t, func() bool { return br.live.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), br.launched.Load(), "losing candidates must never run")
}

func TestConcurrentStopHasOneWinner(t *testing.T) {
	br := &blockingRunner{}
	c := newTestController(t, br.Run)
	require.True(t, c.Start())

	wins := race(64, c.Stop)

	assert.Equal(t, 1, wins)
	assert.False(t, c.Running())
	require.Eventually(t, func() bool { return br.live.Load() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStartStopSequence(t *testing.T) {
	br := &blockingRunner{}
	c := newTestController(t, br.Run)

	assert.False(t, c.Stop(), "stop while idle")
	assert.True(t, c.Start())
	assert.False(t, c.Start(), "start while running")
	assert.True(t, c.Stop())
	assert.False(t, c.Stop(), "second stop")
	assert.True(t, c.Start(), "restart after stop")

	require.Eventually(t, func() bool { return br.live.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), br.launched.Load())
}

func TestStartAfterWorkerDiedOnItsOwn(t *testing.T) {
	var calls atomic.Int32
	br := &blockingRunner{}
	runner := func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("telegram: unauthorized")
		}
		return br.Run(ctx)
	}
	c := newTestController(t, runner)

	require.True(t, c.Start())
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, 5*time.Millisecond)

	assert.True(t, c.Start(), "stale handle must not block a fresh start")
	require.Eventually(t, func() bool { return br.live.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStaleHandleStillInSlot(t *testing.T) {
	br := &blockingRunner{}
	c := newTestController(t, br.Run)

	// завершившийся хэндл, который ещё не успел освободить слот
	ctx, cancel := context.WithCancel(context.Background())
	stale := &handle{id: "stale", ctx: ctx, cancel: cancel, done: make(chan struct{})}
	close(stale.done)
	c.slot.Store(stale)

	assert.False(t, c.Running())
	assert.True(t, c.Start())
	assert.NotSame(t, stale, c.slot.Load())
}

func TestPanickingWorkerReturnsToIdle(t *testing.T) {
	c := newTestController(t, func(ctx context.Context) error {
		panic("boom")
	})

	require.True(t, c.Start())
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.slot.Load())
}

func TestParentCancellationStopsWorker(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	br := &blockingRunner{}
	c := NewController(parent, br.Run, logger.Nop(), nil)

	require.True(t, c.Start())
	require.Eventually(t, func() bool { return br.live.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), br.live.Load())
}

func TestShutdownTimesOut(t *testing.T) {
	release := make(chan struct{})
	c := NewController(context.Background(), func(ctx context.Context) error {
		<-release // игнорирует отмену
		return nil
	}, logger.Nop(), nil)
	require.True(t, c.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool { return !c.Running() }, time.Second, 5*time.Millisecond)
}

func TestShutdownWaitsForDrainingWorkers(t *testing.T) {
	release := make(chan struct{})
	var live atomic.Int32
	c := newTestController(t, func(ctx context.Context) error {
		live.Add(1)
		defer live.Add(-1)
		<-ctx.Done()
		<-release // дорабатывает после отмены
		return ctx.Err()
	})

	require.True(t, c.Start())
	require.Eventually(t, func() bool { return live.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, c.Stop())
	assert.Equal(t, int32(1), live.Load(), "stop does not wait for the worker")

	require.True(t, c.Start(), "slot is free while the old worker drains")
	require.Eventually(t, func() bool { return live.Load() == 2 }, time.Second, 5*time.Millisecond)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Shutdown(short), context.DeadlineExceeded)

	close(release)
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, c.Shutdown(ctx))
	assert.Equal(t, int32(0), live.Load(), "shutdown returns only after every worker exited")
}
