// Package bot owns the single long-running chat-bot worker.
//
// The worker handle lives in one atomic slot. Start publishes a new handle with
// compare-and-swap and Stop clears it the same way, so concurrent control
// requests never produce two workers and never cancel a handle they do not own.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/metrics"
)

// Runner: тело воркера. Должен завершаться после отмены ctx.
type Runner func(ctx context.Context) error

type handle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (h *handle) active() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

type Controller struct {
	parent  context.Context
	runner  Runner
	slot    atomic.Pointer[handle]
	live    sync.Map // *handle -> struct{}: запущенные и ещё не вышедшие воркеры
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewController: parent задаёт супервизорный контекст процесса, от него наследуются все воркеры.
func NewController(parent context.Context, runner Runner, log *logger.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		parent:  parent,
		runner:  runner,
		log:     log.With("component", "bot_controller"),
		metrics: m,
	}
}

// Start запускает воркер, если он ещё не работает. true: запустил именно этот вызов.
func (c *Controller) Start() bool {
	cur := c.slot.Load()
	if cur != nil && cur.active() {
		return false
	}

	ctx, cancel := context.WithCancel(c.parent)
	h := &handle{id: uuid.NewString(), ctx: ctx, cancel: cancel, done: make(chan struct{})}

	// cur может быть завершившимся воркером: его место можно занять
	if !c.slot.CompareAndSwap(cur, h) {
		cancel()
		return false
	}

	c.live.Store(h, struct{}{})
	c.metrics.WorkerStarted()
	c.log.Info("worker started", "worker_id", h.id)
	go c.run(h)
	return true
}

// Stop отменяет текущий воркер. false: воркера нет или слот уже поменял кто-то другой.
// Остановка асинхронная: Stop возвращается сразу после отмены, и следующий Start
// может запустить новый воркер, пока старый ещё дорабатывает. Дождаться выхода
// всех воркеров можно через Shutdown.
func (c *Controller) Stop() bool {
	cur := c.slot.Load()
	if cur == nil {
		return false
	}
	if !c.slot.CompareAndSwap(cur, nil) {
		return false
	}
	cur.cancel()
	c.log.Info("worker stop requested", "worker_id", cur.id)
	return true
}

// Running: слот занят и задача ещё не завершилась.
func (c *Controller) Running() bool {
	h := c.slot.Load()
	return h != nil && h.active()
}

// Shutdown останавливает текущий воркер и ждёт выхода всех запущенных воркеров,
// включая остановленные раньше, не дольше, чем живёт ctx.
func (c *Controller) Shutdown(ctx context.Context) error {
	if h := c.slot.Load(); h != nil {
		c.Stop()
		// слот мог смениться между Load и Stop; отменяем то, что видели
		h.cancel()
	}

	var pending []*handle
	c.live.Range(func(k, _ any) bool {
		pending = append(pending, k.(*handle))
		return true
	})
	for _, h := range pending {
		select {
		case <-h.done:
		case <-ctx.Done():
			return fmt.Errorf("worker %s did not stop: %w", h.id, ctx.Err())
		}
	}
	return nil
}

func (c *Controller) run(h *handle) {
	defer c.live.Delete(h)
	defer close(h.done)
	// сами освобождаем слот, если нас не остановили снаружи
	defer c.slot.CompareAndSwap(h, nil)

	h.err = c.safeRun(h.ctx)

	switch {
	case h.err == nil, errors.Is(h.err, context.Canceled) && h.ctx.Err() != nil:
		c.log.Info("worker exited", "worker_id", h.id)
		c.metrics.WorkerExited("stopped")
	default:
		c.log.Error("worker terminated", "worker_id", h.id, "error", h.err)
		c.metrics.WorkerExited("error")
	}
	h.cancel()
}

func (c *Controller) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return c.runner(ctx)
}
