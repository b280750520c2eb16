package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"ll-buddy/api/internal/logger"
)

// ErrUnauthorized: Telegram не принимает токен; дальше опрашивать бессмысленно.
var ErrUnauthorized = errors.New("telegram: bot token rejected")

// Worker: долгоживущий цикл получения апдейтов. Run подходит как bot.Runner.
type Worker struct {
	api            BotAPI
	router         *Router
	pollTimeout    time.Duration
	maxConcurrency int
	log            *logger.Logger

	// offset: следующий неподтверждённый update_id, переживает перезапуски Run,
	// чтобы уже обработанные апдейты не пришли повторно
	offset atomic.Int64

	baseDelay time.Duration
	maxDelay  time.Duration
	idleDelay time.Duration
}

func NewWorker(api BotAPI, router *Router, pollTimeout time.Duration, maxConcurrency int, log *logger.Logger) *Worker {
	return &Worker{
		api:            api,
		router:         router,
		pollTimeout:    pollTimeout,
		maxConcurrency: maxConcurrency,
		log:            log.With("component", "telegram_worker"),
		baseDelay:      1 * time.Second,
		maxDelay:       15 * time.Second,
		idleDelay:      200 * time.Millisecond,
	}
}

// Run опрашивает Telegram до отмены ctx или фатальной ошибки. Перед выходом
// дожидается всех запущенных пайплайнов (они видят ту же отмену).
func (w *Worker) Run(ctx context.Context) error {
	w.router.resetSession()

	g, gctx := errgroup.WithContext(ctx)
	if w.maxConcurrency > 0 {
		g.SetLimit(w.maxConcurrency)
	}

	w.log.Info("polling started", "poll_timeout", w.pollTimeout)
	err := w.poll(gctx, func(upd tgbotapi.Update) {
		w.router.HandleUpdate(gctx, g, upd)
	})
	_ = g.Wait()
	w.log.Info("polling stopped", "error", err)
	return err
}

func (w *Worker) poll(ctx context.Context, handle func(tgbotapi.Update)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		u := tgbotapi.NewUpdate(int(w.offset.Load()))
		u.Timeout = int(w.pollTimeout / time.Second)

		updates, err := w.fetch(ctx, u)
		err = RedactError(err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isFatal(err) {
				return fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
			d := retryDelayFromError(err)
			if d < w.baseDelay {
				d = w.baseDelay
			}
			if d > w.maxDelay {
				d = w.maxDelay
			}
			w.log.Warn("polling error", "error", err, "retry_in", d)
			if err := sleep(ctx, d); err != nil {
				return err
			}
			continue
		}

		for _, upd := range updates {
			if ctx.Err() != nil {
				break
			}
			handle(upd)
			w.advance(upd.UpdateID + 1)
		}

		if len(updates) == 0 {
			if err := sleep(ctx, w.idleDelay); err != nil {
				return err
			}
		}
	}
}

// advance сдвигает offset только вперёд: старый Run, который ещё дорабатывает
// после Stop, не должен откатить его назад.
func (w *Worker) advance(next int) {
	for {
		cur := w.offset.Load()
		if int64(next) <= cur || w.offset.CompareAndSwap(cur, int64(next)) {
			return
		}
	}
}

type fetchResult struct {
	updates []tgbotapi.Update
	err     error
}

// fetch делает long poll, но возвращается сразу при отмене ctx: tgbotapi не
// принимает контекст. Брошенный запрос доживает до pollTimeout, его апдейты не
// подтверждаются offset'ом и придут следующему запуску.
func (w *Worker) fetch(ctx context.Context, u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	ch := make(chan fetchResult, 1)
	go func() {
		updates, err := w.api.GetUpdates(u)
		ch <- fetchResult{updates, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.updates, r.err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isFatal: 401: токен отозван, 404: такого бота нет.
func isFatal(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == http.StatusUnauthorized || tgErr.Code == http.StatusNotFound
	}
	return false
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return 2 * time.Second
		}
	}
	return 1 * time.Second
}
