package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/metrics"
	"ll-buddy/api/internal/pipeline"
)

// PhotoProcessor: конвейер обработки одного фото.
type PhotoProcessor interface {
	Process(ctx context.Context, ev pipeline.PhotoEvent) error
}

// Sender: отправка сообщения в чат.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, mode pipeline.Mode) error
}

// Router выполняет действия, которые вернул Dispatcher: пишет в чат и запускает пайплайны.
type Router struct {
	dispatcher Dispatcher
	chat       Sender
	photos     PhotoProcessor
	denied     noticeLog
	log        *logger.Logger
	metrics    *metrics.Metrics
}

func NewRouter(d Dispatcher, chat Sender, photos PhotoProcessor, log *logger.Logger, m *metrics.Metrics) *Router {
	return &Router{
		dispatcher: d,
		chat:       chat,
		photos:     photos,
		log:        log.With("component", "telegram_router"),
		metrics:    m,
	}
}

// HandleUpdate разбирает апдейт; пайплайны запускаются в g и живут не дольше ctx.
func (r *Router) HandleUpdate(ctx context.Context, g *errgroup.Group, upd tgbotapi.Update) {
	ev, ok := EventFromUpdate(upd)
	if !ok {
		return
	}
	for _, a := range r.dispatcher.Dispatch(ev) {
		r.apply(ctx, g, a)
	}
}

func (r *Router) apply(ctx context.Context, g *errgroup.Group, a Action) {
	switch a.Kind {
	case ActionSend:
		r.send(ctx, a.ChatID, a.Text)

	case ActionDeny:
		r.metrics.AccessDenied()
		r.log.Warn("unauthorized access attempt", "sender_id", a.SenderID, "chat_id", a.ChatID)
		if r.denied.first(a.SenderID) {
			r.send(ctx, a.ChatID, a.Text)
		}

	case ActionProcessPhoto:
		photo := a.Photo
		g.Go(func() error {
			// ошибка одного фото не должна гасить соседние прогоны и воркер
			if err := r.photos.Process(ctx, photo); err != nil {
				r.log.Debug("photo pipeline aborted", "chat_id", photo.ChatID, "error", err)
			}
			return nil
		})
	}
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if err := r.chat.Send(ctx, chatID, text, pipeline.ModePlain); err != nil {
		r.log.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

// resetSession забывает, кому уже отправляли отказ; вызывается при старте воркера.
func (r *Router) resetSession() {
	r.denied.reset()
}
