package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ll-buddy/api/internal/pipeline"
)

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventPhoto
)

// Event: входящее сообщение, сведённое к трём вариантам.
type Event struct {
	Kind     EventKind
	ChatID   int64
	SenderID int64
	Command  string
	Text     string
	Photos   []pipeline.Variant
}

// EventFromUpdate переводит апдейт Telegram в Event. ok=false: апдейт нам не интересен.
func EventFromUpdate(upd tgbotapi.Update) (Event, bool) {
	m := upd.Message
	if m == nil || m.Chat == nil {
		return Event{}, false
	}
	ev := Event{ChatID: m.Chat.ID, SenderID: m.Chat.ID}
	if m.From != nil {
		ev.SenderID = m.From.ID
	}

	switch {
	case m.IsCommand():
		ev.Kind = EventCommand
		ev.Command = m.Command()
		ev.Text = m.CommandArguments()
	case m.Photo != nil:
		ev.Kind = EventPhoto
		ev.Photos = make([]pipeline.Variant, 0, len(m.Photo))
		for _, ph := range m.Photo {
			ev.Photos = append(ev.Photos, pipeline.Variant{
				Width:    ph.Width,
				Height:   ph.Height,
				FileSize: ph.FileSize,
				FileID:   ph.FileID,
			})
		}
	case m.Text != "":
		ev.Kind = EventText
		ev.Text = m.Text
	default:
		return Event{}, false
	}
	return ev, true
}

// PhotoEvent: входные данные пайплайна.
func (e Event) PhotoEvent() pipeline.PhotoEvent {
	return pipeline.PhotoEvent{ChatID: e.ChatID, SenderID: e.SenderID, Variants: e.Photos}
}
