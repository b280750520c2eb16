package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ll-buddy/api/internal/pipeline"
)

type fakeAPI struct {
	mu       sync.Mutex
	batches  [][]tgbotapi.Update
	errs     []error
	offsets  []int
	sent     []tgbotapi.MessageConfig
	sendErrs []error
	fileURL  string
	fileErr  error
}

func (f *fakeAPI) GetUpdates(u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, u.Offset)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		return b, nil
	}
	return nil, nil
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.sent = append(f.sent, msg)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileErr != nil {
		return "", f.fileErr
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type sentMsg struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string, _ pipeline.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sentMsg{chatID, text})
	return nil
}

func (f *fakeSender) all() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.msgs...)
}

type fakeProcessor struct {
	mu     sync.Mutex
	events []pipeline.PhotoEvent
	err    error
	block  bool
}

func (f *fakeProcessor) Process(ctx context.Context, ev pipeline.PhotoEvent) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func commandUpdate(id int, sender, chat int64, cmd string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: sender},
			Chat:      &tgbotapi.Chat{ID: chat},
			Text:      cmd,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
		},
	}
}

func textUpdate(id int, sender, chat int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: sender},
			Chat:      &tgbotapi.Chat{ID: chat},
			Text:      text,
		},
	}
}

func photoUpdate(id int, sender, chat int64, sizes ...tgbotapi.PhotoSize) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: sender},
			Chat:      &tgbotapi.Chat{ID: chat},
			Photo:     sizes,
		},
	}
}
