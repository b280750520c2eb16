package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ll-buddy/api/internal/pipeline"
)

var allowed = Dispatcher{Allowed: map[int64]struct{}{7: {}}}

func TestEventFromUpdate(t *testing.T) {
	ev, ok := EventFromUpdate(commandUpdate(1, 7, 100, "/start"))
	require.True(t, ok)
	assert.Equal(t, EventCommand, ev.Kind)
	assert.Equal(t, "start", ev.Command)
	assert.Equal(t, int64(7), ev.SenderID)
	assert.Equal(t, int64(100), ev.ChatID)

	ev, ok = EventFromUpdate(textUpdate(2, 7, 100, "hello"))
	require.True(t, ok)
	assert.Equal(t, EventText, ev.Kind)
	assert.Equal(t, "hello", ev.Text)

	ev, ok = EventFromUpdate(photoUpdate(3, 7, 100,
		tgbotapi.PhotoSize{FileID: "a", Width: 100, Height: 100, FileSize: 50},
		tgbotapi.PhotoSize{FileID: "b", Width: 400, Height: 300, FileSize: 900},
	))
	require.True(t, ok)
	assert.Equal(t, EventPhoto, ev.Kind)
	assert.Equal(t, []pipeline.Variant{
		{Width: 100, Height: 100, FileSize: 50, FileID: "a"},
		{Width: 400, Height: 300, FileSize: 900, FileID: "b"},
	}, ev.Photos)

	_, ok = EventFromUpdate(tgbotapi.Update{UpdateID: 4})
	assert.False(t, ok, "update without message")

	_, ok = EventFromUpdate(tgbotapi.Update{UpdateID: 5, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	assert.False(t, ok, "sticker-like message without text or photo")
}

func TestEventSenderFallsBackToChat(t *testing.T) {
	upd := textUpdate(1, 0, 55, "hi")
	upd.Message.From = nil

	ev, ok := EventFromUpdate(upd)
	require.True(t, ok)
	assert.Equal(t, int64(55), ev.SenderID)
}

func TestDispatchDeniesUnknownSender(t *testing.T) {
	for _, upd := range []tgbotapi.Update{
		commandUpdate(1, 8, 100, "/start"),
		textUpdate(2, 8, 100, "hi"),
		photoUpdate(3, 8, 100, tgbotapi.PhotoSize{FileID: "a", Width: 1, Height: 1}),
	} {
		ev, _ := EventFromUpdate(upd)
		acts := allowed.Dispatch(ev)
		require.Len(t, acts, 1)
		assert.Equal(t, ActionDeny, acts[0].Kind)
		assert.Equal(t, accessDeniedText, acts[0].Text)
		assert.Equal(t, int64(8), acts[0].SenderID)
	}
}

func TestDispatchAllowedSender(t *testing.T) {
	ev, _ := EventFromUpdate(commandUpdate(1, 7, 100, "/start"))
	assert.Equal(t, []Action{{Kind: ActionSend, ChatID: 100, SenderID: 7, Text: greetingText}}, allowed.Dispatch(ev))

	ev, _ = EventFromUpdate(commandUpdate(2, 7, 100, "/engine"))
	assert.Equal(t, unknownCommandText, allowed.Dispatch(ev)[0].Text)

	ev, _ = EventFromUpdate(textUpdate(3, 7, 100, "hello"))
	assert.Equal(t, "You said: hello", allowed.Dispatch(ev)[0].Text)

	ev, _ = EventFromUpdate(photoUpdate(4, 7, 100, tgbotapi.PhotoSize{FileID: "a", Width: 1, Height: 1}))
	acts := allowed.Dispatch(ev)
	require.Len(t, acts, 1)
	assert.Equal(t, ActionProcessPhoto, acts[0].Kind)
	assert.Equal(t, int64(100), acts[0].Photo.ChatID)
	assert.Len(t, acts[0].Photo.Variants, 1)
}

func TestDispatchEmptyPhotoListIsDropped(t *testing.T) {
	ev := Event{Kind: EventPhoto, ChatID: 100, SenderID: 7, Photos: []pipeline.Variant{}}
	assert.Empty(t, allowed.Dispatch(ev))
}
