package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/pipeline"
	"ll-buddy/api/internal/util"
)

// Bot API отдаёт ботам файлы до 20 МБ
const maxDownloadBytes = 20 << 20

// BotAPI: часть *tgbotapi.BotAPI, которой мы пользуемся.
type BotAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Transport реализует pipeline.Messenger поверх Telegram Bot API.
type Transport struct {
	api    BotAPI
	httpc  *http.Client
	inline bool
	log    *logger.Logger
}

// NewTransport: при inline=true картинка скачивается (не дольше downloadTimeout)
// и уходит в модель как data: URL, иначе в модель уходит прямая ссылка на файл
// (в ней токен бота).
func NewTransport(api BotAPI, inline bool, downloadTimeout time.Duration, log *logger.Logger) *Transport {
	return &Transport{
		api:    api,
		httpc:  &http.Client{Timeout: downloadTimeout},
		inline: inline,
		log:    log.With("component", "telegram_transport"),
	}
}

func (t *Transport) Send(ctx context.Context, chatID int64, text string, mode pipeline.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, truncate(text))
	msg.ParseMode = string(mode)
	_, err := t.api.Send(msg)
	if err != nil && mode != pipeline.ModePlain && isEntityParseError(err) {
		t.log.Warn("markup rejected, resending as plain text", "chat_id", chatID, "error", err)
		msg.ParseMode = ""
		_, err = t.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("telegram send: %w", RedactError(err))
	}
	return nil
}

func (t *Transport) FileURL(ctx context.Context, fileID string) (string, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("telegram getFile: %w", RedactError(err))
	}
	if !t.inline {
		return url, nil
	}
	img, err := t.download(ctx, url)
	if err != nil {
		return "", err
	}
	return util.DataURL(img), nil
}

func (t *Transport) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New("telegram download: bad file url")
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// в тексте ошибки URL с токеном бота, наружу его не отдаём
		return nil, errors.New("telegram download failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram download: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	if len(b) > maxDownloadBytes {
		return nil, fmt.Errorf("telegram download: file exceeds %d bytes", maxDownloadBytes)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("telegram download: empty file")
	}
	return b, nil
}
