package telegram

import (
	"errors"
	"net/url"
)

// apiError: ошибка HTTP-клиента tgbotapi без URL запроса. В URL Bot API
// зашит токен (/bot<TOKEN>/<method>), поэтому *url.Error наружу не отдаём.
type apiError struct {
	op  string
	err error
}

func (e *apiError) Error() string { return "telegram api " + e.op + ": " + e.err.Error() }

func (e *apiError) Unwrap() error { return e.err }

// RedactError убирает из ошибки tgbotapi URL с токеном бота. Причина
// (таймаут, отказ в соединении) остаётся доступна через errors.As/Is.
func RedactError(err error) error {
	var ue *url.Error
	if err == nil || !errors.As(err, &ue) {
		return err
	}
	return &apiError{op: ue.Op, err: ue.Err}
}
