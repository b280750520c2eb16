package telegram

import (
	"strings"
	"unicode/utf8"
)

const (
	greetingText       = "Hi there! Send me a photo and I'll process it."
	unknownCommandText = "Неизвестная команда"
	accessDeniedText   = "⛔ Доступ запрещён. Вы не находитесь в списке разрешённых пользователей."

	// лимит Telegram: 4096 символов, оставляем запас
	maxMessageRunes = 3900
)

// truncate обрезает текст по рунам, чтобы не ломать UTF-8.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxMessageRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxMessageRunes]) + "…"
}

// isEntityParseError: Telegram отверг разметку (например, незакрытый HTML-тег).
func isEntityParseError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}
