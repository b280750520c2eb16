package util

import "strings"

// StripCodeFences снимает обёртку ```lang ... ```, в которую модель иногда
// заворачивает весь ответ. Фенсы внутри текста не трогает.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s[3:], "```")
	// первая строка: метка языка (json, html, markdown...) или пусто
	if i := strings.IndexByte(body, '\n'); i >= 0 && !strings.ContainsAny(body[:i], " \t") {
		body = body[i+1:]
	}
	return strings.TrimSpace(body)
}
