package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffImageMIME определяет MIME картинки по сигнатуре; неизвестное: через http.DetectContentType.
func SniffImageMIME(b []byte) string {
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	// PNG
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if m := http.DetectContentType(b); strings.HasPrefix(m, "image/") {
		return m
	}
	// Telegram отдаёт фото в JPEG
	return "image/jpeg"
}

// DataURL кодирует картинку в data:<mime>;base64,<payload>.
func DataURL(b []byte) string {
	return "data:" + SniffImageMIME(b) + ";base64," + base64.StdEncoding.EncodeToString(b)
}
