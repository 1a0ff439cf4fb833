package service

import (
	"strconv"
	"strings"
)

// Telegram rejects messages above 4096 characters.
const maxMessageLen = 4000

func onOff(v bool) string {
	if v {
		return "✅ on"
	}
	return "⛔ off"
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// splitText cuts text into chunks of at most limit bytes, on line breaks
// where possible.
func splitText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		out = append(out, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
