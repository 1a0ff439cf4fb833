package helper

import (
	"strings"
)

// NormTF maps user and provider spellings of a timeframe onto the exchange
// interval names ("1H" -> "1h", "60m" -> "1h").
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h", "60":
		return "1h"
	case "240m", "4h":
		return "4h"
	case "1440m", "1d", "d":
		return "1d"
	case "15", "15m":
		return "15m"
	case "5", "5m":
		return "5m"
	default:
		return s
	}
}
