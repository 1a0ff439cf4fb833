package models

import (
	"fmt"
	"strings"
)

// Mode is the automation level of a trading session.
type Mode string

const (
	ModeWatcher Mode = "WATCHER"
	ModeCopilot Mode = "COPILOT"
	ModePilot   Mode = "PILOT"
)

// ParseMode accepts any letter case; unknown values fail with ErrConfigValidation.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeWatcher, ModeCopilot, ModePilot:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrConfigValidation, s)
}

// SessionConfig is the risk configuration persisted per chat.
type SessionConfig struct {
	Mode              Mode    `json:"mode"`
	Leverage          int     `json:"leverage"`
	MaxCapitalPct     float64 `json:"max_capital_pct"`
	SpotAllocationPct float64 `json:"spot_allocation_pct"`
	StopLossPct       float64 `json:"stop_loss_pct"`
	ProxyURL          string  `json:"proxy_url,omitempty"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Mode:              ModeWatcher,
		Leverage:          5,
		MaxCapitalPct:     0.10,
		SpotAllocationPct: 0.10,
		StopLossPct:       0.02,
	}
}

// Credentials are exchange API keys. They never reach a log line.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func (c Credentials) Empty() bool { return c.APIKey == "" || c.APISecret == "" }

func (c Credentials) String() string {
	if c.Empty() {
		return "credentials(none)"
	}
	return "credentials(" + Mask(c.APIKey) + ")"
}

func (c Credentials) GoString() string { return c.String() }

// Mask keeps the first and last four characters.
func Mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// SessionRecord is the persisted form of one session.
type SessionRecord struct {
	ChatID    int64         `json:"chat_id"`
	APIKey    string        `json:"api_key"`
	APISecret string        `json:"api_secret"`
	Config    SessionConfig `json:"config"`
}

func (r SessionRecord) Credentials() Credentials {
	return Credentials{APIKey: r.APIKey, APISecret: r.APISecret}
}

// SessionView is the redacted projection shown to operators.
type SessionView struct {
	ChatID int64         `json:"chat_id"`
	APIKey string        `json:"api_key"`
	Config SessionConfig `json:"config"`
}
