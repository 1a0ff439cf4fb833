package sessions

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"signal_bot/internal/models"
)

// Exchange is the per-account trading API a session drives.
type Exchange interface {
	FuturesBalance(ctx context.Context) (models.Balance, error)
	SpotBalance(ctx context.Context, asset string) (models.Balance, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Price(ctx context.Context, symbol string) (float64, error)
	FuturesFilter(ctx context.Context, symbol string) (models.SymbolFilter, error)
	SpotFilter(ctx context.Context, symbol string) (models.SymbolFilter, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	OpenPosition(ctx context.Context, req models.OpenRequest) (models.Order, error)
	ClosePosition(ctx context.Context, p models.Position) (models.Order, error)
	SpotMarketBuy(ctx context.Context, symbol string, quote float64) (models.Order, error)
}

// ClientFactory builds an exchange client for one set of credentials.
type ClientFactory func(creds models.Credentials, proxyURL string) (Exchange, error)

// Config keys accepted by UpdateConfig.
const (
	KeyMode              = "mode"
	KeyLeverage          = "leverage"
	KeyMaxCapitalPct     = "max_capital_pct"
	KeySpotAllocationPct = "spot_allocation_pct"
	KeyStopLossPct       = "stop_loss_pct"
	KeyProxyURL          = "proxy_url"
)

const maxStopLossPct = 0.5

// Session is one chat's trading context. Config reads never wait on a
// running order: mu guards fields, execMu serializes exchange work.
type Session struct {
	chatID  int64
	limits  Limits
	factory ClientFactory

	execMu sync.Mutex

	mu     sync.Mutex
	creds  models.Credentials
	cfg    models.SessionConfig
	client Exchange
}

func New(chatID int64, creds models.Credentials, cfg models.SessionConfig, factory ClientFactory, limits Limits) *Session {
	if cfg.Mode == "" {
		cfg.Mode = models.ModeWatcher
	}
	return &Session{
		chatID:  chatID,
		limits:  limits.withDefaults(),
		factory: factory,
		creds:   creds,
		cfg:     cfg,
	}
}

func (s *Session) ChatID() int64 { return s.chatID }

func (s *Session) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Mode
}

func (s *Session) Config() models.SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Session) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.creds.Empty()
}

// Record is the persisted form, credentials in the clear.
func (s *Session) Record() models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionRecord{
		ChatID:    s.chatID,
		APIKey:    s.creds.APIKey,
		APISecret: s.creds.APISecret,
		Config:    s.cfg,
	}
}

func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionView{ChatID: s.chatID, APIKey: models.Mask(s.creds.APIKey), Config: s.cfg}
}

// SetCredentials replaces the keys and drops the cached client.
func (s *Session) SetCredentials(creds models.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.client = nil
}

// SetMode switches the automation level. An unknown mode leaves the session
// unchanged.
func (s *Session) SetMode(mode string) error {
	m, err := models.ParseMode(mode)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Mode = m
	s.mu.Unlock()
	return nil
}

// UpdateConfig validates one key and merges it into the risk config.
//
//	leverage             integer, clamped to [1, MaxLeverage]
//	max_capital_pct      (0, 1]; values above 1 are read as percent
//	spot_allocation_pct  [0, 1]; same percent rule, 0 disables spot buys
//	stop_loss_pct        (0, 0.5]; same percent rule
//	proxy_url            http(s) or socks5 URL, "off" or "" clears it
//	mode                 WATCHER, COPILOT or PILOT
//
// Rejected values fail with ErrConfigValidation and change nothing.
func (s *Session) UpdateConfig(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	if key == KeyMode {
		return s.SetMode(value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg

	switch key {
	case KeyLeverage:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: leverage %q is not an integer", models.ErrConfigValidation, value)
		}
		next.Leverage = min(max(n, 1), s.limits.MaxLeverage)
	case KeyMaxCapitalPct:
		v, err := parseFraction(value)
		if err != nil {
			return err
		}
		if v <= 0 || v > 1 {
			return fmt.Errorf("%w: max_capital_pct must be in (0, 1], got %v", models.ErrConfigValidation, v)
		}
		next.MaxCapitalPct = v
	case KeySpotAllocationPct:
		v, err := parseFraction(value)
		if err != nil {
			return err
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: spot_allocation_pct must be in [0, 1], got %v", models.ErrConfigValidation, v)
		}
		next.SpotAllocationPct = v
	case KeyStopLossPct:
		v, err := parseFraction(value)
		if err != nil {
			return err
		}
		if v <= 0 || v > maxStopLossPct {
			return fmt.Errorf("%w: stop_loss_pct must be in (0, %v], got %v", models.ErrConfigValidation, maxStopLossPct, v)
		}
		next.StopLossPct = v
	case KeyProxyURL:
		p, err := parseProxy(value)
		if err != nil {
			return err
		}
		next.ProxyURL = p
		if p != s.cfg.ProxyURL {
			s.client = nil
		}
	default:
		return fmt.Errorf("%w: unknown key %q", models.ErrConfigValidation, key)
	}

	s.cfg = next
	return nil
}

// ApplyPreset overwrites the risk fields with a named preset. Mode and proxy
// are kept.
func (s *Session) ApplyPreset(name string) error {
	p, ok := models.Presets[name]
	if !ok {
		return fmt.Errorf("%w: unknown preset %q", models.ErrConfigValidation, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Apply(&s.cfg)
	s.cfg.Leverage = min(max(s.cfg.Leverage, 1), s.limits.MaxLeverage)
	return nil
}

// exchange returns the cached client, building it on first use.
func (s *Session) exchange() (Exchange, models.SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	if s.client != nil {
		return s.client, cfg, nil
	}
	if s.creds.Empty() {
		return nil, cfg, fmt.Errorf("%w: no API keys, use /set_keys", models.ErrConfigValidation)
	}
	if s.factory == nil {
		return nil, cfg, fmt.Errorf("%w: no exchange client", models.ErrExternalCall)
	}
	c, err := s.factory(s.creds, cfg.ProxyURL)
	if err != nil {
		return nil, cfg, models.NewTradingError("connect", "", err)
	}
	s.client = c
	return c, cfg, nil
}

// parseFraction reads "0.1", "10", "10%" as 0.1.
func parseFraction(value string) (float64, error) {
	pct := strings.HasSuffix(value, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrConfigValidation, value)
	}
	if pct || v > 1 {
		v /= 100
	}
	return v, nil
}

func parseProxy(value string) (string, error) {
	if value == "" || strings.EqualFold(value, "off") || strings.EqualFold(value, "none") {
		return "", nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: bad proxy url %q", models.ErrConfigValidation, value)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
		return value, nil
	}
	return "", fmt.Errorf("%w: unsupported proxy scheme %q", models.ErrConfigValidation, u.Scheme)
}
