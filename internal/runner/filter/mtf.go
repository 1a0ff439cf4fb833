package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// TrendFunc fetches the higher-timeframe trend of an asset.
type TrendFunc func(ctx context.Context, asset string) (models.Trend, error)

// MTF vetoes futures entries that fight the higher-timeframe trend. Trends
// are cached per asset for ttl so one slow timeframe is not refetched every
// cycle.
type MTF struct {
	fetch TrendFunc
	cache *cache.Cache
}

func NewMTF(fetch TrendFunc, ttl time.Duration) *MTF {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MTF{fetch: fetch, cache: cache.New(ttl, 2*ttl)}
}

// Apply fetches the trend only when a signal exists. A long against BEAR
// or a short against BULL becomes WAIT; otherwise the rationale is tagged.
// Fetch failures leave the analysis untouched.
func (m *MTF) Apply(ctx context.Context, a *models.Analysis) {
	if !a.SpotSignal && !a.Futures.IsEntry() {
		return
	}
	trend, err := m.trend(ctx, a.Asset)
	if err != nil {
		logger.Warn("mtf: %s: %v", a.Asset, err)
		return
	}
	switch {
	case a.Futures == models.DirectionBuy && trend == models.TrendBear:
		a.Futures = models.DirectionWait
		a.FuturesReason = fmt.Sprintf("MTF veto: long against %s higher-timeframe trend", trend)
	case a.Futures == models.DirectionShort && trend == models.TrendBull:
		a.Futures = models.DirectionWait
		a.FuturesReason = fmt.Sprintf("MTF veto: short against %s higher-timeframe trend", trend)
	case a.Futures.IsEntry():
		a.FuturesReason += fmt.Sprintf(" [MTF: %s]", trend)
	}
	if a.SpotSignal {
		a.SpotReason += fmt.Sprintf(" [MTF: %s]", trend)
	}
}

func (m *MTF) trend(ctx context.Context, asset string) (models.Trend, error) {
	if v, ok := m.cache.Get(asset); ok {
		return v.(models.Trend), nil
	}
	t, err := m.fetch(ctx, asset)
	if err != nil {
		return models.TrendNeutral, err
	}
	m.cache.SetDefault(asset, t)
	return t, nil
}

// Prime caches the trend of an asset ahead of its first signal.
func (m *MTF) Prime(ctx context.Context, asset string) error {
	_, err := m.trend(ctx, asset)
	return err
}
