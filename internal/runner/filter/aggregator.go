package filter

import (
	"math"
	"sort"
	"sync"
	"time"

	"signal_bot/internal/models"
)

// AssetState is what the aggregator remembers about the last alert.
type AssetState struct {
	Asset      string            `json:"asset"`
	LastAlert  time.Time         `json:"last_alert"`
	LastPrice  float64           `json:"last_price"`
	LastSignal models.SignalType `json:"last_signal"`
}

// Aggregator suppresses repeated alerts. An asset with a signal alerts when
// the cooldown has elapsed, price moved more than the deviation since the
// last alert, or the signal type changed.
type Aggregator struct {
	locks *KeyedLock

	mu        sync.RWMutex
	cooldown  time.Duration
	deviation float64
	states    map[string]AssetState

	now func() time.Time
}

func NewAggregator(cooldown time.Duration, deviation float64) *Aggregator {
	if deviation <= 0 {
		deviation = 0.008
	}
	return &Aggregator{
		locks:     NewKeyedLock(),
		cooldown:  cooldown,
		deviation: deviation,
		states:    make(map[string]AssetState),
		now:       time.Now,
	}
}

func (a *Aggregator) SetCooldown(d time.Duration) {
	a.mu.Lock()
	a.cooldown = d
	a.mu.Unlock()
}

func (a *Aggregator) Cooldown() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cooldown
}

// ShouldAlert decides and, on true, records the alert before returning so the
// caller dispatches against already updated state.
func (a *Aggregator) ShouldAlert(asset string, an models.Analysis) bool {
	sigType, ok := an.SignalType()
	if !ok {
		return false
	}
	unlock := a.locks.Lock(asset)
	defer unlock()

	now := a.now()
	price := an.Metrics.Close

	a.mu.RLock()
	st, seen := a.states[asset]
	cooldown := a.cooldown
	a.mu.RUnlock()

	timePassed := !seen || now.Sub(st.LastAlert) > cooldown
	bigMove := st.LastPrice > 0 && math.Abs(price-st.LastPrice)/st.LastPrice > a.deviation
	newSignal := sigType != st.LastSignal
	if !(timePassed || bigMove || newSignal) {
		return false
	}

	a.mu.Lock()
	a.states[asset] = AssetState{Asset: asset, LastAlert: now, LastPrice: price, LastSignal: sigType}
	a.mu.Unlock()
	return true
}

// Snapshot lists per-asset state sorted by asset.
func (a *Aggregator) Snapshot() []AssetState {
	a.mu.RLock()
	out := make([]AssetState, 0, len(a.states))
	for _, st := range a.states {
		out = append(out, st)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}
