package filter

import (
	"context"
	"sort"
	"sync"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// Transition is the outcome of a gated futures signal.
type Transition struct {
	Asset  string               `json:"asset"`
	Action models.Action        `json:"action"`
	Side   models.PositionState `json:"side"`
	From   models.PositionState `json:"from"`
	To     models.PositionState `json:"to"`
}

// Gate maps a futures direction onto the current position state. ok is false
// when the direction does not apply to that state.
func Gate(cur models.PositionState, dir models.Direction) (Transition, bool) {
	if cur == "" {
		cur = models.PositionNeutral
	}
	t := Transition{From: cur}
	switch {
	case dir == models.DirectionBuy && cur == models.PositionNeutral:
		t.Action, t.Side, t.To = models.ActionOpenLong, models.PositionLong, models.PositionLong
	case dir == models.DirectionShort && cur == models.PositionNeutral:
		t.Action, t.Side, t.To = models.ActionOpenShort, models.PositionShort, models.PositionShort
	case dir == models.DirectionCloseLong && cur == models.PositionLong,
		dir == models.DirectionCloseShort && cur == models.PositionShort,
		dir == models.DirectionExitAll && cur != models.PositionNeutral:
		t.Action, t.Side, t.To = models.ActionClose, cur, models.PositionNeutral
	default:
		return Transition{}, false
	}
	return t, true
}

// PositionMirror persists the book outside the process.
type PositionMirror interface {
	SavePosition(ctx context.Context, asset string, state models.PositionState) error
	LoadPositions(ctx context.Context) (map[string]models.PositionState, error)
}

// PositionBook is the process-wide per-asset futures state. Memory is
// authoritative; the mirror is best effort.
type PositionBook struct {
	locks  *KeyedLock
	mirror PositionMirror

	mu     sync.RWMutex
	states map[string]models.PositionState
}

func NewPositionBook(mirror PositionMirror) *PositionBook {
	return &PositionBook{
		locks:  NewKeyedLock(),
		mirror: mirror,
		states: make(map[string]models.PositionState),
	}
}

// Restore loads the mirror into memory.
func (b *PositionBook) Restore(ctx context.Context) error {
	if b.mirror == nil {
		return nil
	}
	loaded, err := b.mirror.LoadPositions(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	for k, v := range loaded {
		b.states[k] = v
	}
	b.mu.Unlock()
	return nil
}

func (b *PositionBook) State(asset string) models.PositionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if st, ok := b.states[asset]; ok {
		return st
	}
	return models.PositionNeutral
}

// Apply gates dir against the asset's state and commits the transition.
// Concurrent calls for one asset are serialized, so of two racing BUYs only
// the first opens.
func (b *PositionBook) Apply(ctx context.Context, asset string, dir models.Direction) (Transition, bool) {
	unlock := b.locks.Lock(asset)
	defer unlock()

	t, ok := Gate(b.State(asset), dir)
	if !ok {
		return Transition{}, false
	}
	t.Asset = asset
	b.set(ctx, asset, t.To)
	return t, true
}

// Set overrides the state, used by manual commands and the admin API.
func (b *PositionBook) Set(ctx context.Context, asset string, st models.PositionState) {
	unlock := b.locks.Lock(asset)
	defer unlock()
	b.set(ctx, asset, st)
}

func (b *PositionBook) set(ctx context.Context, asset string, st models.PositionState) {
	b.mu.Lock()
	b.states[asset] = st
	b.mu.Unlock()
	if b.mirror == nil {
		return
	}
	if err := b.mirror.SavePosition(ctx, asset, st); err != nil {
		logger.Warn("positions: mirror %s=%s: %v", asset, st, err)
	}
}

// Snapshot lists non-neutral positions sorted by asset.
func (b *PositionBook) Snapshot() []Transition {
	b.mu.RLock()
	out := make([]Transition, 0, len(b.states))
	for asset, st := range b.states {
		if st == models.PositionNeutral {
			continue
		}
		out = append(out, Transition{Asset: asset, Side: st, To: st})
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}
