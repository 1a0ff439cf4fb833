package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// StateStore persists the operator-controlled system state.
type StateStore interface {
	LoadState(ctx context.Context) (models.SystemState, error)
	SaveState(ctx context.Context, st models.SystemState) error
}

// StateKeeper держит текущее состояние системы и сразу пишет каждое изменение
// в стор. Если сохранить не удалось, главной остаётся память.
type StateKeeper struct {
	store  StateStore
	groups map[string][]string

	mu         sync.RWMutex
	st         models.SystemState
	onCooldown []func(time.Duration)
}

func NewStateKeeper(store StateStore, groups map[string][]string) *StateKeeper {
	return &StateKeeper{
		store:  store,
		groups: groups,
		st:     models.DefaultSystemState(),
	}
}

// Load подменяет состояние сохранённым. Битый стор оставляет дефолты.
func (k *StateKeeper) Load(ctx context.Context) {
	st, err := k.store.LoadState(ctx)
	if err != nil {
		logger.Warn("system state: %v, using defaults", err)
		st = models.DefaultSystemState()
	}
	k.mu.Lock()
	k.st = st.Clone()
	hooks := k.onCooldown
	k.mu.Unlock()

	for _, fn := range hooks {
		fn(time.Duration(st.SignalCooldown) * time.Second)
	}
}

// OnCooldown registers a callback fired whenever the cooldown changes.
func (k *StateKeeper) OnCooldown(fn func(time.Duration)) {
	k.mu.Lock()
	k.onCooldown = append(k.onCooldown, fn)
	k.mu.Unlock()
}

func (k *StateKeeper) Get() models.SystemState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.st.Clone()
}

// Assets возвращает символы включённых групп без выключенных активов,
// в порядке имён групп.
func (k *StateKeeper) Assets() []string {
	st := k.Get()
	names := make([]string, 0, len(k.groups))
	for g := range k.groups {
		names = append(names, g)
	}
	sort.Strings(names)

	var out []string
	for _, g := range names {
		if !st.GroupConfig[g] {
			continue
		}
		for _, a := range k.groups[g] {
			if !st.AssetDisabled(a) {
				out = append(out, a)
			}
		}
	}
	return out
}

// ActiveGroups returns the enabled group names in order.
func (k *StateKeeper) ActiveGroups() []string {
	st := k.Get()
	var out []string
	for g := range k.groups {
		if st.GroupConfig[g] {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

func (k *StateKeeper) Group(name string) []string {
	return k.groups[name]
}

// ToggleGroup flips a group and returns its new value.
func (k *StateKeeper) ToggleGroup(ctx context.Context, group string) (bool, error) {
	group = strings.ToUpper(strings.TrimSpace(group))
	if _, ok := k.groups[group]; !ok {
		return false, fmt.Errorf("%w: unknown group %q", models.ErrConfigValidation, group)
	}
	var on bool
	err := k.update(ctx, func(st *models.SystemState) {
		on = !st.GroupConfig[group]
		st.GroupConfig[group] = on
	})
	return on, err
}

// ToggleAsset flips the disabled flag of an asset and returns true when the
// asset is now disabled.
func (k *StateKeeper) ToggleAsset(ctx context.Context, asset string) (bool, error) {
	if asset == "" {
		return false, fmt.Errorf("%w: empty asset", models.ErrConfigValidation)
	}
	var disabled bool
	err := k.update(ctx, func(st *models.SystemState) {
		kept := st.DisabledAssets[:0]
		for _, a := range st.DisabledAssets {
			if a != asset {
				kept = append(kept, a)
			}
		}
		disabled = len(kept) == len(st.DisabledAssets)
		if disabled {
			kept = append(kept, asset)
		}
		st.DisabledAssets = kept
	})
	return disabled, err
}

// ToggleStrategy flips a strategy flag and returns its new value.
func (k *StateKeeper) ToggleStrategy(ctx context.Context, flag string) (bool, error) {
	flag = strings.ToUpper(strings.TrimSpace(flag))
	switch flag {
	case models.FlagScalping, models.FlagGrid, models.FlagMeanReversion:
	default:
		return false, fmt.Errorf("%w: unknown strategy %q", models.ErrConfigValidation, flag)
	}
	var on bool
	err := k.update(ctx, func(st *models.SystemState) {
		on = !st.EnabledStrategies[flag]
		st.EnabledStrategies[flag] = on
	})
	return on, err
}

// SetCooldown changes the signal cooldown, in seconds.
func (k *StateKeeper) SetCooldown(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", models.ErrConfigValidation)
	}
	err := k.update(ctx, func(st *models.SystemState) { st.SignalCooldown = seconds })
	k.mu.RLock()
	hooks := k.onCooldown
	k.mu.RUnlock()
	for _, fn := range hooks {
		fn(time.Duration(seconds) * time.Second)
	}
	return err
}

func (k *StateKeeper) update(ctx context.Context, fn func(*models.SystemState)) error {
	k.mu.Lock()
	next := k.st.Clone()
	fn(&next)
	k.st = next
	snapshot := next.Clone()
	k.mu.Unlock()

	if err := k.store.SaveState(ctx, snapshot); err != nil {
		logger.Error("system state save: %v", err)
		return fmt.Errorf("runner.StateKeeper: %w", err)
	}
	return nil
}
