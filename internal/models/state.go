package models

// Strategy flags stored in SystemState.EnabledStrategies.
const (
	FlagScalping      = "SCALPING"
	FlagGrid          = "GRID"
	FlagMeanReversion = "MEAN_REVERSION"
)

// Asset groups.
const (
	GroupCrypto    = "CRYPTO"
	GroupStocks    = "STOCKS"
	GroupCommodity = "COMMODITY"
)

// SystemState is the operator-controlled runtime state shared by all chats.
type SystemState struct {
	EnabledStrategies map[string]bool `json:"enabled_strategies"`
	GroupConfig       map[string]bool `json:"group_config"`
	DisabledAssets    []string        `json:"disabled_assets"`
	// SignalCooldown in seconds.
	SignalCooldown int `json:"signal_cooldown"`
}

func DefaultSystemState() SystemState {
	return SystemState{
		EnabledStrategies: map[string]bool{
			FlagScalping:      false,
			FlagGrid:          false,
			FlagMeanReversion: true,
		},
		GroupConfig: map[string]bool{
			GroupCrypto:    true,
			GroupStocks:    false,
			GroupCommodity: false,
		},
		DisabledAssets: []string{},
		SignalCooldown: 3600,
	}
}

func (s SystemState) Clone() SystemState {
	out := SystemState{
		EnabledStrategies: make(map[string]bool, len(s.EnabledStrategies)),
		GroupConfig:       make(map[string]bool, len(s.GroupConfig)),
		DisabledAssets:    append([]string{}, s.DisabledAssets...),
		SignalCooldown:    s.SignalCooldown,
	}
	for k, v := range s.EnabledStrategies {
		out.EnabledStrategies[k] = v
	}
	for k, v := range s.GroupConfig {
		out.GroupConfig[k] = v
	}
	return out
}

func (s SystemState) AssetDisabled(asset string) bool {
	for _, a := range s.DisabledAssets {
		if a == asset {
			return true
		}
	}
	return false
}
