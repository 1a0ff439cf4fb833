package models

// Preset is a named bundle of risk settings offered by the /risk menu.
type Preset struct {
	Name        string
	Description string
	Apply       func(cfg *SessionConfig)
}

var Presets = map[string]Preset{
	"safe": {
		Name:        "🟢 Conservative",
		Description: "Low leverage, small margin",
		Apply: func(cfg *SessionConfig) {
			cfg.Leverage = 3
			cfg.MaxCapitalPct = 0.05
			cfg.SpotAllocationPct = 0.05
			cfg.StopLossPct = 0.015
		},
	},
	"mid": {
		Name:        "🟡 Balanced",
		Description: "Default risk profile",
		Apply: func(cfg *SessionConfig) {
			cfg.Leverage = 5
			cfg.MaxCapitalPct = 0.10
			cfg.SpotAllocationPct = 0.10
			cfg.StopLossPct = 0.02
		},
	},
	"aggr": {
		Name:        "🔴 Aggressive",
		Description: "High leverage, experienced users only",
		Apply: func(cfg *SessionConfig) {
			cfg.Leverage = 20
			cfg.MaxCapitalPct = 0.25
			cfg.SpotAllocationPct = 0.20
			cfg.StopLossPct = 0.03
		},
	},
}

// PresetOrder fixes the button order.
var PresetOrder = []string{"safe", "mid", "aggr"}
