package config

import "go.uber.org/fx"

// Module supplies an already loaded config so logging can start before the
// container does.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
