package strategy

import (
	"go.uber.org/fx"

	"signal_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(NewEngineFromConfig),
	)
}

func NewEngineFromConfig(cfg *config.Config) *Engine {
	p := DefaultParams()
	s := cfg.Strategy
	if s.HMAPeriod > 0 {
		p.HMAPeriod = s.HMAPeriod
	}
	if s.ADXStrong > 0 {
		p.ADXStrong = s.ADXStrong
	}
	if s.VolumeClimax > 0 {
		p.VolumeClimax = s.VolumeClimax
	}
	if s.SqueezeLookback > 0 {
		p.SqueezeLookback = s.SqueezeLookback
	}
	if cfg.Risk.ATRStopMult > 0 {
		p.ATRStopMult = cfg.Risk.ATRStopMult
	}
	if cfg.Risk.TakeProfitRR > 0 {
		p.RewardRisk = cfg.Risk.TakeProfitRR
	}
	sel := NewSelector(s.GridAssets, s.ScalpingAssets, s.DominanceAsset, s.ScalpingMinVolatility)
	return NewEngine(p, sel, s.SpotCombined)
}
