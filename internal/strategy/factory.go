package strategy

import "signal_bot/internal/models"

// Selector picks the evaluator kind for an asset. First match wins:
// whitelisted grid assets, volatile whitelisted scalping assets, the
// dominance asset for trend following, mean reversion otherwise.
type Selector struct {
	GridAssets     []string
	ScalpingAssets []string
	DominanceAsset string
	ScalpingMinVol float64
}

func NewSelector(grid, scalping []string, dominance string, scalpingMinVol float64) Selector {
	if scalpingMinVol <= 0 {
		scalpingMinVol = 0.6
	}
	return Selector{
		GridAssets:     grid,
		ScalpingAssets: scalping,
		DominanceAsset: dominance,
		ScalpingMinVol: scalpingMinVol,
	}
}

// Select is pure: the same inputs always give the same kind.
func (s Selector) Select(asset string, volatility float64, enabled map[string]bool) Kind {
	if enabled[models.FlagGrid] && contains(s.GridAssets, asset) {
		return KindGrid
	}
	if enabled[models.FlagScalping] && contains(s.ScalpingAssets, asset) && volatility > s.ScalpingMinVol {
		return KindScalping
	}
	if s.DominanceAsset != "" && asset == s.DominanceAsset {
		return KindTrendVelocity
	}
	return KindMeanReversion
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// NewEvaluator builds the evaluator of a kind.
func NewEvaluator(k Kind, p Params) Evaluator {
	switch k {
	case KindTrendVelocity:
		return NewTrendVelocity(p)
	case KindSqueeze:
		return NewSqueeze(p)
	case KindGrid:
		return Grid{}
	case KindScalping:
		return Scalping{}
	case KindCombined:
		return NewCombined(p)
	case KindMeanReversion:
		fallthrough
	default:
		return NewMeanReversion(p)
	}
}
