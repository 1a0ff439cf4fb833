package strategy

import "signal_bot/internal/models"

// Grid is reserved for range accumulation; it never signals yet.
type Grid struct{}

func (Grid) Kind() Kind   { return KindGrid }
func (Grid) Name() string { return "Grid" }

func (g Grid) Analyze(series models.Series) (Result, error) {
	return g.evaluate(nil)
}

func (Grid) evaluate(f *frame) (Result, error) {
	return wait("grid strategy is not implemented", f), nil
}

// Scalping is reserved for high-volatility assets; it never signals yet.
type Scalping struct{}

func (Scalping) Kind() Kind   { return KindScalping }
func (Scalping) Name() string { return "Scalping" }

func (s Scalping) Analyze(series models.Series) (Result, error) {
	return s.evaluate(nil)
}

func (Scalping) evaluate(f *frame) (Result, error) {
	return wait("scalping strategy is not implemented", f), nil
}
