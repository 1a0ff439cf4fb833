package strategy

import (
	"errors"

	"signal_bot/internal/models"
)

// Combined buys when either trend velocity or mean reversion buys. Trend
// velocity wins when both fire; the debug map carries every sub-condition.
type Combined struct {
	tv *TrendVelocity
	mr *MeanReversion
	p  Params
}

func NewCombined(p Params) *Combined {
	p = p.withDefaults()
	return &Combined{tv: NewTrendVelocity(p), mr: NewMeanReversion(p), p: p}
}

func (s *Combined) Kind() Kind   { return KindCombined }
func (s *Combined) Name() string { return "Combined" }

func (s *Combined) Analyze(series models.Series) (Result, error) {
	return s.evaluate(newFrame(series, s.p))
}

func (s *Combined) evaluate(f *frame) (Result, error) {
	tv, tvErr := s.tv.evaluate(f)
	if tvErr != nil {
		// nothing applies below the trend minimum
		return tv, tvErr
	}
	mr, mrErr := s.mr.evaluate(f)
	if mrErr != nil && !errors.Is(mrErr, models.ErrDataUnavailable) {
		return mr, mrErr
	}

	out := Result{
		Direction: models.DirectionWait,
		Reason:    "no combined signal",
		Debug:     make(map[string]bool, len(tv.Debug)+len(mr.Debug)),
		Metrics:   tv.Metrics,
	}
	for k, v := range tv.Debug {
		out.Debug[k] = v
	}
	for k, v := range mr.Debug {
		out.Debug[k] = v
	}
	switch {
	case tv.Buy():
		out.Direction, out.Reason, out.Source = tv.Direction, tv.Reason, tv.Source
	case mrErr == nil && mr.Buy():
		out.Direction, out.Reason, out.Source = mr.Direction, mr.Reason, mr.Source
	}
	return out, nil
}

func (s *Combined) EntryParams(r Result) (models.EntryPlan, bool) {
	return atrEntry(s.p, r)
}
