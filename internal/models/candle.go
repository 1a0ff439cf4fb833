package models

import "time"

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered candle slice annotated with what was requested,
// so an empty result still says which symbol/timeframe came back empty.
type Series struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
}

func (s Series) Len() int     { return len(s.Candles) }
func (s Series) Empty() bool  { return len(s.Candles) == 0 }
func (s Series) Last() Candle { return s.Candles[len(s.Candles)-1] }

func (s Series) Opens() []float64   { return s.column(func(c Candle) float64 { return c.Open }) }
func (s Series) Highs() []float64   { return s.column(func(c Candle) float64 { return c.High }) }
func (s Series) Lows() []float64    { return s.column(func(c Candle) float64 { return c.Low }) }
func (s Series) Closes() []float64  { return s.column(func(c Candle) float64 { return c.Close }) }
func (s Series) Volumes() []float64 { return s.column(func(c Candle) float64 { return c.Volume }) }

func (s Series) column(pick func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = pick(c)
	}
	return out
}
