package models

import "time"

// Direction is the futures-side verdict of an evaluation.
type Direction string

const (
	DirectionBuy        Direction = "BUY"
	DirectionShort      Direction = "SHORT"
	DirectionCloseLong  Direction = "CLOSE_LONG"
	DirectionCloseShort Direction = "CLOSE_SHORT"
	DirectionExitAll    Direction = "EXIT_ALL"
	DirectionWait       Direction = "WAIT"
)

func (d Direction) IsEntry() bool { return d == DirectionBuy || d == DirectionShort }

// SignalType is what the aggregation filter compares between cycles.
type SignalType string

const SignalSpotBuy SignalType = "SPOT_BUY"

// Trend is the higher-timeframe classification used by the MTF veto.
type Trend string

const (
	TrendBull    Trend = "BULL"
	TrendBear    Trend = "BEAR"
	TrendNeutral Trend = "NEUTRAL"
)

// Metrics is the indicator snapshot of the last bar.
type Metrics struct {
	Close    float64 `json:"close"`
	RSI      float64 `json:"rsi"`
	ADX      float64 `json:"adx"`
	PlusDI   float64 `json:"plus_di"`
	MinusDI  float64 `json:"minus_di"`
	ATR      float64 `json:"atr"`
	HMA      float64 `json:"hma_55"`
	BBUpper  float64 `json:"bb_upper"`
	BBLower  float64 `json:"bb_lower"`
	EMA200   float64 `json:"ema_200"`
	StochK   float64 `json:"stoch_k"`
	StochD   float64 `json:"stoch_d"`
	VolRatio float64 `json:"vol_ratio"`
}

// Signal is produced fresh each cycle and never persisted.
type Signal struct {
	Asset     string    `json:"asset"`
	Direction Direction `json:"direction"`
	Strategy  string    `json:"strategy"`
	Reason    string    `json:"reason"`
	Metrics   Metrics   `json:"metrics"`
	At        time.Time `json:"at"`
}

// Analysis is the full result of one asset evaluation: the spot path chosen by
// the selector and the futures breakout path.
type Analysis struct {
	Asset           string          `json:"asset"`
	Strategy        string          `json:"strategy"`
	SpotSignal      bool            `json:"signal_spot"`
	SpotReason      string          `json:"reason_spot"`
	Futures         Direction       `json:"signal_futures"`
	FuturesReason   string          `json:"reason_futures"`
	Metrics         Metrics         `json:"metrics"`
	Debug           map[string]bool `json:"debug"`
	VolatilityIndex float64         `json:"volatility_index"`
	// SpotPlan is set with a spot signal when ATR allows a stop.
	SpotPlan *EntryPlan `json:"spot_plan,omitempty"`
}

// EntryPlan is a suggested stop and target for a long entry.
type EntryPlan struct {
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// SignalType reports the unified signal type; spot wins over futures.
func (a Analysis) SignalType() (SignalType, bool) {
	if a.SpotSignal {
		return SignalSpotBuy, true
	}
	if a.Futures != "" && a.Futures != DirectionWait {
		return SignalType(a.Futures), true
	}
	return "", false
}

func (a Analysis) HasSignal() bool {
	_, ok := a.SignalType()
	return ok
}
