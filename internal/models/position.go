package models

// PositionState is the process-wide futures state of one asset.
type PositionState string

const (
	PositionNeutral PositionState = "NEUTRAL"
	PositionLong    PositionState = "LONG"
	PositionShort   PositionState = "SHORT"
)

// Action is what a dispatch asks sessions to do.
type Action string

const (
	ActionOpenLong  Action = "OPEN_LONG"
	ActionOpenShort Action = "OPEN_SHORT"
	ActionClose     Action = "CLOSE"
	ActionSpotBuy   Action = "SPOT_BUY"
)

// Position is an open exchange position as reported by the account.
type Position struct {
	Symbol        string        `json:"symbol"`
	Side          PositionState `json:"side"`
	Size          float64       `json:"size"`
	EntryPrice    float64       `json:"entry_price"`
	MarkPrice     float64       `json:"mark_price"`
	UnrealizedPnL float64       `json:"unrealized_pnl"`
	Leverage      int           `json:"leverage"`
}

// Order is the acknowledgement of a placed order.
type Order struct {
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// SymbolFilter holds the exchange rounding rules of a symbol.
type SymbolFilter struct {
	Symbol      string  `json:"symbol"`
	StepSize    float64 `json:"step_size"`
	TickSize    float64 `json:"tick_size"`
	MinQty      float64 `json:"min_qty"`
	MinNotional float64 `json:"min_notional"`
}

// Balance of one asset on an account.
type Balance struct {
	Asset      string  `json:"asset"`
	Free       float64 `json:"free"`
	Total      float64 `json:"total"`
	Unrealized float64 `json:"unrealized"`
}

// OpenRequest is a market entry with protective orders attached.
type OpenRequest struct {
	Symbol     string        `json:"symbol"`
	Side       PositionState `json:"side"`
	Quantity   float64       `json:"quantity"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	Leverage   int           `json:"leverage"`
}
