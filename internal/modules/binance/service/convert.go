package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"signal_bot/internal/models"
)

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func candle(openTime int64, o, h, l, c, v string) models.Candle {
	return models.Candle{
		Time:   time.UnixMilli(openTime).UTC(),
		Open:   parseFloat(o),
		High:   parseFloat(h),
		Low:    parseFloat(l),
		Close:  parseFloat(c),
		Volume: parseFloat(v),
	}
}

func spotCandles(in []*binance.Kline) []models.Candle {
	out := make([]models.Candle, 0, len(in))
	for _, k := range in {
		out = append(out, candle(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume))
	}
	return out
}

// parseFilters reads the lot, price and notional rules of a symbol from
// the raw exchange-info filter list.
func parseFilters(symbol string, filters []map[string]interface{}) models.SymbolFilter {
	f := models.SymbolFilter{Symbol: symbol}
	for _, raw := range filters {
		switch raw["filterType"] {
		case "LOT_SIZE":
			f.StepSize = field(raw, "stepSize")
			f.MinQty = field(raw, "minQty")
		case "PRICE_FILTER":
			f.TickSize = field(raw, "tickSize")
		case "MIN_NOTIONAL":
			// futures use "notional", old spot rules "minNotional"
			if v := field(raw, "notional"); v > 0 {
				f.MinNotional = v
			} else {
				f.MinNotional = field(raw, "minNotional")
			}
		case "NOTIONAL":
			f.MinNotional = field(raw, "minNotional")
		}
	}
	return f
}

func field(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case string:
		return parseFloat(v)
	case float64:
		return v
	}
	return 0
}

// formatQty renders a quantity or price with no more decimals than step
// allows.
func formatQty(v, step float64) string {
	d := decimal.NewFromFloat(v)
	if step > 0 {
		places := -decimal.NewFromFloat(step).Exponent()
		if places < 0 {
			places = 0
		}
		return d.Truncate(places).String()
	}
	return d.String()
}

func positionSide(amt float64) models.PositionState {
	switch {
	case amt > 0:
		return models.PositionLong
	case amt < 0:
		return models.PositionShort
	}
	return models.PositionNeutral
}

// isUSDT reports whether the symbol trades against USDT on the exchange.
func isUSDT(symbol string) bool {
	return strings.HasSuffix(symbol, "USDT") && len(symbol) > 4
}

func orderID(id int64) string {
	return fmt.Sprintf("%d", id)
}
