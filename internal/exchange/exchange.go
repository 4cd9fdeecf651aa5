// Package exchange
package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Fill is the broker's answer to a market order. Price is the average
// executed price and may come back zero when the broker omits it; callers
// must treat that as a degraded fill, not a free trade.
type Fill struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Exchange is the interface for all supported brokers.
type Exchange interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
	FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error)
	SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error)
}

// NormalizeSymbol converts "AAPL-USD" style symbols to the broker's compact
// uppercase form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// NormalizedTimeframe maps our timeframe notation to the broker's candle
// resolution ("30m" -> "30", "1h" -> "60", "1d" -> "D").
func NormalizedTimeframe(timeframe string) string {
	switch timeframe {
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "D"
	default:
		return strings.TrimSuffix(timeframe, "m")
	}
}
