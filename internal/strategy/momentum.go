package strategy

import (
	"math"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/indicator"
)

const (
	momentumPeriod = 14
	momentumBuy    = 55.0
	momentumSell   = 45.0
)

// Momentum votes on the RSI of the window's closes. Insufficient history or
// an undefined RSI resolves to Hold, never to an error.
func Momentum(candles []candle.Candle) Decision {
	if len(candles) < momentumPeriod+1 {
		return Hold
	}

	rsi, err := indicator.LastRSI(candle.Closes(candles), momentumPeriod)
	if err != nil || math.IsNaN(rsi) {
		return Hold
	}

	switch {
	case rsi > momentumBuy:
		return Buy
	case rsi < momentumSell:
		return Sell
	default:
		return Hold
	}
}
