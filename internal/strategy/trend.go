package strategy

import (
	"math"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/indicator"
)

const trendPeriod = 50

// Trend votes on the last close against its 50-period EMA. A close exactly
// on the EMA is Hold, as is insufficient history.
func Trend(candles []candle.Candle) Decision {
	if len(candles) < trendPeriod {
		return Hold
	}

	ema, err := indicator.LastEMA(candle.Closes(candles), trendPeriod)
	if err != nil || math.IsNaN(ema) {
		return Hold
	}

	last := candles[len(candles)-1].Close
	switch {
	case last > ema:
		return Buy
	case last < ema:
		return Sell
	default:
		return Hold
	}
}
