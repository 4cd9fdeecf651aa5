package strategy

import (
	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/indicator"
)

const breakoutPeriod = 20

// Breakout votes on the last close against the 20-bar high/low channel of the
// bars preceding it. The current bar is excluded from the channel.
func Breakout(candles []candle.Candle) Decision {
	if len(candles) < breakoutPeriod+1 {
		return Hold
	}

	high, low, err := indicator.PriorChannel(candle.Highs(candles), candle.Lows(candles), breakoutPeriod)
	if err != nil {
		return Hold
	}

	last := candles[len(candles)-1].Close
	switch {
	case last >= high:
		return Buy
	case last <= low:
		return Sell
	default:
		return Hold
	}
}
