package strategy

import "github.com/skyrockethq/skyrocket-trader/internal/candle"

// MinWindow is the smallest window Decide will evaluate. It is the strictest
// voter's floor; shorter windows resolve to Hold without invoking any voter.
const MinWindow = 50

// voters in fixed evaluation order. The order cannot change the outcome with
// three ternary voters, but it keeps traces reproducible for identical input.
var voters = []func([]candle.Candle) Decision{Momentum, Trend, Breakout}

// Decide fans the window through the three voters and resolves a single
// decision by majority: two or more Buy votes win, two or more Sell votes
// win, anything else is Hold. Live trading and backtesting both call this
// and nothing else.
func Decide(window []candle.Candle) Decision {
	if len(window) < MinWindow {
		return Hold
	}

	var buys, sells int
	for _, vote := range voters {
		switch vote(window) {
		case Buy:
			buys++
		case Sell:
			sells++
		}
	}

	switch {
	case buys >= 2:
		return Buy
	case sells >= 2:
		return Sell
	default:
		return Hold
	}
}
