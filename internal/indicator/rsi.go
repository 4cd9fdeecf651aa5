// Package indicator
package indicator

import (
	"errors"
	"fmt"
)

// epsilon stands in for a zero average loss so the RSI ratio stays defined.
const epsilon = 1e-10

// LastRSI computes the RSI of the most recent price using a simple rolling
// mean of the last `period` close-to-close deltas: gains are the positive
// deltas, losses the negated negative ones, RSI = 100 - 100/(1 + gain/loss).
func LastRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, fmt.Errorf("need at least %d prices, got %d", period+1, len(prices))
	}

	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += -change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		avgLoss = epsilon
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}
