package indicator

import (
	"errors"
	"fmt"
)

// LastEMA computes the exponential moving average of the last price with
// smoothing factor 2/(period+1), seeded from the first value. No warm-up
// bias correction is applied.
func LastEMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, fmt.Errorf("need at least %d prices, got %d", period, len(prices))
	}

	k := 2.0 / float64(period+1)
	ema := prices[0]
	for i := 1; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
	}
	return ema, nil
}
