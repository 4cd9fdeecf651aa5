package indicator

import (
	"errors"
	"fmt"
)

// PriorChannel returns the rolling max of highs and min of lows over the
// `period` bars immediately preceding the last one. The current bar is
// excluded so a breakout test against the result carries no look-ahead.
func PriorChannel(highs, lows []float64, period int) (high, low float64, err error) {
	if period <= 0 {
		return 0, 0, errors.New("period must be positive")
	}
	if len(highs) != len(lows) {
		return 0, 0, errors.New("highs and lows must have equal length")
	}
	if len(highs) < period+1 {
		return 0, 0, fmt.Errorf("need at least %d bars, got %d", period+1, len(highs))
	}

	start := len(highs) - 1 - period
	high, low = highs[start], lows[start]
	for i := start + 1; i < len(highs)-1; i++ {
		if highs[i] > high {
			high = highs[i]
		}
		if lows[i] < low {
			low = lows[i]
		}
	}
	return high, low, nil
}
