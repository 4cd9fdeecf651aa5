package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastEMA(t *testing.T) {
	tests := []struct {
		name        string
		prices      []float64
		period      int
		expected    float64
		expectError bool
	}{
		{
			name:     "seeded from first value",
			prices:   []float64{1, 2, 3},
			period:   2,
			expected: 23.0 / 9.0, // k=2/3: 1 -> 5/3 -> 23/9
		},
		{
			name:     "flat series converges to the level",
			prices:   []float64{7, 7, 7, 7, 7},
			period:   3,
			expected: 7,
		},
		{
			name:     "single price with period 1 tracks the price",
			prices:   []float64{42},
			period:   1,
			expected: 42,
		},
		{
			name:        "insufficient data",
			prices:      []float64{1, 2},
			period:      3,
			expectError: true,
		},
		{
			name:        "invalid period",
			prices:      []float64{1, 2, 3},
			period:      -1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LastEMA(tt.prices, tt.period)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestLastEMALagsRisingSeries(t *testing.T) {
	// In a monotonically rising series the EMA trails the last price.
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	ema, err := LastEMA(prices, 50)
	assert.NoError(t, err)
	assert.Less(t, ema, prices[len(prices)-1])
}
