// Package tfutils
package tfutils

import (
	"fmt"
	"time"
)

var timeframeDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IsValidTimeframe reports whether the timeframe label is supported.
func IsValidTimeframe(timeframe string) bool {
	_, ok := timeframeDurations[timeframe]
	return ok
}

// GetTimeframeDuration returns the bucket duration for a timeframe label,
// or 0 for an unknown label.
func GetTimeframeDuration(timeframe string) time.Duration {
	return timeframeDurations[timeframe]
}

// GetSupportedTimeframes returns the supported timeframe labels.
func GetSupportedTimeframes() []string {
	out := make([]string, 0, len(timeframeDurations))
	for timeframe := range timeframeDurations {
		out = append(out, timeframe)
	}
	return out
}

// ParseTimeframe validates a timeframe label and returns its duration.
func ParseTimeframe(timeframe string) (time.Duration, error) {
	d, ok := timeframeDurations[timeframe]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	return d, nil
}
