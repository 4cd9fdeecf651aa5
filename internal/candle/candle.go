// Package candle
package candle

import (
	"context"
	"errors"
	"sort"
	"time"
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	if c.Timeframe == "" {
		return errors.New("candle timeframe cannot be empty")
	}
	return nil
}

// SameDay reports whether two candles fall on the same UTC calendar date.
// The day-trading exit rule keys off this, not off a fixed session clock.
func SameDay(a, b Candle) bool {
	ay, am, ad := a.Timestamp.UTC().Date()
	by, bm, bd := b.Timestamp.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// SortAscending sorts candles in place by timestamp, oldest first.
// All indicator math assumes this ordering.
func SortAscending(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// Closes extracts the close prices of a candle window, preserving order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high prices of a candle window, preserving order.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low prices of a candle window, preserving order.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Storage is the candle persistence collaborator.
type Storage interface {
	SaveCandles(ctx context.Context, candles []Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error)
	// GetRecentCandles returns up to limit most recent candles in ascending order.
	GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	GetLatestCandle(ctx context.Context, symbol, timeframe string) (*Candle, error)
}
