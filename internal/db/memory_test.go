package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/journal"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

var _ Storage = (*MemoryStorage)(nil)
var _ Storage = (*Postgres)(nil)

func testCandles(n int, symbol string) []candle.Candle {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	for i := range out {
		price := 100.0 + float64(i)
		out[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 1000, Symbol: symbol, Timeframe: "30m", Source: "test",
		}
	}
	return out
}

func TestMemoryCandles(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	series := testCandles(10, "AAPL")
	require.NoError(t, m.SaveCandles(ctx, series))

	t.Run("range query ascending", func(t *testing.T) {
		got, err := m.GetCandles(ctx, "AAPL", "30m", series[2].Timestamp, series[7].Timestamp)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, series[2].Timestamp, got[0].Timestamp)
		assert.Equal(t, series[6].Timestamp, got[4].Timestamp)
	})

	t.Run("recent returns last n ascending", func(t *testing.T) {
		got, err := m.GetRecentCandles(ctx, "AAPL", "30m", 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, series[7].Timestamp, got[0].Timestamp)
		assert.Equal(t, series[9].Timestamp, got[2].Timestamp)
	})

	t.Run("latest", func(t *testing.T) {
		got, err := m.GetLatestCandle(ctx, "AAPL", "30m")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, series[9].Timestamp, got.Timestamp)
	})

	t.Run("unknown symbol empty", func(t *testing.T) {
		got, err := m.GetRecentCandles(ctx, "MSFT", "30m", 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("upsert replaces same key", func(t *testing.T) {
		updated := series[0]
		updated.Close = 42
		require.NoError(t, m.SaveCandles(ctx, []candle.Candle{updated}))
		got, err := m.GetCandles(ctx, "AAPL", "30m", series[0].Timestamp, series[1].Timestamp)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 42.0, got[0].Close)
	})

	t.Run("invalid candle rejected", func(t *testing.T) {
		bad := series[0]
		bad.High = bad.Low - 1
		assert.Error(t, m.SaveCandles(ctx, []candle.Candle{bad}))
	})
}

func TestMemoryPositions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	entry := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	pos := position.Open("AAPL", 1, 100, entry)
	require.NoError(t, m.Create(ctx, pos))
	assert.NotZero(t, pos.ID)

	t.Run("second open position for symbol rejected", func(t *testing.T) {
		dup := position.Open("AAPL", 1, 101, entry.Add(time.Hour))
		assert.Error(t, m.Create(ctx, dup))
	})

	t.Run("find open", func(t *testing.T) {
		found, err := m.FindOpen(ctx, "AAPL")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, pos.ID, found.ID)

		none, err := m.FindOpen(ctx, "MSFT")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("close and list", func(t *testing.T) {
		require.NoError(t, pos.Close(110, entry.Add(4*time.Hour), position.ExitSignal))
		require.NoError(t, m.Close(ctx, pos))

		open, err := m.ListOpen(ctx)
		require.NoError(t, err)
		assert.Empty(t, open)

		closed, err := m.ListClosed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, closed, 1)
		assert.Equal(t, position.ExitSignal, closed[0].ExitReason)

		// Symbol is free for a new entry once flat.
		again := position.Open("AAPL", 1, 111, entry.Add(5*time.Hour))
		assert.NoError(t, m.Create(ctx, again))
	})

	t.Run("closing a closed position fails", func(t *testing.T) {
		assert.Error(t, m.Close(ctx, pos))
	})
}

func TestMemorySettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	g, err := m.Global(ctx)
	require.NoError(t, err)
	assert.False(t, g.TradingEnabled)
	assert.Equal(t, 2.0, g.AllocationPct)

	g.TradingEnabled = true
	g.AllocationPct = 5
	require.NoError(t, m.UpdateGlobal(ctx, g))

	got, err := m.Global(ctx)
	require.NoError(t, err)
	assert.True(t, got.TradingEnabled)
	assert.Equal(t, 5.0, got.AllocationPct)
}

func TestMemoryWatchlist(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, item := range []settings.WatchlistItem{
		{Ticker: "MSFT", CompanyName: "Microsoft", Active: true},
		{Ticker: "AAPL", CompanyName: "Apple", Active: true},
		{Ticker: "TSLA", CompanyName: "Tesla", Active: false},
	} {
		it := item
		require.NoError(t, m.AddWatchlistItem(ctx, &it))
		assert.NotZero(t, it.ID)
	}

	all, err := m.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AAPL", all[0].Ticker)

	active, err := m.ActiveWatchlist(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, item := range active {
		assert.True(t, item.Active)
	}

	// Re-adding a ticker updates in place.
	again := settings.WatchlistItem{Ticker: "TSLA", CompanyName: "Tesla", Active: true}
	require.NoError(t, m.AddWatchlistItem(ctx, &again))
	active, err = m.ActiveWatchlist(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.LogEvent(ctx, journal.Event{
			Time: base.Add(time.Duration(i) * time.Hour),
			Type: "order", Description: "test",
			Data: map[string]any{"i": i},
		}))
	}
	require.NoError(t, m.LogEvent(ctx, journal.Event{Time: base, Type: "error", Description: "boom"}))

	orders, err := m.GetEvents(ctx, "order", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	errs, err := m.GetEvents(ctx, "error", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].Description)
}
