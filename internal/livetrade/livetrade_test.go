package livetrade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/exchange"
	"github.com/skyrockethq/skyrocket-trader/internal/notifier"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

func seedCandles(t *testing.T, storage db.Storage, symbol string, n int, start, step float64) {
	t.Helper()
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	price := start
	for i := range out {
		out[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Open:      price, High: price + 0.2, Low: price - 0.2, Close: price,
			Volume: 1000, Symbol: symbol, Timeframe: "30m", Source: "test",
		}
		price += step
	}
	require.NoError(t, storage.SaveCandles(context.Background(), out))
}

func enableTrading(t *testing.T, storage db.Storage, symbols ...string) {
	t.Helper()
	ctx := context.Background()
	g, err := storage.Global(ctx)
	require.NoError(t, err)
	g.TradingEnabled = true
	require.NoError(t, storage.UpdateGlobal(ctx, g))
	for _, symbol := range symbols {
		item := settings.WatchlistItem{Ticker: symbol, Active: true}
		require.NoError(t, storage.AddWatchlistItem(ctx, &item))
	}
}

func TestRunCycleTradingDisabled(t *testing.T) {
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	seedCandles(t, storage, "AAPL", 60, 100, 1)

	item := settings.WatchlistItem{Ticker: "AAPL", Active: true}
	require.NoError(t, storage.AddWatchlistItem(context.Background(), &item))

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	require.NoError(t, r.RunCycle(context.Background()))
	assert.Empty(t, broker.Fills())
}

func TestRunCycleBuysOnConsensus(t *testing.T) {
	ctx := context.Background()
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	broker.SetFillPrice("AAPL", 150)
	seedCandles(t, storage, "AAPL", 60, 100, 1)
	enableTrading(t, storage, "AAPL")

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	require.NoError(t, r.RunCycle(ctx))

	fills := broker.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, exchange.SideBuy, fills[0].Side)
	assert.Equal(t, 1.0, fills[0].Quantity)

	open, err := storage.FindOpen(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, 150.0, open.EntryPrice)

	// A second cycle sees the open position and does not buy again.
	require.NoError(t, r.RunCycle(ctx))
	assert.Len(t, broker.Fills(), 1)
}

func TestRunCycleZeroFillPriceJournaled(t *testing.T) {
	ctx := context.Background()
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	seedCandles(t, storage, "AAPL", 60, 100, 1)
	enableTrading(t, storage, "AAPL")

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	require.NoError(t, r.RunCycle(ctx))

	open, err := storage.FindOpen(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Zero(t, open.EntryPrice)

	events, err := storage.GetEvents(ctx, "order",
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)

	var descriptions []string
	for _, e := range events {
		descriptions = append(descriptions, e.Description)
	}
	assert.Contains(t, descriptions, "buy_filled_zero_price")
	assert.Contains(t, descriptions, "position_opened")
}

func TestRunCycleSellsOpenPosition(t *testing.T) {
	ctx := context.Background()
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	broker.SetFillPrice("AAPL", 140)
	seedCandles(t, storage, "AAPL", 60, 200, -1)
	enableTrading(t, storage, "AAPL")

	pos := position.Open("AAPL", 2, 150, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, storage.Create(ctx, pos))

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	require.NoError(t, r.RunCycle(ctx))

	fills := broker.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, exchange.SideSell, fills[0].Side)
	assert.Equal(t, 2.0, fills[0].Quantity)

	open, err := storage.FindOpen(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, open)

	closed, err := storage.ListClosed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, position.ExitSignal, closed[0].ExitReason)
	assert.Equal(t, 140.0, closed[0].ExitPrice)
}

func TestRunCycleSellWithoutPositionDoesNothing(t *testing.T) {
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	seedCandles(t, storage, "AAPL", 60, 200, -1)
	enableTrading(t, storage, "AAPL")

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	require.NoError(t, r.RunCycle(context.Background()))
	assert.Empty(t, broker.Fills())
}

func TestRunCycleShortHistorySkipped(t *testing.T) {
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	seedCandles(t, storage, "AAPL", 40, 100, 1)
	enableTrading(t, storage, "AAPL")

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	require.NoError(t, r.RunCycle(context.Background()))
	assert.Empty(t, broker.Fills())
}

func TestRunCycleIsolatesFailingSymbol(t *testing.T) {
	ctx := context.Background()
	storage := db.NewMemory()
	broker := exchange.NewMockExchange()
	broker.SetFillPrice("MSFT", 300)
	broker.FailOrders("AAPL", errors.New("broker rejected"))
	seedCandles(t, storage, "AAPL", 60, 100, 1)
	seedCandles(t, storage, "MSFT", 60, 100, 1)
	enableTrading(t, storage, "AAPL", "MSFT")

	r := NewRunner(storage, broker, notifier.Noop{}, "30m", 1)
	err := r.RunCycle(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AAPL")

	// MSFT still traded despite the AAPL failure.
	open, err := storage.FindOpen(ctx, "MSFT")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, 300.0, open.EntryPrice)
}
