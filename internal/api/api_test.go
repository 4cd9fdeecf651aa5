package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

func newTestHandler(t *testing.T) (*Handler, *db.MemoryStorage) {
	t.Helper()
	storage := db.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(storage, nil, logger, "30m"), storage
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(w, req)
	return w
}

func seedCandles(t *testing.T, storage db.Storage, symbol string, n int) {
	t.Helper()
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	for i := range out {
		price := 100.0
		out[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Open:      price, High: price + 0.2, Low: price - 0.2, Close: price,
			Volume: 1000, Symbol: symbol, Timeframe: "30m", Source: "test",
		}
	}
	require.NoError(t, storage.SaveCandles(context.Background(), out))
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doRequest(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "OK")
}

func TestRunBacktest(t *testing.T) {
	t.Run("insufficient data returns 400", func(t *testing.T) {
		h, storage := newTestHandler(t)
		seedCandles(t, storage, "AAPL", 10)

		w := doRequest(t, h, http.MethodGet, "/api/backtest/AAPL", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "insufficient data")
	})

	t.Run("ok", func(t *testing.T) {
		h, storage := newTestHandler(t)
		seedCandles(t, storage, "AAPL", 60)

		w := doRequest(t, h, http.MethodGet, "/api/backtest/aapl", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result struct {
			Symbol  string `json:"symbol"`
			Summary struct {
				InitialBalance float64 `json:"initial_balance"`
				TotalTrades    int     `json:"total_trades"`
			} `json:"summary"`
			Chart []any `json:"chart"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "AAPL", result.Symbol)
		assert.Equal(t, 10000.0, result.Summary.InitialBalance)
		assert.Len(t, result.Chart, 60)
	})
}

func TestTradesEndpoints(t *testing.T) {
	h, storage := newTestHandler(t)
	ctx := context.Background()

	open := position.Open("AAPL", 1, 100, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, storage.Create(ctx, open))

	closed := position.Open("MSFT", 1, 200, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, storage.Create(ctx, closed))
	require.NoError(t, closed.Close(210, time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC), position.ExitSignal))
	require.NoError(t, storage.Close(ctx, closed))

	t.Run("active", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/trades/active", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got []position.Position
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "AAPL", got[0].Symbol)
	})

	t.Run("history", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/trades/history", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got []position.Position
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "MSFT", got[0].Symbol)
	})

	t.Run("history rejects bad limit", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/trades/history?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		w := doRequest(t, h, http.MethodGet, "/api/trades/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 1.0, got["total_trades"])
		assert.Equal(t, 1.0, got["wins"])
		assert.Equal(t, 100.0, got["win_rate"])
		assert.Equal(t, 10.0, got["total_pnl"])

		// AAPL has no stored candles, so the open position is valued at
		// its entry price.
		assert.Equal(t, 1.0, got["open_positions"])
		assert.Equal(t, 100.0, got["open_value"])
	})
}

func TestSettingsEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got settings.Global
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.TradingEnabled)

	got.TradingEnabled = true
	got.AllocationPct = 5
	w = doRequest(t, h, http.MethodPut, "/api/settings", got)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.TradingEnabled)
	assert.Equal(t, 5.0, got.AllocationPct)

	t.Run("rejects out of range percentages", func(t *testing.T) {
		bad := settings.Global{AllocationPct: 150}
		w := doRequest(t, h, http.MethodPut, "/api/settings", bad)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWatchlistEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(t, h, http.MethodPost, "/api/watchlist", settings.WatchlistItem{
		Ticker: " aapl ", CompanyName: "Apple", Active: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created settings.WatchlistItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "AAPL", created.Ticker)
	assert.NotZero(t, created.ID)

	w = doRequest(t, h, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []settings.WatchlistItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "AAPL", items[0].Ticker)

	t.Run("rejects empty ticker", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, "/api/watchlist", settings.WatchlistItem{Ticker: "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
