// Package marketdata pulls OHLCV history from an external kline API and
// stores it through the candle storage so the decision engine and the
// backtester read from one place.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/exchange"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
	"github.com/skyrockethq/skyrocket-trader/internal/utils"
)

const sourceName = "marketdata"

// Fetcher downloads klines over HTTP and persists them as candles.
type Fetcher struct {
	client  *resty.Client
	storage candle.Storage
}

func NewFetcher(baseURL string, storage candle.Storage) *Fetcher {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(2 * time.Second)

	return &Fetcher{client: client, storage: storage}
}

// Fetch downloads up to limit klines for a symbol. The API returns rows of
// [openTime(ms), open, high, low, close, volume, ...] with numbers encoded
// as strings.
func (f *Fetcher) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   exchange.NormalizeSymbol(symbol),
			"interval": timeframe,
			"limit":    strconv.Itoa(limit),
		}).
		Get("/klines")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("kline API error %d for %s: %s", resp.StatusCode(), symbol, resp.String())
	}

	var rows [][]any
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse kline response for %s: %w", symbol, err)
	}

	candles := make([]candle.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		c := candle.Candle{
			Timestamp: time.UnixMilli(int64(toFloat(row[0]))).UTC(),
			Open:      toFloat(row[1]),
			High:      toFloat(row[2]),
			Low:       toFloat(row[3]),
			Close:     toFloat(row[4]),
			Volume:    toFloat(row[5]),
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    sourceName,
		}
		if err := c.Validate(); err != nil {
			utils.GetLogger().Printf("MarketData | Skipping invalid candle for %s at %s: %v", symbol, c.Timestamp, err)
			continue
		}
		candles = append(candles, c)
	}

	candle.SortAscending(candles)
	return candles, nil
}

// FetchAndStore downloads klines and upserts them into storage.
func (f *Fetcher) FetchAndStore(ctx context.Context, symbol, timeframe string, limit int) (int, error) {
	candles, err := f.Fetch(ctx, symbol, timeframe, limit)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, nil
	}
	if err := f.storage.SaveCandles(ctx, candles); err != nil {
		return 0, fmt.Errorf("failed to store candles for %s: %w", symbol, err)
	}
	return len(candles), nil
}

// RefreshWatchlist fetches fresh history for every active watchlist symbol.
// A failing symbol is logged and skipped so one bad ticker does not starve
// the rest.
func (f *Fetcher) RefreshWatchlist(ctx context.Context, items []settings.WatchlistItem, timeframe string, limit int) {
	for _, item := range items {
		if !item.Active {
			continue
		}
		n, err := f.FetchAndStore(ctx, item.Ticker, timeframe, limit)
		if err != nil {
			utils.GetLogger().Printf("MarketData | Refresh failed for %s: %v", item.Ticker, err)
			continue
		}
		utils.GetLogger().Printf("MarketData | Refreshed %d candles for %s %s", n, item.Ticker, timeframe)
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		out, _ := strconv.ParseFloat(val, 64)
		return out
	case json.Number:
		out, _ := val.Float64()
		return out
	default:
		return 0
	}
}
