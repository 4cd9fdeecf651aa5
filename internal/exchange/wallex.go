package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	wallex "github.com/wallexchange/wallex-go"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/notifier"
	"github.com/skyrockethq/skyrocket-trader/internal/tfutils"
	"github.com/skyrockethq/skyrocket-trader/internal/utils"
)

type WallexExchange struct {
	client   *wallex.Client
	notifier notifier.Notifier
}

func NewWallexExchange(apiKey string, n notifier.Notifier) Exchange {
	return &WallexExchange{
		client:   wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		notifier: n,
	}
}

func (w *WallexExchange) Name() string {
	return "wallex"
}

// retry wraps a function with retry logic for transient errors, using
// exponential backoff and error logging.
func retry(attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	for i := 1; i <= attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		utils.GetLogger().Printf("Exchange | Wallex retry attempt %d/%d failed: %v. Backing off for %v", i, attempts, err, backoff)
		time.Sleep(backoff)
		if backoff < 5*time.Minute {
			backoff *= 2
			if backoff > 5*time.Minute {
				backoff = 5 * time.Minute
			}
		}
	}
	return errors.New("all retry attempts failed")
}

func (w *WallexExchange) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	normalizedTimeframe := NormalizedTimeframe(timeframe)
	normalizedSymbol := NormalizeSymbol(symbol)

	var wallexCandles []*wallex.Candle

	select {
	case <-ctx.Done():
		utils.GetLogger().Printf("Exchange | %s FetchCandles timeout", w.Name())
		return nil, ctx.Err()

	default:
		err := retry(3, 2*time.Second, func() error {
			var err error
			wallexCandles, err = w.client.Candles(normalizedSymbol, normalizedTimeframe, start, end)
			if err != nil {
				return fmt.Errorf("fetching candles: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("FetchCandles failed: %w", err)
		}
	}

	var candles []candle.Candle
	for _, wc := range wallexCandles {
		open, _ := strconv.ParseFloat(string(wc.Open), 64)
		high, _ := strconv.ParseFloat(string(wc.High), 64)
		low, _ := strconv.ParseFloat(string(wc.Low), 64)
		close, _ := strconv.ParseFloat(string(wc.Close), 64)
		volume, _ := strconv.ParseFloat(string(wc.Volume), 64)

		c := candle.Candle{
			Timestamp: wc.Timestamp.UTC().Truncate(time.Minute),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    w.Name(),
		}

		// Skip invalid candles rather than poisoning the window.
		if err := c.Validate(); err != nil {
			continue
		}

		candles = append(candles, c)
	}

	return candles, nil
}

// FetchLatestCandles fetches the most recent candles for a symbol and timeframe.
func (w *WallexExchange) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	end := time.Now().UTC()
	duration := tfutils.GetTimeframeDuration(timeframe)
	if duration == 0 {
		return nil, fmt.Errorf("invalid timeframe: %s", timeframe)
	}

	start := end.Add(-duration * time.Duration(count))

	return w.FetchCandles(ctx, symbol, timeframe, start, end)
}

func (w *WallexExchange) SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	select {
	case <-ctx.Done():
		utils.GetLogger().Printf("Exchange | %s SubmitMarketOrder timeout", w.Name())
		return Fill{}, ctx.Err()

	default:
		qty := strconv.FormatFloat(quantity, 'f', 8, 64)
		normalizedSymbol := NormalizeSymbol(symbol)

		params := &wallex.OrderParams{
			Symbol:   normalizedSymbol,
			Type:     "MARKET",
			Side:     string(side),
			Quantity: wallex.Number(qty),
		}
		resp, err := w.client.PlaceOrder(params)
		if err != nil {
			msg := fmt.Sprintf("Market order failed: %s %s x%s: %v", side, symbol, qty, err)
			w.notifier.SendWithRetry(msg)
			return Fill{}, fmt.Errorf("placing market order: %w", err)
		}

		return Fill{
			OrderID:   resp.ClientOrderID,
			Symbol:    symbol,
			Side:      side,
			Quantity:  float64Ptr(resp.ExecutedQty),
			Price:     float64Ptr(resp.ExecutedPrice),
			Status:    strings.ToUpper(resp.Status),
			Timestamp: resp.CreatedAt.UTC(),
		}, nil
	}
}

// Helper to safely dereference *wallex.Number
func float64Ptr(n *wallex.Number) float64 {
	if n == nil {
		return 0
	}
	out, _ := strconv.ParseFloat(string(*n), 64)
	return out
}
