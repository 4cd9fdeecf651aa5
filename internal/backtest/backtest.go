// Package backtest replays historical candles through the consensus engine
// and simulates day-trading execution: long-only, one position at a time,
// entries on BUY, exits on SELL or at the last bar of each trading day.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/strategy"
)

const (
	// InitialBalance is the simulated starting equity for every run.
	InitialBalance = 10000.0

	// minCandles is the floor below which a run is refused outright.
	minCandles = 50

	// warmupBars are skipped at the start so early decisions are not made
	// on a nearly empty window.
	warmupBars = 30

	// maxLookback caps the window handed to the decision engine.
	maxLookback = 100
)

// InsufficientDataError reports a symbol whose history is too short to
// simulate. Callers surface it as a client error, not a system fault.
type InsufficientDataError struct {
	Symbol string
	Count  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: have %d candles, need at least %d", e.Symbol, e.Count, minCandles)
}

// Trade is one completed round trip in the simulation.
type Trade struct {
	Symbol       string              `json:"symbol"`
	EntryTime    time.Time           `json:"entry_time"`
	EntryPrice   float64             `json:"entry_price"`
	ExitTime     time.Time           `json:"exit_time"`
	ExitPrice    float64             `json:"exit_price"`
	ExitReason   position.ExitReason `json:"exit_reason"`
	PnLAmount    float64             `json:"pnl_amount"`
	PnLPercent   float64             `json:"pnl_percent"`
	BalanceAfter float64             `json:"balance_after"`
}

// ChartPoint is one close price for the result's price series.
type ChartPoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Summary aggregates a run for dashboards.
type Summary struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"`
}

// Result is the full output of a single-symbol run.
type Result struct {
	Symbol  string       `json:"symbol"`
	Summary Summary      `json:"summary"`
	Trades  []Trade      `json:"trades"`
	Chart   []ChartPoint `json:"chart"`
}

// Run simulates the strategy over the given history. Candles are sorted
// ascending in place before the replay. The whole account balance is
// committed to each trade so returns compound.
func Run(candles []candle.Candle, symbol string) (*Result, error) {
	if len(candles) < minCandles {
		return nil, &InsufficientDataError{Symbol: symbol, Count: len(candles)}
	}
	candle.SortAscending(candles)

	chart := make([]ChartPoint, 0, len(candles))
	for _, c := range candles {
		chart = append(chart, ChartPoint{Time: c.Timestamp, Price: c.Close})
	}

	balance := InitialBalance
	var open *position.Position
	var trades []Trade
	wins := 0

	for i := warmupBars; i < len(candles); i++ {
		lo := i - maxLookback
		if lo < 0 {
			lo = 0
		}
		decision := strategy.Decide(candles[lo : i+1])
		cur := candles[i]
		eod := i == len(candles)-1 || !candle.SameDay(cur, candles[i+1])

		if open == nil {
			// Never open into a day boundary; the position could not be
			// flattened before the session ends.
			if decision == strategy.Buy && !eod {
				open = position.Open(symbol, 1, cur.Close, cur.Timestamp)
			}
			continue
		}

		if decision == strategy.Sell || eod {
			// A sell that lands on a day boundary is still a day-end flatten.
			reason := position.ExitSignal
			if eod {
				reason = position.ExitEOD
			}
			pct := (cur.Close - open.EntryPrice) / open.EntryPrice
			amount := balance * pct
			balance += amount
			if amount > 0 {
				wins++
			}
			trades = append(trades, Trade{
				Symbol:       symbol,
				EntryTime:    open.EntryTime,
				EntryPrice:   open.EntryPrice,
				ExitTime:     cur.Timestamp,
				ExitPrice:    cur.Close,
				ExitReason:   reason,
				PnLAmount:    round2(amount),
				PnLPercent:   round2(pct * 100),
				BalanceAfter: round2(balance),
			})
			open = nil
		}
	}

	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(wins) / float64(len(trades)) * 100
	}
	return &Result{
		Symbol: symbol,
		Summary: Summary{
			InitialBalance: InitialBalance,
			FinalBalance:   round2(balance),
			TotalReturnPct: round2((balance - InitialBalance) / InitialBalance * 100),
			TotalTrades:    len(trades),
			WinRate:        round2(winRate),
		},
		Trades: trades,
		Chart:  chart,
	}, nil
}

// RunMany backtests several symbols concurrently. Symbols that fail do not
// abort the rest; their errors come back joined alongside the successes.
func RunMany(ctx context.Context, series map[string][]candle.Candle) (map[string]*Result, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]*Result, len(series))
		errs    []error
	)

	for symbol, candles := range series {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		wg.Add(1)
		go func(symbol string, candles []candle.Candle) {
			defer wg.Done()
			res, err := Run(candles, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("backtest %s: %w", symbol, err))
				return
			}
			results[symbol] = res
		}(symbol, candles)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
