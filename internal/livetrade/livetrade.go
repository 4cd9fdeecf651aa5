// Package livetrade runs the periodic trade cycle: for every active
// watchlist symbol it feeds recent candles to the consensus engine and
// turns BUY/SELL decisions into market orders and position records.
package livetrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/exchange"
	"github.com/skyrockethq/skyrocket-trader/internal/journal"
	"github.com/skyrockethq/skyrocket-trader/internal/notifier"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/strategy"
	"github.com/skyrockethq/skyrocket-trader/internal/utils"
)

// recentWindow is how many candles are handed to the decision engine,
// matching the backtester's lookback cap plus the current bar.
const recentWindow = 101

type Runner struct {
	storage   db.Storage
	broker    exchange.Exchange
	notifier  notifier.Notifier
	timeframe string
	quantity  float64

	// Per-symbol locks so overlapping cycles cannot double-trade a symbol.
	mu      sync.Mutex
	symLock map[string]*sync.Mutex
}

func NewRunner(storage db.Storage, broker exchange.Exchange, n notifier.Notifier, timeframe string, quantity float64) *Runner {
	return &Runner{
		storage:   storage,
		broker:    broker,
		notifier:  n,
		timeframe: timeframe,
		quantity:  quantity,
		symLock:   make(map[string]*sync.Mutex),
	}
}

func (r *Runner) lockFor(symbol string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.symLock[symbol]
	if !ok {
		l = &sync.Mutex{}
		r.symLock[symbol] = l
	}
	return l
}

// RunCycle evaluates every active watchlist symbol once. A failing symbol
// does not stop the others; their errors come back joined.
func (r *Runner) RunCycle(ctx context.Context) error {
	global, err := r.storage.Global(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if !global.TradingEnabled {
		utils.GetLogger().Printf("LiveTrade | Trading disabled, skipping cycle")
		return nil
	}

	watchlist, err := r.storage.ActiveWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}

	var errs []error
	for _, item := range watchlist {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.evaluateSymbol(ctx, item.Ticker); err != nil {
			utils.GetLogger().Printf("LiveTrade | %s cycle failed: %v", item.Ticker, err)
			errs = append(errs, fmt.Errorf("%s: %w", item.Ticker, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) evaluateSymbol(ctx context.Context, symbol string) error {
	lock := r.lockFor(symbol)
	lock.Lock()
	defer lock.Unlock()

	window, err := r.storage.GetRecentCandles(ctx, symbol, r.timeframe, recentWindow)
	if err != nil {
		return fmt.Errorf("loading candles: %w", err)
	}
	if len(window) < strategy.MinWindow {
		utils.GetLogger().Printf("LiveTrade | %s has only %d candles, skipping", symbol, len(window))
		return nil
	}

	decision := strategy.Decide(window)
	open, err := r.storage.FindOpen(ctx, symbol)
	if err != nil {
		return fmt.Errorf("checking open position: %w", err)
	}

	switch {
	case decision == strategy.Buy && open == nil:
		return r.enter(ctx, symbol)
	case decision == strategy.Sell && open != nil:
		return r.exit(ctx, open)
	default:
		return nil
	}
}

func (r *Runner) enter(ctx context.Context, symbol string) error {
	fill, err := r.broker.SubmitMarketOrder(ctx, symbol, exchange.SideBuy, r.quantity)
	if err != nil {
		return fmt.Errorf("submitting buy order: %w", err)
	}

	if fill.Price == 0 {
		// The broker accepted the order but reported no executed price.
		// Record the degraded entry rather than guessing one.
		utils.GetLogger().Printf("LiveTrade | %s buy filled with zero price (order %s)", symbol, fill.OrderID)
		r.journal(ctx, "order", "buy_filled_zero_price", map[string]any{
			"symbol": symbol, "order_id": fill.OrderID,
		})
	}

	pos := position.Open(symbol, fill.Quantity, fill.Price, fill.Timestamp)
	if pos.Quantity == 0 {
		pos.Quantity = r.quantity
	}
	if err := r.storage.Create(ctx, pos); err != nil {
		return fmt.Errorf("recording position: %w", err)
	}

	utils.GetLogger().Printf("LiveTrade | Opened %s x%.4f at %.4f (order %s)", symbol, pos.Quantity, pos.EntryPrice, fill.OrderID)
	r.journal(ctx, "order", "position_opened", map[string]any{
		"symbol": symbol, "order_id": fill.OrderID,
		"quantity": pos.Quantity, "entry_price": pos.EntryPrice,
	})
	r.notifier.SendWithRetry(fmt.Sprintf("BUY %s x%.4f at %.4f", symbol, pos.Quantity, pos.EntryPrice))
	return nil
}

func (r *Runner) exit(ctx context.Context, pos *position.Position) error {
	fill, err := r.broker.SubmitMarketOrder(ctx, pos.Symbol, exchange.SideSell, pos.Quantity)
	if err != nil {
		return fmt.Errorf("submitting sell order: %w", err)
	}

	exitTime := fill.Timestamp
	if exitTime.IsZero() {
		exitTime = time.Now().UTC()
	}
	if err := pos.Close(fill.Price, exitTime, position.ExitSignal); err != nil {
		return err
	}
	if err := r.storage.Close(ctx, pos); err != nil {
		return fmt.Errorf("recording close: %w", err)
	}

	utils.GetLogger().Printf("LiveTrade | Closed %s at %.4f, pnl %.4f (%.2f%%)", pos.Symbol, pos.ExitPrice, pos.PnL, pos.PnLPercent)
	r.journal(ctx, "order", "position_closed", map[string]any{
		"symbol": pos.Symbol, "order_id": fill.OrderID,
		"exit_price": pos.ExitPrice, "pnl": pos.PnL, "pnl_percent": pos.PnLPercent,
	})
	r.notifier.SendWithRetry(fmt.Sprintf("SELL %s at %.4f, pnl %.2f%%", pos.Symbol, pos.ExitPrice, pos.PnLPercent))
	return nil
}

func (r *Runner) journal(ctx context.Context, eventType, description string, data map[string]any) {
	err := r.storage.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	})
	if err != nil {
		utils.GetLogger().Printf("LiveTrade | Failed to journal %s: %v", description, err)
	}
}
