package livetrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/exchange"
	"github.com/skyrockethq/skyrocket-trader/internal/journal"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/sentiment"
	"github.com/skyrockethq/skyrocket-trader/internal/utils"
)

// sentimentThreshold is deliberately extreme: the headline trader only
// acts on near-certain classifications.
const sentimentThreshold = 0.999

// SentimentTrader trades on news headlines, independently of the
// consensus engine. Entries are sized from a cash pool and the allocation
// percentage in settings; profit and loss targets are journaled with the
// entry so the exit levels survive restarts.
type SentimentTrader struct {
	storage   db.Storage
	broker    exchange.Exchange
	analyzer  sentiment.Analyzer
	news      sentiment.HeadlineSource
	timeframe string
	cash      float64
}

func NewSentimentTrader(storage db.Storage, broker exchange.Exchange, analyzer sentiment.Analyzer, news sentiment.HeadlineSource, timeframe string, cash float64) *SentimentTrader {
	return &SentimentTrader{
		storage:   storage,
		broker:    broker,
		analyzer:  analyzer,
		news:      news,
		timeframe: timeframe,
		cash:      cash,
	}
}

// RunCycle scores headlines for every active watchlist symbol and trades
// on near-certain sentiment.
func (s *SentimentTrader) RunCycle(ctx context.Context) error {
	global, err := s.storage.Global(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if !global.TradingEnabled {
		return nil
	}

	watchlist, err := s.storage.ActiveWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}

	var errs []error
	for _, item := range watchlist {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.evaluateSymbol(ctx, item.Ticker, global.AllocationPct, global.TakeProfitPct, global.StopLossPct); err != nil {
			utils.GetLogger().Printf("Sentiment | %s cycle failed: %v", item.Ticker, err)
			errs = append(errs, fmt.Errorf("%s: %w", item.Ticker, err))
		}
	}
	return errors.Join(errs...)
}

func (s *SentimentTrader) evaluateSymbol(ctx context.Context, symbol string, allocationPct, takeProfitPct, stopLossPct float64) error {
	headlines, err := s.news.Headlines(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetching headlines: %w", err)
	}
	if len(headlines) == 0 {
		return nil
	}

	verdict := s.classify(ctx, symbol, headlines)

	open, err := s.storage.FindOpen(ctx, symbol)
	if err != nil {
		return fmt.Errorf("checking open position: %w", err)
	}

	switch {
	case verdict.Label == sentiment.LabelPositive && verdict.Score > sentimentThreshold && open == nil:
		return s.enter(ctx, symbol, verdict, allocationPct, takeProfitPct, stopLossPct)
	case verdict.Label == sentiment.LabelNegative && verdict.Score > sentimentThreshold && open != nil:
		return s.exit(ctx, open, verdict)
	default:
		return nil
	}
}

// classify scores each headline and keeps the most confident non-neutral
// verdict. Model failures degrade to neutral instead of failing the symbol.
func (s *SentimentTrader) classify(ctx context.Context, symbol string, headlines []string) sentiment.Sentiment {
	best := sentiment.Neutral()
	for _, headline := range headlines {
		verdict, err := s.analyzer.Estimate(ctx, headline)
		if err != nil {
			utils.GetLogger().Printf("Sentiment | Classification failed for %s: %v", symbol, err)
			continue
		}
		if verdict.Label != sentiment.LabelNeutral && verdict.Score > best.Score {
			best = verdict
		}
	}
	return best
}

func (s *SentimentTrader) enter(ctx context.Context, symbol string, verdict sentiment.Sentiment, allocationPct, takeProfitPct, stopLossPct float64) error {
	latest, err := s.storage.GetLatestCandle(ctx, symbol, s.timeframe)
	if err != nil {
		return fmt.Errorf("loading latest candle: %w", err)
	}
	if latest == nil || latest.Close <= 0 {
		return fmt.Errorf("no price available for %s", symbol)
	}

	quantity := s.cash * allocationPct / 100 / latest.Close
	if quantity <= 0 {
		return nil
	}

	fill, err := s.broker.SubmitMarketOrder(ctx, symbol, exchange.SideBuy, quantity)
	if err != nil {
		return fmt.Errorf("submitting buy order: %w", err)
	}

	entryPrice := fill.Price
	if entryPrice == 0 {
		entryPrice = latest.Close
	}
	pos := position.Open(symbol, fill.Quantity, entryPrice, fill.Timestamp)
	if pos.Quantity == 0 {
		pos.Quantity = quantity
	}
	if err := s.storage.Create(ctx, pos); err != nil {
		return fmt.Errorf("recording position: %w", err)
	}

	takeProfit := entryPrice * (1 + takeProfitPct/100)
	stopLoss := entryPrice * (1 - stopLossPct/100)

	utils.GetLogger().Printf("Sentiment | Opened %s x%.4f at %.4f (score %.4f, tp %.4f, sl %.4f)",
		symbol, pos.Quantity, entryPrice, verdict.Score, takeProfit, stopLoss)
	return s.storage.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        "sentiment",
		Description: "position_opened",
		Data: map[string]any{
			"symbol": symbol, "order_id": fill.OrderID,
			"score": verdict.Score, "quantity": pos.Quantity,
			"entry_price": entryPrice, "take_profit": takeProfit, "stop_loss": stopLoss,
		},
	})
}

func (s *SentimentTrader) exit(ctx context.Context, pos *position.Position, verdict sentiment.Sentiment) error {
	fill, err := s.broker.SubmitMarketOrder(ctx, pos.Symbol, exchange.SideSell, pos.Quantity)
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
	if err := s.storage.Close(ctx, pos); err != nil {
		return fmt.Errorf("recording close: %w", err)
	}

	utils.GetLogger().Printf("Sentiment | Closed %s at %.4f on negative news (score %.4f)", pos.Symbol, pos.ExitPrice, verdict.Score)
	return s.storage.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        "sentiment",
		Description: "position_closed",
		Data: map[string]any{
			"symbol": pos.Symbol, "order_id": fill.OrderID,
			"score": verdict.Score, "exit_price": pos.ExitPrice, "pnl": pos.PnL,
		},
	})
}
