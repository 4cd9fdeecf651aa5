// Package scheduler drives the live loop: refresh market data for the
// watchlist, then run the trade cycles, on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/livetrade"
	"github.com/skyrockethq/skyrocket-trader/internal/marketdata"
	"github.com/skyrockethq/skyrocket-trader/internal/utils"
)

type Scheduler struct {
	storage   db.Storage
	fetcher   *marketdata.Fetcher
	consensus *livetrade.Runner
	sentiment *livetrade.SentimentTrader

	timeframe string
	limit     int
	interval  time.Duration
}

func New(storage db.Storage, fetcher *marketdata.Fetcher, consensus *livetrade.Runner, sentiment *livetrade.SentimentTrader, timeframe string, limit int, interval time.Duration) *Scheduler {
	return &Scheduler{
		storage:   storage,
		fetcher:   fetcher,
		consensus: consensus,
		sentiment: sentiment,
		timeframe: timeframe,
		limit:     limit,
		interval:  interval,
	}
}

// Run blocks until the context is cancelled. The first cycle starts
// immediately instead of waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	utils.GetLogger().Printf("Scheduler | Starting with interval %v", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.GetLogger().Printf("Scheduler | Stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	watchlist, err := s.storage.ActiveWatchlist(ctx)
	if err != nil {
		utils.GetLogger().Printf("Scheduler | Failed to load watchlist: %v", err)
		return
	}
	if len(watchlist) == 0 {
		utils.GetLogger().Printf("Scheduler | Watchlist empty, nothing to do")
		return
	}

	s.fetcher.RefreshWatchlist(ctx, watchlist, s.timeframe, s.limit)

	if err := s.consensus.RunCycle(ctx); err != nil {
		utils.GetLogger().Printf("Scheduler | Trade cycle finished with errors: %v", err)
	}
	if s.sentiment != nil {
		if err := s.sentiment.RunCycle(ctx); err != nil {
			utils.GetLogger().Printf("Scheduler | Sentiment cycle finished with errors: %v", err)
		}
	}
}
