// Package settings holds the DB-backed runtime knobs: the global risk
// parameters and the watchlist of symbols eligible for automated evaluation.
// The decision engine never reads these; they gate and size execution only.
package settings

import "context"

type Global struct {
	ID             int64   `json:"id"`
	AllocationPct  float64 `json:"max_trade_allocation_pct"`
	StopLossPct    float64 `json:"global_stop_loss_pct"`
	TakeProfitPct  float64 `json:"take_profit_pct"`
	TradingEnabled bool    `json:"is_trading_enabled"`
}

// DefaultGlobal mirrors the schema defaults: trading starts disabled.
func DefaultGlobal() Global {
	return Global{
		ID:             1,
		AllocationPct:  2.0,
		StopLossPct:    5.0,
		TakeProfitPct:  10.0,
		TradingEnabled: false,
	}
}

type WatchlistItem struct {
	ID          int64  `json:"id"`
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	Active      bool   `json:"is_active"`
}

// Store is the settings persistence collaborator.
type Store interface {
	Global(ctx context.Context) (Global, error)
	UpdateGlobal(ctx context.Context, g Global) error
	Watchlist(ctx context.Context) ([]WatchlistItem, error)
	ActiveWatchlist(ctx context.Context) ([]WatchlistItem, error)
	AddWatchlistItem(ctx context.Context, item *WatchlistItem) error
}
