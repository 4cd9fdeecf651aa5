// Package position
package position

import (
	"context"
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

type ExitReason string

const (
	ExitSignal ExitReason = "SIGNAL"
	ExitEOD    ExitReason = "EOD"
)

// Position is one long entry and its eventual exit. At most one open
// position may exist per symbol; the Store enforces that invariant.
type Position struct {
	ID         int64      `json:"id"`
	Symbol     string     `json:"symbol"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	EntryTime  time.Time  `json:"entry_time"`
	Status     Status     `json:"status"`
	ExitPrice  float64    `json:"exit_price,omitempty"`
	ExitTime   time.Time  `json:"exit_time,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	PnL        float64    `json:"pnl,omitempty"`
	PnLPercent float64    `json:"pnl_percent,omitempty"`
}

// Open returns a new open position entered at the given price and time.
func Open(symbol string, quantity, entryPrice float64, entryTime time.Time) *Position {
	return &Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
		Status:     StatusOpen,
	}
}

// Close marks the position closed at the given price and records realized
// PnL. PnLPercent is in percent units; PnL is quantity-scaled. A zero entry
// price (degraded broker fill) yields zero PnL rather than an Inf blowup.
func (p *Position) Close(exitPrice float64, exitTime time.Time, reason ExitReason) error {
	if p.Status != StatusOpen {
		return fmt.Errorf("position %d for %s is not open", p.ID, p.Symbol)
	}

	p.Status = StatusClosed
	p.ExitPrice = exitPrice
	p.ExitTime = exitTime
	p.ExitReason = reason
	if p.EntryPrice > 0 {
		p.PnLPercent = (exitPrice - p.EntryPrice) / p.EntryPrice * 100
		p.PnL = (exitPrice - p.EntryPrice) * p.Quantity
	}
	return nil
}

// IsOpen reports whether the position is still live.
func (p *Position) IsOpen() bool { return p.Status == StatusOpen }

// Store is the position persistence collaborator.
type Store interface {
	// FindOpen returns the open position for a symbol, or nil when flat.
	FindOpen(ctx context.Context, symbol string) (*Position, error)
	// Create persists a new open position. It fails when the symbol already
	// has one open: that is an invariant violation, not a soft conflict.
	Create(ctx context.Context, p *Position) error
	// Close persists a position that has been closed in memory.
	Close(ctx context.Context, p *Position) error
	ListOpen(ctx context.Context) ([]Position, error)
	ListClosed(ctx context.Context, limit int) ([]Position, error)
}
