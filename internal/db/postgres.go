package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/journal"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(connStr string) (*Postgres, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Postgres{db: conn}, nil
}

// NewPostgresFromDB wraps an existing connection, mainly for tests.
func NewPostgresFromDB(conn *sql.DB) *Postgres {
	return &Postgres{db: conn}
}

func (p *Postgres) GetDB() *sql.DB {
	return p.db
}

// executeWithTransaction executes a function with proper transaction management.
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func (p *Postgres) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Postgres) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

// -------- candle.Storage --------

func (p *Postgres) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, timeframe, timestamp, source) DO UPDATE SET
				open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
				close=EXCLUDED.close, volume=EXCLUDED.volume
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, c := range candles {
			if _, err := stmt.ExecContext(ctx,
				c.Symbol, c.Timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Source); err != nil {
				return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
					i, c.Symbol, c.Timeframe, c.Timestamp, err)
			}
		}

		return nil
	})
}

func (p *Postgres) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC`,
		symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

func (p *Postgres) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2
		ORDER BY timestamp DESC
		LIMIT $3`,
		symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	// The query returns newest first; callers expect ascending order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func (p *Postgres) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2
		ORDER BY timestamp DESC
		LIMIT 1`,
		symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	return &candles[0], nil
}

func scanCandles(rows *sql.Rows) ([]candle.Candle, error) {
	var candles []candle.Candle
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// -------- position.Store --------

func (p *Postgres) FindOpen(ctx context.Context, symbol string) (*position.Position, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT id, symbol, quantity, entry_price, entry_time, status,
		       COALESCE(exit_price, 0), COALESCE(exit_time, to_timestamp(0)),
		       COALESCE(exit_reason, ''), COALESCE(pnl, 0), COALESCE(pnl_percent, 0)
		FROM positions
		WHERE symbol=$1 AND status='OPEN'
		LIMIT 1`,
		symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query open position: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	return &positions[0], nil
}

func (p *Postgres) Create(ctx context.Context, pos *position.Position) error {
	// The partial unique index on (symbol) WHERE status='OPEN' makes a
	// second open position for the same symbol fail loudly here.
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO positions (symbol, quantity, entry_price, entry_time, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			pos.Symbol, pos.Quantity, pos.EntryPrice, pos.EntryTime.UTC(), pos.Status).Scan(&pos.ID)
		if err != nil {
			return fmt.Errorf("failed to create position for %s: %w", pos.Symbol, err)
		}
		return nil
	})
}

func (p *Postgres) Close(ctx context.Context, pos *position.Position) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE positions
			SET status=$1, exit_price=$2, exit_time=$3, exit_reason=$4, pnl=$5, pnl_percent=$6
			WHERE id=$7 AND status='OPEN'`,
			pos.Status, pos.ExitPrice, pos.ExitTime.UTC(), pos.ExitReason, pos.PnL, pos.PnLPercent, pos.ID)
		if err != nil {
			return fmt.Errorf("failed to close position %d: %w", pos.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for position %d: %w", pos.ID, err)
		}
		if affected == 0 {
			return fmt.Errorf("position %d is not open", pos.ID)
		}
		return nil
	})
}

func (p *Postgres) ListOpen(ctx context.Context) ([]position.Position, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT id, symbol, quantity, entry_price, entry_time, status,
		       COALESCE(exit_price, 0), COALESCE(exit_time, to_timestamp(0)),
		       COALESCE(exit_reason, ''), COALESCE(pnl, 0), COALESCE(pnl_percent, 0)
		FROM positions
		WHERE status='OPEN'
		ORDER BY entry_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (p *Postgres) ListClosed(ctx context.Context, limit int) ([]position.Position, error) {
	// limit <= 0 means no cap.
	rows, err := p.queryWithTransaction(ctx, `
		SELECT id, symbol, quantity, entry_price, entry_time, status,
		       COALESCE(exit_price, 0), COALESCE(exit_time, to_timestamp(0)),
		       COALESCE(exit_reason, ''), COALESCE(pnl, 0), COALESCE(pnl_percent, 0)
		FROM positions
		WHERE status='CLOSED'
		ORDER BY exit_time DESC
		LIMIT CASE WHEN $1::bigint <= 0 THEN NULL ELSE $1::bigint END`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]position.Position, error) {
	var positions []position.Position
	for rows.Next() {
		var pos position.Position
		if err := rows.Scan(&pos.ID, &pos.Symbol, &pos.Quantity, &pos.EntryPrice, &pos.EntryTime,
			&pos.Status, &pos.ExitPrice, &pos.ExitTime, &pos.ExitReason, &pos.PnL, &pos.PnLPercent); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.EntryTime = pos.EntryTime.UTC()
		pos.ExitTime = pos.ExitTime.UTC()
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// -------- settings.Store --------

func (p *Postgres) Global(ctx context.Context) (settings.Global, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT id, max_trade_allocation_pct, global_stop_loss_pct, take_profit_pct, is_trading_enabled
		FROM settings
		WHERE id=1`)
	if err != nil {
		return settings.Global{}, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return settings.Global{}, fmt.Errorf("failed to read settings: %w", err)
		}
		return settings.DefaultGlobal(), nil
	}

	var g settings.Global
	if err := rows.Scan(&g.ID, &g.AllocationPct, &g.StopLossPct, &g.TakeProfitPct, &g.TradingEnabled); err != nil {
		return settings.Global{}, fmt.Errorf("failed to scan settings: %w", err)
	}
	return g, nil
}

func (p *Postgres) UpdateGlobal(ctx context.Context, g settings.Global) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (id, max_trade_allocation_pct, global_stop_loss_pct, take_profit_pct, is_trading_enabled)
			VALUES (1, $1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				max_trade_allocation_pct=EXCLUDED.max_trade_allocation_pct,
				global_stop_loss_pct=EXCLUDED.global_stop_loss_pct,
				take_profit_pct=EXCLUDED.take_profit_pct,
				is_trading_enabled=EXCLUDED.is_trading_enabled`,
			g.AllocationPct, g.StopLossPct, g.TakeProfitPct, g.TradingEnabled)
		if err != nil {
			return fmt.Errorf("failed to update settings: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Watchlist(ctx context.Context) ([]settings.WatchlistItem, error) {
	return p.queryWatchlist(ctx, `
		SELECT id, ticker, company_name, is_active
		FROM watchlist
		ORDER BY ticker ASC`)
}

func (p *Postgres) ActiveWatchlist(ctx context.Context) ([]settings.WatchlistItem, error) {
	return p.queryWatchlist(ctx, `
		SELECT id, ticker, company_name, is_active
		FROM watchlist
		WHERE is_active
		ORDER BY ticker ASC`)
}

func (p *Postgres) queryWatchlist(ctx context.Context, query string) ([]settings.WatchlistItem, error) {
	rows, err := p.queryWithTransaction(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []settings.WatchlistItem
	for rows.Next() {
		var item settings.WatchlistItem
		if err := rows.Scan(&item.ID, &item.Ticker, &item.CompanyName, &item.Active); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (p *Postgres) AddWatchlistItem(ctx context.Context, item *settings.WatchlistItem) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO watchlist (ticker, company_name, is_active)
			VALUES ($1, $2, $3)
			ON CONFLICT (ticker) DO UPDATE SET
				company_name=EXCLUDED.company_name, is_active=EXCLUDED.is_active
			RETURNING id`,
			item.Ticker, item.CompanyName, item.Active).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to add watchlist item %s: %w", item.Ticker, err)
		}
		return nil
	})
}

// -------- journal.Journaler --------

func (p *Postgres) LogEvent(ctx context.Context, event journal.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (time, type, description, data)
			VALUES ($1, $2, $3, $4)`,
			event.Time.UTC(), event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (p *Postgres) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT time, type, description, data
		FROM events
		WHERE type=$1 AND time >= $2 AND time < $3
		ORDER BY time ASC`,
		eventType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var event journal.Event
		var data []byte
		if err := rows.Scan(&event.Time, &event.Type, &event.Description, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Time = event.Time.UTC()
		if len(data) > 0 {
			if err := json.Unmarshal(data, &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
