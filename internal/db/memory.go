package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/journal"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

// MemoryStorage mirrors the Postgres behavior for tests and dry runs.
type MemoryStorage struct {
	mu sync.RWMutex

	// Candles keyed by symbol|timeframe|timestamp|source
	candles map[string]candle.Candle

	// Positions by ID and auto-increment counter
	positions      map[int64]position.Position
	nextPositionID int64

	global    settings.Global
	watchlist map[string]settings.WatchlistItem
	nextWatch int64

	// Events (append-only)
	events []journal.Event
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		candles:   make(map[string]candle.Candle),
		positions: make(map[int64]position.Position),
		global:    settings.DefaultGlobal(),
		watchlist: make(map[string]settings.WatchlistItem),
		events:    make([]journal.Event, 0, 1024),
	}
}

// GetDB returns nil for in-memory storage (no SQL database)
func (m *MemoryStorage) GetDB() *sql.DB { return nil }

// -------- candle.Storage --------

func candleKey(symbol, timeframe string, ts time.Time, source string) string {
	return strings.ToUpper(symbol) + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + source
}

func (m *MemoryStorage) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return err
		}
		c := candles[i]
		c.Timestamp = c.Timestamp.UTC()
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp, c.Source)] = c
	}
	return nil
}

func (m *MemoryStorage) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []candle.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		out = append(out, c)
	}
	candle.SortAscending(out)
	return out, nil
}

func (m *MemoryStorage) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []candle.Candle
	for _, c := range m.candles {
		if strings.EqualFold(c.Symbol, symbol) && c.Timeframe == timeframe {
			out = append(out, c)
		}
	}
	candle.SortAscending(out)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStorage) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	recent, err := m.GetRecentCandles(ctx, symbol, timeframe, 1)
	if err != nil || len(recent) == 0 {
		return nil, err
	}
	return &recent[0], nil
}

// -------- position.Store --------

func (m *MemoryStorage) FindOpen(ctx context.Context, symbol string) (*position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pos := range m.positions {
		if pos.Status == position.StatusOpen && strings.EqualFold(pos.Symbol, symbol) {
			found := pos
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) Create(ctx context.Context, pos *position.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.positions {
		if existing.Status == position.StatusOpen && strings.EqualFold(existing.Symbol, pos.Symbol) {
			return fmt.Errorf("open position already exists for %s", pos.Symbol)
		}
	}
	m.nextPositionID++
	pos.ID = m.nextPositionID
	m.positions[pos.ID] = *pos
	return nil
}

func (m *MemoryStorage) Close(ctx context.Context, pos *position.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.positions[pos.ID]
	if !ok || existing.Status != position.StatusOpen {
		return fmt.Errorf("position %d is not open", pos.ID)
	}
	m.positions[pos.ID] = *pos
	return nil
}

func (m *MemoryStorage) ListOpen(ctx context.Context) ([]position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []position.Position
	for _, pos := range m.positions {
		if pos.Status == position.StatusOpen {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out, nil
}

func (m *MemoryStorage) ListClosed(ctx context.Context, limit int) ([]position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []position.Position
	for _, pos := range m.positions {
		if pos.Status == position.StatusClosed {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExitTime.After(out[j].ExitTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -------- settings.Store --------

func (m *MemoryStorage) Global(ctx context.Context) (settings.Global, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.global, nil
}

func (m *MemoryStorage) UpdateGlobal(ctx context.Context, g settings.Global) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = 1
	m.global = g
	return nil
}

func (m *MemoryStorage) Watchlist(ctx context.Context) ([]settings.WatchlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedWatchlist(false), nil
}

func (m *MemoryStorage) ActiveWatchlist(ctx context.Context) ([]settings.WatchlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedWatchlist(true), nil
}

func (m *MemoryStorage) sortedWatchlist(activeOnly bool) []settings.WatchlistItem {
	var out []settings.WatchlistItem
	for _, item := range m.watchlist {
		if activeOnly && !item.Active {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (m *MemoryStorage) AddWatchlistItem(ctx context.Context, item *settings.WatchlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticker := strings.ToUpper(item.Ticker)
	if existing, ok := m.watchlist[ticker]; ok {
		item.ID = existing.ID
	} else {
		m.nextWatch++
		item.ID = m.nextWatch
	}
	m.watchlist[ticker] = *item
	return nil
}

// -------- journal.Journaler --------

func (m *MemoryStorage) LogEvent(ctx context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Time = event.Time.UTC()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journal.Event
	for _, event := range m.events {
		if event.Type != eventType {
			continue
		}
		if event.Time.Before(start) || !event.Time.Before(end) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}
