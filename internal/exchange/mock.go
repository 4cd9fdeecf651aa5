package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
)

// MockExchange is an in-memory broker for tests. Candle series are seeded
// per symbol and every submitted order is recorded.
type MockExchange struct {
	mu        sync.Mutex
	candles   map[string][]candle.Candle
	fillPrice map[string]float64
	orderErr  map[string]error
	fetchErr  map[string]error
	fills     []Fill
	nextID    int
}

func NewMockExchange() *MockExchange {
	return &MockExchange{
		candles:   make(map[string][]candle.Candle),
		fillPrice: make(map[string]float64),
		orderErr:  make(map[string]error),
		fetchErr:  make(map[string]error),
	}
}

func (m *MockExchange) Name() string { return "mock" }

// SeedCandles sets the series returned for a symbol.
func (m *MockExchange) SeedCandles(symbol string, candles []candle.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol] = candles
}

// SetFillPrice sets the executed price reported for a symbol's fills.
func (m *MockExchange) SetFillPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fillPrice[symbol] = price
}

// FailOrders makes order submission fail for a symbol.
func (m *MockExchange) FailOrders(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderErr[symbol] = err
}

// FailFetch makes candle fetching fail for a symbol.
func (m *MockExchange) FailFetch(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr[symbol] = err
}

// Fills returns a copy of every fill produced so far.
func (m *MockExchange) Fills() []Fill {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Fill, len(m.fills))
	copy(out, m.fills)
	return out
}

func (m *MockExchange) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[symbol]; err != nil {
		return nil, err
	}
	var out []candle.Candle
	for _, c := range m.candles[symbol] {
		if !c.Timestamp.Before(start) && !c.Timestamp.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockExchange) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[symbol]; err != nil {
		return nil, err
	}
	series := m.candles[symbol]
	if len(series) > count {
		series = series[len(series)-count:]
	}
	out := make([]candle.Candle, len(series))
	copy(out, series)
	return out, nil
}

func (m *MockExchange) SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.orderErr[symbol]; err != nil {
		return Fill{}, err
	}
	m.nextID++
	fill := Fill{
		OrderID:   fmt.Sprintf("mock-%d", m.nextID),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     m.fillPrice[symbol],
		Status:    "FILLED",
		Timestamp: time.Now().UTC(),
	}
	m.fills = append(m.fills, fill)
	return fill, nil
}
