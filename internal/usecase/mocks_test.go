package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitos/fib_confluence/internal/domain"
)

// MockMarket serves canned candles per timeframe. A non-nil Gate makes
// GetCandles block until the gate is released, to pin a pass in flight.
type MockMarket struct {
	Gate chan struct{}

	mu          sync.Mutex
	Candles     map[domain.Timeframe][]domain.Candle
	Err         error
	Calls       int
	Invalidated []string
}

func (m *MockMarket) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, periods int) ([]domain.Candle, error) {
	m.mu.Lock()
	m.Calls++
	gate := m.Gate
	err := m.Err
	candles, ok := m.Candles[tf]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if ok {
		return candles, nil
	}
	return nil, fmt.Errorf("no data for %s", tf)
}

func (m *MockMarket) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func (m *MockMarket) InvalidateSymbol(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidated = append(m.Invalidated, symbol)
}

// MockAnalysis lets each call be overridden per test; unset calls fail.
type MockAnalysis struct {
	PivotsFunc      func(candles []domain.Candle, lookback, count int) (*domain.PivotResult, error)
	RetracementFunc func(high, low float64, direction string) (map[int]float64, error)
	ExtensionFunc   func(high, low float64, direction string) (map[int]float64, error)
	ExpansionFunc   func(start, end float64) (map[int]float64, error)
	ProjectionFunc  func(a, b, c float64, direction string) (map[int]float64, error)
}

func (m *MockAnalysis) DetectPivots(ctx context.Context, candles []domain.Candle, lookback, count int) (*domain.PivotResult, error) {
	if m.PivotsFunc == nil {
		return nil, fmt.Errorf("pivots not mocked")
	}
	return m.PivotsFunc(candles, lookback, count)
}

func (m *MockAnalysis) Retracement(ctx context.Context, high, low float64, direction string) (map[int]float64, error) {
	if m.RetracementFunc == nil {
		return nil, fmt.Errorf("retracement not mocked")
	}
	return m.RetracementFunc(high, low, direction)
}

func (m *MockAnalysis) Extension(ctx context.Context, high, low float64, direction string) (map[int]float64, error) {
	if m.ExtensionFunc == nil {
		return nil, fmt.Errorf("extension not mocked")
	}
	return m.ExtensionFunc(high, low, direction)
}

func (m *MockAnalysis) Expansion(ctx context.Context, start, end float64) (map[int]float64, error) {
	if m.ExpansionFunc == nil {
		return nil, fmt.Errorf("expansion not mocked")
	}
	return m.ExpansionFunc(start, end)
}

func (m *MockAnalysis) Projection(ctx context.Context, a, b, c float64, direction string) (map[int]float64, error) {
	if m.ProjectionFunc == nil {
		return nil, fmt.Errorf("projection not mocked")
	}
	return m.ProjectionFunc(a, b, c, direction)
}

// makeCandles builds n flat bars spaced a minute apart, for tests that only
// care about bar count.
func makeCandles(n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = domain.Candle{
			Time: int64(1700000000000 + i*60000),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 10,
		}
	}
	return candles
}
