package usecase

import (
	"context"
	"sync"

	"github.com/vitos/fib_confluence/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultLookback is the pivot confirmation window when no swing
	// settings are stored for a timeframe.
	DefaultLookback = 5
	// fetchPeriods is how many bars we request per timeframe.
	fetchPeriods = 200
	// pivotCount limits how many recent pivots the detection call returns.
	pivotCount = 10
)

// FetchResult is one timeframe's outcome. Pivot metadata is populated even
// when no levels could be computed, because cross-timeframe direction
// recommendations need it.
type FetchResult struct {
	Timeframe     domain.Timeframe       `json:"timeframe"`
	Levels        []domain.StrategyLevel `json:"levels"`
	PivotHigh     *domain.SwingPoint     `json:"pivot_high"`
	PivotLow      *domain.SwingPoint     `json:"pivot_low"`
	SwingEndpoint string                 `json:"swing_endpoint"` // "high", "low" or ""
	Err           string                 `json:"error,omitempty"`
}

// TimeframeFetcher produces the raw level list for one (symbol, timeframe).
// All failures degrade to empty scopes; nothing here propagates an error to
// the caller beyond the display-only Err string.
type TimeframeFetcher struct {
	market   domain.MarketDataProvider
	analysis domain.AnalysisService
	settings domain.SettingsRepository
	logger   *zap.Logger
}

func NewTimeframeFetcher(market domain.MarketDataProvider, analysis domain.AnalysisService, settings domain.SettingsRepository, logger *zap.Logger) *TimeframeFetcher {
	return &TimeframeFetcher{market: market, analysis: analysis, settings: settings, logger: logger}
}

func (f *TimeframeFetcher) lookback(ctx context.Context, tf domain.Timeframe) int {
	lb := DefaultLookback
	if f.settings != nil {
		if s, err := f.settings.LoadSwingSettings(ctx, tf); err == nil && s != nil {
			lb = s.Lookback
		}
	}
	if lb < 2 {
		lb = 2
	}
	if lb > 20 {
		lb = 20
	}
	return lb
}

// normalizeEpochMs brings second-resolution timestamps up to milliseconds
// so pivot times from different sources compare on a common unit.
func normalizeEpochMs(t int64) int64 {
	if t > 0 && t < 1e12 {
		return t * 1000
	}
	return t
}

// Fetch runs the full per-timeframe pipeline: bars, pivots, A-B-C swings,
// then one Fibonacci call per enabled (strategy, direction).
func (f *TimeframeFetcher) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, cfg domain.VisibilityConfig) FetchResult {
	result := FetchResult{Timeframe: tf}

	candles, err := f.market.GetCandles(ctx, symbol, tf, fetchPeriods)
	if err != nil {
		f.logger.Warn("no market data for timeframe",
			zap.String("symbol", symbol), zap.String("timeframe", string(tf)), zap.Error(err))
		result.Err = "no market data"
		return result
	}

	lookback := f.lookback(ctx, tf)
	if len(candles) < 2*lookback+1 {
		// Not enough bars to confirm a single pivot. Empty, not an error.
		return result
	}

	pivots, err := f.analysis.DetectPivots(ctx, candles, lookback, pivotCount)
	if err != nil {
		f.logger.Warn("pivot detection failed",
			zap.String("symbol", symbol), zap.String("timeframe", string(tf)), zap.Error(err))
		result.Err = "pivot detection failed"
		return result
	}

	result.PivotHigh = pivots.SwingHigh
	result.PivotLow = pivots.SwingLow
	if pivots.SwingHigh == nil || pivots.SwingLow == nil {
		// Pivots recorded for diagnostics, but no levels without both extremes.
		return result
	}

	if normalizeEpochMs(pivots.SwingHigh.Time) >= normalizeEpochMs(pivots.SwingLow.Time) {
		result.SwingEndpoint = "high"
	} else {
		result.SwingEndpoint = "low"
	}

	high := pivots.SwingHigh.Price
	low := pivots.SwingLow.Price

	var mu sync.Mutex
	var wg sync.WaitGroup
	addLevels := func(levels []domain.StrategyLevel) {
		mu.Lock()
		result.Levels = append(result.Levels, levels...)
		mu.Unlock()
	}

	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		dir := dir
		code := directionCode(dir)
		triple := ExtractSwingTriple(pivots.Pivots, dir)

		for _, st := range domain.FibStrategies {
			if !DirectionEnabled(cfg, tf, st, dir) {
				continue
			}
			st := st
			wg.Add(1)
			go func() {
				defer wg.Done()
				var (
					table map[int]float64
					err   error
				)
				switch st {
				case domain.StrategyRetracement:
					table, err = f.analysis.Retracement(ctx, high, low, code)
				case domain.StrategyExtension:
					table, err = f.analysis.Extension(ctx, high, low, code)
				case domain.StrategyExpansion:
					if dir == domain.DirectionLong {
						table, err = f.analysis.Expansion(ctx, low, high)
					} else {
						table, err = f.analysis.Expansion(ctx, high, low)
					}
				case domain.StrategyProjection:
					if triple.A == nil || triple.B == nil || triple.C == nil {
						return // fewer than 3 alternating pivots, no projection
					}
					table, err = f.analysis.Projection(ctx, *triple.A, *triple.B, *triple.C, code)
				}
				if err != nil {
					// One failed call only omits this strategy's levels.
					f.logger.Warn("fibonacci call failed",
						zap.String("symbol", symbol), zap.String("timeframe", string(tf)),
						zap.String("strategy", string(st)), zap.String("direction", string(dir)),
						zap.Error(err))
					return
				}
				addLevels(buildLevels(tf, st, dir, table, high, low, triple))
			}()
		}
	}
	wg.Wait()

	return result
}

func directionCode(dir domain.Direction) string {
	if dir == domain.DirectionShort {
		return "sell"
	}
	return "buy"
}

// buildLevels converts a ratio-key table (ratio x 1000) into tagged levels
// carrying the swing provenance that produced them.
func buildLevels(tf domain.Timeframe, st domain.Strategy, dir domain.Direction, table map[int]float64, high, low float64, triple SwingPoints) []domain.StrategyLevel {
	levels := make([]domain.StrategyLevel, 0, len(table))
	for key, price := range table {
		ratio := float64(key) / 1000
		level := domain.StrategyLevel{
			ID:        domain.GenerateLevelID(tf, st, dir, ratio, price),
			Price:     price,
			Timeframe: tf,
			Strategy:  st,
			Direction: dir,
			Ratio:     ratio,
			Label:     domain.FormatRatioLabel(st, ratio),
			Visible:   true,
		}
		if st == domain.StrategyProjection {
			level.PointA = triple.A
			level.PointB = triple.B
			level.PointC = triple.C
		} else {
			h, l := high, low
			level.PivotHigh = &h
			level.PivotLow = &l
		}
		levels = append(levels, level)
	}
	return levels
}

// ExtractSwingTriple walks the pivot list backwards for the A-B-C pattern:
// long wants low-high-low (most recent low is C), short wants high-low-high.
// Any missing leg leaves the corresponding points nil.
func ExtractSwingTriple(pivots []domain.Pivot, dir domain.Direction) SwingPoints {
	endType, midType := "low", "high"
	if dir == domain.DirectionShort {
		endType, midType = "high", "low"
	}

	var pts SwingPoints
	i := len(pivots) - 1
	for ; i >= 0; i-- {
		if pivots[i].Type == endType {
			p := pivots[i].Price
			pts.C = &p
			break
		}
	}
	if pts.C == nil {
		return pts
	}
	for i--; i >= 0; i-- {
		if pivots[i].Type == midType {
			p := pivots[i].Price
			pts.B = &p
			break
		}
	}
	if pts.B == nil {
		return pts
	}
	for i--; i >= 0; i-- {
		if pivots[i].Type == endType {
			p := pivots[i].Price
			pts.A = &p
			break
		}
	}
	return pts
}
