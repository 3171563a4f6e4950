package usecase_test

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/vitos/fib_confluence/internal/domain"
	"github.com/vitos/fib_confluence/internal/usecase"
)

func enabledConfig(tf domain.Timeframe, strategies []domain.Strategy, dirs ...domain.Direction) domain.VisibilityConfig {
	cfg := usecase.WithTimeframeEnabled(defaultConfig(), tf, true)
	for _, st := range strategies {
		for _, dir := range dirs {
			cfg = usecase.WithDirectionEnabled(cfg, tf, st, dir, true)
		}
	}
	return cfg
}

func pivotResult(high, low float64, highTime, lowTime int64) *domain.PivotResult {
	return &domain.PivotResult{
		Pivots: []domain.Pivot{
			{Index: 10, Price: low, Type: "low", Time: lowTime},
			{Index: 20, Price: high, Type: "high", Time: highTime},
		},
		PivotHigh: high,
		PivotLow:  low,
		SwingHigh: &domain.SwingPoint{Price: high, Time: highTime},
		SwingLow:  &domain.SwingPoint{Price: low, Time: lowTime},
	}
}

func TestFetchNoMarketData(t *testing.T) {
	market := &MockMarket{Err: fmt.Errorf("exchange down")}
	f := usecase.NewTimeframeFetcher(market, &MockAnalysis{}, nil, zap.NewNop())

	result := f.Fetch(context.Background(), "BTCUSDT", "1D", defaultConfig())
	if result.Err != "no market data" {
		t.Errorf("err = %q, want %q", result.Err, "no market data")
	}
	if len(result.Levels) != 0 {
		t.Errorf("levels = %d, want 0", len(result.Levels))
	}
}

func TestFetchTooFewBarsIsEmptyNotError(t *testing.T) {
	// Default lookback 5 needs 2*5+1 = 11 bars.
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(10)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			t.Error("pivot detection called with too few bars")
			return nil, nil
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	result := f.Fetch(context.Background(), "BTCUSDT", "1D", defaultConfig())
	if result.Err != "" {
		t.Errorf("err = %q, want empty", result.Err)
	}
	if len(result.Levels) != 0 {
		t.Errorf("levels = %d, want 0", len(result.Levels))
	}
}

func TestFetchPivotDetectionFailure(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			return nil, fmt.Errorf("boom")
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	result := f.Fetch(context.Background(), "BTCUSDT", "1D", defaultConfig())
	if result.Err != "pivot detection failed" {
		t.Errorf("err = %q, want %q", result.Err, "pivot detection failed")
	}
}

func TestFetchMissingSwingRecordsPivotsOnly(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			return &domain.PivotResult{
				PivotHigh: 42000,
				SwingHigh: &domain.SwingPoint{Price: 42000, Time: 1700000000000},
				// no SwingLow: one-sided series
			}, nil
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	cfg := enabledConfig("1D", domain.FibStrategies, domain.DirectionLong, domain.DirectionShort)
	result := f.Fetch(context.Background(), "BTCUSDT", "1D", cfg)
	if result.Err != "" {
		t.Errorf("err = %q, want empty", result.Err)
	}
	if result.PivotHigh == nil || result.PivotHigh.Price != 42000 {
		t.Errorf("pivot high not recorded: %+v", result.PivotHigh)
	}
	if len(result.Levels) != 0 {
		t.Errorf("levels = %d, want 0 without both swings", len(result.Levels))
	}
}

func TestFetchBuildsRetracementLevels(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			return pivotResult(42000, 41500, 1700000600000, 1700000000000), nil
		},
		RetracementFunc: func(high, low float64, direction string) (map[int]float64, error) {
			if high != 42000 || low != 41500 {
				t.Errorf("retracement called with high=%v low=%v", high, low)
			}
			if direction != "buy" {
				t.Errorf("direction code = %q, want buy", direction)
			}
			return map[int]float64{618: 41809, 500: 41750}, nil
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	cfg := enabledConfig("1D", []domain.Strategy{domain.StrategyRetracement}, domain.DirectionLong)
	result := f.Fetch(context.Background(), "BTCUSDT", "1D", cfg)
	if len(result.Levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(result.Levels))
	}
	if result.SwingEndpoint != "high" {
		t.Errorf("swing endpoint = %q, want high", result.SwingEndpoint)
	}

	byLabel := make(map[string]domain.StrategyLevel)
	for _, l := range result.Levels {
		byLabel[l.Label] = l
	}
	l618, ok := byLabel["61.8%"]
	if !ok {
		t.Fatalf("61.8%% level missing, have %v", byLabel)
	}
	if l618.Price != 41809 || l618.Ratio != 0.618 || l618.Direction != domain.DirectionLong {
		t.Errorf("61.8%% level wrong: %+v", l618)
	}
	if l618.PivotHigh == nil || *l618.PivotHigh != 42000 || l618.PivotLow == nil || *l618.PivotLow != 41500 {
		t.Errorf("provenance missing: %+v", l618)
	}
	if _, ok := byLabel["50.0%"]; !ok {
		t.Errorf("50.0%% level missing")
	}
}

func TestFetchSingleStrategyFailureOmitsOnlyThatScope(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			return pivotResult(42000, 41500, 1700000600000, 1700000000000), nil
		},
		RetracementFunc: func(high, low float64, direction string) (map[int]float64, error) {
			return map[int]float64{618: 41809}, nil
		},
		ExtensionFunc: func(high, low float64, direction string) (map[int]float64, error) {
			return nil, fmt.Errorf("endpoint timeout")
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	cfg := enabledConfig("1D", []domain.Strategy{domain.StrategyRetracement, domain.StrategyExtension}, domain.DirectionLong)
	result := f.Fetch(context.Background(), "BTCUSDT", "1D", cfg)
	if result.Err != "" {
		t.Errorf("err = %q, want empty (single strategy failure is not a timeframe failure)", result.Err)
	}
	if len(result.Levels) != 1 {
		t.Fatalf("got %d levels, want 1 (retracement only)", len(result.Levels))
	}
	if result.Levels[0].Strategy != domain.StrategyRetracement {
		t.Errorf("surviving level strategy = %s", result.Levels[0].Strategy)
	}
}

func TestFetchSkipsDisabledScopes(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	var shortCalled bool
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			return pivotResult(42000, 41500, 1700000600000, 1700000000000), nil
		},
		RetracementFunc: func(high, low float64, direction string) (map[int]float64, error) {
			if direction == "sell" {
				shortCalled = true
			}
			return map[int]float64{618: 41809}, nil
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	cfg := enabledConfig("1D", []domain.Strategy{domain.StrategyRetracement}, domain.DirectionLong)
	result := f.Fetch(context.Background(), "BTCUSDT", "1D", cfg)
	if shortCalled {
		t.Error("disabled short scope was fetched")
	}
	for _, l := range result.Levels {
		if l.Direction != domain.DirectionLong {
			t.Errorf("unexpected %s level from disabled scope", l.Direction)
		}
	}
}

func TestFetchProjectionNeedsFullTriple(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			// Only two alternating pivots: C and B exist, A does not.
			return pivotResult(42000, 41500, 1700000600000, 1700000000000), nil
		},
		ProjectionFunc: func(a, b, c float64, direction string) (map[int]float64, error) {
			t.Error("projection called without a full A-B-C triple")
			return nil, nil
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	cfg := enabledConfig("1D", []domain.Strategy{domain.StrategyProjection}, domain.DirectionLong, domain.DirectionShort)
	result := f.Fetch(context.Background(), "BTCUSDT", "1D", cfg)
	if len(result.Levels) != 0 {
		t.Errorf("got %d projection levels without a triple", len(result.Levels))
	}
}

func TestFetchSwingEndpointNormalizesEpochUnits(t *testing.T) {
	market := &MockMarket{Candles: map[domain.Timeframe][]domain.Candle{"1D": makeCandles(50)}}
	analysis := &MockAnalysis{
		PivotsFunc: func([]domain.Candle, int, int) (*domain.PivotResult, error) {
			// High reported in seconds, low in milliseconds. In raw units
			// the low looks newer by six orders of magnitude; normalized,
			// the high is the most recent swing.
			r := pivotResult(42000, 41500, 1700003600, 1700000000000)
			return r, nil
		},
	}
	f := usecase.NewTimeframeFetcher(market, analysis, nil, zap.NewNop())

	result := f.Fetch(context.Background(), "BTCUSDT", "1D", defaultConfig())
	if result.SwingEndpoint != "high" {
		t.Errorf("swing endpoint = %q, want high after unit normalization", result.SwingEndpoint)
	}
}

func TestExtractSwingTriple(t *testing.T) {
	pivots := []domain.Pivot{
		{Price: 41000, Type: "low"},
		{Price: 41900, Type: "high"},
		{Price: 41300, Type: "low"},
		{Price: 42000, Type: "high"},
		{Price: 41500, Type: "low"},
	}

	long := usecase.ExtractSwingTriple(pivots, domain.DirectionLong)
	if long.C == nil || *long.C != 41500 {
		t.Errorf("long C = %v, want 41500", long.C)
	}
	if long.B == nil || *long.B != 42000 {
		t.Errorf("long B = %v, want 42000", long.B)
	}
	if long.A == nil || *long.A != 41300 {
		t.Errorf("long A = %v, want 41300", long.A)
	}

	// The trailing low postdates every high, so the short pattern anchors
	// C at the last high and walks back from there.
	short := usecase.ExtractSwingTriple(pivots, domain.DirectionShort)
	if short.C == nil || *short.C != 42000 {
		t.Errorf("short C = %v, want 42000", short.C)
	}
	if short.B == nil || *short.B != 41300 {
		t.Errorf("short B = %v, want 41300", short.B)
	}
	if short.A == nil || *short.A != 41900 {
		t.Errorf("short A = %v, want 41900", short.A)
	}
}

func TestExtractSwingTriplePartial(t *testing.T) {
	pivots := []domain.Pivot{
		{Price: 42000, Type: "high"},
		{Price: 41500, Type: "low"},
	}
	pts := usecase.ExtractSwingTriple(pivots, domain.DirectionLong)
	if pts.C == nil || *pts.C != 41500 {
		t.Errorf("C = %v, want 41500", pts.C)
	}
	if pts.B == nil || *pts.B != 42000 {
		t.Errorf("B = %v, want 42000", pts.B)
	}
	if pts.A != nil {
		t.Errorf("A = %v, want nil", *pts.A)
	}

	none := usecase.ExtractSwingTriple(nil, domain.DirectionLong)
	if none.A != nil || none.B != nil || none.C != nil {
		t.Errorf("empty pivots produced points: %+v", none)
	}
}
