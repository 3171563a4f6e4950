// Package analysis is the in-process implementation of the pivot and
// Fibonacci computation service. It mirrors the remote analysis API's wire
// conventions (ratio keys are ratio x 1000) so the two are interchangeable
// behind domain.AnalysisService.
package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/vitos/fib_confluence/internal/domain"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// DetectPivots finds fractal pivots: bar i is a high when its high is the
// maximum over [i-lookback, i+lookback], a low when its low is the minimum.
// count limits the result to the most recent pivots; <= 0 keeps all.
func (e *Engine) DetectPivots(ctx context.Context, candles []domain.Candle, lookback, count int) (*domain.PivotResult, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	if len(candles) < 2*lookback+1 {
		return nil, fmt.Errorf("need at least %d candles, got %d", 2*lookback+1, len(candles))
	}

	var pivots []domain.Pivot
	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if candles[j].High > candles[i].High {
				isHigh = false
			}
			if candles[j].Low < candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			pivots = append(pivots, domain.Pivot{Index: i, Price: candles[i].High, Type: "high", Time: candles[i].Time})
		} else if isLow {
			pivots = append(pivots, domain.Pivot{Index: i, Price: candles[i].Low, Type: "low", Time: candles[i].Time})
		}
	}

	if count > 0 && len(pivots) > count {
		pivots = pivots[len(pivots)-count:]
	}

	result := &domain.PivotResult{Pivots: pivots}
	for i := len(pivots) - 1; i >= 0; i-- {
		p := pivots[i]
		if p.Type == "high" && result.SwingHigh == nil {
			result.SwingHigh = &domain.SwingPoint{Price: p.Price, Time: p.Time}
			result.PivotHigh = p.Price
		}
		if p.Type == "low" && result.SwingLow == nil {
			result.SwingLow = &domain.SwingPoint{Price: p.Price, Time: p.Time}
			result.PivotLow = p.Price
		}
		if result.SwingHigh != nil && result.SwingLow != nil {
			break
		}
	}
	return result, nil
}

func ratioKey(r float64) int {
	return int(math.Round(r * 1000))
}

// Retracement measures pullbacks inside the high-low range. Long setups
// retrace down from the high, short setups up from the low.
func (e *Engine) Retracement(ctx context.Context, high, low float64, direction string) (map[int]float64, error) {
	diff := high - low
	out := make(map[int]float64)
	for _, r := range domain.StrategyRatios[domain.StrategyRetracement] {
		if direction == "sell" {
			out[ratioKey(r)] = low + diff*r
		} else {
			out[ratioKey(r)] = high - diff*r
		}
	}
	return out, nil
}

// Extension projects the high-low range beyond its far end.
func (e *Engine) Extension(ctx context.Context, high, low float64, direction string) (map[int]float64, error) {
	diff := high - low
	out := make(map[int]float64)
	for _, r := range domain.StrategyRatios[domain.StrategyExtension] {
		if direction == "sell" {
			out[ratioKey(r)] = high - diff*r
		} else {
			out[ratioKey(r)] = low + diff*r
		}
	}
	return out, nil
}

// Expansion grows the start-end leg from its end point. Callers pass
// (low, high) for long setups and (high, low) for short, so the signed leg
// handles both without a direction code.
func (e *Engine) Expansion(ctx context.Context, start, end float64) (map[int]float64, error) {
	leg := end - start
	out := make(map[int]float64)
	for _, r := range domain.StrategyRatios[domain.StrategyExpansion] {
		out[ratioKey(r)] = end + leg*r
	}
	return out, nil
}

// Projection replays the A-B leg from C. The leg is signed, so the same
// formula serves buy and sell; the direction code is accepted for API
// parity with the remote service.
func (e *Engine) Projection(ctx context.Context, a, b, c float64, direction string) (map[int]float64, error) {
	leg := b - a
	out := make(map[int]float64)
	for _, r := range domain.StrategyRatios[domain.StrategyProjection] {
		out[ratioKey(r)] = c + leg*r
	}
	return out, nil
}
