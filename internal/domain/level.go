package domain

import (
	"fmt"
)

// Strategy identifies the technique that produced a level.
type Strategy string

const (
	StrategyRetracement Strategy = "RETRACEMENT"
	StrategyExtension   Strategy = "EXTENSION"
	StrategyProjection  Strategy = "PROJECTION"
	StrategyExpansion   Strategy = "EXPANSION"
	// Produced elsewhere but part of the closed set consumed downstream.
	StrategyHarmonic Strategy = "HARMONIC"
	StrategySignal   Strategy = "SIGNAL"
)

// Direction is the trade bias a level supports.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
	DirectionNone    Direction = ""
)

type Timeframe string

// Timeframes is the ordered timeframe set, highest first.
// Membership is configuration, not logic: nothing below switches on it.
var Timeframes = []Timeframe{"1M", "1W", "1D", "4H", "1H", "15m", "5m", "3m", "1m"}

// FibStrategies are the four strategies this engine computes itself.
var FibStrategies = []Strategy{StrategyRetracement, StrategyExtension, StrategyProjection, StrategyExpansion}

// StrategyRatios is the canonical ratio set per strategy, in display order.
// These mirror the ratio tables the analysis endpoints return.
var StrategyRatios = map[Strategy][]float64{
	StrategyRetracement: {0.236, 0.382, 0.5, 0.618, 0.786},
	StrategyExtension:   {1.272, 1.618, 2.0, 2.618},
	StrategyProjection:  {0.618, 1.0, 1.272, 1.618},
	StrategyExpansion:   {0.618, 1.0, 1.618, 2.618},
}

// StrategyLevel is one computed price level.
type StrategyLevel struct {
	ID        string    `json:"id"`
	Price     float64   `json:"price"`
	Timeframe Timeframe `json:"timeframe"`
	Strategy  Strategy  `json:"strategy"`
	Direction Direction `json:"direction"`
	Ratio     float64   `json:"ratio"`
	Label     string    `json:"label"`
	Visible   bool      `json:"visible"`
	// Heat is always derived from the current level set, never persisted.
	Heat int `json:"heat"`

	// Provenance: the swing prices that produced this level, kept for the
	// explanation UI. Nil when the strategy did not use the point.
	PivotHigh *float64 `json:"pivot_high,omitempty"`
	PivotLow  *float64 `json:"pivot_low,omitempty"`
	PointA    *float64 `json:"point_a,omitempty"`
	PointB    *float64 `json:"point_b,omitempty"`
	PointC    *float64 `json:"point_c,omitempty"`
}

// GenerateLevelID builds a stable identity for a level. Price is rounded to
// 4 decimals so floating-point jitter between refetches of unchanged data
// cannot split one level into two ids.
func GenerateLevelID(tf Timeframe, strategy Strategy, dir Direction, ratio, price float64) string {
	return fmt.Sprintf("%s-%s-%s-%.3f-%.4f", tf, strategy, dir, ratio, price)
}

// FormatRatioLabel renders a ratio for display. Retracement ratios are
// percentages with one decimal, everything else a 3-decimal multiplier.
func FormatRatioLabel(strategy Strategy, ratio float64) string {
	if strategy == StrategyRetracement {
		return fmt.Sprintf("%.1f%%", ratio*100)
	}
	return fmt.Sprintf("%.3f", ratio)
}

// SwingPoint is a confirmed pivot extreme with its bar time (unix ms).
type SwingPoint struct {
	Price float64 `json:"price"`
	Time  int64   `json:"time"`
}
