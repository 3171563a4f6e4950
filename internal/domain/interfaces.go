package domain

import "context"

type Candle struct {
	Time   int64   `json:"time"` // unix ms
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Pivot is one confirmed swing point inside a candle series.
type Pivot struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
	Type  string  `json:"type"` // "high" or "low"
	Time  int64   `json:"time"` // unix ms
}

// PivotResult is the pivot-detection payload for one candle series.
// SwingHigh/SwingLow are nil when the series produced no pivot of that type.
type PivotResult struct {
	Pivots    []Pivot     `json:"pivots"`
	PivotHigh float64     `json:"pivot_high"`
	PivotLow  float64     `json:"pivot_low"`
	SwingHigh *SwingPoint `json:"swing_high"`
	SwingLow  *SwingPoint `json:"swing_low"`
}

// MarketDataProvider serves OHLC bars. Implementations must degrade to a
// last-known-good cache on rate limits or network failure; an error here
// means no bars could be produced at all, cached or live.
type MarketDataProvider interface {
	GetCandles(ctx context.Context, symbol string, tf Timeframe, periods int) ([]Candle, error)
	InvalidateSymbol(symbol string)
}

// AnalysisService is the pivot/Fibonacci computation boundary. The four
// Fibonacci calls return a map of ratio-key (ratio x 1000) to price.
// Direction codes are "buy" for long setups and "sell" for short.
type AnalysisService interface {
	DetectPivots(ctx context.Context, candles []Candle, lookback, count int) (*PivotResult, error)
	Retracement(ctx context.Context, high, low float64, direction string) (map[int]float64, error)
	Extension(ctx context.Context, high, low float64, direction string) (map[int]float64, error)
	Expansion(ctx context.Context, start, end float64) (map[int]float64, error)
	Projection(ctx context.Context, a, b, c float64, direction string) (map[int]float64, error)
}

// SettingsRepository persists user preferences. Loads return (nil, nil)
// when nothing valid is stored; callers regenerate defaults in that case.
type SettingsRepository interface {
	SaveVisibilityConfig(ctx context.Context, cfg *VisibilityConfig) error
	LoadVisibilityConfig(ctx context.Context) (*VisibilityConfig, error)
	SaveSwingSettings(ctx context.Context, s *SwingSettings) error
	LoadSwingSettings(ctx context.Context, tf Timeframe) (*SwingSettings, error)
}

// SnapshotRepository persists last-known-good OHLC per (symbol, timeframe)
// for the provider's offline fallback.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, symbol string, tf Timeframe, candles []Candle) error
	LoadSnapshot(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error)
}
