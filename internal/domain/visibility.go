package domain

// RatioVisibility is one ratio's show/hide flag inside a direction entry.
type RatioVisibility struct {
	Ratio   float64 `json:"ratio"`
	Visible bool    `json:"visible"`
}

// DirectionConfig enables one trade direction of a strategy and lists its
// ratio flags. A disabled direction hides all of its ratios regardless of
// the per-ratio flags.
type DirectionConfig struct {
	Enabled bool              `json:"enabled"`
	Ratios  []RatioVisibility `json:"ratios"`
}

// StrategyConfig holds the independent long/short sub-entries for one
// strategy inside a timeframe entry.
type StrategyConfig struct {
	Strategy Strategy        `json:"strategy"`
	Long     DirectionConfig `json:"long"`
	Short    DirectionConfig `json:"short"`
}

// TimeframeConfig is one timeframe's entry in the visibility tree.
type TimeframeConfig struct {
	Timeframe  Timeframe        `json:"timeframe"`
	Enabled    bool             `json:"enabled"`
	Strategies []StrategyConfig `json:"strategies"`
}

// VisibilityConfig is the persisted user preference tree controlling which
// (timeframe, strategy, direction, ratio) combinations are computed and
// shown. It is treated as an immutable value: updates go through the pure
// WithX functions in the usecase package, never in-place mutation.
type VisibilityConfig struct {
	Timeframes []TimeframeConfig `json:"timeframes"`
}

// SwingSettings is the persisted per-timeframe pivot detection tuning.
type SwingSettings struct {
	Timeframe Timeframe `json:"timeframe"`
	Lookback  int       `json:"lookback"` // clamped to [2,20]
	ShowLines bool      `json:"show_lines"`
}
