package usecase

import (
	"math"

	"github.com/vitos/fib_confluence/internal/domain"
)

// ratioEpsilon absorbs float noise when matching a level's ratio against
// the config tree.
const ratioEpsilon = 1e-9

// Smart-default subsets. Higher timeframes carry fewer levels so the chart
// stays readable; 1H and below keep the full canonical set.
var smartHighRatios = map[domain.Strategy][]float64{
	domain.StrategyRetracement: {0.382, 0.5, 0.618},
	domain.StrategyExtension:   {1.618, 2.618},
	domain.StrategyProjection:  {1.0, 1.618},
	domain.StrategyExpansion:   {1.0, 1.618},
}

var smartMidRatios = map[domain.Strategy][]float64{
	domain.StrategyRetracement: {0.382, 0.5, 0.618, 0.786},
	domain.StrategyExtension:   {1.272, 1.618, 2.618},
	domain.StrategyProjection:  {0.618, 1.0, 1.618},
	domain.StrategyExpansion:   {0.618, 1.0, 1.618},
}

var highTimeframes = map[domain.Timeframe]bool{"1M": true, "1W": true}
var midTimeframes = map[domain.Timeframe]bool{"1D": true, "4H": true}

func ratioEquals(a, b float64) bool {
	return math.Abs(a-b) <= ratioEpsilon
}

func defaultRatioList(strategy domain.Strategy) []domain.RatioVisibility {
	ratios := domain.StrategyRatios[strategy]
	out := make([]domain.RatioVisibility, len(ratios))
	for i, r := range ratios {
		// Ratio visibility defaults on; the direction gate defaults off.
		out[i] = domain.RatioVisibility{Ratio: r, Visible: true}
	}
	return out
}

// DefaultVisibilityConfig builds one entry per timeframe and strategy with
// both directions present but disabled. Toggling a direction on reveals all
// of its ratios unless later narrowed.
func DefaultVisibilityConfig(timeframes []domain.Timeframe, strategies []domain.Strategy) domain.VisibilityConfig {
	cfg := domain.VisibilityConfig{Timeframes: make([]domain.TimeframeConfig, 0, len(timeframes))}
	for _, tf := range timeframes {
		entry := domain.TimeframeConfig{Timeframe: tf, Strategies: make([]domain.StrategyConfig, 0, len(strategies))}
		for _, st := range strategies {
			entry.Strategies = append(entry.Strategies, domain.StrategyConfig{
				Strategy: st,
				Long:     domain.DirectionConfig{Enabled: false, Ratios: defaultRatioList(st)},
				Short:    domain.DirectionConfig{Enabled: false, Ratios: defaultRatioList(st)},
			})
		}
		cfg.Timeframes = append(cfg.Timeframes, entry)
	}
	return cfg
}

func findTimeframe(cfg domain.VisibilityConfig, tf domain.Timeframe) *domain.TimeframeConfig {
	for i := range cfg.Timeframes {
		if cfg.Timeframes[i].Timeframe == tf {
			return &cfg.Timeframes[i]
		}
	}
	return nil
}

func findStrategy(entry *domain.TimeframeConfig, st domain.Strategy) *domain.StrategyConfig {
	for i := range entry.Strategies {
		if entry.Strategies[i].Strategy == st {
			return &entry.Strategies[i]
		}
	}
	return nil
}

// IsLevelVisible reports whether a level passes the config gate: its
// timeframe entry enabled, its strategy's matching direction enabled, and
// the specific ratio flagged visible. Missing entries fail closed.
func IsLevelVisible(level domain.StrategyLevel, cfg domain.VisibilityConfig) bool {
	tfEntry := findTimeframe(cfg, level.Timeframe)
	if tfEntry == nil || !tfEntry.Enabled {
		return false
	}
	stEntry := findStrategy(tfEntry, level.Strategy)
	if stEntry == nil {
		return false
	}
	var dir *domain.DirectionConfig
	switch level.Direction {
	case domain.DirectionLong:
		dir = &stEntry.Long
	case domain.DirectionShort:
		dir = &stEntry.Short
	default:
		return false
	}
	if !dir.Enabled {
		return false
	}
	for _, rv := range dir.Ratios {
		if ratioEquals(rv.Ratio, level.Ratio) {
			return rv.Visible
		}
	}
	return false
}

// DirectionEnabled reports whether a (timeframe, strategy, direction)
// combination is enabled at all, used to skip Fibonacci calls entirely.
func DirectionEnabled(cfg domain.VisibilityConfig, tf domain.Timeframe, st domain.Strategy, dir domain.Direction) bool {
	tfEntry := findTimeframe(cfg, tf)
	if tfEntry == nil || !tfEntry.Enabled {
		return false
	}
	stEntry := findStrategy(tfEntry, st)
	if stEntry == nil {
		return false
	}
	switch dir {
	case domain.DirectionLong:
		return stEntry.Long.Enabled
	case domain.DirectionShort:
		return stEntry.Short.Enabled
	}
	return false
}

// cloneConfig deep-copies the tree so the WithX updates never alias the
// original's slices.
func cloneConfig(cfg domain.VisibilityConfig) domain.VisibilityConfig {
	out := domain.VisibilityConfig{Timeframes: make([]domain.TimeframeConfig, len(cfg.Timeframes))}
	for i, tf := range cfg.Timeframes {
		entry := tf
		entry.Strategies = make([]domain.StrategyConfig, len(tf.Strategies))
		for j, st := range tf.Strategies {
			sc := st
			sc.Long.Ratios = append([]domain.RatioVisibility(nil), st.Long.Ratios...)
			sc.Short.Ratios = append([]domain.RatioVisibility(nil), st.Short.Ratios...)
			entry.Strategies[j] = sc
		}
		out.Timeframes[i] = entry
	}
	return out
}

// WithTimeframeEnabled returns a copy of cfg with one timeframe toggled.
func WithTimeframeEnabled(cfg domain.VisibilityConfig, tf domain.Timeframe, enabled bool) domain.VisibilityConfig {
	out := cloneConfig(cfg)
	if entry := findTimeframe(out, tf); entry != nil {
		entry.Enabled = enabled
	}
	return out
}

// WithDirectionEnabled returns a copy of cfg with one strategy direction toggled.
func WithDirectionEnabled(cfg domain.VisibilityConfig, tf domain.Timeframe, st domain.Strategy, dir domain.Direction, enabled bool) domain.VisibilityConfig {
	out := cloneConfig(cfg)
	entry := findTimeframe(out, tf)
	if entry == nil {
		return out
	}
	stEntry := findStrategy(entry, st)
	if stEntry == nil {
		return out
	}
	switch dir {
	case domain.DirectionLong:
		stEntry.Long.Enabled = enabled
	case domain.DirectionShort:
		stEntry.Short.Enabled = enabled
	}
	return out
}

// WithRatioVisible returns a copy of cfg with one ratio flag set.
func WithRatioVisible(cfg domain.VisibilityConfig, tf domain.Timeframe, st domain.Strategy, dir domain.Direction, ratio float64, visible bool) domain.VisibilityConfig {
	out := cloneConfig(cfg)
	entry := findTimeframe(out, tf)
	if entry == nil {
		return out
	}
	stEntry := findStrategy(entry, st)
	if stEntry == nil {
		return out
	}
	var dc *domain.DirectionConfig
	switch dir {
	case domain.DirectionLong:
		dc = &stEntry.Long
	case domain.DirectionShort:
		dc = &stEntry.Short
	default:
		return out
	}
	for i := range dc.Ratios {
		if ratioEquals(dc.Ratios[i].Ratio, ratio) {
			dc.Ratios[i].Visible = visible
		}
	}
	return out
}

// SwingPoints carries the pivot-derived A/B/C prices available for a
// timeframe. Nil means the point is unknown.
type SwingPoints struct {
	A *float64
	B *float64
	C *float64
}

// RecommendDirection derives the trade bias consistent with the swing
// relationship. Missing points mean no opinion, never a guessed default.
//
//	RETRACEMENT/EXTENSION: B < C -> long, B > C -> short
//	EXPANSION (inverted):  B > C -> long, B < C -> short
//	PROJECTION:            A > B -> long, A < B -> short
func RecommendDirection(strategy domain.Strategy, pts SwingPoints) domain.Direction {
	switch strategy {
	case domain.StrategyRetracement, domain.StrategyExtension:
		if pts.B == nil || pts.C == nil {
			return domain.DirectionNone
		}
		if *pts.B < *pts.C {
			return domain.DirectionLong
		}
		if *pts.B > *pts.C {
			return domain.DirectionShort
		}
	case domain.StrategyExpansion:
		if pts.B == nil || pts.C == nil {
			return domain.DirectionNone
		}
		if *pts.B > *pts.C {
			return domain.DirectionLong
		}
		if *pts.B < *pts.C {
			return domain.DirectionShort
		}
	case domain.StrategyProjection:
		if pts.A == nil || pts.B == nil {
			return domain.DirectionNone
		}
		if *pts.A > *pts.B {
			return domain.DirectionLong
		}
		if *pts.A < *pts.B {
			return domain.DirectionShort
		}
	}
	return domain.DirectionNone
}

func smartRatiosFor(tf domain.Timeframe, st domain.Strategy) []float64 {
	if highTimeframes[tf] {
		return smartHighRatios[st]
	}
	if midTimeframes[tf] {
		return smartMidRatios[st]
	}
	return domain.StrategyRatios[st]
}

// ApplySmartDefaults returns a copy of cfg with one timeframe enabled using
// the reduced ratio subset for its height and the direction the swing
// relationship recommends. Without a recommendation both directions are
// enabled.
func ApplySmartDefaults(cfg domain.VisibilityConfig, tf domain.Timeframe, pts SwingPoints) domain.VisibilityConfig {
	out := cloneConfig(cfg)
	entry := findTimeframe(out, tf)
	if entry == nil {
		return out
	}
	entry.Enabled = true

	for i := range entry.Strategies {
		st := &entry.Strategies[i]
		subset := smartRatiosFor(tf, st.Strategy)

		rec := RecommendDirection(st.Strategy, pts)
		st.Long.Enabled = rec == domain.DirectionLong || rec == domain.DirectionNone
		st.Short.Enabled = rec == domain.DirectionShort || rec == domain.DirectionNone

		for _, dc := range []*domain.DirectionConfig{&st.Long, &st.Short} {
			for j := range dc.Ratios {
				visible := false
				for _, r := range subset {
					if ratioEquals(dc.Ratios[j].Ratio, r) {
						visible = true
						break
					}
				}
				dc.Ratios[j].Visible = visible
			}
		}
	}
	return out
}
