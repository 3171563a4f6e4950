package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/fib_confluence/internal/domain"
	"go.uber.org/zap"
)

type aggState int

const (
	stateIdle aggState = iota
	stateDebouncing
	stateFetching
)

// DefaultDebounce is the window that coalesces rapid config toggles into a
// single refetch.
const DefaultDebounce = 300 * time.Millisecond

// Aggregator orchestrates the per-timeframe fetcher across the whole
// timeframe set, owns the canonical level list for one fetch cycle, and
// serves the derived views (visible, deduplicated, zoned) as pure
// recomputations over that list.
//
// Re-fetch triggers: symbol change, config change (debounced), explicit
// Refresh. At most one aggregation pass runs at a time; a trigger landing
// mid-flight marks the pass pending and re-runs after completion instead of
// overlapping it.
type Aggregator struct {
	fetcher *TimeframeFetcher
	market  domain.MarketDataProvider
	logger  *zap.Logger

	timeframes []domain.Timeframe
	debounce   time.Duration
	tolerance  float64

	mu          sync.Mutex
	symbol      string
	cfg         domain.VisibilityConfig
	levels      []domain.StrategyLevel
	byTimeframe map[domain.Timeframe]FetchResult
	errors      map[domain.Timeframe]string
	overrides   map[string]bool
	loading     bool
	state       aggState
	pending     bool
	timer       *time.Timer
	// debounceGen invalidates stale timer fires: only a callback carrying
	// the current generation may start the debounced fetch.
	debounceGen int
	lastPrice   float64
	hasPrice    bool

	// onUpdate, when set, is called after every completed pass.
	onUpdate func()
}

type AggregatorOption func(*Aggregator)

func WithDebounce(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.debounce = d }
}

func WithTolerance(pct float64) AggregatorOption {
	return func(a *Aggregator) { a.tolerance = pct }
}

func WithTimeframes(tfs []domain.Timeframe) AggregatorOption {
	return func(a *Aggregator) { a.timeframes = tfs }
}

// WithUpdateHook registers a callback fired after each completed pass.
func WithUpdateHook(fn func()) AggregatorOption {
	return func(a *Aggregator) { a.onUpdate = fn }
}

func NewAggregator(fetcher *TimeframeFetcher, market domain.MarketDataProvider, cfg domain.VisibilityConfig, logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher:     fetcher,
		market:      market,
		logger:      logger,
		cfg:         cfg,
		timeframes:  domain.Timeframes,
		debounce:    DefaultDebounce,
		tolerance:   DefaultTolerancePercent,
		byTimeframe: make(map[domain.Timeframe]FetchResult),
		errors:      make(map[domain.Timeframe]string),
		overrides:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetSymbol switches the instrument, clears the per-symbol market cache and
// level overrides immediately (no stale-data window), and triggers a fetch.
func (a *Aggregator) SetSymbol(symbol string) {
	a.mu.Lock()
	if a.symbol == symbol {
		a.mu.Unlock()
		return
	}
	old := a.symbol
	a.symbol = symbol
	a.overrides = make(map[string]bool)
	a.lastPrice = 0
	a.hasPrice = false
	a.mu.Unlock()

	if old != "" {
		a.market.InvalidateSymbol(old)
	}
	a.Refresh()
}

// SetConfig replaces the visibility config and schedules a debounced
// refetch. Only the last config inside the debounce window is fetched.
func (a *Aggregator) SetConfig(cfg domain.VisibilityConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg

	switch a.state {
	case stateIdle:
		a.state = stateDebouncing
		a.armDebounceLocked()
	case stateDebouncing:
		// Resetting a fired timer races its in-flight callback, which
		// would fetch before the refreshed window elapses. Arm a fresh
		// timer under a new generation so the stale fire is a no-op.
		a.timer.Stop()
		a.armDebounceLocked()
	case stateFetching:
		a.pending = true
	}
}

func (a *Aggregator) armDebounceLocked() {
	a.debounceGen++
	gen := a.debounceGen
	a.timer = time.AfterFunc(a.debounce, func() { a.debounceElapsed(gen) })
}

func (a *Aggregator) debounceElapsed(gen int) {
	a.mu.Lock()
	if gen != a.debounceGen || a.state != stateDebouncing {
		a.mu.Unlock()
		return
	}
	a.startFetchLocked()
}

// Refresh triggers an immediate pass, cancelling a pending debounce. If a
// pass is in flight it is marked pending instead of overlapping.
func (a *Aggregator) Refresh() {
	a.mu.Lock()
	if a.state == stateFetching {
		a.pending = true
		a.mu.Unlock()
		return
	}
	if a.state == stateDebouncing && a.timer != nil {
		a.timer.Stop()
		// Stop can miss a timer that already fired; bump the generation so
		// the orphaned callback cannot run a second pass.
		a.debounceGen++
	}
	a.startFetchLocked()
}

// startFetchLocked transitions to fetching and releases the lock.
func (a *Aggregator) startFetchLocked() {
	a.state = stateFetching
	a.loading = true
	symbol := a.symbol
	cfg := a.cfg
	a.mu.Unlock()

	go a.runFetch(symbol, cfg)
}

func (a *Aggregator) runFetch(symbol string, cfg domain.VisibilityConfig) {
	ctx := context.Background()
	started := time.Now()

	// Every timeframe is fetched regardless of enablement: pivot metadata
	// feeds direction recommendations even for hidden timeframes.
	results := make([]FetchResult, len(a.timeframes))
	var wg sync.WaitGroup
	for i, tf := range a.timeframes {
		i, tf := i, tf
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.fetcher.Fetch(ctx, symbol, tf, cfg)
		}()
	}
	wg.Wait()

	// Heat is scored only after the full batch settles.
	var levels []domain.StrategyLevel
	byTF := make(map[domain.Timeframe]FetchResult, len(results))
	errs := make(map[domain.Timeframe]string)
	for _, r := range results {
		byTF[r.Timeframe] = r
		if r.Err != "" {
			errs[r.Timeframe] = r.Err
		}
		levels = append(levels, r.Levels...)
	}
	ApplyHeat(levels, a.tolerance)

	a.mu.Lock()
	if symbol == a.symbol {
		a.levels = levels
		a.byTimeframe = byTF
		a.errors = errs
	}
	a.loading = false
	a.state = stateIdle
	rerun := a.pending
	a.pending = false
	hook := a.onUpdate
	a.mu.Unlock()

	a.logger.Debug("aggregation pass complete",
		zap.String("symbol", symbol),
		zap.Int("levels", len(levels)),
		zap.Duration("elapsed", time.Since(started)))

	if hook != nil {
		hook()
	}
	if rerun {
		a.Refresh()
	}
}

// UpdatePrice records a streamed ticker price. Prices for instruments other
// than the current symbol are dropped.
func (a *Aggregator) UpdatePrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if symbol != a.symbol {
		return
	}
	a.lastPrice = price
	a.hasPrice = true
}

// LastPrice returns the most recent streamed price for the current symbol,
// or false when no ticker update has arrived since the last symbol change.
func (a *Aggregator) LastPrice() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastPrice, a.hasPrice
}

// IsLoading reports whether any timeframe fetch is in flight.
func (a *Aggregator) IsLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Errors returns the per-timeframe display messages from the last pass.
func (a *Aggregator) Errors() map[domain.Timeframe]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[domain.Timeframe]string, len(a.errors))
	for k, v := range a.errors {
		out[k] = v
	}
	return out
}

// AllLevels returns the canonical flat level list from the last pass.
func (a *Aggregator) AllLevels() []domain.StrategyLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.StrategyLevel(nil), a.levels...)
}

// ByTimeframe returns the grouped results including pivot and swing
// endpoint metadata for every timeframe.
func (a *Aggregator) ByTimeframe() map[domain.Timeframe]FetchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[domain.Timeframe]FetchResult, len(a.byTimeframe))
	for k, v := range a.byTimeframe {
		out[k] = v
	}
	return out
}

// Config returns the current visibility config.
func (a *Aggregator) Config() domain.VisibilityConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneConfig(a.cfg)
}

// Symbol returns the current instrument.
func (a *Aggregator) Symbol() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.symbol
}

// VisibleLevels filters the canonical list through the config gate and the
// per-level overrides. An override flips a level's own flag but never
// bypasses its timeframe/strategy/direction enablement.
func (a *Aggregator) VisibleLevels() []domain.StrategyLevel {
	a.mu.Lock()
	levels := append([]domain.StrategyLevel(nil), a.levels...)
	cfg := a.cfg
	overrides := make(map[string]bool, len(a.overrides))
	for k, v := range a.overrides {
		overrides[k] = v
	}
	a.mu.Unlock()

	out := make([]domain.StrategyLevel, 0, len(levels))
	for _, l := range levels {
		if !IsLevelVisible(l, cfg) {
			continue
		}
		visible := l.Visible
		if ov, ok := overrides[l.ID]; ok {
			visible = ov
		}
		if visible {
			out = append(out, l)
		}
	}
	return out
}

// UniqueLevels is the deduplicated visible set, strongest heat first.
func (a *Aggregator) UniqueLevels() []domain.StrategyLevel {
	return DeduplicateLevels(a.VisibleLevels(), a.tolerance)
}

// Zones clusters the visible set into confluence zones.
func (a *Aggregator) Zones() []domain.ConfluenceZone {
	return CalculateConfluenceZones(a.VisibleLevels(), a.tolerance)
}

// ToggleLevelVisibility flips one level instance on or off without touching
// the persisted visibility config.
func (a *Aggregator) ToggleLevelVisibility(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	effective := true
	for _, l := range a.levels {
		if l.ID == id {
			effective = l.Visible
			break
		}
	}
	if ov, ok := a.overrides[id]; ok {
		effective = ov
	}
	a.overrides[id] = !effective
}
