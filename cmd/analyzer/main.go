package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/fib_confluence/internal/analysis"
	"github.com/vitos/fib_confluence/internal/domain"
	"github.com/vitos/fib_confluence/internal/infrastructure/logger"
	"github.com/vitos/fib_confluence/internal/infrastructure/marketdata"
	"github.com/vitos/fib_confluence/internal/usecase"
)

// One-shot scan: fetch a symbol across all timeframes with everything
// enabled, print the levels, heat, and confluence zones.
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "instrument to scan")
	tolerance := flag.Float64("tolerance", usecase.DefaultTolerancePercent, "confluence tolerance percent")
	flag.Parse()

	log, err := logger.NewLogger("warn")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	market := marketdata.NewClient("", "", nil, log)
	fetcher := usecase.NewTimeframeFetcher(market, analysis.NewEngine(), nil, log)

	// Everything on: each timeframe, strategy, and direction.
	cfg := usecase.DefaultVisibilityConfig(domain.Timeframes, domain.FibStrategies)
	for _, tf := range domain.Timeframes {
		cfg = usecase.WithTimeframeEnabled(cfg, tf, true)
		for _, st := range domain.FibStrategies {
			cfg = usecase.WithDirectionEnabled(cfg, tf, st, domain.DirectionLong, true)
			cfg = usecase.WithDirectionEnabled(cfg, tf, st, domain.DirectionShort, true)
		}
	}

	done := make(chan struct{})
	aggregator := usecase.NewAggregator(fetcher, market, cfg, log,
		usecase.WithTolerance(*tolerance),
		usecase.WithUpdateHook(func() { close(done) }))
	aggregator.SetSymbol(*symbol)

	select {
	case <-done:
	case <-time.After(2 * time.Minute):
		fmt.Println("timed out waiting for aggregation")
		os.Exit(1)
	}

	fmt.Printf("=== %s levels ===\n", *symbol)
	for _, l := range aggregator.UniqueLevels() {
		fmt.Printf("%-4s %-12s %-5s %-8s %12.4f heat=%d\n",
			l.Timeframe, l.Strategy, l.Direction, l.Label, l.Price, l.Heat)
	}

	fmt.Printf("\n=== confluence zones (tolerance %.2f%%) ===\n", *tolerance)
	for _, z := range aggregator.Zones() {
		fmt.Printf("%-8s %12.4f - %12.4f center=%12.4f levels=%d dir=%-7s strength=%d (%s)\n",
			z.ID, z.LowPrice, z.HighPrice, z.CenterPrice, z.LevelCount, z.Direction,
			z.Strength, usecase.StrengthLabel(z.Strength))
	}

	for tf, msg := range aggregator.Errors() {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", tf, msg)
	}
}
