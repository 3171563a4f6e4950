package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/fib_confluence/internal/domain"
	"github.com/vitos/fib_confluence/internal/infrastructure/analysisapi"
	"github.com/vitos/fib_confluence/internal/infrastructure/logger"
	"github.com/vitos/fib_confluence/internal/infrastructure/marketdata"
	"github.com/vitos/fib_confluence/internal/infrastructure/storage"
	"github.com/vitos/fib_confluence/internal/usecase"
	"github.com/vitos/fib_confluence/internal/web"

	localanalysis "github.com/vitos/fib_confluence/internal/analysis"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol string `yaml:"symbol"`
	Market struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"market"`
	Analysis struct {
		Mode     string `yaml:"mode"` // "local" or "remote"
		Endpoint string `yaml:"endpoint"`
	} `yaml:"analysis"`
	Confluence struct {
		TolerancePercent float64 `yaml:"tolerance_percent"`
		DebounceMs       int     `yaml:"debounce_ms"`
	} `yaml:"confluence"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "dashboard.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Market Data Provider
	market := marketdata.NewClient(cfg.Market.RESTEndpoint, cfg.Market.WSEndpoint, store, log)
	defer market.Close()

	// 5. Init Analysis Service
	var analysis domain.AnalysisService
	if cfg.Analysis.Mode == "remote" && cfg.Analysis.Endpoint != "" {
		analysis = analysisapi.NewClient(cfg.Analysis.Endpoint)
	} else {
		analysis = localanalysis.NewEngine()
	}

	// 6. Restore or regenerate the visibility config
	ctx := context.Background()
	visibility, err := store.LoadVisibilityConfig(ctx)
	if err != nil {
		log.Error("Failed to load visibility config", zap.Error(err))
	}
	if visibility == nil {
		defaults := usecase.DefaultVisibilityConfig(domain.Timeframes, domain.FibStrategies)
		visibility = &defaults
		if err := store.SaveVisibilityConfig(ctx, visibility); err != nil {
			log.Error("Failed to persist default config", zap.Error(err))
		}
	}

	// 7. Init Aggregator
	fetcher := usecase.NewTimeframeFetcher(market, analysis, store, log)
	opts := []usecase.AggregatorOption{}
	if cfg.Confluence.TolerancePercent > 0 {
		opts = append(opts, usecase.WithTolerance(cfg.Confluence.TolerancePercent))
	}
	if cfg.Confluence.DebounceMs > 0 {
		opts = append(opts, usecase.WithDebounce(time.Duration(cfg.Confluence.DebounceMs)*time.Millisecond))
	}
	aggregator := usecase.NewAggregator(fetcher, market, *visibility, log, opts...)

	symbol := cfg.Symbol
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	aggregator.SetSymbol(symbol)

	// Live price stream (best effort; the overlay works without it)
	market.OnPriceUpdate(aggregator.UpdatePrice)
	if err := market.Subscribe([]string{symbol}); err != nil {
		log.Warn("Failed to subscribe to price stream", zap.Error(err))
	}

	// 8. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, aggregator, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	server.Shutdown(context.Background())
}
