package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"FairValue/internal/cache"
	"FairValue/internal/calculator"
	"FairValue/internal/collector"
	"FairValue/internal/config"
	"FairValue/internal/decmath"
	"FairValue/internal/logger"
	"FairValue/internal/model"
	"FairValue/internal/notifier"
	"FairValue/internal/profiler"
	"FairValue/internal/recorder"
	"FairValue/internal/scheduler"
	"FairValue/internal/sensitivity"
	"FairValue/internal/valuation"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Error().Err(err).Msg("Failed to load config")
		return 1
	}

	log, logCloser, err := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, File: cfg.Log.File})
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Error().Err(err).Msg("Failed to init logger")
		return 1
	}
	defer logCloser.Close()
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid config")
		return 1
	}
	log.Info().Str("config", cfgPath).Msg("FairValue starting")

	// Engine
	prof := profiler.New(profiler.Options{
		SlowThreshold: cfg.Profiler.SlowThreshold,
		Window:        cfg.Profiler.Window,
	}, log)
	dmath := decmath.New(decmath.Options{
		PowerCacheSize:      cfg.Math.PowerCapacity,
		ProjectionCacheSize: cfg.Math.ProjectionCapacity,
		Profiler:            prof,
	})
	calc := calculator.New(dmath, prof)
	results := cache.NewResults(cache.Options{TTL: cfg.Cache.ResultTTL, Capacity: cfg.Cache.ResultCapacity}, log)
	sens := sensitivity.New(calc, sensitivity.Options{Workers: cfg.Valuation.SensitivityWorkers}, log)

	// Data sources
	var provider collector.Provider
	switch cfg.DataSource.Provider {
	case "rest":
		provider = collector.NewRESTProvider(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.Timeout)
	default:
		provider = collector.NewStandInProvider()
	}
	snapshots := collector.NewCachingProvider(provider, cache.Options{TTL: cfg.Cache.SnapshotTTL, Capacity: cfg.Cache.SnapshotCapacity}, log)

	var prices collector.PriceSource
	switch cfg.DataSource.PriceSource {
	case "yahoo":
		prices = collector.NewYahooPriceSource(cfg.Proxy, cfg.DataSource.Timeout)
	default:
		prices = collector.NewStaticPriceSource(nil)
	}
	log.Info().Str("provider", provider.Name()).Str("prices", prices.Name()).Msg("Data sources ready")
	col := collector.New(snapshots, prices, log)

	// Init recorder
	rec := openRecorder(context.Background(), cfg, log)
	defer rec.Close()

	svc := valuation.New(col, calc, results, sens, rec, log)
	mon := profiler.NewMonitor(profiler.MonitorOptions{
		SlowThreshold:   cfg.Profiler.SlowThreshold,
		AlertPercentage: cfg.Profiler.AlertPercent,
	}, prof, log, results, snapshots.Store(), dmath)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sender notifier.Sender
	if cfg.NotifierEnabled() {
		tg := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = notifier.NewRetry(tg, 4, time.Second, log)
	}

	// One-shot mode: fairvalue AAPL MSFT
	if tickers := os.Args[1:]; len(tickers) > 0 {
		return valueOnce(ctx, svc, sender, cfg, tickers, log)
	}

	discount, growth, terminal, _ := cfg.DefaultRates()
	sched := scheduler.NewScheduler(ctx, svc, mon, rec, sender, scheduler.Revaluation{
		Tickers:         cfg.Valuation.WatchTickers,
		DiscountRate:    discount,
		GrowthRate:      growth,
		TerminalGrowth:  terminal,
		ProjectionYears: cfg.Valuation.ProjectionYears,
	}, log, results, snapshots.Store())
	if err := sched.RegisterAll(cfg.Schedule.ReportCron, cfg.Schedule.SweepCron, cfg.Schedule.RevalueCron); err != nil {
		log.Error().Err(err).Msg("Failed to register cron tasks")
		return 1
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, revaluing watch list now")
		go sched.RunRevaluationNow()
	}

	log.Info().Msg("FairValue is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, stopping...")
	return 0
}

// valueOnce prints each result as JSON and, when a sender is configured,
// also delivers it to the chat.
func valueOnce(ctx context.Context, svc *valuation.Service, sender notifier.Sender, cfg *config.Config, tickers []string, log zerolog.Logger) int {
	discount, growth, terminal, _ := cfg.DefaultRates()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	code := 0
	for _, t := range tickers {
		res, err := svc.Calculate(ctx, model.NewDCFInput(t, discount, growth, terminal, cfg.Valuation.ProjectionYears))
		if res == nil {
			log.Error().Err(err).Str("ticker", t).Msg("Valuation failed")
			code = 1
			continue
		}
		if err := enc.Encode(res); err != nil {
			log.Error().Err(err).Msg("Failed to write result")
			code = 1
		}
		if sender != nil {
			if err := sender.Send(ctx, notifier.FormatValuation(res.Output, res.Warnings)); err != nil {
				log.Warn().Err(err).Str("ticker", t).Msg("Failed to send valuation")
			}
		}
	}
	return code
}

// openRecorder returns a noop recorder when the database cannot be opened.
func openRecorder(ctx context.Context, cfg *config.Config, log zerolog.Logger) recorder.Recorder {
	switch cfg.Database.Driver {
	case "postgres":
		pr, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresDSN, log)
		if err != nil {
			log.Warn().Err(err).Msg("Init postgres recorder failed, using noop")
			return recorder.NewNoopRecorder()
		}
		return pr
	default:
		if cfg.Database.SQLitePath == "" {
			return recorder.NewNoopRecorder()
		}
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("Init sqlite recorder failed, using noop")
			return recorder.NewNoopRecorder()
		}
		return sr
	}
}
