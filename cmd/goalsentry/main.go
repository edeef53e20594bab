package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdals-gh/goalsentry/internal/alerting"
	"github.com/jdals-gh/goalsentry/internal/config"
	"github.com/jdals-gh/goalsentry/internal/ensemble"
	"github.com/jdals-gh/goalsentry/internal/estimator"
	"github.com/jdals-gh/goalsentry/internal/feed"
	"github.com/jdals-gh/goalsentry/internal/logger"
	"github.com/jdals-gh/goalsentry/internal/scheduler"
	"github.com/jdals-gh/goalsentry/internal/storage"
	"github.com/jdals-gh/goalsentry/internal/telegram"
	"github.com/jdals-gh/goalsentry/internal/throttle"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	thr := throttle.New(throttle.Config{
		KeyMinutes:        cfg.Throttle.KeyMinutes,
		LateGameThreshold: cfg.Throttle.LateGameThreshold,
		LateGameCooldown:  cfg.Throttle.LateGameCooldown,
		StandardCooldown:  cfg.Throttle.StandardCooldown,
	})
	if records, err := store.LoadCalculationRecords(); err != nil {
		logger.Warn("Failed to load persisted calculation records: %v", err)
	} else if len(records) > 0 {
		thr.Restore(records)
		logger.Info("Restored %d calculation records", len(records))
	}

	var notifier alerting.Notifier
	var status scheduler.StatusNotifier
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = tg
		status = tg
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	alerts, err := alerting.New(notifier, store, alerting.Config{
		HighConfidence: cfg.Thresholds.HighConfidence,
		HighProb:       cfg.Thresholds.HighProb,
		MaxAttempts:    cfg.Alerting.MaxAttempts,
	})
	if err != nil {
		logger.Fatal("Failed to initialize alert manager: %v", err)
	}

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout,
		cfg.Feed.MaxRetries, cfg.Feed.RetryDelayBase)
	mlClient := estimator.NewMLClient(cfg.Estimators.MLURL, cfg.Estimators.Timeout)
	histClient := estimator.NewHistoricalClient(cfg.Estimators.HistoricalURL, cfg.Estimators.Timeout)

	sched := scheduler.New(scheduler.Config{
		PollInterval:     cfg.Scheduler.PollInterval,
		MinMinute:        cfg.Scheduler.MinMinute,
		MaxMinute:        cfg.Scheduler.MaxMinute,
		MaxConcurrent:    cfg.Scheduler.MaxConcurrent,
		EstimatorTimeout: cfg.Estimators.Timeout,
		MaintenanceEvery: cfg.Scheduler.MaintenanceEvery,
		ShutdownGrace:    cfg.Scheduler.ShutdownGrace,
		StalenessBound:   cfg.Scheduler.StalenessBound,
		RecordRetention:  cfg.Throttle.RecordRetention,
		AlertRetention:   cfg.Alerting.AlertRetention,
		Weights: ensemble.Weights{
			ML:         cfg.Ensemble.MLWeight,
			Historical: cfg.Ensemble.HistoricalWeight,
		},
		Thresholds: ensemble.Thresholds{
			HighConfidence:   cfg.Thresholds.HighConfidence,
			MediumConfidence: cfg.Thresholds.MediumConfidence,
			HighProb:         cfg.Thresholds.HighProb,
			LowProb:          cfg.Thresholds.LowProb,
			UncertainLow:     cfg.Thresholds.UncertainLow,
			UncertainHigh:    cfg.Thresholds.UncertainHigh,
			ConsiderProb:     cfg.Thresholds.ConsiderProb,
		},
	}, scheduler.Deps{
		Source:     feedClient,
		ML:         mlClient,
		Historical: histClient,
		Sink:       store,
		Alerts:     alerts,
		Throttle:   thr,
		Maintainer: store,
		Status:     status,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Telegram.Enabled && status != nil {
		if tg, ok := status.(*telegram.Client); ok {
			tg.ListenForCommands(ctx)
		}
	}

	sched.Run(ctx)

	if err := store.SaveCalculationRecords(thr.Records()); err != nil {
		logger.Error("Failed to checkpoint calculation records: %v", err)
	} else {
		logger.Info("Checkpointed %d calculation records", len(thr.Records()))
	}

	logger.Info("Service stopped")
}
