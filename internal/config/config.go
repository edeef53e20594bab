package config

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed       FeedConfig       `mapstructure:"feed"`
	Estimators EstimatorsConfig `mapstructure:"estimators"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
	Ensemble   EnsembleConfig   `mapstructure:"ensemble"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// FeedConfig holds live-score feed configuration
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// EstimatorsConfig holds the two probability-source endpoints
type EstimatorsConfig struct {
	MLURL         string        `mapstructure:"ml_url"`
	HistoricalURL string        `mapstructure:"historical_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds the polling loop configuration
type SchedulerConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MinMinute        int           `mapstructure:"min_minute"`
	MaxMinute        int           `mapstructure:"max_minute"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	MaintenanceEvery int           `mapstructure:"maintenance_every"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace"`
	StalenessBound   time.Duration `mapstructure:"staleness_bound"`
}

// ThrottleConfig holds calculation cooldown configuration
type ThrottleConfig struct {
	KeyMinutes        []int         `mapstructure:"key_minutes"`
	LateGameThreshold int           `mapstructure:"late_game_threshold"`
	LateGameCooldown  time.Duration `mapstructure:"late_game_cooldown"`
	StandardCooldown  time.Duration `mapstructure:"standard_cooldown"`
	RecordRetention   time.Duration `mapstructure:"record_retention"`
}

// EnsembleConfig holds the source weights. They must sum to 1.
type EnsembleConfig struct {
	MLWeight         float64 `mapstructure:"ml_weight"`
	HistoricalWeight float64 `mapstructure:"historical_weight"`
}

// ThresholdsConfig holds confidence tiers and probability bands
type ThresholdsConfig struct {
	HighConfidence   float64 `mapstructure:"high_confidence"`
	MediumConfidence float64 `mapstructure:"medium_confidence"`
	HighProb         float64 `mapstructure:"high_prob"`
	LowProb          float64 `mapstructure:"low_prob"`
	UncertainLow     float64 `mapstructure:"uncertain_low"`
	UncertainHigh    float64 `mapstructure:"uncertain_high"`
	ConsiderProb     float64 `mapstructure:"consider_prob"`
}

// AlertingConfig holds alert delivery and retention configuration
type AlertingConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AlertRetention time.Duration `mapstructure:"alert_retention"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("GOALSENTRY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.base_url", "http://localhost:8040")
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.retry_delay_base", "1s")

	v.SetDefault("estimators.ml_url", "http://localhost:8050")
	v.SetDefault("estimators.historical_url", "http://localhost:8051")
	v.SetDefault("estimators.timeout", "30s")

	v.SetDefault("scheduler.poll_interval", "15s")
	v.SetDefault("scheduler.min_minute", 55)
	v.SetDefault("scheduler.max_minute", 95)
	v.SetDefault("scheduler.max_concurrent", 4)
	v.SetDefault("scheduler.maintenance_every", 20)
	v.SetDefault("scheduler.shutdown_grace", "30s")
	v.SetDefault("scheduler.staleness_bound", "5m")

	v.SetDefault("throttle.key_minutes", []int{59, 60, 69, 70, 79, 80})
	v.SetDefault("throttle.late_game_threshold", 75)
	v.SetDefault("throttle.late_game_cooldown", "30s")
	v.SetDefault("throttle.standard_cooldown", "60s")
	v.SetDefault("throttle.record_retention", "24h")

	v.SetDefault("ensemble.ml_weight", 0.7)
	v.SetDefault("ensemble.historical_weight", 0.3)

	v.SetDefault("thresholds.high_confidence", 0.6)
	v.SetDefault("thresholds.medium_confidence", 0.4)
	v.SetDefault("thresholds.high_prob", 0.7)
	v.SetDefault("thresholds.low_prob", 0.3)
	v.SetDefault("thresholds.uncertain_low", 0.4)
	v.SetDefault("thresholds.uncertain_high", 0.6)
	v.SetDefault("thresholds.consider_prob", 0.8)

	v.SetDefault("alerting.max_attempts", 3)
	v.SetDefault("alerting.alert_retention", "48h")

	v.SetDefault("storage.db_path", "./data/goalsentry.db")

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid. Misconfiguration
// fails the process at startup rather than surfacing mid-run.
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if c.Estimators.MLURL == "" {
		return fmt.Errorf("estimators.ml_url is required")
	}
	if c.Estimators.HistoricalURL == "" {
		return fmt.Errorf("estimators.historical_url is required")
	}
	if c.Estimators.Timeout <= 0 {
		return fmt.Errorf("estimators.timeout must be positive")
	}

	if c.Scheduler.PollInterval < time.Second {
		return fmt.Errorf("scheduler.poll_interval must be at least 1 second")
	}
	if c.Scheduler.MinMinute < 0 {
		return fmt.Errorf("scheduler.min_minute must not be negative")
	}
	if c.Scheduler.MaxMinute <= c.Scheduler.MinMinute {
		return fmt.Errorf("scheduler.max_minute must be greater than scheduler.min_minute")
	}
	if c.Scheduler.MaxConcurrent < 1 {
		return fmt.Errorf("scheduler.max_concurrent must be at least 1")
	}
	if c.Scheduler.MaintenanceEvery < 1 {
		return fmt.Errorf("scheduler.maintenance_every must be at least 1")
	}

	if len(c.Throttle.KeyMinutes) == 0 {
		return fmt.Errorf("throttle.key_minutes must contain at least one minute")
	}
	for _, m := range c.Throttle.KeyMinutes {
		if m < 0 {
			return fmt.Errorf("throttle.key_minutes must not contain negative minutes")
		}
	}
	if c.Throttle.LateGameThreshold < 0 {
		return fmt.Errorf("throttle.late_game_threshold must not be negative")
	}
	if c.Throttle.LateGameCooldown <= 0 || c.Throttle.StandardCooldown <= 0 {
		return fmt.Errorf("throttle cooldowns must be positive")
	}
	if c.Throttle.RecordRetention <= 0 {
		return fmt.Errorf("throttle.record_retention must be positive")
	}

	if c.Ensemble.MLWeight < 0 || c.Ensemble.MLWeight > 1 {
		return fmt.Errorf("ensemble.ml_weight must be between 0.0 and 1.0")
	}
	if c.Ensemble.HistoricalWeight < 0 || c.Ensemble.HistoricalWeight > 1 {
		return fmt.Errorf("ensemble.historical_weight must be between 0.0 and 1.0")
	}
	if sum := c.Ensemble.MLWeight + c.Ensemble.HistoricalWeight; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("ensemble weights must sum to 1.0, got %.4f", sum)
	}

	t := c.Thresholds
	for name, val := range map[string]float64{
		"thresholds.high_confidence":   t.HighConfidence,
		"thresholds.medium_confidence": t.MediumConfidence,
		"thresholds.high_prob":         t.HighProb,
		"thresholds.low_prob":          t.LowProb,
		"thresholds.uncertain_low":     t.UncertainLow,
		"thresholds.uncertain_high":    t.UncertainHigh,
		"thresholds.consider_prob":     t.ConsiderProb,
	} {
		if val < 0.0 || val > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0", name)
		}
	}
	if t.MediumConfidence >= t.HighConfidence {
		return fmt.Errorf("thresholds.medium_confidence must be below thresholds.high_confidence")
	}
	if t.LowProb >= t.HighProb {
		return fmt.Errorf("thresholds.low_prob must be below thresholds.high_prob")
	}
	if t.UncertainLow >= t.UncertainHigh {
		return fmt.Errorf("thresholds.uncertain_low must be below thresholds.uncertain_high")
	}

	if c.Alerting.MaxAttempts < 1 {
		return fmt.Errorf("alerting.max_attempts must be at least 1")
	}
	if c.Alerting.AlertRetention <= 0 {
		return fmt.Errorf("alerting.alert_retention must be positive")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}

	return nil
}
