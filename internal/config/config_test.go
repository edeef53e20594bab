package config

import (
	"os"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

const validConfig = `
feed:
  base_url: "http://localhost:8040"

estimators:
  ml_url: "http://localhost:8050"
  historical_url: "http://localhost:8051"
  timeout: 30s

scheduler:
  poll_interval: 15s
  min_minute: 55
  max_minute: 95
  max_concurrent: 4

throttle:
  key_minutes: [59, 60, 69, 70, 79, 80]
  late_game_threshold: 75
  late_game_cooldown: 30s
  standard_cooldown: 60s

ensemble:
  ml_weight: 0.7
  historical_weight: 0.3

storage:
  db_path: "./data/test.db"

telegram:
  enabled: false

logging:
  level: "info"
  format: "json"
`

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Scheduler.PollInterval != 15*time.Second {
		t.Errorf("poll interval = %v, want 15s", cfg.Scheduler.PollInterval)
	}
	if cfg.Ensemble.MLWeight != 0.7 {
		t.Errorf("ml weight = %f, want 0.7", cfg.Ensemble.MLWeight)
	}
	if len(cfg.Throttle.KeyMinutes) != 6 {
		t.Errorf("key minutes = %v, want 6 entries", cfg.Throttle.KeyMinutes)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	// A minimal file gets every knob from defaults.
	path := writeConfig(t, "feed:\n  base_url: \"http://localhost:8040\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed on defaults: %v", err)
	}

	if cfg.Scheduler.MinMinute != 55 || cfg.Scheduler.MaxMinute != 95 {
		t.Errorf("minute band = %d-%d, want 55-95", cfg.Scheduler.MinMinute, cfg.Scheduler.MaxMinute)
	}
	if cfg.Throttle.StandardCooldown != 60*time.Second {
		t.Errorf("standard cooldown = %v, want 60s", cfg.Throttle.StandardCooldown)
	}
	if cfg.Estimators.Timeout != 30*time.Second {
		t.Errorf("estimator timeout = %v, want 30s", cfg.Estimators.Timeout)
	}
	if cfg.Thresholds.HighConfidence != 0.6 || cfg.Thresholds.MediumConfidence != 0.4 {
		t.Errorf("confidence tiers = %f/%f, want 0.6/0.4",
			cfg.Thresholds.HighConfidence, cfg.Thresholds.MediumConfidence)
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load(writeConfig(t, validConfig))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights not summing to 1", func(c *Config) { c.Ensemble.MLWeight = 0.8 }},
		{"negative weight", func(c *Config) {
			c.Ensemble.MLWeight = -0.3
			c.Ensemble.HistoricalWeight = 1.3
		}},
		{"inverted minute band", func(c *Config) { c.Scheduler.MaxMinute = 40 }},
		{"zero workers", func(c *Config) { c.Scheduler.MaxConcurrent = 0 }},
		{"empty key minutes", func(c *Config) { c.Throttle.KeyMinutes = nil }},
		{"zero cooldown", func(c *Config) { c.Throttle.StandardCooldown = 0 }},
		{"inverted confidence tiers", func(c *Config) { c.Thresholds.MediumConfidence = 0.9 }},
		{"inverted probability bands", func(c *Config) { c.Thresholds.LowProb = 0.9 }},
		{"threshold out of range", func(c *Config) { c.Thresholds.HighProb = 1.5 }},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
