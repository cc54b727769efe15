package config

import (
	"errors"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.BaseDir = "/tmp/devlog-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base dir", func(c *Config) { c.BaseDir = "" }},
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"batch size", func(c *Config) { c.Watcher.BatchSize = 0 }},
		{"max attempts", func(c *Config) { c.Watcher.MaxAttempts = -1 }},
		{"poll interval", func(c *Config) { c.Watcher.PollInterval = 0 }},
		{"daily factor", func(c *Config) { c.Decay.DailyFactor = 1.0 }},
		{"weekly factor", func(c *Config) { c.Decay.WeeklyFactor = 0 }},
		{"floor", func(c *Config) { c.Decay.Floor = 1.0 }},
		{"occurrence threshold", func(c *Config) { c.Promotion.OccurrenceThreshold = 0 }},
		{"stuck after", func(c *Config) { c.Watcher.StuckAfter = 0 }},
		{"score threshold", func(c *Config) { c.Promotion.ScoreThreshold = -1 }},
		{"stale after", func(c *Config) { c.Promotion.StaleAfter = 0 }},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.BaseDir = "/tmp/devlog-test"
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: err = %T, want *ValidationError", tc.name, err)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEVLOG_DIR", "/tmp/devlog-env")
	t.Setenv("DEVLOG_PORT", "4242")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDir != "/tmp/devlog-env" {
		t.Errorf("base dir = %q", cfg.BaseDir)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("DEVLOG_DIR", "/tmp/devlog-env")
	t.Setenv("DEVLOG_PORT", "lots")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
