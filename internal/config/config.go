package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ValidationError reports an invalid configuration value. It is the only
// error class that is fatal at daemon startup.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds all devlog configuration.
type Config struct {
	// BaseDir is the root of the on-disk layout: devlog.db plus memory/.
	BaseDir string

	Server    ServerConfig
	Watcher   WatcherConfig
	Decay     DecayConfig
	Promotion PromotionConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type WatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// StuckAfter is the watchdog threshold: processing records older than
	// this are treated as abandoned and returned to pending.
	StuckAfter time.Duration
}

type DecayConfig struct {
	DailyFactor   float64
	WeeklyFactor  float64
	MonthlyFactor float64
	// Floor is the score below which an entry is pruned.
	Floor float64
}

type PromotionConfig struct {
	// OccurrenceThreshold promotes a candidate observed in this many
	// distinct sessions.
	OccurrenceThreshold int
	// ScoreThreshold promotes a candidate whose accumulated score reaches it.
	ScoreThreshold float64
	// StaleAfter removes candidates not seen for this long without promoting.
	StaleAfter time.Duration
}

// DefaultBaseDir returns ~/.devlog.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".devlog"), nil
}

// Default returns a Config with sensible defaults. BaseDir is left empty and
// resolved by Load.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37717,
		},
		Watcher: WatcherConfig{
			PollInterval: 15 * time.Second,
			BatchSize:    10,
			MaxAttempts:  3,
			StuckAfter:   10 * time.Minute,
		},
		Decay: DecayConfig{
			DailyFactor:   0.90,
			WeeklyFactor:  0.60,
			MonthlyFactor: 0.45,
			Floor:         0.05,
		},
		Promotion: PromotionConfig{
			OccurrenceThreshold: 4,
			ScoreThreshold:      5.0,
			StaleAfter:          30 * 24 * time.Hour,
		},
	}
}

// Load builds the effective configuration: defaults, then environment
// overrides (DEVLOG_DIR, DEVLOG_PORT), then validation.
func Load() (Config, error) {
	cfg := Default()

	if dir := os.Getenv("DEVLOG_DIR"); dir != "" {
		cfg.BaseDir = dir
	}
	if cfg.BaseDir == "" {
		dir, err := DefaultBaseDir()
		if err != nil {
			return cfg, err
		}
		cfg.BaseDir = dir
	}

	if port := os.Getenv("DEVLOG_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return cfg, &ValidationError{Field: "DEVLOG_PORT", Reason: "not a number"}
		}
		cfg.Server.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return &ValidationError{Field: "base_dir", Reason: "empty"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Reason: "out of range"}
	}
	if c.Watcher.BatchSize <= 0 {
		return &ValidationError{Field: "watcher.batch_size", Reason: "must be positive"}
	}
	if c.Watcher.MaxAttempts <= 0 {
		return &ValidationError{Field: "watcher.max_attempts", Reason: "must be positive"}
	}
	if c.Watcher.PollInterval <= 0 {
		return &ValidationError{Field: "watcher.poll_interval", Reason: "must be positive"}
	}
	// A non-positive watchdog threshold would reclaim freshly-claimed
	// events mid-batch.
	if c.Watcher.StuckAfter <= 0 {
		return &ValidationError{Field: "watcher.stuck_after", Reason: "must be positive"}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"decay.daily_factor", c.Decay.DailyFactor},
		{"decay.weekly_factor", c.Decay.WeeklyFactor},
		{"decay.monthly_factor", c.Decay.MonthlyFactor},
	} {
		if f.value <= 0 || f.value >= 1 {
			return &ValidationError{Field: f.name, Reason: "must be in (0, 1)"}
		}
	}
	if c.Decay.Floor < 0 || c.Decay.Floor >= 1 {
		return &ValidationError{Field: "decay.floor", Reason: "must be in [0, 1)"}
	}
	if c.Promotion.OccurrenceThreshold <= 0 {
		return &ValidationError{Field: "promotion.occurrence_threshold", Reason: "must be positive"}
	}
	if c.Promotion.ScoreThreshold <= 0 {
		return &ValidationError{Field: "promotion.score_threshold", Reason: "must be positive"}
	}
	if c.Promotion.StaleAfter <= 0 {
		return &ValidationError{Field: "promotion.stale_after", Reason: "must be positive"}
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
