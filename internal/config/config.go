// Package config holds all caretrace configuration.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caretrace/caretrace/internal/engagement"
	"github.com/caretrace/caretrace/internal/scoring"
)

// Config holds runtime settings. Defaults come from Default(); a handful of
// environment variables override them at startup.
type Config struct {
	Server    ServerConfig              `toml:"server"`
	Database  DatabaseConfig            `toml:"database"`
	Embedding EmbeddingConfig           `toml:"embedding"`
	Scoring   ScoringConfig             `toml:"scoring"`
	Memory    MemoryConfig              `toml:"memory"`
	FollowUp  engagement.FollowUpConfig `toml:"followup"`
	Worker    WorkerConfig              `toml:"worker"`
	Scheduler SchedulerConfig           `toml:"scheduler"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type EmbeddingConfig struct {
	OllamaURL  string `toml:"ollama_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

type ScoringConfig struct {
	WindowDays     int             `toml:"window_days"`
	Weights        scoring.Weights `toml:"weights"`
	TrendThreshold float64         `toml:"trend_threshold"`
	TrendEpsilon   float64         `toml:"trend_epsilon"`
}

type MemoryConfig struct {
	TopK            int     `toml:"top_k"`
	GraceMultiplier float64 `toml:"grace_multiplier"`
}

type WorkerConfig struct {
	Concurrency     int     `toml:"concurrency"`
	RatePerSec      float64 `toml:"rate_per_sec"`
	DebounceMinutes int     `toml:"debounce_minutes"`
	MaxAttempts     int     `toml:"max_attempts"`
}

type SchedulerConfig struct {
	FollowUpHours int `toml:"followup_hours"`
	CleanupHours  int `toml:"cleanup_hours"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38200,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Embedding: EmbeddingConfig{
			OllamaURL:  "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Scoring: ScoringConfig{
			WindowDays:     30,
			Weights:        scoring.DefaultWeights(),
			TrendThreshold: 0.05,
			TrendEpsilon:   0.1,
		},
		Memory: MemoryConfig{
			TopK:            5,
			GraceMultiplier: 2.0,
		},
		FollowUp: engagement.DefaultFollowUpConfig(),
		Worker: WorkerConfig{
			Concurrency:     5,
			RatePerSec:      10,
			DebounceMinutes: 5,
			MaxAttempts:     3,
		},
		Scheduler: SchedulerConfig{
			FollowUpHours: 24,
			CleanupHours:  24,
		},
	}
}

// Load returns Default() with environment-variable overrides applied.
func Load() Config {
	cfg := Default()

	if v := os.Getenv("CARETRACE_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CARETRACE_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	cfg.Server.Port = getEnvInt("CARETRACE_PORT", cfg.Server.Port)
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Embedding.OllamaURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	cfg.Scoring.WindowDays = getEnvInt("SCORING_WINDOW_DAYS", cfg.Scoring.WindowDays)
	cfg.FollowUp.AbandonAfterDays = getEnvInt("ABANDON_AFTER_DAYS", cfg.FollowUp.AbandonAfterDays)

	return cfg
}

// ListenAddr formats the server bind address.
func (c Config) ListenAddr() string {
	return c.Server.Bind + ":" + strconv.Itoa(c.Server.Port)
}

// DebounceWindow returns the worker debounce window as a duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.Worker.DebounceMinutes) * time.Minute
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
