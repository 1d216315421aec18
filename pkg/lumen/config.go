package lumen

import (
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"

	"code.hybscloud.com/lumen/internal/lumen/diag"
)

// Config is the host-process configuration a cmd/lumen-style driver loads
// from a TOML file: sandbox defaults, pool sizing, and logging, the
// ambient stack SPEC_FULL.md §1.1 calls for alongside the execution
// substrate itself.
type Config struct {
	InstructionBudget int       `toml:"instruction_budget"`
	MemoryLimit       int       `toml:"memory_limit"`
	MaxConcurrency    int64     `toml:"max_concurrency"`
	Log               LogConfig `toml:"log"`
}

// LogConfig mirrors diag.Options' shape in TOML-friendly form.
type LogConfig struct {
	Level      string `toml:"level"`
	FilePath   string `toml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// DefaultConfig returns the configuration a host gets with no config file
// present: unlimited budget, a modest default pool size, info-level
// logging to stderr only.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Log:            LogConfig{Level: "info"},
	}
}

// LoadConfig reads and decodes a TOML configuration file at path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// slogLevel parses LogConfig.Level ("debug"/"info"/"warn"/"error",
// case-insensitively) into a slog.Level, defaulting to Info on anything
// else rather than failing the whole config load over a logging typo.
func (c LogConfig) slogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds a diag.Logger from this config's Log section.
func (c Config) Logger() *diag.Logger {
	lc := c.Log
	return diag.NewLogger(diag.Options{
		Level:      lc.slogLevel(),
		FilePath:   lc.FilePath,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
	})
}
