// Package config loads engine-wide runtime settings (sample rate, block
// size, log level) from environment variables, optionally preloading a
// .env file first.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultSampleRate = 44100.0
	defaultBlockSize  = 512
)

// Config holds the settings the engine needs at startup. Nothing here is
// mutable once loaded; a different sample rate or block size requires a
// fresh Runtime, not a live reconfiguration.
type Config struct {
	SampleRate float64
	BlockSize  int
	LogLevel   slog.Level
}

// Load reads SONORA_SAMPLE_RATE, SONORA_BLOCK_SIZE, and SONORA_LOG_LEVEL
// (falling back to LOG_LEVEL) from the environment, first attempting to
// load a .env file in the working directory if one is present. A missing
// .env file is not an error; a malformed numeric value is.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Config{
		SampleRate: defaultSampleRate,
		BlockSize:  defaultBlockSize,
		LogLevel:   logLevelFromEnv(),
	}

	if v := os.Getenv("SONORA_SAMPLE_RATE"); v != "" {
		sr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: SONORA_SAMPLE_RATE=%q: %w", v, err)
		}
		if sr <= 0 {
			return Config{}, fmt.Errorf("config: SONORA_SAMPLE_RATE=%q must be positive", v)
		}
		cfg.SampleRate = sr
	}

	if v := os.Getenv("SONORA_BLOCK_SIZE"); v != "" {
		bs, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: SONORA_BLOCK_SIZE=%q: %w", v, err)
		}
		if bs <= 0 {
			return Config{}, fmt.Errorf("config: SONORA_BLOCK_SIZE=%q must be positive", v)
		}
		cfg.BlockSize = bs
	}

	return cfg, nil
}

// logLevelFromEnv mirrors the teacher's GetLogLevelFromEnv, retargeted at
// SONORA_LOG_LEVEL with LOG_LEVEL as a shared fallback.
func logLevelFromEnv() slog.Level {
	level := os.Getenv("SONORA_LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		return slog.LevelInfo
	}

	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "config: unknown log level %q, using INFO\n", level)
		return slog.LevelInfo
	}
}
