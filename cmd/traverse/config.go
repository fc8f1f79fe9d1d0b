package main

import (
	"os"
	"strconv"
)

// Config holds the CLI configuration.
// Priority: flags > env vars > defaults.
type Config struct {
	LogLevel string
	MaxSteps int
	Seed     int64
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		MaxSteps: 50,
	}
}

func loadConfig() Config {
	cfg := defaultConfig()

	if v := os.Getenv("TRAVERSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRAVERSE_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSteps = n
		}
	}
	if v := os.Getenv("TRAVERSE_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}

	return cfg
}
