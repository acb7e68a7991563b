// Package config loads the aggregator's configuration: environment
// variables as the primary source, with an optional YAML file overlay
// for local development. Environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the bootstrap needs to wire C1-C6 together.
type Config struct {
	DatabaseURL string `yaml:"database_url"`

	USDAAPIURL string `yaml:"usda_api_url"`
	USDAAPIKey string `yaml:"usda_api_key"`

	QuotaPerHour int           `yaml:"quota_per_hour"`
	Cooldown     time.Duration `yaml:"-"`
	MaxRetries   int           `yaml:"max_retries"`
	WorkerBound  int           `yaml:"worker_bound"`
}

const (
	defaultQuotaPerHour = 1000
	defaultCooldown     = 30 * 24 * time.Hour
	defaultMaxRetries   = 3
	defaultWorkerBound  = 10
)

// Load builds a Config from environment variables, optionally overlaid
// with a YAML file at path first (env vars set afterward still win). An
// empty path skips the file overlay.
func Load(path string) (*Config, error) {
	cfg := &Config{
		QuotaPerHour: defaultQuotaPerHour,
		Cooldown:     defaultCooldown,
		MaxRetries:   defaultMaxRetries,
		WorkerBound:  defaultWorkerBound,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.USDAAPIURL == "" {
		return nil, fmt.Errorf("USDA_API_URL is required")
	}
	if cfg.USDAAPIKey == "" {
		return nil, fmt.Errorf("USDA_API_KEY is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("USDA_API_URL"); v != "" {
		cfg.USDAAPIURL = v
	}
	if v := os.Getenv("USDA_API_KEY"); v != "" {
		cfg.USDAAPIKey = v
	}
	if v := os.Getenv("USDA_QUOTA_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QuotaPerHour = n
		}
	}
	if v := os.Getenv("AGGREGATION_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cooldown = d
		}
	}
	if v := os.Getenv("AGGREGATION_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("AGGREGATION_WORKER_BOUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerBound = n
		}
	}
}
