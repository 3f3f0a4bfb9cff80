package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Events     EventsConfig     `yaml:"events"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Learning   LearningConfig   `yaml:"learning"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type EventsConfig struct {
	URL           string `yaml:"url"`
	RetentionDays int    `yaml:"retention_days"`
}

type ScoringConfig struct {
	CriteriaPath   string `yaml:"criteria_path"`
	Workers        int    `yaml:"workers"`
	StaleAfterDays int    `yaml:"stale_after_days"`
}

type LearningConfig struct {
	MinLikes            int     `yaml:"min_likes"`
	MinDislikes         int     `yaml:"min_dislikes"`
	TopK                int     `yaml:"top_k"`
	Delta               float64 `yaml:"delta"`
	RecomputeIntervalMs int     `yaml:"recompute_interval_ms"`
}

type EnrichmentConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	FallbackURL   string `yaml:"fallback_url"`
	FallbackToken string `yaml:"fallback_token"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	TopN          int    `yaml:"top_n"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RecomputeInterval() time.Duration {
	return time.Duration(c.Learning.RecomputeIntervalMs) * time.Millisecond
}

func (c *Config) EnrichmentTimeout() time.Duration {
	return time.Duration(c.Enrichment.TimeoutMs) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Scoring.StaleAfterDays) * 24 * time.Hour
}

func (c *Config) EventRetention() time.Duration {
	return time.Duration(c.Events.RetentionDays) * 24 * time.Hour
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Events: EventsConfig{
			URL:           "nats://localhost:4222",
			RetentionDays: 30,
		},
		Scoring: ScoringConfig{
			CriteriaPath:   "criteria.yaml",
			Workers:        4,
			StaleAfterDays: 21,
		},
		Learning: LearningConfig{
			MinLikes:            3,
			MinDislikes:         2,
			TopK:                3,
			Delta:               0.05,
			RecomputeIntervalMs: 60000,
		},
		Enrichment: EnrichmentConfig{
			Model:     "gemini-2.5-flash",
			TimeoutMs: 8000,
			TopN:      5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HOMEMATCH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("HOMEMATCH_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("HOMEMATCH_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("HOMEMATCH_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("HOMEMATCH_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("HOMEMATCH_CRITERIA_PATH"); v != "" {
		cfg.Scoring.CriteriaPath = v
	}
	if v := os.Getenv("HOMEMATCH_GEMINI_API_KEY"); v != "" {
		cfg.Enrichment.APIKey = v
		cfg.Enrichment.Enabled = true
	}
	if v := os.Getenv("HOMEMATCH_ENRICHMENT_FALLBACK_URL"); v != "" {
		cfg.Enrichment.FallbackURL = v
	}
	if v := os.Getenv("HOMEMATCH_RECOMPUTE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Learning.RecomputeIntervalMs = n
		}
	}
	if v := os.Getenv("HOMEMATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
