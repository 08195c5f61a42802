package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"quiz"`
	Session struct {
		Tick string `yaml:"tick"`
	} `yaml:"session"`
	Scoring struct {
		WeakBelow float64 `yaml:"weak_below"`
		StrongAt  float64 `yaml:"strong_at"`
	} `yaml:"scoring"`
	Events struct {
		AMQPURL  string `yaml:"amqp_url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"events"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// validate rejects scoring thresholds outside (0, 1] or in the wrong order.
// Thresholds are ratios, so 0.6 and not 60.
func (c Config) validate() error {
	weak, strong := c.Scoring.WeakBelow, c.Scoring.StrongAt
	if weak <= 0 || weak > 1 {
		return fmt.Errorf("scoring.weak_below %v: must be a ratio in (0, 1]", weak)
	}
	if strong <= 0 || strong > 1 {
		return fmt.Errorf("scoring.strong_at %v: must be a ratio in (0, 1]", strong)
	}
	if weak > strong {
		return fmt.Errorf("scoring.weak_below %v exceeds scoring.strong_at %v", weak, strong)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Scoring.WeakBelow == 0 {
		c.Scoring.WeakBelow = 0.60
	}
	if c.Scoring.StrongAt == 0 {
		c.Scoring.StrongAt = 0.80
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "quiz.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
