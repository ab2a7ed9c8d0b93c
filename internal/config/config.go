// Package config loads settings for the stalk-market commands.
// Precedence, lowest first: defaults, YAML file, .env, process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talgya/stalk-market/internal/market"
)

// Config holds application configuration.
type Config struct {
	DBPath      string   `yaml:"db_path"`
	Port        int      `yaml:"port"`
	LogLevel    string   `yaml:"log_level"`
	Workers     int      `yaml:"workers"`      // parallel table builds
	AdminKey    string   `yaml:"admin_key"`    // bearer token for POST /rebuild; empty disables it
	APIURL      string   `yaml:"api_url"`      // used by the CLI in --remote mode
	PredictRate int      `yaml:"predict_rate"` // predictions per IP per hour
	MinBuy      int      `yaml:"min_buy"`
	MaxBuy      int      `yaml:"max_buy"`
	CORSOrigins []string `yaml:"cors_origins"` // extra browser origins allowed by the API
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBPath:      "data/stalk.db",
		Port:        8080,
		LogLevel:    "info",
		Workers:     4,
		APIURL:      "http://localhost:8080",
		PredictRate: 600,
		MinBuy:      market.MinBuyPrice,
		MaxBuy:      market.MaxBuyPrice,
	}
}

// Load reads configuration from STALK_CONFIG (if set), a .env file (if
// present) and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("STALK_CONFIG"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// godotenv never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is not an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DBPath = envOrDefault("STALK_DB_PATH", cfg.DBPath)
	cfg.Port = envIntOrDefault("STALK_PORT", cfg.Port)
	cfg.LogLevel = envOrDefault("STALK_LOG_LEVEL", cfg.LogLevel)
	cfg.Workers = envIntOrDefault("STALK_WORKERS", cfg.Workers)
	cfg.AdminKey = envOrDefault("STALK_ADMIN_KEY", cfg.AdminKey)
	cfg.APIURL = envOrDefault("STALK_API_URL", cfg.APIURL)
	cfg.PredictRate = envIntOrDefault("STALK_PREDICT_RATE", cfg.PredictRate)
	cfg.MinBuy = envIntOrDefault("STALK_MIN_BUY", cfg.MinBuy)
	cfg.MaxBuy = envIntOrDefault("STALK_MAX_BUY", cfg.MaxBuy)
	if v := os.Getenv("STALK_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.PredictRate < 1 {
		return fmt.Errorf("predict_rate must be at least 1, got %d", c.PredictRate)
	}
	if err := market.ValidateBuy(c.MinBuy); err != nil {
		return fmt.Errorf("min_buy: %w", err)
	}
	if err := market.ValidateBuy(c.MaxBuy); err != nil {
		return fmt.Errorf("max_buy: %w", err)
	}
	if c.MinBuy > c.MaxBuy {
		return fmt.Errorf("min_buy %d above max_buy %d", c.MinBuy, c.MaxBuy)
	}
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
