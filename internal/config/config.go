package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr   string
	WSListenAddr string
	AdminAddr    string

	StoreBackend string // memory | postgres | redis
	DatabaseURL  string
	RedisURL     string

	PairInterval time.Duration

	MaxLineBytes int
}

// fileOverlay mirrors AppConfig for the YAML file; durations are written as
// strings ("250ms") and absent keys leave the defaults alone.
type fileOverlay struct {
	ListenAddr   string `yaml:"listen_addr"`
	WSListenAddr string `yaml:"ws_listen_addr"`
	AdminAddr    string `yaml:"admin_addr"`
	StoreBackend string `yaml:"store_backend"`
	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	PairInterval string `yaml:"pair_interval"`
	MaxLineBytes int    `yaml:"max_line_bytes"`
}

// Load reads settings from the environment, with an optional YAML overlay
// pointed at by CONFIG_FILE. Env vars win over file values.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:   ":5000",
		StoreBackend: "memory",
		PairInterval: 500 * time.Millisecond,
		MaxLineBytes: 64 * 1024,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var file fileOverlay
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		if file.ListenAddr != "" {
			cfg.ListenAddr = file.ListenAddr
		}
		if file.WSListenAddr != "" {
			cfg.WSListenAddr = file.WSListenAddr
		}
		if file.AdminAddr != "" {
			cfg.AdminAddr = file.AdminAddr
		}
		if file.StoreBackend != "" {
			cfg.StoreBackend = strings.ToLower(file.StoreBackend)
		}
		if file.DatabaseURL != "" {
			cfg.DatabaseURL = file.DatabaseURL
		}
		if file.RedisURL != "" {
			cfg.RedisURL = file.RedisURL
		}
		if file.PairInterval != "" {
			d, err := time.ParseDuration(file.PairInterval)
			if err != nil {
				return nil, fmt.Errorf("parse pair_interval: %w", err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("pair_interval must be positive, got %q", file.PairInterval)
			}
			cfg.PairInterval = d
		}
		if file.MaxLineBytes > 0 {
			cfg.MaxLineBytes = file.MaxLineBytes
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_LISTEN_ADDR")); v != "" {
		cfg.WSListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_ADDR")); v != "" {
		cfg.AdminAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STORE_BACKEND")); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PAIR_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PairInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_LINE_BYTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxLineBytes = n
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	switch cfg.StoreBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis store")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return cfg, nil
}
