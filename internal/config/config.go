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

// AppConfig holds everything the arena server needs at startup. Values come
// from the environment; an optional YAML file (ARENA_CONFIG) is applied first
// so env vars always win.
type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	WSPath     string `yaml:"ws_path"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	QuizAPIBaseURL string `yaml:"quiz_api_base_url"`
	QuizAPIToken   string `yaml:"quiz_api_token"`

	RoomIdleTTL       time.Duration `yaml:"room_idle_ttl"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	FinalizeGrace     time.Duration `yaml:"finalize_grace"`
	DrawTimeTolerance float64       `yaml:"draw_time_tolerance"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:        ":8080",
		WSPath:            "/ws",
		RoomIdleTTL:       time.Hour,
		SweepInterval:     time.Minute,
		FinalizeGrace:     30 * time.Second,
		DrawTimeTolerance: 1.0,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load builds the configuration from the optional YAML overlay plus env vars.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("ARENA_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_PATH")); v != "" {
		cfg.WSPath = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("QUIZ_API_BASE_URL")); v != "" {
		cfg.QuizAPIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("QUIZ_API_TOKEN")); v != "" {
		cfg.QuizAPIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("ROOM_IDLE_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ROOM_IDLE_TTL: %q", v)
		}
		cfg.RoomIdleTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %q", v)
		}
		cfg.SweepInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("FINALIZE_GRACE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid FINALIZE_GRACE: %q", v)
		}
		cfg.FinalizeGrace = d
	}
	if v := strings.TrimSpace(os.Getenv("DRAW_TIME_TOLERANCE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid DRAW_TIME_TOLERANCE: %q", v)
		}
		cfg.DrawTimeTolerance = f
	}
	if v := strings.TrimSpace(os.Getenv("SHUTDOWN_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ShutdownTimeout = d
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		return nil, fmt.Errorf("WS_PATH must start with '/': %q", cfg.WSPath)
	}

	return cfg, nil
}
