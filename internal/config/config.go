package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	MoveInterval  time.Duration
	SleepInterval time.Duration

	DatabaseURL string
	RedisURL    string

	HTTPAddr       string
	AllowedOrigins []string

	PersistRetryMax  int
	PersistRetryBase time.Duration
	StoreTimeout     time.Duration

	MessagesDir string
	PGNSite     string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:         ":8080",
		PersistRetryMax:  5,
		PersistRetryBase: 100 * time.Millisecond,
		StoreTimeout:     5 * time.Second,
	}

	move, err := requiredSeconds("MOVE_INTERVAL_SEC")
	if err != nil {
		return nil, err
	}
	cfg.MoveInterval = move

	sleep, err := requiredSeconds("SLEEP_INTERVAL_SEC")
	if err != nil {
		return nil, err
	}
	cfg.SleepInterval = sleep

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("PERSIST_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PersistRetryMax = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PERSIST_RETRY_BASE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PersistRetryBase = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("STORE_TIMEOUT_SEC")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.StoreTimeout = secondsToDuration(f)
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.PGNSite = strings.TrimSpace(os.Getenv("PGN_SITE"))

	return cfg, nil
}

// requiredSeconds parses a positive, possibly fractional, number of seconds.
func requiredSeconds(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return secondsToDuration(f), nil
}

func secondsToDuration(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
