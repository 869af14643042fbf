package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MOVE_INTERVAL_SEC", "0.5")
	t.Setenv("SLEEP_INTERVAL_SEC", "10")
	t.Setenv("DATABASE_URL", "memory://")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"HTTP_ADDR", "REDIS_URL", "PERSIST_RETRY_MAX", "PERSIST_RETRY_BASE_MS", "STORE_TIMEOUT_SEC", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MoveInterval != 500*time.Millisecond {
		t.Fatalf("move interval = %v", cfg.MoveInterval)
	}
	if cfg.SleepInterval != 10*time.Second {
		t.Fatalf("sleep interval = %v", cfg.SleepInterval)
	}
	if cfg.HTTPAddr != ":8080" || cfg.PersistRetryMax != 5 || cfg.PersistRetryBase != 100*time.Millisecond || cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RedisURL != "" || len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("optional values should be empty: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("ALLOWED_ORIGINS", " example.org , ,*.example.net")
	t.Setenv("PERSIST_RETRY_MAX", "3")
	t.Setenv("PERSIST_RETRY_BASE_MS", "20")
	t.Setenv("STORE_TIMEOUT_SEC", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Fatalf("addr = %q", cfg.HTTPAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.net" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.PersistRetryMax != 3 || cfg.PersistRetryBase != 20*time.Millisecond {
		t.Fatalf("retry = %d/%v", cfg.PersistRetryMax, cfg.PersistRetryBase)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("invalid timeout should keep default, got %v", cfg.StoreTimeout)
	}
}

func TestLoadRequired(t *testing.T) {
	cases := map[string]string{
		"MOVE_INTERVAL_SEC":  "MOVE_INTERVAL_SEC",
		"SLEEP_INTERVAL_SEC": "SLEEP_INTERVAL_SEC",
		"DATABASE_URL":       "DATABASE_URL",
	}
	for missing, want := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), want) {
				t.Fatalf("expected error naming %s, got %v", want, err)
			}
		})
	}
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("MOVE_INTERVAL_SEC", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
