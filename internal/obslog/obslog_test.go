package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := New(Options{Level: zapcore.InfoLevel, File: path, Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("move_applied", zap.String("uci", "e2e4"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, `"msg":"move_applied"`) || !strings.Contains(out, `"uci":"e2e4"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FORMAT", "JSON")
	opts := OptionsFromEnv()
	if opts.Level != zapcore.WarnLevel {
		t.Fatalf("level = %v", opts.Level)
	}
	if opts.File != "" {
		t.Fatalf("file output should be disabled, got %q", opts.File)
	}
	if opts.Format != "json" {
		t.Fatalf("format = %q", opts.Format)
	}
}

func TestSetNilFallsBackToNop(t *testing.T) {
	prev := L()
	defer Set(prev)
	Set(nil)
	if L() == nil {
		t.Fatal("global logger must never be nil")
	}
}
