package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

func configTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JF_CONFIG_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("WORKER_ENABLED", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_VERSION", "")

	cfg, err := LoadConfig(configTestLogger(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port: want=%q got=%q", "8080", cfg.Port)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("MetricsAddr: want empty got=%q", cfg.MetricsAddr)
	}
	if !cfg.WorkerEnabled {
		t.Fatalf("WorkerEnabled: want=true got=false")
	}
	if cfg.Environment != "development" {
		t.Fatalf("Environment: want=%q got=%q", "development", cfg.Environment)
	}
	if cfg.Version != "dev" {
		t.Fatalf("Version: want=%q got=%q", "dev", cfg.Version)
	}
}

func TestLoadConfigFileThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := []byte(`{"port": "9090", "worker_enabled": false, "environment": "staging"}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JF_CONFIG_PATH", path)
	t.Setenv("PORT", "7070")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("WORKER_ENABLED", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_VERSION", "")

	cfg, err := LoadConfig(configTestLogger(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("Port: env override should win, want=%q got=%q", "7070", cfg.Port)
	}
	if cfg.WorkerEnabled {
		t.Fatalf("WorkerEnabled: file value should hold, want=false got=true")
	}
	if cfg.Environment != "staging" {
		t.Fatalf("Environment: want=%q got=%q", "staging", cfg.Environment)
	}
	if cfg.Version != "dev" {
		t.Fatalf("Version: default should survive a partial file, want=%q got=%q", "dev", cfg.Version)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JF_CONFIG_PATH", path)

	if _, err := LoadConfig(configTestLogger(t)); err == nil {
		t.Fatalf("LoadConfig: expected error for malformed file, got nil")
	}
}

func TestLoadConfigNormalizesPort(t *testing.T) {
	t.Setenv("JF_CONFIG_PATH", "")
	t.Setenv("PORT", ":6060")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("WORKER_ENABLED", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_VERSION", "")

	cfg, err := LoadConfig(configTestLogger(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "6060" {
		t.Fatalf("Port: want=%q got=%q", "6060", cfg.Port)
	}
}
