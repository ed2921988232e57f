package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/envutil"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

// Config is the process-level configuration. Subsystem tuning (database,
// redis, advisor, worker) is read where it is used, through envutil.
type Config struct {
	Port          string `json:"port"`
	MetricsAddr   string `json:"metrics_addr"`
	WorkerEnabled bool   `json:"worker_enabled"`
	Environment   string `json:"environment"`
	Version       string `json:"version"`
}

func defaultConfig() Config {
	return Config{
		Port:          "8080",
		WorkerEnabled: true,
		Environment:   "development",
		Version:       "dev",
	}
}

// LoadConfig layers an optional JSON file over the defaults, then applies
// environment overrides. The file comes from JF_CONFIG_PATH, falling back
// to ./config/config.json when that exists. A partial file only touches
// the keys it sets.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("JF_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.json")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", cfgPath, err)
		}
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)
	cfg.WorkerEnabled = envutil.Bool("WORKER_ENABLED", cfg.WorkerEnabled)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment)
	cfg.Version = envutil.String("APP_VERSION", cfg.Version)

	cfg.Port = strings.TrimPrefix(strings.TrimSpace(cfg.Port), ":")
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "development"
	}

	log.Info("Loaded configuration",
		"port", cfg.Port,
		"metrics_addr", cfg.MetricsAddr,
		"worker_enabled", cfg.WorkerEnabled,
		"environment", cfg.Environment,
	)
	return cfg, nil
}
