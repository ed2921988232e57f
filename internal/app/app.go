package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/db"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/http"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	dbSvc        *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	metrics := observability.Init(log)

	dbSvc, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbSvc.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	gdb := dbSvc.DB()

	reposet := wireRepos(gdb, log)
	serviceset := wireServices(log, cfg, reposet, metrics)
	handlerset := wireHandlers(gdb, log, serviceset)
	server := wireServer(log, metrics, handlerset)

	return &App{
		Log:      log,
		DB:       gdb,
		Server:   server,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Metrics:  metrics,
		dbSvc:    dbSvc,
	}, nil
}

// Start launches the background pieces: tracing, the run worker, the
// queue-depth collector, and the side metrics listener when configured.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "journeyfunnel",
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})

	if a.Services.RunWorker != nil {
		a.Services.RunWorker.Start(ctx)
	}
	a.Metrics.StartRunQueueCollector(ctx, a.Log, a.DB)
	if a.Cfg.MetricsAddr != "" {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
		a.otelShutdown = nil
	}
	if a.dbSvc != nil {
		_ = a.dbSvc.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
