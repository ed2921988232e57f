package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/journeyfunnel/journeyfunnel-backend/internal/http/handlers"
	httpMW "github.com/journeyfunnel/journeyfunnel-backend/internal/http/middleware"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	FunnelHandler     *httpH.FunnelHandler
	AssessmentHandler *httpH.AssessmentHandler
	FrameworksHandler *httpH.FrameworksHandler
	ScenarioHandler   *httpH.ScenarioHandler
	RunHandler        *httpH.RunHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("journeyfunnel"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
		r.GET("/ready", cfg.HealthHandler.Ready)
	}
	// WriteHTTP answers 503 until metrics are initialized.
	r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))

	api := r.Group("/api/v1")
	{
		if cfg.FunnelHandler != nil {
			api.POST("/funnel/simulate", cfg.FunnelHandler.Simulate)
			api.POST("/funnel/backsolve", cfg.FunnelHandler.Backsolve)
			api.POST("/funnel/optimize", cfg.FunnelHandler.Optimize)
		}

		if cfg.AssessmentHandler != nil {
			api.POST("/funnel/assess", cfg.AssessmentHandler.Assess)
			api.POST("/funnel/analyze", cfg.AssessmentHandler.Analyze)
		}

		if cfg.FrameworksHandler != nil {
			api.GET("/frameworks", cfg.FrameworksHandler.List)
		}

		if cfg.ScenarioHandler != nil {
			api.POST("/scenarios", cfg.ScenarioHandler.Save)
			api.GET("/scenarios", cfg.ScenarioHandler.List)
			api.GET("/scenarios/:id", cfg.ScenarioHandler.Get)
			api.DELETE("/scenarios/:id", cfg.ScenarioHandler.Delete)
		}

		if cfg.RunHandler != nil {
			api.GET("/runs/:id", cfg.RunHandler.Get)
		}
	}

	return r
}
