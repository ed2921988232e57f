package app

import (
	"gorm.io/gorm"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/http"
	httpH "github.com/journeyfunnel/journeyfunnel-backend/internal/http/handlers"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type Handlers struct {
	Funnel     *httpH.FunnelHandler
	Assessment *httpH.AssessmentHandler
	Frameworks *httpH.FrameworksHandler
	Scenario   *httpH.ScenarioHandler
	Run        *httpH.RunHandler
	Health     *httpH.HealthHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Funnel:     httpH.NewFunnelHandler(serviceset.Funnel, serviceset.Runs),
		Assessment: httpH.NewAssessmentHandler(serviceset.Assessment, serviceset.Analysis),
		Frameworks: httpH.NewFrameworksHandler(),
		Scenario:   httpH.NewScenarioHandler(serviceset.Scenario),
		Run:        httpH.NewRunHandler(serviceset.Runs),
		Health:     httpH.NewHealthHandler(db),
	}
}

func wireServer(log *logger.Logger, metrics *observability.Metrics, handlers Handlers) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		FunnelHandler:     handlers.Funnel,
		AssessmentHandler: handlers.Assessment,
		FrameworksHandler: handlers.Frameworks,
		ScenarioHandler:   handlers.Scenario,
		RunHandler:        handlers.Run,
		HealthHandler:     handlers.Health,
	})
}
