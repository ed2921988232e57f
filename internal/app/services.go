package app

import (
	"github.com/journeyfunnel/journeyfunnel-backend/internal/jobs/worker"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/advisor"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

type Services struct {
	Funnel     services.FunnelService
	Assessment services.AssessmentService
	Analysis   services.AnalysisService
	Scenario   services.ScenarioService
	Runs       services.RunService

	RunWorker *worker.Worker
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	funnelSvc := services.NewFunnelService(log)
	advisorClient := advisor.FromEnv(log)
	cache := services.NewAssessmentCacheFromEnv(log)
	assessments := services.NewAssessmentService(advisorClient, cache, log)
	analysis := services.NewAnalysisService(assessments, log)
	scenarios := services.NewScenarioService(reposet.Scenario, log)
	runs := services.NewRunService(reposet.OptimizationRun, reposet.Scenario, log)

	var runWorker *worker.Worker
	if cfg.WorkerEnabled {
		runWorker = worker.NewWorker(log, reposet.OptimizationRun, funnelSvc, metrics)
	}

	return Services{
		Funnel:     funnelSvc,
		Assessment: assessments,
		Analysis:   analysis,
		Scenario:   scenarios,
		Runs:       runs,
		RunWorker:  runWorker,
	}
}
