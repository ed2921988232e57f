package app

import (
	"gorm.io/gorm"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/repos"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type Repos struct {
	Scenario        repos.ScenarioRepo
	OptimizationRun repos.OptimizationRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Scenario:        repos.NewScenarioRepo(db, log),
		OptimizationRun: repos.NewOptimizationRunRepo(db, log),
	}
}
