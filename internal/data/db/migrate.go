package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.FunnelScenario{},
		&domain.OptimizationRun{},
	)
}

// EnsureIndexes adds the partial indexes AutoMigrate cannot express.
// Scenario names are unique among live rows only, so a soft-deleted
// scenario never blocks reusing its name. Partial indexes are supported
// by both SQLite and Postgres.
func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_funnel_scenario_name_active
		ON funnel_scenario(name)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_funnel_scenario_name_active: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_optimization_run_claim
		ON optimization_run(status, created_at)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_optimization_run_claim: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
