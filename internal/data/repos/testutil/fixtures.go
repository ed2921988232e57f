package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
)

func SeedScenario(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *domain.FunnelScenario {
	tb.Helper()
	sc := &domain.FunnelScenario{
		ID:         uuid.New(),
		Name:       name,
		Steps:      datatypes.JSON([]byte("[]")),
		Parameters: datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(sc).Error; err != nil {
		tb.Fatalf("seed scenario: %v", err)
	}
	return sc
}

func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, status string) *domain.OptimizationRun {
	tb.Helper()
	run := &domain.OptimizationRun{
		ID:      uuid.New(),
		Status:  status,
		Request: datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return run
}
