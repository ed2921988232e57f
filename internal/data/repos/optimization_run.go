package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type OptimizationRunRepo interface {
	Create(dbc dbctx.Context, run *domain.OptimizationRun) (*domain.OptimizationRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.OptimizationRun, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, staleRunning time.Duration) (*domain.OptimizationRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, requiredStatus string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
}

type optimizationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOptimizationRunRepo(db *gorm.DB, baseLog *logger.Logger) OptimizationRunRepo {
	return &optimizationRunRepo{db: db, log: baseLog.With("repo", "OptimizationRunRepo")}
}

func (r *optimizationRunRepo) Create(dbc dbctx.Context, run *domain.OptimizationRun) (*domain.OptimizationRun, error) {
	if run == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *optimizationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.OptimizationRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var run domain.OptimizationRun
	err := dbc.DB(r.db).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ClaimNextRunnable atomically picks the oldest runnable row and marks it
// running. Runnable means queued, failed with attempts left past the retry
// delay, or running with a heartbeat older than the stale cutoff (a worker
// died mid-run). Returns nil when nothing is runnable.
func (r *optimizationRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, staleRunning time.Duration) (*domain.OptimizationRun, error) {
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var claimed *domain.OptimizationRun
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SKIP LOCKED keeps concurrent workers off the same row; SQLite
		// has no row locks, there the busy-timeout transaction serializes.
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var run domain.OptimizationRun
		qErr := q.Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, domain.RunStatusQueued, domain.RunStatusFailed, maxAttempts, retryCutoff, domain.RunStatusRunning, staleCutoff).
			Order("created_at ASC").
			First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := tx.Model(&domain.OptimizationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       domain.RunStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		run.Status = domain.RunStatusRunning
		run.Attempts++
		run.LockedAt = &now
		run.HeartbeatAt = &now
		run.UpdatedAt = now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *optimizationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&domain.OptimizationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsWhereStatus applies updates only while the row is still in
// requiredStatus, so a worker that lost its claim to the stale-reclaim path
// cannot clobber a newer state. Reports whether the row was updated.
func (r *optimizationRunRepo) UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, requiredStatus string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := dbc.DB(r.db).
		Model(&domain.OptimizationRun{}).
		Where("id = ? AND status = ?", id, requiredStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *optimizationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.DB(r.db).
		Model(&domain.OptimizationRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
