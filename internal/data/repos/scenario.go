package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type ScenarioRepo interface {
	Create(dbc dbctx.Context, scenario *domain.FunnelScenario) (*domain.FunnelScenario, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.FunnelScenario, error)
	GetByName(dbc dbctx.Context, name string) (*domain.FunnelScenario, error)
	List(dbc dbctx.Context, limit, offset int) ([]*domain.FunnelScenario, error)
	SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type scenarioRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScenarioRepo(db *gorm.DB, baseLog *logger.Logger) ScenarioRepo {
	return &scenarioRepo{db: db, log: baseLog.With("repo", "ScenarioRepo")}
}

func (r *scenarioRepo) Create(dbc dbctx.Context, scenario *domain.FunnelScenario) (*domain.FunnelScenario, error) {
	if scenario == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(scenario).Error; err != nil {
		return nil, err
	}
	return scenario, nil
}

func (r *scenarioRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.FunnelScenario, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var scenario domain.FunnelScenario
	err := dbc.DB(r.db).Where("id = ?", id).First(&scenario).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (r *scenarioRepo) GetByName(dbc dbctx.Context, name string) (*domain.FunnelScenario, error) {
	if name == "" {
		return nil, nil
	}
	var scenario domain.FunnelScenario
	err := dbc.DB(r.db).Where("name = ?", name).First(&scenario).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (r *scenarioRepo) List(dbc dbctx.Context, limit, offset int) ([]*domain.FunnelScenario, error) {
	q := dbc.DB(r.db).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*domain.FunnelScenario
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scenarioRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&domain.FunnelScenario{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
