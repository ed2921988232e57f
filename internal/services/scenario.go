package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/repos"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/apierr"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type SaveScenarioInput struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Steps       []funnel.Step           `json:"steps"`
	Parameters  funnel.GlobalParameters `json:"parameters"`
}

type ScenarioOutput struct {
	ID          uuid.UUID               `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Steps       []funnel.Step           `json:"steps"`
	Parameters  funnel.GlobalParameters `json:"parameters"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// ScenarioService stores named funnel configurations. Names are unique
// among live scenarios; deleting frees the name.
type ScenarioService interface {
	Save(ctx context.Context, in SaveScenarioInput) (*ScenarioOutput, error)
	Get(ctx context.Context, id uuid.UUID) (*ScenarioOutput, error)
	List(ctx context.Context, limit, offset int) ([]ScenarioOutput, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type scenarioService struct {
	repo repos.ScenarioRepo
	log  *logger.Logger
}

func NewScenarioService(repo repos.ScenarioRepo, baseLog *logger.Logger) ScenarioService {
	return &scenarioService{repo: repo, log: baseLog.With("service", "ScenarioService")}
}

const (
	scenarioListDefaultLimit = 50
	scenarioListMaxLimit     = 200
)

func (s *scenarioService) Save(ctx context.Context, in SaveScenarioInput) (*ScenarioOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.E(http.StatusBadRequest, "invalid_name", "scenario name is required")
	}
	if err := funnel.ValidateSteps(in.Steps); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_steps", err)
	}
	if err := funnel.ValidateParameters(in.Parameters); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_parameters", err)
	}
	stepsJSON, err := json.Marshal(in.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode scenario steps: %w", err)
	}
	paramsJSON, err := json.Marshal(in.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode scenario parameters: %w", err)
	}
	created, err := s.repo.Create(dbctx.New(ctx, nil), &domain.FunnelScenario{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Steps:       datatypes.JSON(stepsJSON),
		Parameters:  datatypes.JSON(paramsJSON),
	})
	if err != nil {
		if repos.IsUniqueViolation(err) {
			return nil, apierr.E(http.StatusConflict, "scenario_exists", "scenario %q already exists", name)
		}
		return nil, fmt.Errorf("create scenario: %w", err)
	}
	s.log.Info("saved scenario", "scenario_id", created.ID, "name", name)
	return scenarioOutput(created)
}

func (s *scenarioService) Get(ctx context.Context, id uuid.UUID) (*ScenarioOutput, error) {
	sc, err := s.repo.GetByID(dbctx.New(ctx, nil), id)
	if err != nil {
		return nil, fmt.Errorf("fetch scenario: %w", err)
	}
	if sc == nil {
		return nil, apierr.E(http.StatusNotFound, "scenario_not_found", "scenario %s not found", id)
	}
	return scenarioOutput(sc)
}

func (s *scenarioService) List(ctx context.Context, limit, offset int) ([]ScenarioOutput, error) {
	if limit <= 0 {
		limit = scenarioListDefaultLimit
	}
	if limit > scenarioListMaxLimit {
		limit = scenarioListMaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.List(dbctx.New(ctx, nil), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	out := make([]ScenarioOutput, 0, len(rows))
	for _, sc := range rows {
		o, err := scenarioOutput(sc)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *scenarioService) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.SoftDelete(dbctx.New(ctx, nil), id)
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if !ok {
		return apierr.E(http.StatusNotFound, "scenario_not_found", "scenario %s not found", id)
	}
	s.log.Info("deleted scenario", "scenario_id", id)
	return nil
}

func scenarioOutput(sc *domain.FunnelScenario) (*ScenarioOutput, error) {
	out := &ScenarioOutput{
		ID:          sc.ID,
		Name:        sc.Name,
		Description: sc.Description,
		CreatedAt:   sc.CreatedAt,
		UpdatedAt:   sc.UpdatedAt,
	}
	if len(sc.Steps) > 0 {
		if err := json.Unmarshal(sc.Steps, &out.Steps); err != nil {
			return nil, fmt.Errorf("decode scenario %s steps: %w", sc.ID, err)
		}
	}
	if len(sc.Parameters) > 0 {
		if err := json.Unmarshal(sc.Parameters, &out.Parameters); err != nil {
			return nil, fmt.Errorf("decode scenario %s parameters: %w", sc.ID, err)
		}
	}
	return out, nil
}
