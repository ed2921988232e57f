package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/repos"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/apierr"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

// EnqueueRunInput queues an optimization for background execution. The
// request is validated up front so a bad funnel never reaches the
// worker.
type EnqueueRunInput struct {
	Optimize   OptimizeInput
	ScenarioID *uuid.UUID
}

type RunOutput struct {
	ID         uuid.UUID       `json:"id"`
	ScenarioID *uuid.UUID      `json:"scenario_id,omitempty"`
	Status     string          `json:"status"`
	Request    json.RawMessage `json:"request,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type RunService interface {
	Enqueue(ctx context.Context, in EnqueueRunInput) (*RunOutput, error)
	Get(ctx context.Context, id uuid.UUID) (*RunOutput, error)
}

type runService struct {
	runs      repos.OptimizationRunRepo
	scenarios repos.ScenarioRepo
	log       *logger.Logger
}

func NewRunService(runs repos.OptimizationRunRepo, scenarios repos.ScenarioRepo, baseLog *logger.Logger) RunService {
	return &runService{
		runs:      runs,
		scenarios: scenarios,
		log:       baseLog.With("service", "RunService"),
	}
}

func (s *runService) Enqueue(ctx context.Context, in EnqueueRunInput) (*RunOutput, error) {
	if _, aerr := validateOptimizeInput(in.Optimize); aerr != nil {
		return nil, aerr
	}
	dbc := dbctx.New(ctx, nil)
	if in.ScenarioID != nil {
		sc, err := s.scenarios.GetByID(dbc, *in.ScenarioID)
		if err != nil {
			return nil, fmt.Errorf("verify scenario: %w", err)
		}
		if sc == nil {
			return nil, apierr.E(http.StatusNotFound, "scenario_not_found", "scenario %s not found", *in.ScenarioID)
		}
	}
	reqJSON, err := json.Marshal(in.Optimize)
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}
	created, err := s.runs.Create(dbc, &domain.OptimizationRun{
		ScenarioID: in.ScenarioID,
		Status:     domain.RunStatusQueued,
		Request:    datatypes.JSON(reqJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue run: %w", err)
	}
	s.log.Info("enqueued optimization run", "run_id", created.ID, "steps", len(in.Optimize.Steps))
	return runOutput(created), nil
}

func (s *runService) Get(ctx context.Context, id uuid.UUID) (*RunOutput, error) {
	run, err := s.runs.GetByID(dbctx.New(ctx, nil), id)
	if err != nil {
		return nil, fmt.Errorf("fetch run: %w", err)
	}
	if run == nil {
		return nil, apierr.E(http.StatusNotFound, "run_not_found", "run %s not found", id)
	}
	return runOutput(run), nil
}

func runOutput(run *domain.OptimizationRun) *RunOutput {
	out := &RunOutput{
		ID:         run.ID,
		ScenarioID: run.ScenarioID,
		Status:     run.Status,
		Error:      run.Error,
		Attempts:   run.Attempts,
		CreatedAt:  run.CreatedAt,
		UpdatedAt:  run.UpdatedAt,
	}
	if len(run.Request) > 0 {
		out.Request = json.RawMessage(run.Request)
	}
	if len(run.Result) > 0 {
		out.Result = json.RawMessage(run.Result)
	}
	return out
}
