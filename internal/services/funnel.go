// Package services is the boundary between transport and the engines:
// it validates requests, attaches HTTP-shaped errors, persists what must
// outlive a request, and keeps the funnel package free of those concerns.
package services

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/apierr"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

// SimulateInput carries a funnel plus the model constants. The optional
// top-level fields override the matching parameter fields; nothing is
// defaulted silently, so a request without k or gamma_exit anywhere is
// rejected.
type SimulateInput struct {
	Steps                []funnel.Step           `json:"steps"`
	Parameters           funnel.GlobalParameters `json:"parameters"`
	K                    *float64                `json:"k,omitempty"`
	GammaExit            *float64                `json:"gamma_exit,omitempty"`
	MultiQuestionPenalty *float64                `json:"multi_question_penalty,omitempty"`
}

// BacksolveInput fits k and gamma_exit against observed rates. When
// observed_crs is absent the per-step observed_cr values are used. The
// k/gamma_exit parameter fields only have to validate; the grid search
// replaces both, so zero values are backfilled with the grid low bounds.
type BacksolveInput struct {
	Steps                []funnel.Step           `json:"steps"`
	Parameters           funnel.GlobalParameters `json:"parameters"`
	ObservedCRs          []float64               `json:"observed_crs,omitempty"`
	MultiQuestionPenalty *float64                `json:"multi_question_penalty,omitempty"`
}

// Reliability qualifies a backsolve result: how closely the fitted
// parameters reproduce the observed total conversion. RelativeError is
// null when the observed product is too small for the ratio to mean
// anything.
type Reliability struct {
	Reliable      bool     `json:"reliable"`
	RelativeError *float64 `json:"relative_error"`
	Reason        string   `json:"reason,omitempty"`
}

type BacksolveOutput struct {
	funnel.FitResult
	Reliability Reliability `json:"reliability"`
}

// OptimizeInput mirrors the engine's options in request form. Seed pins
// the genetic search for reproducible runs; absent means time-seeded.
type OptimizeInput struct {
	Steps                []funnel.Step           `json:"steps"`
	Parameters           funnel.GlobalParameters `json:"parameters"`
	K                    *float64                `json:"k,omitempty"`
	GammaExit            *float64                `json:"gamma_exit,omitempty"`
	MultiQuestionPenalty *float64                `json:"multi_question_penalty,omitempty"`
	SampleBudget         int                     `json:"sample_budget,omitempty"`
	Hints                []funnel.BehavioralHint `json:"hints,omitempty"`
	HybridSeeding        bool                    `json:"hybrid_seeding,omitempty"`
	IncludeSamples       bool                    `json:"include_samples,omitempty"`
	Seed                 *int64                  `json:"seed,omitempty"`
	Workers              int                     `json:"workers,omitempty"`
}

type FunnelService interface {
	Simulate(ctx context.Context, in SimulateInput) (*funnel.SimulationResult, error)
	Backsolve(ctx context.Context, in BacksolveInput) (*BacksolveOutput, error)
	Optimize(ctx context.Context, in OptimizeInput) (*funnel.OptimizeResult, error)
}

type funnelService struct {
	log *logger.Logger
}

func NewFunnelService(baseLog *logger.Logger) FunnelService {
	return &funnelService{log: baseLog.With("service", "FunnelService")}
}

// Fitted parameters are trusted only when re-simulating with them lands
// within 15% of the observed total conversion.
const (
	backsolveRelErrLimit = 0.15
	backsolveBaselineMin = 1e-9
)

func (s *funnelService) Simulate(ctx context.Context, in SimulateInput) (*funnel.SimulationResult, error) {
	params := applyParameterOverrides(in.Parameters, in.K, in.GammaExit, in.MultiQuestionPenalty)
	if err := funnel.ValidateSteps(in.Steps); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_steps", err)
	}
	if err := funnel.ValidateParameters(params); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_parameters", err)
	}
	start := time.Now()
	res, err := funnel.Simulate(in.Steps, params)
	if err != nil {
		observability.Current().ObserveEngine("simulate", "error", 0, time.Since(start))
		return nil, apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	observability.Current().ObserveEngine("simulate", "ok", 1, time.Since(start))
	s.log.Debug("simulated funnel", "steps", len(in.Steps), "cr_total", res.CRTotal)
	return res, nil
}

func (s *funnelService) Backsolve(ctx context.Context, in BacksolveInput) (*BacksolveOutput, error) {
	params := applyParameterOverrides(in.Parameters, nil, nil, in.MultiQuestionPenalty)
	if params.K == 0 {
		params.K = funnel.FitKLo
	}
	if params.GammaExit == 0 {
		params.GammaExit = funnel.FitGammaLo
	}
	if err := funnel.ValidateSteps(in.Steps); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_steps", err)
	}
	if err := funnel.ValidateParameters(params); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_parameters", err)
	}
	observed := in.ObservedCRs
	if len(observed) == 0 {
		observed = make([]float64, len(in.Steps))
		for i, st := range in.Steps {
			observed[i] = st.ObservedCR
		}
	}
	start := time.Now()
	fit, err := funnel.Fit(in.Steps, params, observed)
	if err != nil {
		observability.Current().ObserveEngine("backsolve", "error", 0, time.Since(start))
		return nil, apierr.New(http.StatusBadRequest, "invalid_observed", err)
	}
	out := &BacksolveOutput{FitResult: *fit}
	out.Reliability = fitReliability(in.Steps, params, *fit, observed)
	observability.Current().ObserveEngine("backsolve", "ok", 0, time.Since(start))
	s.log.Info("backsolved parameters",
		"best_k", fit.K, "best_gamma_exit", fit.GammaExit, "best_mse", fit.MSE,
		"reliable", out.Reliability.Reliable)
	return out, nil
}

func (s *funnelService) Optimize(ctx context.Context, in OptimizeInput) (*funnel.OptimizeResult, error) {
	params, aerr := validateOptimizeInput(in)
	if aerr != nil {
		return nil, aerr
	}
	opts := funnel.OptimizeOptions{
		SampleBudget:   in.SampleBudget,
		Hints:          in.Hints,
		HybridSeeding:  in.HybridSeeding,
		IncludeSamples: in.IncludeSamples,
		Workers:        in.Workers,
	}
	if in.Seed != nil {
		opts.Rand = rand.New(rand.NewSource(*in.Seed))
	}
	start := time.Now()
	res, err := funnel.Optimize(ctx, in.Steps, params, opts)
	if err != nil {
		observability.Current().ObserveEngine("optimize", "error", 0, time.Since(start))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apierr.New(http.StatusGatewayTimeout, "optimize_interrupted", err)
		}
		return nil, apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	observability.Current().ObserveEngine("optimize", "ok", res.Evaluations, time.Since(start))
	s.log.Info("optimized ordering",
		"steps", len(in.Steps), "algorithm", res.Algorithm,
		"evaluations", res.Evaluations, "best_cr_total", res.BestCRTotal)
	return res, nil
}

// validateOptimizeInput is shared with run enqueueing so a request is
// rejected before it is queued, not when the worker picks it up.
func validateOptimizeInput(in OptimizeInput) (funnel.GlobalParameters, *apierr.Error) {
	params := applyParameterOverrides(in.Parameters, in.K, in.GammaExit, in.MultiQuestionPenalty)
	if err := funnel.ValidateSteps(in.Steps); err != nil {
		return params, apierr.New(http.StatusBadRequest, "invalid_steps", err)
	}
	if err := funnel.ValidateParameters(params); err != nil {
		return params, apierr.New(http.StatusBadRequest, "invalid_parameters", err)
	}
	for _, h := range in.Hints {
		if h.StepIndex < 0 || h.StepIndex >= len(in.Steps) {
			return params, apierr.E(http.StatusBadRequest, "invalid_hints",
				"hint step_index %d outside funnel of %d steps", h.StepIndex, len(in.Steps))
		}
	}
	if in.SampleBudget < 0 {
		return params, apierr.E(http.StatusBadRequest, "invalid_request", "sample_budget must be non-negative")
	}
	if in.Workers < 0 {
		return params, apierr.E(http.StatusBadRequest, "invalid_request", "workers must be non-negative")
	}
	return params, nil
}

func applyParameterOverrides(p funnel.GlobalParameters, k, gamma, penalty *float64) funnel.GlobalParameters {
	if k != nil {
		p.K = *k
	}
	if gamma != nil {
		p.GammaExit = *gamma
	}
	if penalty != nil {
		p.MultiQuestionPenalty = penalty
	}
	return p
}

func fitReliability(steps []funnel.Step, params funnel.GlobalParameters, fit funnel.FitResult, observed []float64) Reliability {
	observedTotal := 1.0
	for _, o := range observed {
		observedTotal *= o
	}
	if observedTotal < backsolveBaselineMin {
		return Reliability{Reason: "observed conversion product too small to compare against"}
	}
	params.K = fit.K
	params.GammaExit = fit.GammaExit
	sim, err := funnel.Simulate(steps, params)
	if err != nil {
		return Reliability{Reason: "fitted parameters failed re-simulation"}
	}
	relErr := math.Abs(sim.CRTotal-observedTotal) / observedTotal
	rel := Reliability{Reliable: relErr <= backsolveRelErrLimit, RelativeError: &relErr}
	if !rel.Reliable {
		rel.Reason = "fitted parameters reproduce the observed conversion poorly"
	}
	return rel
}
