// Package funnel holds the three conversion engines: simulation of a
// step sequence, grid-search parameter fitting against observed rates,
// and ordering optimization. Everything here is pure computation; the
// service layer owns validation errors' HTTP shape, persistence, and
// the advisor that produces behavioral hints.
package funnel

import (
	"errors"
	"fmt"
	"math/rand"
)

// InputType classifies the interaction a question demands from the
// visitor. Each type maps to a fixed interaction-cost tier.
type InputType string

const (
	InputCheckbox   InputType = "checkbox"
	InputRadio      InputType = "radio"
	InputDropdown   InputType = "dropdown"
	InputMedia      InputType = "media"
	InputSlider     InputType = "slider"
	InputDate       InputType = "date"
	InputShortText  InputType = "short_text"
	InputSearch     InputType = "search"
	InputLongText   InputType = "long_text"
	InputFileUpload InputType = "file_upload"
)

// TrafficSource scales entry motivation by acquisition channel.
type TrafficSource string

const (
	SourceDirect        TrafficSource = "direct"
	SourceOrganicSearch TrafficSource = "organic_search"
	SourcePaidSearch    TrafficSource = "paid_search"
	SourceSocial        TrafficSource = "social"
	SourceEmail         TrafficSource = "email"
	SourceReferral      TrafficSource = "referral"
)

type Question struct {
	InputType    InputType `json:"input_type"`
	Invasiveness int       `json:"invasiveness"`
	Difficulty   int       `json:"difficulty"`
}

// Step is one page of the funnel. ObservedCR is measured ground truth,
// consumed by Fit and by uplift pre-processing; the simulation itself
// never reads it. Steps are referenced by original index everywhere, so
// an ordering is a permutation of indices, never a reordered copy.
type Step struct {
	Questions  []Question `json:"questions"`
	Boosts     int        `json:"boosts"`
	ObservedCR float64    `json:"observed_cr"`
}

// GlobalParameters are the model constants for one request. K and
// GammaExit are the two values Fit searches for; everything else is
// caller-supplied. MultiQuestionPenalty overrides the per-extra-question
// complexity penalty when set (default 0.05).
type GlobalParameters struct {
	E                    int           `json:"e"`
	NImportance          int           `json:"n_importance"`
	Source               TrafficSource `json:"source"`
	C1                   float64       `json:"c1"`
	C2                   float64       `json:"c2"`
	C3                   float64       `json:"c3"`
	WC                   float64       `json:"w_c"`
	WF                   float64       `json:"w_f"`
	WE                   float64       `json:"w_e"`
	WN                   float64       `json:"w_n"`
	K                    float64       `json:"k"`
	GammaExit            float64       `json:"gamma_exit"`
	MultiQuestionPenalty *float64      `json:"multi_question_penalty,omitempty"`
}

const defaultMultiQuestionPenalty = 0.05

func (p GlobalParameters) multiQuestionPenalty() float64 {
	if p.MultiQuestionPenalty != nil {
		return *p.MultiQuestionPenalty
	}
	return defaultMultiQuestionPenalty
}

// StepMetrics is the full evaluation of one position in an ordering.
// Motivation is the remaining motivation after this step's decay, the
// value the burden gap is taken against.
type StepMetrics struct {
	SC         float64 `json:"sc"`
	Fatigue    float64 `json:"fatigue"`
	PageScore  float64 `json:"page_score"`
	Motivation float64 `json:"motivation"`
	Delta      float64 `json:"delta"`
	PExit      float64 `json:"p_exit"`
	CR         float64 `json:"cr"`
}

type SimulationResult struct {
	Steps   []StepMetrics `json:"steps"`
	CRTotal float64       `json:"cr_total"`
}

// FitResult is the lowest-MSE parameter pair found by the grid search.
type FitResult struct {
	K         float64 `json:"best_k"`
	GammaExit float64 `json:"best_gamma_exit"`
	MSE       float64 `json:"best_mse"`
}

// BehavioralHint carries an external assessment for one step. Motivation
// and Trigger are optional; consumers default both to 3.0 when absent.
// Several hints may target the same step, one per framework.
type BehavioralHint struct {
	StepIndex         int      `json:"step_index"`
	EstimatedUpliftPP float64  `json:"estimated_uplift_pp"`
	Motivation        *float64 `json:"motivation,omitempty"`
	Trigger           *float64 `json:"trigger,omitempty"`
}

const (
	AlgorithmExhaustive = "exhaustive"
	AlgorithmGenetic    = "genetic"
)

// OptimizeOptions tune the ordering search. SampleBudget caps genetic
// fitness evaluations and is ignored by the exhaustive branch. Rand is
// the search's only randomness source; nil means time-seeded. Workers
// overrides the evaluation pool size when positive.
type OptimizeOptions struct {
	SampleBudget   int
	Hints          []BehavioralHint
	HybridSeeding  bool
	IncludeSamples bool
	Workers        int
	Rand           *rand.Rand
}

type OrderSample struct {
	Order   []int   `json:"order"`
	CRTotal float64 `json:"cr_total"`
}

// OptimizeResult reports the search outcome. ObservedCRTotal is the
// product of the (uplift-adjusted) observed step rates, the baseline the
// optimized prediction is compared against. AppliedUpliftPP is per
// original step index and only present when hints were supplied.
type OptimizeResult struct {
	BestOrder       []int         `json:"best_order"`
	BestCRTotal     float64       `json:"best_cr_total"`
	Algorithm       string        `json:"algorithm"`
	Evaluations     int           `json:"evaluations"`
	Seeded          bool          `json:"seeded"`
	ObservedCRTotal float64       `json:"observed_cr_total"`
	AppliedUpliftPP []float64     `json:"applied_uplift_pp,omitempty"`
	Samples         []OrderSample `json:"samples,omitempty"`
}

// ValidateSteps rejects malformed funnels before any engine math runs.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return errors.New("funnel has no steps")
	}
	for i, step := range steps {
		if len(step.Questions) == 0 {
			return fmt.Errorf("step %d has no questions", i)
		}
		if step.Boosts < 0 || step.Boosts > 3 {
			return fmt.Errorf("step %d: boosts %d outside [0,3]", i, step.Boosts)
		}
		if step.ObservedCR < 0 || step.ObservedCR > 1 {
			return fmt.Errorf("step %d: observed_cr %g outside [0,1]", i, step.ObservedCR)
		}
		for j, q := range step.Questions {
			if _, ok := interactionTier(q.InputType); !ok {
				return fmt.Errorf("step %d question %d: unknown input_type %q", i, j, q.InputType)
			}
			if q.Invasiveness < 1 || q.Invasiveness > 5 {
				return fmt.Errorf("step %d question %d: invasiveness %d outside [1,5]", i, j, q.Invasiveness)
			}
			if q.Difficulty < 1 || q.Difficulty > 5 {
				return fmt.Errorf("step %d question %d: difficulty %d outside [1,5]", i, j, q.Difficulty)
			}
		}
	}
	return nil
}

// ValidateSource rejects traffic sources outside the multiplier table.
func ValidateSource(s TrafficSource) error {
	if _, ok := sourceMultiplier(s); !ok {
		return fmt.Errorf("unknown source %q", s)
	}
	return nil
}

func ValidateParameters(p GlobalParameters) error {
	if p.E < 1 || p.E > 5 {
		return fmt.Errorf("e %d outside [1,5]", p.E)
	}
	if p.NImportance < 1 || p.NImportance > 5 {
		return fmt.Errorf("n_importance %d outside [1,5]", p.NImportance)
	}
	if err := ValidateSource(p.Source); err != nil {
		return err
	}
	if p.C1 < 0 || p.C2 < 0 || p.C3 < 0 || p.C1+p.C2+p.C3 <= 0 {
		return fmt.Errorf("complexity weights c1=%g c2=%g c3=%g must be non-negative with a positive sum", p.C1, p.C2, p.C3)
	}
	if p.WC < 0 || p.WF < 0 || p.WC+p.WF <= 0 {
		return fmt.Errorf("blend weights w_c=%g w_f=%g must be non-negative with a positive sum", p.WC, p.WF)
	}
	if p.WE < 0 || p.WN < 0 {
		return fmt.Errorf("motivation weights w_e=%g w_n=%g must be non-negative", p.WE, p.WN)
	}
	if p.K < 0 {
		return fmt.Errorf("k %g must be non-negative", p.K)
	}
	if p.GammaExit <= 0 {
		return fmt.Errorf("gamma_exit %g must be positive", p.GammaExit)
	}
	if p.MultiQuestionPenalty != nil && *p.MultiQuestionPenalty < 0 {
		return fmt.Errorf("multi_question_penalty %g must be non-negative", *p.MultiQuestionPenalty)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
