package services

import (
	"context"
	"net/http"
	"sort"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/advisor"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/apierr"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

// AnalyzeInput projects framework variants for a funnel. When
// assessments are supplied inline they are used as-is; otherwise the
// advisor is consulted through the assessment service.
type AnalyzeInput struct {
	Steps       []funnel.Step        `json:"steps"`
	Source      funnel.TrafficSource `json:"source"`
	Frameworks  []string             `json:"frameworks,omitempty"`
	Assessments []advisor.Assessment `json:"assessments,omitempty"`
	SkipCache   bool                 `json:"skip_cache,omitempty"`
}

// AnalysisVariant is one framework's projection: the sum of its per-step
// uplifts applied to the observed baseline.
type AnalysisVariant struct {
	Framework     string  `json:"framework"`
	TotalUpliftPP float64 `json:"total_uplift_pp"`
	ProjectedCR   float64 `json:"projected_cr"`
	AvgConfidence float64 `json:"avg_confidence"`
	AssessedSteps int     `json:"assessed_steps"`
}

type AnalysisMeta struct {
	StepsAnalyzed    int `json:"steps_analyzed"`
	FrameworksUsed   int `json:"frameworks_used"`
	TotalAssessments int `json:"total_assessments"`
}

// AnalysisOutput ranks variants by total uplift. RecommendedOrder lists
// original step indices by mean assessed uplift, highest first; ties
// keep the current order.
type AnalysisOutput struct {
	BaselineCR       float64           `json:"baseline_cr"`
	Variants         []AnalysisVariant `json:"variants"`
	RecommendedOrder []int             `json:"recommended_order"`
	Meta             AnalysisMeta      `json:"meta"`
}

type AnalysisService interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*AnalysisOutput, error)
}

type analysisService struct {
	assessments AssessmentService
	log         *logger.Logger
}

func NewAnalysisService(assessments AssessmentService, baseLog *logger.Logger) AnalysisService {
	return &analysisService{
		assessments: assessments,
		log:         baseLog.With("service", "AnalysisService"),
	}
}

func (s *analysisService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalysisOutput, error) {
	if err := funnel.ValidateSteps(in.Steps); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_steps", err)
	}
	assessments := in.Assessments
	if len(assessments) == 0 {
		assessed, err := s.assessments.Assess(ctx, AssessInput{
			Steps:      in.Steps,
			Source:     in.Source,
			Frameworks: in.Frameworks,
			SkipCache:  in.SkipCache,
		})
		if err != nil {
			return nil, err
		}
		assessments = assessed.Assessments
	} else {
		for _, a := range assessments {
			if a.StepIndex < 0 || a.StepIndex >= len(in.Steps) {
				return nil, apierr.E(http.StatusBadRequest, "invalid_assessments",
					"assessment step_index %d outside funnel of %d steps", a.StepIndex, len(in.Steps))
			}
		}
	}

	baseline := 1.0
	for _, st := range in.Steps {
		baseline *= st.ObservedCR
	}

	type frameworkAgg struct {
		uplift     float64
		confidence float64
		steps      int
	}
	byFramework := map[string]*frameworkAgg{}
	var frameworkOrder []string
	stepUplift := make([]float64, len(in.Steps))
	stepCounts := make([]int, len(in.Steps))
	for _, a := range assessments {
		g, ok := byFramework[a.Framework]
		if !ok {
			g = &frameworkAgg{}
			byFramework[a.Framework] = g
			frameworkOrder = append(frameworkOrder, a.Framework)
		}
		g.uplift += a.EstimatedUpliftPP
		g.confidence += a.Confidence
		g.steps++
		stepUplift[a.StepIndex] += a.EstimatedUpliftPP
		stepCounts[a.StepIndex]++
	}

	variants := make([]AnalysisVariant, 0, len(frameworkOrder))
	for _, id := range frameworkOrder {
		g := byFramework[id]
		variants = append(variants, AnalysisVariant{
			Framework:     id,
			TotalUpliftPP: g.uplift,
			ProjectedCR:   clampUnit(baseline * (1 + g.uplift/100)),
			AvgConfidence: g.confidence / float64(g.steps),
			AssessedSteps: g.steps,
		})
	}
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].TotalUpliftPP > variants[j].TotalUpliftPP
	})

	meanUplift := make([]float64, len(in.Steps))
	for i := range meanUplift {
		if stepCounts[i] > 0 {
			meanUplift[i] = stepUplift[i] / float64(stepCounts[i])
		}
	}
	order := make([]int, len(in.Steps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return meanUplift[order[i]] > meanUplift[order[j]]
	})

	out := &AnalysisOutput{
		BaselineCR:       baseline,
		Variants:         variants,
		RecommendedOrder: order,
		Meta: AnalysisMeta{
			StepsAnalyzed:    len(in.Steps),
			FrameworksUsed:   len(frameworkOrder),
			TotalAssessments: len(assessments),
		},
	}
	s.log.Info("analyzed funnel",
		"steps", len(in.Steps), "frameworks", len(frameworkOrder),
		"baseline_cr", baseline)
	return out, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
