// Package advisor assesses funnel steps against conversion frameworks
// through a strictly numeric contract. Implementations may call an
// OpenAI-compatible API or answer deterministically; callers never see
// model prose, only scores.
package advisor

import (
	"context"
	"os"
	"strings"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

// StepDescription is the numeric shape of one funnel step as the advisor
// sees it. Aggregates only; question-level detail stays in the engine.
type StepDescription struct {
	Index           int     `json:"index"`
	QuestionCount   int     `json:"question_count"`
	AvgInvasiveness float64 `json:"avg_invasiveness"`
	AvgDifficulty   float64 `json:"avg_difficulty"`
	Boosts          int     `json:"boosts"`
	ObservedCR      float64 `json:"observed_cr"`
}

// FunnelDescription is the assessment input: the steps plus the traffic
// source they are served to.
type FunnelDescription struct {
	Steps  []StepDescription `json:"steps"`
	Source string            `json:"source"`
}

// Assessment scores one step under one framework. Motivation and Trigger
// are present only for behavioral frameworks; consumers default both to
// 3.0 when nil.
type Assessment struct {
	Framework         string   `json:"framework"`
	StepIndex         int      `json:"step_index"`
	Confidence        float64  `json:"confidence"`
	EstimatedUpliftPP float64  `json:"estimated_uplift_pp"`
	Motivation        *float64 `json:"motivation,omitempty"`
	Trigger           *float64 `json:"trigger,omitempty"`
}

// Client produces one Assessment per framework×step pair, ordered
// framework-major in the input framework order. Implementations degrade
// to fallback scores on upstream trouble instead of failing the call.
type Client interface {
	AssessSteps(ctx context.Context, funnel FunnelDescription, frameworks []string) ([]Assessment, error)
}

// Fallback scores keep assessment usable when the upstream answer is
// unusable. Parse failures are scored lower than transport failures:
// a malformed reply says less about the step than no reply at all.
const (
	parseFallbackConfidence     = 0.5
	parseFallbackUpliftPP       = 1.0
	transportFallbackConfidence = 0.7
	transportFallbackUpliftPP   = 1.5
)

// FromEnv selects the implementation: the mock when ADVISOR_MODE=mock or
// no API key is configured, the OpenAI-compatible client otherwise.
func FromEnv(log *logger.Logger) Client {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("ADVISOR_MODE")))
	if mode == "mock" {
		return NewMock()
	}
	if strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) == "" {
		if log != nil {
			log.Info("advisor: no OPENAI_API_KEY, using mock client")
		}
		return NewMock()
	}
	return NewOpenAI(log)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
