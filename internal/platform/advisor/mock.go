package advisor

import "context"

// Mock answers every framework×step pair with the same mid-range scores.
// It keeps local development and tests independent of any API key.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

const (
	mockConfidence = 0.8
	mockUpliftPP   = 2.5
)

func (m *Mock) AssessSteps(ctx context.Context, funnel FunnelDescription, frameworks []string) ([]Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Assessment, 0, len(frameworks)*len(funnel.Steps))
	for _, fw := range frameworks {
		for _, step := range funnel.Steps {
			out = append(out, Assessment{
				Framework:         fw,
				StepIndex:         step.Index,
				Confidence:        mockConfidence,
				EstimatedUpliftPP: mockUpliftPP,
			})
		}
	}
	return out, nil
}
