package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/apierr"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func testSteps(n int) []funnel.Step {
	steps := make([]funnel.Step, n)
	for i := range steps {
		steps[i] = funnel.Step{
			Questions: []funnel.Question{
				{InputType: funnel.InputShortText, Invasiveness: 1 + i%3, Difficulty: 1 + (i+1)%3},
			},
			Boosts:     i % 2,
			ObservedCR: 0.9 - 0.05*float64(i),
		}
	}
	return steps
}

func testParams() funnel.GlobalParameters {
	return funnel.GlobalParameters{
		E:           3,
		NImportance: 3,
		Source:      funnel.SourceOrganicSearch,
		C1:          1, C2: 1, C3: 1,
		WC: 0.7, WF: 0.3,
		WE: 0.5, WN: 0.5,
		K:         0.3,
		GammaExit: 0.8,
	}
}

func wantAPIErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d/%s error, got nil", status, code)
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected apierr.Error, got %T: %v", err, err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("error: want=%d/%s got=%d/%s (%v)", status, code, ae.Status, ae.Code, ae.Err)
	}
}

func TestFunnelServiceSimulateAppliesOverrides(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	steps := testSteps(3)

	base, err := svc.Simulate(context.Background(), SimulateInput{Steps: steps, Parameters: testParams()})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	k := 0.9
	overridden, err := svc.Simulate(context.Background(), SimulateInput{
		Steps:      steps,
		Parameters: testParams(),
		K:          &k,
	})
	if err != nil {
		t.Fatalf("Simulate with override: %v", err)
	}
	if overridden.CRTotal == base.CRTotal {
		t.Fatalf("k override had no effect: cr_total=%g in both runs", base.CRTotal)
	}

	direct := testParams()
	direct.K = k
	want, err := svc.Simulate(context.Background(), SimulateInput{Steps: steps, Parameters: direct})
	if err != nil {
		t.Fatalf("Simulate with direct params: %v", err)
	}
	if overridden.CRTotal != want.CRTotal {
		t.Fatalf("override mismatch: want=%g got=%g", want.CRTotal, overridden.CRTotal)
	}
}

func TestFunnelServiceSimulateRejectsBadInput(t *testing.T) {
	svc := NewFunnelService(testLogger(t))

	_, err := svc.Simulate(context.Background(), SimulateInput{Parameters: testParams()})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_steps")

	params := testParams()
	params.GammaExit = 0
	_, err = svc.Simulate(context.Background(), SimulateInput{Steps: testSteps(2), Parameters: params})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_parameters")
}

func TestFunnelServiceBacksolveBackfillsSearchedParams(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	params := testParams()
	params.K = 0
	params.GammaExit = 0

	out, err := svc.Backsolve(context.Background(), BacksolveInput{Steps: testSteps(3), Parameters: params})
	if err != nil {
		t.Fatalf("Backsolve: %v", err)
	}
	if out.K < funnel.FitKLo || out.K > funnel.FitKHi {
		t.Fatalf("best_k %g outside grid", out.K)
	}
	if out.GammaExit < funnel.FitGammaLo || out.GammaExit > funnel.FitGammaHi {
		t.Fatalf("best_gamma_exit %g outside grid", out.GammaExit)
	}
}

func TestFunnelServiceBacksolveRecoversParameters(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	steps := testSteps(4)
	params := testParams()
	params.K = 0.34
	params.GammaExit = 0.76

	sim, err := funnel.Simulate(steps, params)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	observed := make([]float64, len(sim.Steps))
	for i, st := range sim.Steps {
		observed[i] = st.CR
	}

	out, err := svc.Backsolve(context.Background(), BacksolveInput{
		Steps:       steps,
		Parameters:  testParams(),
		ObservedCRs: observed,
	})
	if err != nil {
		t.Fatalf("Backsolve: %v", err)
	}
	if math.Abs(out.K-0.34) > 1e-9 || math.Abs(out.GammaExit-0.76) > 1e-9 {
		t.Fatalf("fit: want=(0.34, 0.76) got=(%g, %g)", out.K, out.GammaExit)
	}
	if !out.Reliability.Reliable {
		t.Fatalf("self-consistent fit flagged unreliable: %+v", out.Reliability)
	}
	if out.Reliability.RelativeError == nil || *out.Reliability.RelativeError > 1e-9 {
		t.Fatalf("relative error: want ~0 got %v", out.Reliability.RelativeError)
	}
}

func TestFunnelServiceBacksolveDegenerateObserved(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	steps := testSteps(4)
	observed := []float64{1e-4, 1e-4, 1e-4, 1e-4}

	out, err := svc.Backsolve(context.Background(), BacksolveInput{
		Steps:       steps,
		Parameters:  testParams(),
		ObservedCRs: observed,
	})
	if err != nil {
		t.Fatalf("Backsolve: %v", err)
	}
	if out.Reliability.Reliable {
		t.Fatalf("near-zero observed product should be unreliable")
	}
	if out.Reliability.RelativeError != nil {
		t.Fatalf("relative error should be undefined, got %g", *out.Reliability.RelativeError)
	}
	if out.Reliability.Reason == "" {
		t.Fatalf("unreliable result must carry a reason")
	}
}

func TestFunnelServiceBacksolveRejectsMismatchedObserved(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	_, err := svc.Backsolve(context.Background(), BacksolveInput{
		Steps:       testSteps(3),
		Parameters:  testParams(),
		ObservedCRs: []float64{0.5, 0.5},
	})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_observed")
}

func TestFunnelServiceOptimizeDeterministicWithSeed(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	steps := testSteps(9)
	seed := int64(42)

	first, err := svc.Optimize(context.Background(), OptimizeInput{
		Steps:      steps,
		Parameters: testParams(),
		Seed:       &seed,
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if first.Algorithm != funnel.AlgorithmGenetic {
		t.Fatalf("9 steps should use the genetic search, got %q", first.Algorithm)
	}

	second, err := svc.Optimize(context.Background(), OptimizeInput{
		Steps:      steps,
		Parameters: testParams(),
		Seed:       &seed,
	})
	if err != nil {
		t.Fatalf("Optimize again: %v", err)
	}
	if len(first.BestOrder) != len(second.BestOrder) {
		t.Fatalf("order lengths differ: %d vs %d", len(first.BestOrder), len(second.BestOrder))
	}
	for i := range first.BestOrder {
		if first.BestOrder[i] != second.BestOrder[i] {
			t.Fatalf("seeded runs diverged at %d: %v vs %v", i, first.BestOrder, second.BestOrder)
		}
	}
	if first.BestCRTotal != second.BestCRTotal {
		t.Fatalf("seeded runs diverged: %g vs %g", first.BestCRTotal, second.BestCRTotal)
	}
}

func TestFunnelServiceOptimizeRejectsBadHints(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	_, err := svc.Optimize(context.Background(), OptimizeInput{
		Steps:      testSteps(3),
		Parameters: testParams(),
		Hints:      []funnel.BehavioralHint{{StepIndex: 9, EstimatedUpliftPP: 2}},
	})
	wantAPIErr(t, err, http.StatusBadRequest, "invalid_hints")
}

func TestFunnelServiceOptimizeHonorsCancellation(t *testing.T) {
	svc := NewFunnelService(testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Optimize(ctx, OptimizeInput{Steps: testSteps(9), Parameters: testParams()})
	wantAPIErr(t, err, http.StatusGatewayTimeout, "optimize_interrupted")
}
