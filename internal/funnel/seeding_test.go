package funnel

import "testing"

func ptr(v float64) *float64 { return &v }

func TestHybridSeedOrderRanksClearWinnerFirst(t *testing.T) {
	steps := mixedFunnel(9)
	e := newEvaluator(steps, referenceParams())

	hints := []BehavioralHint{
		{StepIndex: 5, EstimatedUpliftPP: 25, Motivation: ptr(5.0), Trigger: ptr(5.0)},
		{StepIndex: 2, EstimatedUpliftPP: -10, Motivation: ptr(1.0), Trigger: ptr(1.0)},
	}
	order := hybridSeedOrder(e.sc, hints)
	if !isPermutation(order, len(steps)) {
		t.Fatalf("seed order %v is not a permutation", order)
	}
	if order[0] != 5 {
		t.Fatalf("seed order %v should lead with the strongly assessed step 5", order)
	}
	if order[len(order)-1] != 2 {
		t.Fatalf("seed order %v should end with the weakly assessed step 2", order)
	}
}

func TestStepBehaviorAggregation(t *testing.T) {
	hints := []BehavioralHint{
		{StepIndex: 1, EstimatedUpliftPP: 5, Motivation: ptr(4.0)},
		{StepIndex: 1, EstimatedUpliftPP: 12, Trigger: ptr(2.0)},
		{StepIndex: 3, EstimatedUpliftPP: 9},
	}

	motivation, trigger, uplift := stepBehavior(1, hints)
	if motivation != 4.0 {
		t.Errorf("motivation = %v, want the single supplied 4.0", motivation)
	}
	if trigger != 2.0 {
		t.Errorf("trigger = %v, want the single supplied 2.0", trigger)
	}
	if uplift != 12 {
		t.Errorf("uplift = %v, want the max 12", uplift)
	}

	// An unhinted step falls back to the 3.0 defaults and zero uplift.
	motivation, trigger, uplift = stepBehavior(0, hints)
	if motivation != defaultBehaviorScore || trigger != defaultBehaviorScore || uplift != 0 {
		t.Errorf("defaults = %v,%v,%v", motivation, trigger, uplift)
	}
}

func TestMinMaxNormalize(t *testing.T) {
	out := minMaxNormalize([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if !approx(out[i], want[i], 1e-15) {
			t.Fatalf("normalize = %v, want %v", out, want)
		}
	}

	flat := minMaxNormalize([]float64{3, 3, 3})
	for _, v := range flat {
		if v != 0.5 {
			t.Fatalf("constant column should normalize to 0.5, got %v", flat)
		}
	}
}
