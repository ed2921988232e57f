package funnel

import "testing"

func TestApplyUpliftTakesMaxAndClamps(t *testing.T) {
	steps := []Step{
		{Questions: mixedFunnel(1)[0].Questions, ObservedCR: 0.50},
		{Questions: mixedFunnel(1)[0].Questions, ObservedCR: 0.90},
		{Questions: mixedFunnel(1)[0].Questions, ObservedCR: 0.60},
	}
	hints := []BehavioralHint{
		{StepIndex: 0, EstimatedUpliftPP: 10},
		{StepIndex: 0, EstimatedUpliftPP: 25}, // max wins
		{StepIndex: 1, EstimatedUpliftPP: 45}, // clamps to +30
	}

	out := applyUplift(steps, hints)

	if out.appliedPP[0] != 25 {
		t.Errorf("step 0 applied %v, want max 25", out.appliedPP[0])
	}
	if !approx(out.steps[0].ObservedCR, 0.75, 1e-12) {
		t.Errorf("step 0 observed = %v, want 0.75", out.steps[0].ObservedCR)
	}
	if out.appliedPP[1] != 30 {
		t.Errorf("step 1 applied %v, want clamp 30", out.appliedPP[1])
	}
	if out.steps[1].ObservedCR != 1.0 {
		t.Errorf("step 1 observed = %v, want ceiling 1.0", out.steps[1].ObservedCR)
	}
	if out.appliedPP[2] != 0 || out.steps[2].ObservedCR != 0.60 {
		t.Errorf("unhinted step changed: %v %v", out.appliedPP[2], out.steps[2].ObservedCR)
	}

	want := 0.75 * 1.0 * 0.60
	if !approx(out.observedTotal, want, 1e-12) {
		t.Errorf("observed total = %v, want %v", out.observedTotal, want)
	}
	if steps[0].ObservedCR != 0.50 || steps[1].ObservedCR != 0.90 {
		t.Error("originals were mutated")
	}
}

func TestApplyUpliftNegativeFloor(t *testing.T) {
	steps := []Step{{Questions: mixedFunnel(1)[0].Questions, ObservedCR: 0.20}}
	out := applyUplift(steps, []BehavioralHint{{StepIndex: 0, EstimatedUpliftPP: -50}})
	if out.appliedPP[0] != -30 {
		t.Errorf("applied %v, want clamp -30", out.appliedPP[0])
	}
	if out.steps[0].ObservedCR != 0 {
		t.Errorf("observed = %v, want floor 0", out.steps[0].ObservedCR)
	}
}

func TestApplyUpliftWithoutHintsIsBaseline(t *testing.T) {
	steps := mixedFunnel(4)
	out := applyUplift(steps, nil)
	want := 1.0
	for i := range steps {
		if out.steps[i].ObservedCR != steps[i].ObservedCR {
			t.Fatalf("step %d observed changed without hints", i)
		}
		want *= steps[i].ObservedCR
	}
	if !approx(out.observedTotal, want, 1e-12) {
		t.Errorf("observed total = %v, want %v", out.observedTotal, want)
	}
}
