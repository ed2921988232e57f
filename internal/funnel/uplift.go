package funnel

// upliftLimitPP bounds how far a single external estimate can move a
// step's observed rate, in percentage points either direction.
const upliftLimitPP = 30.0

type upliftOutcome struct {
	steps         []Step    // adjusted copies; originals stay untouched
	appliedPP     []float64 // per original index, after clamping
	observedTotal float64   // product of adjusted observed rates
}

// applyUplift folds external uplift hints into a cloned step list: per
// step the maximum estimate across hints, clamped to ±30pp, shifts
// observed_cr within [0,1]. With no hints the clone carries the raw
// observed baseline.
func applyUplift(steps []Step, hints []BehavioralHint) upliftOutcome {
	out := upliftOutcome{
		steps:         make([]Step, len(steps)),
		appliedPP:     make([]float64, len(steps)),
		observedTotal: 1,
	}
	copy(out.steps, steps)

	for i := range out.steps {
		if pp, ok := maxUpliftFor(i, hints); ok {
			pp = clamp(pp, -upliftLimitPP, upliftLimitPP)
			out.appliedPP[i] = pp
			out.steps[i].ObservedCR = clamp(out.steps[i].ObservedCR+pp/100, 0, 1)
		}
		out.observedTotal *= out.steps[i].ObservedCR
	}
	return out
}

func maxUpliftFor(step int, hints []BehavioralHint) (float64, bool) {
	var best float64
	found := false
	for _, h := range hints {
		if h.StepIndex != step {
			continue
		}
		if !found || h.EstimatedUpliftPP > best {
			best = h.EstimatedUpliftPP
		}
		found = true
	}
	return best, found
}
