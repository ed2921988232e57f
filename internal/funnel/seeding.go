package funnel

import "sort"

// defaultBehaviorScore stands in for motivation or trigger when the
// assessment left them out.
const defaultBehaviorScore = 3.0

// hybridSeedOrder ranks steps by a blend of a Fogg behavior score
// (motivation × ability × trigger) and an engagement score derived from
// the external uplift estimate. The result seeds the genetic search
// toward behaviorally favorable orderings without restricting it.
// sc is the precomputed per-step complexity, indexed by original step.
func hybridSeedOrder(sc []float64, hints []BehavioralHint) []int {
	n := len(sc)
	fogg := make([]float64, n)
	engagement := make([]float64, n)
	for i := 0; i < n; i++ {
		motivation, trigger, uplift := stepBehavior(i, hints)
		ability := clamp(6-sc[i], 1, 5)
		fogg[i] = motivation * ability * trigger
		engagement[i] = clamp(3+(uplift/30)*2, 1, 5)
	}

	normFogg := minMaxNormalize(fogg)
	normEng := minMaxNormalize(engagement)

	hybrid := make([]float64, n)
	for i := 0; i < n; i++ {
		hybrid[i] = (normFogg[i] + normEng[i]) / 2
	}

	order := identityOrder(n)
	sort.SliceStable(order, func(a, b int) bool {
		return hybrid[order[a]] > hybrid[order[b]]
	})
	return order
}

// stepBehavior aggregates the hints targeting one step: motivation and
// trigger average across the hints that carry them, and the uplift is
// the maximum estimate, matching the uplift pre-processing rule.
func stepBehavior(step int, hints []BehavioralHint) (motivation, trigger, uplift float64) {
	var mSum, tSum float64
	var mCount, tCount, hintCount int
	for _, h := range hints {
		if h.StepIndex != step {
			continue
		}
		if hintCount == 0 || h.EstimatedUpliftPP > uplift {
			uplift = h.EstimatedUpliftPP
		}
		hintCount++
		if h.Motivation != nil {
			mSum += *h.Motivation
			mCount++
		}
		if h.Trigger != nil {
			tSum += *h.Trigger
			tCount++
		}
	}
	motivation = defaultBehaviorScore
	if mCount > 0 {
		motivation = mSum / float64(mCount)
	}
	trigger = defaultBehaviorScore
	if tCount > 0 {
		trigger = tSum / float64(tCount)
	}
	return motivation, trigger, uplift
}

// minMaxNormalize maps values onto [0,1]; a constant column maps to 0.5
// so it contributes no ordering preference.
func minMaxNormalize(values []float64) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(values))
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
