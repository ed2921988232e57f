package funnel

import (
	"fmt"
	"math"
)

// Grid bounds for the two fitted parameters. Values are generated by
// index from the low bound so the high bounds are hit exactly. The
// bounds are exported because they double as the neutral placeholders
// callers use for the searched fields.
const (
	FitKLo     = 0.10
	FitKHi     = 1.00
	FitGammaLo = 0.40
	FitGammaHi = 1.40
	fitStep    = 0.02
)

// Fit grid-searches (k, gamma_exit) to minimize the mean squared error
// between simulated and observed per-step conversion rates, with the
// steps kept in their given order. The whole grid is always scanned;
// ties keep the first pair found in (k outer, gamma inner) traversal, so
// results are deterministic.
func Fit(steps []Step, params GlobalParameters, observed []float64) (*FitResult, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	if len(observed) != len(steps) {
		return nil, fmt.Errorf("observed has %d entries for %d steps", len(observed), len(steps))
	}
	for i, o := range observed {
		if o < 0 || o > 1 {
			return nil, fmt.Errorf("observed[%d] %g outside [0,1]", i, o)
		}
	}

	// The page-score stage does not depend on k or gamma_exit; compute
	// it once and amortize across all 2,346 candidate pairs.
	e := newEvaluator(steps, params)
	states := make([]stepState, len(steps))
	e.pageStates(identityOrder(len(steps)), states)

	best := &FitResult{MSE: math.Inf(1)}
	kCount := gridCount(FitKLo, FitKHi)
	gammaCount := gridCount(FitGammaLo, FitGammaHi)
	for i := 0; i < kCount; i++ {
		k := FitKLo + float64(i)*fitStep
		for j := 0; j < gammaCount; j++ {
			gamma := FitGammaLo + float64(j)*fitStep
			mse := chainMSE(states, e.m0, k, gamma, observed)
			if mse < best.MSE {
				best.K, best.GammaExit, best.MSE = k, gamma, mse
			}
		}
	}
	return best, nil
}

func gridCount(lo, hi float64) int {
	return int(math.Round((hi-lo)/fitStep)) + 1
}

func chainMSE(states []stepState, m0, k, gamma float64, observed []float64) float64 {
	m := m0
	sum := 0.0
	var cr float64
	for i := range states {
		m, _, _, cr = advanceChain(m, states[i].ps, k, gamma)
		diff := cr - observed[i]
		sum += diff * diff
	}
	return sum / float64(len(states))
}
