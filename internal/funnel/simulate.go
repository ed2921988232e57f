package funnel

import "math"

// Simulate evaluates the steps in the given order and returns per-step
// metrics plus the cumulative conversion rate. The math is total over
// valid input; the only errors are validation rejections.
func Simulate(orderedSteps []Step, params GlobalParameters) (*SimulationResult, error) {
	if err := ValidateSteps(orderedSteps); err != nil {
		return nil, err
	}
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}

	e := newEvaluator(orderedSteps, params)
	states := make([]stepState, len(orderedSteps))
	e.pageStates(identityOrder(len(orderedSteps)), states)

	res := &SimulationResult{Steps: make([]StepMetrics, len(states)), CRTotal: 1}
	m := e.m0
	for i, st := range states {
		var delta, pExit, cr float64
		m, delta, pExit, cr = advanceChain(m, st.ps, e.k, e.gamma)
		res.Steps[i] = StepMetrics{
			SC:         st.sc,
			Fatigue:    st.fatigue,
			PageScore:  st.ps,
			Motivation: m,
			Delta:      delta,
			PExit:      pExit,
			CR:         cr,
		}
		res.CRTotal *= cr
	}
	return res, nil
}

// evaluator precomputes everything order-independent about a funnel so
// repeated order evaluations (grid search, permutation search) only pay
// for the order-dependent chain. Step complexity in particular is fixed
// per original index regardless of position.
type evaluator struct {
	sc     []float64
	boosts []int

	alpha      float64
	beta       float64
	gammaBoost float64
	wc, wf     float64
	wSum       float64

	m0    float64
	k     float64
	gamma float64
}

func newEvaluator(steps []Step, params GlobalParameters) *evaluator {
	n := len(steps)
	penalty := params.multiQuestionPenalty()
	sc := make([]float64, n)
	boosts := make([]int, n)
	for i, s := range steps {
		sc[i] = stepComplexity(s, params, penalty)
		boosts[i] = s.Boosts
	}
	beta, gammaBoost := fatigueCoefficients(n)
	return &evaluator{
		sc:         sc,
		boosts:     boosts,
		alpha:      math.Min(3, 1+float64(n)/10),
		beta:       beta,
		gammaBoost: gammaBoost,
		wc:         params.WC,
		wf:         params.WF,
		wSum:       params.WC + params.WF,
		m0:         entryMotivation(params),
		k:          params.K,
		gamma:      params.GammaExit,
	}
}

// stepState is one position's order-dependent evaluation before the
// motivation chain is applied.
type stepState struct {
	sc      float64
	fatigue float64
	ps      float64
}

// pageStates fills states with the complexity, fatigue, and page score
// of every position under the given order. All order evaluation paths
// go through here so they cannot drift apart numerically.
func (e *evaluator) pageStates(order []int, states []stepState) {
	n := len(order)
	streak := 0
	for pos, idx := range order {
		sc := e.sc[idx]
		if sc >= 4 {
			streak++
		} else {
			streak = 0
		}
		progress := progressAt(pos+1, n)
		fatigue := clamp(1+e.alpha*progress+e.beta*float64(streak)-e.gammaBoost*float64(e.boosts[idx]), 1, 5)
		states[pos] = stepState{
			sc:      sc,
			fatigue: fatigue,
			ps:      (e.wc*sc + e.wf*fatigue) / e.wSum,
		}
	}
}

// evalOrder returns the cumulative conversion rate of one ordering.
// scratch must have length len(order); it is reused across calls to keep
// the search loops allocation-free.
func (e *evaluator) evalOrder(order []int, scratch []stepState) float64 {
	e.pageStates(order, scratch)
	m := e.m0
	total := 1.0
	var cr float64
	for i := range scratch {
		m, _, _, cr = advanceChain(m, scratch[i].ps, e.k, e.gamma)
		total *= cr
	}
	return total
}

// advanceChain applies one step of the motivation chain: decay first,
// then the burden gap against the already-decayed motivation drives the
// logistic exit probability.
func advanceChain(m, pageScore, k, gamma float64) (newM, delta, pExit, cr float64) {
	newM = math.Max(0, m-k*pageScore)
	delta = pageScore - newM
	pExit = 1 / (1 + math.Exp(-gamma*delta))
	return newM, delta, pExit, 1 - pExit
}

// stepComplexity blends interaction cost, invasiveness, and difficulty
// across a step's questions, with a small penalty per extra question.
func stepComplexity(step Step, params GlobalParameters, penalty float64) float64 {
	den := params.C1 + params.C2 + params.C3
	sum := 0.0
	for _, q := range step.Questions {
		tier, _ := interactionTier(q.InputType)
		sum += (params.C1*float64(tier) + params.C2*float64(q.Invasiveness) + params.C3*float64(q.Difficulty)) / den
	}
	avg := sum/float64(len(step.Questions)) + penalty*math.Max(0, float64(len(step.Questions)-1))
	return clamp(avg, 1, 5)
}

// progressAt maps 1-indexed position s of n to perceived progress.
// Long funnels use sqrt so fatigue front-loads.
func progressAt(s, n int) float64 {
	p := float64(s) / float64(n)
	if n <= 6 {
		return p
	}
	return math.Sqrt(p)
}

func entryMotivation(params GlobalParameters) float64 {
	mult, _ := sourceMultiplier(params.Source)
	return math.Min(5, (params.WE*float64(params.E)+params.WN*float64(params.NImportance))*mult)
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
