package funnel

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// exhaustiveLimit is the largest funnel enumerated outright: 8! is
// 40,320 evaluations, a deliberate runtime bound. Larger funnels go to
// the genetic search.
const exhaustiveLimit = 8

const permBatchSize = 256

// Optimize finds the step ordering with the highest predicted total
// conversion. Hints, when present, are folded into a cloned step list
// first (uplift pre-processing) and can additionally seed the genetic
// branch. The context is honored between generations and enumeration
// batches.
func Optimize(ctx context.Context, steps []Step, params GlobalParameters, opts OptimizeOptions) (*OptimizeResult, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	if err := validateHints(opts.Hints, len(steps)); err != nil {
		return nil, err
	}

	up := applyUplift(steps, opts.Hints)
	e := newEvaluator(up.steps, params)
	n := len(steps)

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var (
		out       *searchOutcome
		err       error
		algorithm string
		seeded    bool
	)
	if n <= exhaustiveLimit {
		algorithm = AlgorithmExhaustive
		out, err = runExhaustive(ctx, e, n, workerCount(opts.Workers, factorial(n)), opts.IncludeSamples)
	} else {
		algorithm = AlgorithmGenetic
		var seed []int
		if opts.HybridSeeding && len(opts.Hints) > 0 {
			seed = hybridSeedOrder(e.sc, opts.Hints)
			seeded = true
		}
		out, err = runGenetic(ctx, e, n, rng, gaConfig{
			budget:         opts.SampleBudget,
			seed:           seed,
			workers:        workerCount(opts.Workers, populationSize),
			includeSamples: opts.IncludeSamples,
		})
	}
	if err != nil {
		return nil, err
	}

	res := &OptimizeResult{
		BestOrder:       out.bestOrder,
		BestCRTotal:     out.best,
		Algorithm:       algorithm,
		Evaluations:     out.evals,
		Seeded:          seeded,
		ObservedCRTotal: up.observedTotal,
		Samples:         out.samples,
	}
	if len(opts.Hints) > 0 {
		res.AppliedUpliftPP = up.appliedPP
	}
	return res, nil
}

func validateHints(hints []BehavioralHint, n int) error {
	for i, h := range hints {
		if h.StepIndex < 0 || h.StepIndex >= n {
			return fmt.Errorf("hint %d: step_index %d outside [0,%d)", i, h.StepIndex, n)
		}
	}
	return nil
}

func workerCount(override, candidates int) int {
	workers := override
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > candidates {
		workers = candidates
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

type searchOutcome struct {
	best      float64
	bestOrder []int
	evals     int
	samples   []OrderSample
}

// consider keeps the first-seen order on ties so outcomes stay
// deterministic.
func (o *searchOutcome) consider(order []int, cr float64) {
	if cr > o.best {
		o.best = cr
		o.bestOrder = append([]int(nil), order...)
	}
}

type seqSample struct {
	seq   int
	order []int
	cr    float64
}

// runExhaustive streams every permutation from the lazy generator to an
// evaluation pool in batches. Each worker tracks its own best; the
// final single-threaded reduction takes the maximum, breaking ties
// toward the earliest permutation in generation sequence so parallel
// and serial runs agree.
func runExhaustive(ctx context.Context, e *evaluator, n, workers int, includeSamples bool) (*searchOutcome, error) {
	type permBatch struct {
		startSeq int
		orders   [][]int
	}

	type workerState struct {
		best      float64
		bestSeq   int
		bestOrder []int
		evals     int
		samples   []seqSample
	}

	batches := make(chan permBatch, workers)
	locals := make([]workerState, workers)
	for i := range locals {
		locals[i].best = -1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		gen := newPermuter(n)
		seq := 0
		cur := permBatch{orders: make([][]int, 0, permBatchSize)}
		for {
			p, ok := gen.Next()
			if !ok {
				break
			}
			cur.orders = append(cur.orders, append([]int(nil), p...))
			seq++
			if len(cur.orders) == permBatchSize {
				select {
				case batches <- cur:
				case <-gctx.Done():
					return gctx.Err()
				}
				cur = permBatch{startSeq: seq, orders: make([][]int, 0, permBatchSize)}
			}
		}
		if len(cur.orders) > 0 {
			select {
			case batches <- cur:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			local := &locals[w]
			scratch := make([]stepState, n)
			for batch := range batches {
				if err := gctx.Err(); err != nil {
					return err
				}
				for off, order := range batch.orders {
					cr := e.evalOrder(order, scratch)
					seq := batch.startSeq + off
					local.evals++
					if includeSamples {
						local.samples = append(local.samples, seqSample{seq: seq, order: order, cr: cr})
					}
					if cr > local.best || (cr == local.best && seq < local.bestSeq) {
						local.best, local.bestSeq, local.bestOrder = cr, seq, order
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &searchOutcome{best: -1}
	bestSeq := -1
	for i := range locals {
		local := &locals[i]
		out.evals += local.evals
		if local.bestOrder == nil {
			continue
		}
		if local.best > out.best || (local.best == out.best && (bestSeq < 0 || local.bestSeq < bestSeq)) {
			out.best, out.bestOrder, bestSeq = local.best, local.bestOrder, local.bestSeq
		}
	}
	if includeSamples {
		var all []seqSample
		for i := range locals {
			all = append(all, locals[i].samples...)
		}
		sort.Slice(all, func(a, b int) bool { return all[a].seq < all[b].seq })
		out.samples = make([]OrderSample, len(all))
		for i, s := range all {
			out.samples[i] = OrderSample{Order: s.order, CRTotal: s.cr}
		}
	}
	return out, nil
}
