package funnel

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	populationSize    = 200
	generationCount   = 50
	tournamentSize    = 3
	mutationRate      = 0.10
	eliteCount        = populationSize / 10
	seedReinjectEvery = 10
)

type gaConfig struct {
	budget         int
	seed           []int
	workers        int
	includeSamples bool
}

// runGenetic searches orderings with tournament selection, order
// crossover, swap mutation, and elitism over a fixed generation count.
// All randomness stays on this goroutine; only fitness evaluation fans
// out, so a seeded run reproduces regardless of worker count. The best
// individual ever seen is returned, not the final generation's best.
func runGenetic(ctx context.Context, e *evaluator, n int, rng *rand.Rand, cfg gaConfig) (*searchOutcome, error) {
	pop := make([][]int, populationSize)
	for i := range pop {
		pop[i] = rng.Perm(n)
	}
	if cfg.seed != nil {
		pop[0] = append([]int(nil), cfg.seed...)
	}

	cache := newEvalCache()
	fitness := make([]float64, populationSize)
	out := &searchOutcome{best: -1}
	coordScratch := make([]stepState, n)
	pendingIdx := make([]int, 0, populationSize)
	pendingKeys := make([]orderKey, 0, populationSize)

	// evalPop scores the current population, skipping orderings the
	// cache has already seen and fanning the rest out to the pool.
	// Bookkeeping (cache inserts, eval counts, samples, best tracking)
	// runs single-threaded afterwards in slot order.
	evalPop := func() error {
		pendingIdx = pendingIdx[:0]
		pendingKeys = pendingKeys[:0]
		for i, ind := range pop {
			key := keyFor(ind)
			if cr, ok := cache.get(key); ok {
				fitness[i] = cr
				continue
			}
			pendingIdx = append(pendingIdx, i)
			pendingKeys = append(pendingKeys, key)
		}
		if len(pendingIdx) > 0 {
			g, gctx := errgroup.WithContext(ctx)
			workers := min(cfg.workers, len(pendingIdx))
			chunk := (len(pendingIdx) + workers - 1) / workers
			for w := 0; w < workers; w++ {
				lo, hi := w*chunk, min((w+1)*chunk, len(pendingIdx))
				if lo >= hi {
					break
				}
				g.Go(func() error {
					scratch := make([]stepState, n)
					for _, idx := range pendingIdx[lo:hi] {
						if err := gctx.Err(); err != nil {
							return err
						}
						fitness[idx] = e.evalOrder(pop[idx], scratch)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}
		for pi, idx := range pendingIdx {
			cache.put(pendingKeys[pi], fitness[idx])
			out.evals++
			if cfg.includeSamples {
				out.samples = append(out.samples, OrderSample{Order: append([]int(nil), pop[idx]...), CRTotal: fitness[idx]})
			}
			out.consider(pop[idx], fitness[idx])
		}
		return nil
	}

	if err := evalPop(); err != nil {
		return nil, err
	}
	for gen := 1; gen <= generationCount; gen++ {
		if cfg.budget > 0 && out.evals >= cfg.budget {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pop = breed(rng, pop, fitness)
		if err := evalPop(); err != nil {
			return nil, err
		}
		if cfg.seed != nil && gen%seedReinjectEvery == 0 {
			// Periodically push the seeded order back in, perturbed by
			// one swap, replacing the current worst individual.
			cand := append([]int(nil), cfg.seed...)
			a, b := rng.Intn(n), rng.Intn(n)
			cand[a], cand[b] = cand[b], cand[a]
			worst := 0
			for i := 1; i < len(fitness); i++ {
				if fitness[i] < fitness[worst] {
					worst = i
				}
			}
			key := keyFor(cand)
			cr, ok := cache.get(key)
			if !ok {
				cr = e.evalOrder(cand, coordScratch)
				cache.put(key, cr)
				out.evals++
				if cfg.includeSamples {
					out.samples = append(out.samples, OrderSample{Order: append([]int(nil), cand...), CRTotal: cr})
				}
				out.consider(cand, cr)
			}
			pop[worst] = cand
			fitness[worst] = cr
		}
	}
	return out, nil
}

// breed builds the next generation: elites carry over unmodified, the
// rest come from tournament-selected parents crossed and occasionally
// mutated.
func breed(rng *rand.Rand, pop [][]int, fitness []float64) [][]int {
	n := len(pop[0])
	next := make([][]int, 0, len(pop))
	for _, idx := range eliteIndices(fitness, eliteCount) {
		next = append(next, append([]int(nil), pop[idx]...))
	}
	for len(next) < len(pop) {
		p1 := pop[tournament(rng, fitness)]
		p2 := pop[tournament(rng, fitness)]
		child := make([]int, n)
		orderCrossover(rng, p1, p2, child)
		if rng.Float64() < mutationRate {
			a, b := rng.Intn(n), rng.Intn(n)
			child[a], child[b] = child[b], child[a]
		}
		next = append(next, child)
	}
	return next
}

// eliteIndices returns the count fittest indices, ties keeping the
// lower index so breeding stays deterministic under a fixed seed.
func eliteIndices(fitness []float64, count int) []int {
	idx := make([]int, len(fitness))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return fitness[idx[a]] > fitness[idx[b]]
	})
	return idx[:count]
}

func tournament(rng *rand.Rand, fitness []float64) int {
	best := rng.Intn(len(fitness))
	for i := 1; i < tournamentSize; i++ {
		c := rng.Intn(len(fitness))
		if fitness[c] > fitness[best] {
			best = c
		}
	}
	return best
}

// orderCrossover copies a random contiguous slice of p1 into child, then
// fills the remaining positions left to right with p2's elements in
// their original order, skipping values already placed. The child is
// always a valid permutation.
func orderCrossover(rng *rand.Rand, p1, p2, child []int) {
	n := len(p1)
	a, b := rng.Intn(n), rng.Intn(n)
	if a > b {
		a, b = b, a
	}
	used := make([]bool, n)
	for i := a; i <= b; i++ {
		child[i] = p1[i]
		used[p1[i]] = true
	}
	j := 0
	for i := 0; i < n; i++ {
		if i >= a && i <= b {
			continue
		}
		for used[p2[j]] {
			j++
		}
		child[i] = p2[j]
		used[p2[j]] = true
		j++
	}
}
