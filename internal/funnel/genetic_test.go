package funnel

import (
	"math/rand"
	"testing"
)

func TestOrderCrossoverAlwaysValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 9
	child := make([]int, n)
	for trial := 0; trial < 500; trial++ {
		p1 := rng.Perm(n)
		p2 := rng.Perm(n)
		orderCrossover(rng, p1, p2, child)
		if !isPermutation(child, n) {
			t.Fatalf("trial %d: child %v is not a permutation of parents %v, %v", trial, child, p1, p2)
		}
	}
}

func TestEliteIndicesRanksByFitness(t *testing.T) {
	fitness := []float64{0.2, 0.9, 0.5, 0.9, 0.1}
	got := eliteIndices(fitness, 3)
	// Ties keep the lower index first.
	want := []int{1, 3, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("elite = %v, want %v", got, want)
		}
	}
}

func TestTournamentFavorsTheFit(t *testing.T) {
	fitness := make([]float64, 50)
	fitness[17] = 1.0 // everyone else at 0
	rng := rand.New(rand.NewSource(3))
	wins := 0
	for trial := 0; trial < 500; trial++ {
		winner := tournament(rng, fitness)
		if winner < 0 || winner >= len(fitness) {
			t.Fatalf("winner index %d out of range", winner)
		}
		if winner == 17 {
			wins++
		}
	}
	// 17 must win every tournament it is drawn into; across 1500 draws
	// it is drawn far more often than never.
	if wins == 0 {
		t.Fatal("the only fit individual never won a tournament")
	}
	if wins == 500 {
		t.Fatal("tournament ignored its random sample")
	}
}

func TestBreedKeepsSizeElitesAndValidity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n = 10
	pop := make([][]int, populationSize)
	fitness := make([]float64, populationSize)
	for i := range pop {
		pop[i] = rng.Perm(n)
		fitness[i] = rng.Float64()
	}
	best := 0
	for i, f := range fitness {
		if f > fitness[best] {
			best = i
		}
	}

	next := breed(rng, pop, fitness)
	if len(next) != populationSize {
		t.Fatalf("population size drifted to %d", len(next))
	}
	for i, ind := range next {
		if !isPermutation(ind, n) {
			t.Fatalf("individual %d invalid: %v", i, ind)
		}
	}
	// The fittest individual survives unmodified at the front.
	for i := range next[0] {
		if next[0][i] != pop[best][i] {
			t.Fatalf("elite not carried: %v vs %v", next[0], pop[best])
		}
	}
}
