package funnel

import (
	"math"
	"reflect"
	"testing"
)

func TestFitRecoversKnownParameters(t *testing.T) {
	steps := mixedFunnel(5)
	params := referenceParams()
	// On-grid truth, expressed the way the grid generates values so the
	// comparison is free of accumulation drift.
	kStar := 0.10 + 10*0.02   // 0.30
	gStar := 0.40 + 30*0.02   // 1.00
	params.K, params.GammaExit = kStar, gStar

	sim, err := Simulate(steps, params)
	if err != nil {
		t.Fatal(err)
	}
	observed := make([]float64, len(sim.Steps))
	for i, m := range sim.Steps {
		observed[i] = m.CR
	}

	fit, err := Fit(steps, params, observed)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(fit.K, kStar, 1e-9) {
		t.Errorf("k = %v, want %v", fit.K, kStar)
	}
	if !approx(fit.GammaExit, gStar, 1e-9) {
		t.Errorf("gamma_exit = %v, want %v", fit.GammaExit, gStar)
	}
	if fit.MSE > 1e-15 {
		t.Errorf("mse = %v, want ~0 at the generating pair", fit.MSE)
	}
}

func TestFitGridReachesUpperBounds(t *testing.T) {
	steps := mixedFunnel(4)
	params := referenceParams()
	params.K, params.GammaExit = 1.00, 1.40

	sim, err := Simulate(steps, params)
	if err != nil {
		t.Fatal(err)
	}
	observed := make([]float64, len(sim.Steps))
	for i, m := range sim.Steps {
		observed[i] = m.CR
	}

	fit, err := Fit(steps, params, observed)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(fit.K, 1.00, 1e-9) || !approx(fit.GammaExit, 1.40, 1e-9) {
		t.Errorf("grid missed its endpoints: k=%v gamma=%v", fit.K, fit.GammaExit)
	}
}

func TestFitDeterminism(t *testing.T) {
	steps := mixedFunnel(3)
	observed := []float64{0.9, 0.8, 0.7}

	a, err := Fit(steps, referenceParams(), observed)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fit(steps, referenceParams(), observed)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("fit runs diverged: %+v vs %+v", a, b)
	}
	if math.IsInf(a.MSE, 1) {
		t.Fatal("no grid pair was evaluated")
	}
}

func TestFitRejectsBadObserved(t *testing.T) {
	steps := mixedFunnel(3)
	if _, err := Fit(steps, referenceParams(), []float64{0.9, 0.8}); err == nil {
		t.Error("length mismatch should be rejected")
	}
	if _, err := Fit(steps, referenceParams(), []float64{0.9, 0.8, 1.7}); err == nil {
		t.Error("out-of-range observed rate should be rejected")
	}
}

func TestGridCount(t *testing.T) {
	if got := gridCount(FitKLo, FitKHi); got != 46 {
		t.Errorf("k grid has %d values, want 46", got)
	}
	if got := gridCount(FitGammaLo, FitGammaHi); got != 51 {
		t.Errorf("gamma grid has %d values, want 51", got)
	}
}
