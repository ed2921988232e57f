package funnel

// permuter yields every permutation of {0..n-1} lazily in lexicographic
// order. Iterative successor stepping keeps memory flat regardless of
// n! and lets callers stop early.
type permuter struct {
	current []int
	started bool
}

func newPermuter(n int) *permuter {
	current := make([]int, n)
	for i := range current {
		current[i] = i
	}
	return &permuter{current: current}
}

// Next returns the next permutation, or false when exhausted. The
// returned slice is reused between calls; copy it to keep it.
func (p *permuter) Next() ([]int, bool) {
	if !p.started {
		p.started = true
		return p.current, true
	}
	c := p.current

	// Rightmost ascent; none means the sequence is fully descending
	// and we are done.
	i := len(c) - 2
	for i >= 0 && c[i] >= c[i+1] {
		i--
	}
	if i < 0 {
		return nil, false
	}
	j := len(c) - 1
	for c[j] <= c[i] {
		j--
	}
	c[i], c[j] = c[j], c[i]
	for l, r := i+1, len(c)-1; l < r; l, r = l+1, r-1 {
		c[l], c[r] = c[r], c[l]
	}
	return c, true
}

func factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}
