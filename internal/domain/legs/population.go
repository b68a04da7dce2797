package legs

import "sort"

// impulsePopulation is the sorted, insertion-ordered structure backing
// percentile lookups over formed-leg impulses. Insert position is
// found by binary search (O(log n)); the specification explicitly
// forbids re-sorting the whole population per bar, so every bar only
// pays for one search plus one slice insert.
type impulsePopulation struct {
	sorted []float64
}

func (p *impulsePopulation) insert(v float64) {
	i := sort.SearchFloat64s(p.sorted, v)
	p.sorted = append(p.sorted, 0)
	copy(p.sorted[i+1:], p.sorted[i:])
	p.sorted[i] = v
}

// percentile returns the percentile rank of v within the population,
// in [0, 100]. An empty population yields 0.
func (p *impulsePopulation) percentile(v float64) float64 {
	n := len(p.sorted)
	if n == 0 {
		return 0
	}
	i := sort.SearchFloat64s(p.sorted, v)
	return float64(i) / float64(n) * 100
}

func (p *impulsePopulation) snapshot() []float64 {
	out := make([]float64, len(p.sorted))
	copy(out, p.sorted)
	return out
}

func (p *impulsePopulation) isSorted() bool {
	return sort.Float64sAreSorted(p.sorted)
}

func fromSnapshot(values []float64) *impulsePopulation {
	cp := make([]float64, len(values))
	copy(cp, values)
	return &impulsePopulation{sorted: cp}
}
