package reconstruct

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"transcssr/domain/core"
)

// tally is a per-input next-output count table, the raw material for both
// morph estimation and the splitting test.
type tally map[core.Symbol]map[core.Symbol]int

func (t tally) add(in, out core.Symbol, n int) {
	dist, ok := t[in]
	if !ok {
		dist = make(map[core.Symbol]int)
		t[in] = dist
	}
	dist[out] += n
}

func (t tally) merge(other tally) {
	for in, dist := range other {
		for out, n := range dist {
			t.add(in, out, n)
		}
	}
}

func (t tally) total(in core.Symbol) int {
	sum := 0
	for _, n := range t[in] {
		sum += n
	}
	return sum
}

// gStatistic computes the likelihood-ratio (G) statistic of the candidate
// counts against the pooled state counts, accumulated over input symbols.
// For each input, the expected counts are the candidate total spread across
// outputs in the pooled proportions; degrees of freedom accumulate as
// (observed output support of the pool) - 1 per input with data on both
// sides. A candidate observation on an output the pool never emitted makes
// the distributions trivially distinguishable, reported as +Inf.
func gStatistic(candidate, pooled tally, outputs []core.Symbol) (float64, int) {
	g := 0.0
	df := 0
	for in, candDist := range candidate {
		candTotal := 0
		for _, n := range candDist {
			candTotal += n
		}
		poolTotal := pooled.total(in)
		if candTotal == 0 || poolTotal == 0 {
			continue
		}
		support := 0
		for _, out := range outputs {
			if pooled[in][out] > 0 {
				support++
			}
		}
		for _, out := range outputs {
			obs := candDist[out]
			if obs == 0 {
				continue
			}
			exp := float64(candTotal) * float64(pooled[in][out]) / float64(poolTotal)
			if exp == 0 {
				return math.Inf(1), df
			}
			g += 2 * float64(obs) * math.Log(float64(obs)/exp)
		}
		if support > 1 {
			df += support - 1
		}
	}
	return g, df
}

// pValue converts a G statistic into a chi-squared tail probability.
func pValue(g float64, df int) float64 {
	if math.IsInf(g, 1) {
		// The candidate emitted a symbol the pool never produced.
		return 0.0
	}
	if df <= 0 {
		// No degrees of freedom to distinguish on.
		return 1.0
	}
	if g <= 0 {
		return 1.0
	}
	chi := distuv.ChiSquared{K: float64(df)}
	return chi.Survival(g)
}
