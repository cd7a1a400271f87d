package reconstruct

import (
	"math"
	"testing"

	"transcssr/domain/core"
)

var binaryOuts = []core.Symbol{"0", "1"}

func TestGStatistic_IdenticalDistributions(t *testing.T) {
	cand := tally{"0": {"0": 50, "1": 50}}
	pool := tally{"0": {"0": 500, "1": 500}}
	g, df := gStatistic(cand, pool, binaryOuts)
	if g > 1e-12 {
		t.Errorf("g = %g for proportional counts, want 0", g)
	}
	if df != 1 {
		t.Errorf("df = %d, want 1", df)
	}
	if p := pValue(g, df); p < 0.999 {
		t.Errorf("p = %g for identical distributions, want ~1", p)
	}
}

func TestGStatistic_SkewedDistributions(t *testing.T) {
	cand := tally{"0": {"0": 90, "1": 10}}
	pool := tally{"0": {"0": 500, "1": 500}}
	g, df := gStatistic(cand, pool, binaryOuts)
	if g < 10 {
		t.Errorf("g = %g for heavily skewed counts, want large", g)
	}
	if p := pValue(g, df); p > 0.001 {
		t.Errorf("p = %g, want near 0", p)
	}
}

// A candidate emitting a symbol the pool never produced is always split off,
// even when the pool's own support leaves no degrees of freedom.
func TestGStatistic_NovelSymbol(t *testing.T) {
	cand := tally{"0": {"0": 1}}
	pool := tally{"0": {"1": 100}}
	g, df := gStatistic(cand, pool, binaryOuts)
	if !math.IsInf(g, 1) {
		t.Fatalf("g = %g, want +Inf", g)
	}
	if p := pValue(g, df); p != 0 {
		t.Errorf("p = %g for a novel symbol, want 0", p)
	}
}

// The statistic accumulates over input symbols: identical on one input,
// skewed on the other, both contribute to the same test.
func TestGStatistic_PerInputAccumulation(t *testing.T) {
	cand := tally{
		"0": {"0": 50, "1": 50},
		"1": {"0": 90, "1": 10},
	}
	pool := tally{
		"0": {"0": 500, "1": 500},
		"1": {"0": 500, "1": 500},
	}
	g, df := gStatistic(cand, pool, binaryOuts)
	if df != 2 {
		t.Errorf("df = %d, want 1 per input with data on both sides", df)
	}

	skewOnly, _ := gStatistic(tally{"1": {"0": 90, "1": 10}}, pool, binaryOuts)
	if math.Abs(g-skewOnly) > 1e-9 {
		t.Errorf("g = %g, want %g: the matching input must contribute zero", g, skewOnly)
	}
	if p := pValue(g, df); p > 0.001 {
		t.Errorf("p = %g, want near 0", p)
	}
}

func TestPValue_NoDegreesOfFreedom(t *testing.T) {
	if p := pValue(0, 0); p != 1 {
		t.Errorf("p = %g with zero df and finite g, want 1", p)
	}
}

func TestTally_MergeAndTotal(t *testing.T) {
	a := tally{}
	a.add("0", "1", 3)
	a.merge(tally{"0": {"0": 2, "1": 1}})
	if a.total("0") != 6 {
		t.Errorf("total = %d, want 6", a.total("0"))
	}
	if a["0"]["1"] != 4 {
		t.Errorf("merged count = %d, want 4", a["0"]["1"])
	}
}
