// Package wordstats builds the conditional probability tables that drive
// causal-state reconstruction: marginal counts for every observed joint word
// and next-output counts for every observed (history, input) pair.
//
// Absence is evidence-free: a word that never occurred has no entry at all,
// which callers must treat as "no evidence" rather than zero probability.
package wordstats

import (
	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
)

// FutureKey identifies a conditional next-output tally: the joint history
// immediately before the current step plus the current input symbol.
type FutureKey struct {
	Hist machine.History
	In   core.Symbol
}

// Table holds the word statistics for one (stream pair, LMax) combination.
// Built once, immutable afterward.
type Table struct {
	LMax    int
	Inputs  stream.Alphabet
	Outputs stream.Alphabet

	// Marginal occurrence counts for every observed joint word of
	// length 1..LMax, over all start positions.
	Marginal map[machine.History]int

	// Next-output counts for every observed history of length 0..LMax
	// and current input symbol. The final positions of the stream that
	// have no next symbol contribute nothing here.
	Future map[FutureKey]map[core.Symbol]int

	// T is the stream length the table was built from.
	T int
}

// Estimate scans the paired stream once per word length and tallies marginal
// and future counts up to lMax.
func Estimate(ps stream.Paired, lMax int) (*Table, error) {
	if ps.Len() == 0 {
		return nil, core.NewInsufficientDataError("stream pair is empty")
	}
	if lMax < 1 {
		return nil, core.NewInsufficientDataError("word length bound must be at least 1")
	}

	t := &Table{
		LMax:     lMax,
		Inputs:   ps.Inputs,
		Outputs:  ps.Outputs,
		Marginal: make(map[machine.History]int),
		Future:   make(map[FutureKey]map[core.Symbol]int),
		T:        ps.Len(),
	}

	// Marginal counts: a sliding window of every length at every start.
	// Streams shorter than lMax still populate every feasible length.
	for l := 1; l <= lMax; l++ {
		for i := 0; i+l <= ps.Len(); i++ {
			w := machine.History{X: ps.X.Slice(i, i+l), Y: ps.Y.Slice(i, i+l)}
			t.Marginal[w]++
		}
	}

	// Future counts: the distribution of y_t given the joint past of each
	// length ending at t and the current input x_t.
	for pos := 0; pos < ps.Len(); pos++ {
		in := ps.X.At(pos)
		out := ps.Y.At(pos)
		maxBack := lMax
		if pos < maxBack {
			maxBack = pos
		}
		for l := 0; l <= maxBack; l++ {
			h := machine.History{X: ps.X.Slice(pos-l, pos), Y: ps.Y.Slice(pos-l, pos)}
			key := FutureKey{Hist: h, In: in}
			dist, ok := t.Future[key]
			if !ok {
				dist = make(map[core.Symbol]int)
				t.Future[key] = dist
			}
			dist[out]++
		}
	}

	return t, nil
}

// Count returns the marginal count of word w and whether it was observed.
func (t *Table) Count(w machine.History) (int, bool) {
	n, ok := t.Marginal[w]
	return n, ok
}

// NextCounts returns the next-output counts for history h under input in.
// The second return is false when the pair was never observed.
func (t *Table) NextCounts(h machine.History, in core.Symbol) (map[core.Symbol]int, bool) {
	dist, ok := t.Future[FutureKey{Hist: h, In: in}]
	return dist, ok
}

// NextTotal returns the total number of future observations for (h, in).
func (t *Table) NextTotal(h machine.History, in core.Symbol) int {
	total := 0
	for _, n := range t.Future[FutureKey{Hist: h, In: in}] {
		total += n
	}
	return total
}

// Observed reports whether history h contributed any future observation
// under any input symbol.
func (t *Table) Observed(h machine.History) bool {
	for _, in := range t.Inputs.Symbols() {
		if _, ok := t.Future[FutureKey{Hist: h, In: in}]; ok {
			return true
		}
	}
	return false
}
