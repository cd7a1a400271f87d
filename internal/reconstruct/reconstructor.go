// Package reconstruct implements causal-state reconstruction over paired
// input/output symbol streams: the CSSR algorithm generalized to transducer
// form. Histories with statistically indistinguishable next-output
// distributions are merged into causal states, the partition is refined to
// transition determinism, and the result is emitted as an epsilon-machine.
//
// The splitting test is a G-test (likelihood ratio) of a candidate history's
// next-output counts against a state's pooled counts, with the tail
// probability taken from the chi-squared distribution.
package reconstruct

import (
	"fmt"
	"math"
	"sort"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/internal/wordstats"
)

// Result is the product of one reconstruction run: the machine, the inverse
// index from histories to their causal state, and the number of
// determinization passes it took to reach the fixed point.
type Result struct {
	Machine     *machine.Machine
	Assignments map[machine.History]machine.StateID
	SplitPasses int
}

// NonConvergenceError reports a determinization loop that exceeded its
// iteration bound. The partial partition is carried for diagnostics.
type NonConvergenceError struct {
	Passes      int
	Assignments map[machine.History]machine.StateID
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("state splitting did not converge after %d passes", e.Passes)
}

func (e *NonConvergenceError) Unwrap() error { return core.ErrNonConvergence }

// protoState is a causal state under construction: member histories plus
// their pooled next-output counts.
type protoState struct {
	histories []machine.History
	counts    tally
}

// arena holds the states being refined. Histories reference states by index,
// never by pointer, so split and merge are in-place index updates.
type arena struct {
	states []*protoState
	assign map[machine.History]int
}

// Reconstruct runs CSSR over the word statistics in tbl with the given
// parameters and returns the reconstructed epsilon-machine.
func Reconstruct(tbl *wordstats.Table, params core.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if tbl.Inputs.Size() == 0 || tbl.Outputs.Size() == 0 {
		return nil, core.NewInsufficientDataError("input or output alphabet is empty")
	}
	if tbl.T == 0 || len(tbl.Future) == 0 {
		return nil, core.NewInsufficientDataError("no future observations in the word statistics")
	}

	ar := &arena{assign: make(map[machine.History]int)}
	ar.create(machine.NullHistory, historyTally(tbl, machine.NullHistory))

	pairs := machine.EmissionPairs(tbl.Inputs, tbl.Outputs)
	outs := tbl.Outputs.Symbols()

	// Sufficiency growth: extend member histories one pair into the past,
	// keeping each extension with the best-fitting state it cannot be
	// distinguished from, or opening a new state when it differs from all.
	for l := 1; l <= params.LMaxCSSR; l++ {
		for _, parent := range ar.historiesOfLength(l - 1) {
			for _, e := range pairs {
				child := parent.Prepend(e)
				if _, seen := ar.assign[child]; seen {
					continue
				}
				if !tbl.Observed(child) {
					continue
				}
				counts := historyTally(tbl, child)

				best := -1
				bestStat := math.Inf(1)
				for idx, st := range ar.states {
					g, df := gStatistic(counts, st.counts, outs)
					if pValue(g, df) >= params.Alpha && g < bestStat {
						best = idx
						bestStat = g
					}
				}
				if best >= 0 {
					ar.place(child, best, counts)
				} else {
					ar.create(child, counts)
				}
			}
		}
	}

	// Determinization: split states whose members disagree on a successor
	// until no history changes state, within the iteration bound.
	passes := 0
	for {
		passes++
		if passes > params.MaxSplitIters {
			return nil, &NonConvergenceError{Passes: passes - 1, Assignments: ar.snapshot()}
		}
		if moved := ar.determinizePass(tbl, pairs); moved == 0 {
			break
		}
	}

	m, assignments := ar.build(tbl, pairs)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("reconstructed machine failed validation: %w", err)
	}
	return &Result{Machine: m, Assignments: assignments, SplitPasses: passes}, nil
}

// historyTally collects the per-input next-output counts of h from the table.
func historyTally(tbl *wordstats.Table, h machine.History) tally {
	t := make(tally)
	for _, in := range tbl.Inputs.Symbols() {
		counts, ok := tbl.NextCounts(h, in)
		if !ok {
			continue
		}
		for out, n := range counts {
			t.add(in, out, n)
		}
	}
	return t
}

func (ar *arena) create(h machine.History, counts tally) int {
	idx := len(ar.states)
	ar.states = append(ar.states, &protoState{histories: []machine.History{h}, counts: counts})
	ar.assign[h] = idx
	return idx
}

func (ar *arena) place(h machine.History, idx int, counts tally) {
	st := ar.states[idx]
	st.histories = append(st.histories, h)
	st.counts.merge(counts)
	ar.assign[h] = idx
}

// historiesOfLength returns the assigned histories of length l in a stable
// order, so that reconstruction is deterministic for identical inputs.
func (ar *arena) historiesOfLength(l int) []machine.History {
	var hs []machine.History
	for h := range ar.assign {
		if h.Len() == l {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].X != hs[j].X {
			return hs[i].X < hs[j].X
		}
		return hs[i].Y < hs[j].Y
	})
	return hs
}

// determinizePass scans every state for an emission whose member histories
// disagree on the successor state. The first disagreeing group keeps the
// state; every other group moves together into a fresh state. Returns the
// number of histories that changed state.
//
// Only members whose one-pair extension is itself an assigned history can
// vote: histories already at the depth bound have no extension in the
// partition and are skipped, the standard CSSR convention that keeps
// boundary truncation from manufacturing spurious states.
func (ar *arena) determinizePass(tbl *wordstats.Table, pairs []machine.Emission) int {
	moved := 0
	for idx := 0; idx < len(ar.states); idx++ {
		st := ar.states[idx]
		for _, e := range pairs {
			groups := make(map[int][]machine.History)
			var order []int
			for _, h := range st.histories {
				counts, ok := tbl.NextCounts(h, e.In)
				if !ok || counts[e.Out] == 0 {
					continue // continuation never observed for this member
				}
				succ, ok := ar.assign[h.Append(e)]
				if !ok {
					continue
				}
				if _, seen := groups[succ]; !seen {
					order = append(order, succ)
				}
				groups[succ] = append(groups[succ], h)
			}
			if len(order) <= 1 {
				continue
			}
			for _, succ := range order[1:] {
				dest := len(ar.states)
				ar.states = append(ar.states, &protoState{})
				for _, h := range groups[succ] {
					ar.assign[h] = dest
					moved++
				}
				ar.rebuild(dest, tbl)
			}
			ar.rebuild(idx, tbl)
			break // membership changed, revisit this state next pass
		}
	}
	return moved
}

// rebuild recomputes a state's member list and pooled counts from the
// current assignment index.
func (ar *arena) rebuild(idx int, tbl *wordstats.Table) {
	var members []machine.History
	for _, h := range ar.historiesSorted() {
		if ar.assign[h] == idx {
			members = append(members, h)
		}
	}
	counts := make(tally)
	for _, h := range members {
		counts.merge(historyTally(tbl, h))
	}
	ar.states[idx] = &protoState{histories: members, counts: counts}
}

func (ar *arena) historiesSorted() []machine.History {
	hs := make([]machine.History, 0, len(ar.assign))
	for h := range ar.assign {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Len() != hs[j].Len() {
			return hs[i].Len() < hs[j].Len()
		}
		if hs[i].X != hs[j].X {
			return hs[i].X < hs[j].X
		}
		return hs[i].Y < hs[j].Y
	})
	return hs
}

func (ar *arena) snapshot() map[machine.History]machine.StateID {
	out := make(map[machine.History]machine.StateID, len(ar.assign))
	for h, idx := range ar.assign {
		out[h] = machine.StateID(idx)
	}
	return out
}

// build converts the converged arena into an immutable machine: morphs from
// pooled counts, transitions from member continuations, start state from the
// null history.
func (ar *arena) build(tbl *wordstats.Table, pairs []machine.Emission) (*machine.Machine, map[machine.History]machine.StateID) {
	states := make([]machine.State, len(ar.states))
	for idx, ps := range ar.states {
		morph := make(machine.Morph)
		for in, dist := range ps.counts {
			total := 0
			for _, n := range dist {
				total += n
			}
			if total == 0 {
				continue
			}
			probs := make(map[core.Symbol]float64, len(dist))
			for out, n := range dist {
				probs[out] = float64(n) / float64(total)
			}
			morph[in] = probs
		}

		next := make(map[machine.Emission]machine.StateID)
		for _, e := range pairs {
			for _, h := range ps.histories {
				counts, ok := tbl.NextCounts(h, e.In)
				if !ok || counts[e.Out] == 0 {
					continue
				}
				if succ, ok := ar.assign[h.Append(e)]; ok {
					next[e] = machine.StateID(succ)
					break
				}
			}
		}

		states[idx] = machine.State{
			ID:        machine.StateID(idx),
			Histories: append([]machine.History(nil), ps.histories...),
			Morph:     morph,
			Next:      next,
		}
	}

	m := &machine.Machine{
		ID:      core.MachineID(core.NewID()),
		Inputs:  tbl.Inputs,
		Outputs: tbl.Outputs,
		States:  states,
		Start:   machine.StateID(ar.assign[machine.NullHistory]),
	}
	return m, ar.snapshot()
}
