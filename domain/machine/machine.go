package machine

import (
	"fmt"
	"math"
	"sort"

	"transcssr/domain/core"
	"transcssr/domain/stream"
)

// StateID indexes a causal state within its machine's state container.
type StateID int

// History is a joint past: the most recent aligned input and output symbols,
// oldest first. X and Y always have equal length.
type History struct {
	X string
	Y string
}

// NullHistory is the length-zero past.
var NullHistory = History{}

// Len returns the history length in symbol pairs.
func (h History) Len() int { return len(h.X) }

// Append extends the history one pair at the recent end.
func (h History) Append(e Emission) History {
	return History{X: h.X + string(e.In), Y: h.Y + string(e.Out)}
}

// Prepend grows the history one pair into the past.
func (h History) Prepend(e Emission) History {
	return History{X: string(e.In) + h.X, Y: string(e.Out) + h.Y}
}

func (h History) String() string {
	if h.Len() == 0 {
		return "(null)"
	}
	return fmt.Sprintf("%s|%s", h.X, h.Y)
}

// Emission is one aligned (input, output) symbol pair.
type Emission struct {
	In  core.Symbol
	Out core.Symbol
}

func (e Emission) String() string {
	return fmt.Sprintf("(%s, %s)", e.In, e.Out)
}

// EmissionPairs enumerates the joint alphabet in input-major order.
func EmissionPairs(inputs, outputs stream.Alphabet) []Emission {
	pairs := make([]Emission, 0, inputs.Size()*outputs.Size())
	for _, in := range inputs.Symbols() {
		for _, out := range outputs.Symbols() {
			pairs = append(pairs, Emission{In: in, Out: out})
		}
	}
	return pairs
}

// Morph is a causal state's predictive distribution: for each input symbol,
// a distribution over the next output symbol. Outputs with zero probability
// are absent.
type Morph map[core.Symbol]map[core.Symbol]float64

// Prob returns the probability of emitting out given in, zero when absent.
func (m Morph) Prob(in, out core.Symbol) float64 {
	dist, ok := m[in]
	if !ok {
		return 0
	}
	return dist[out]
}

// Dist returns the output distribution for input in, or nil when the input
// was never observed at this state.
func (m Morph) Dist(in core.Symbol) map[core.Symbol]float64 {
	return m[in]
}

// State is one causal state: its member histories, its morph, and its
// successor per emission pair.
type State struct {
	ID        StateID
	Histories []History
	Morph     Morph
	Next      map[Emission]StateID
}

// Machine is an epsilon-machine / epsilon-transducer: causal states plus the
// morphs connecting them. Immutable once built.
type Machine struct {
	ID      core.MachineID
	Name    string
	Inputs  stream.Alphabet
	Outputs stream.Alphabet
	States  []State
	Start   StateID
}

// StateCount returns the number of causal states.
func (m *Machine) StateCount() int { return len(m.States) }

// Successor resolves the transition from state s on emission e.
func (m *Machine) Successor(s StateID, e Emission) (StateID, bool) {
	next, ok := m.States[s].Next[e]
	return next, ok
}

// Predict returns state s's output distribution for input in, in the output
// alphabet's order. Missing entries are zero.
func (m *Machine) Predict(s StateID, in core.Symbol) []float64 {
	probs := make([]float64, m.Outputs.Size())
	dist := m.States[s].Morph.Dist(in)
	for i, out := range m.Outputs.Symbols() {
		probs[i] = dist[out]
	}
	return probs
}

// stochasticTolerance bounds the drift allowed in a morph's probability mass.
const stochasticTolerance = 1e-9

// Validate checks the machine's structural invariants: every state's morph
// sums to 1 over the output alphabet for each input it covers, every
// transition targets an existing state, and the start state exists.
func (m *Machine) Validate() error {
	if len(m.States) == 0 {
		return fmt.Errorf("machine has no states")
	}
	if m.Start < 0 || int(m.Start) >= len(m.States) {
		return fmt.Errorf("start state %d out of range [0, %d)", m.Start, len(m.States))
	}
	for _, st := range m.States {
		for in, dist := range st.Morph {
			if !m.Inputs.Contains(in) {
				return fmt.Errorf("state %d morph references input %q outside the alphabet", st.ID, in)
			}
			sum := 0.0
			for out, p := range dist {
				if !m.Outputs.Contains(out) {
					return fmt.Errorf("state %d morph references output %q outside the alphabet", st.ID, out)
				}
				if p < 0 || p > 1+stochasticTolerance {
					return fmt.Errorf("state %d morph probability %g for %s|%s out of range", st.ID, p, out, in)
				}
				sum += p
			}
			if math.Abs(sum-1) > stochasticTolerance {
				return fmt.Errorf("state %d morph for input %q sums to %g, want 1", st.ID, in, sum)
			}
		}
		for e, next := range st.Next {
			if next < 0 || int(next) >= len(m.States) {
				return fmt.Errorf("state %d transition on %s targets missing state %d", st.ID, e, next)
			}
			if st.Morph.Prob(e.In, e.Out) == 0 {
				return fmt.Errorf("state %d has a transition on %s with zero morph probability", st.ID, e)
			}
		}
	}
	return nil
}

// SortedEmissions returns state s's transitions in a stable order, for
// deterministic serialization and inspection.
func (m *Machine) SortedEmissions(s StateID) []Emission {
	st := m.States[s]
	emissions := make([]Emission, 0, len(st.Next))
	for e := range st.Next {
		emissions = append(emissions, e)
	}
	sort.Slice(emissions, func(i, j int) bool {
		if emissions[i].In != emissions[j].In {
			return emissions[i].In < emissions[j].In
		}
		return emissions[i].Out < emissions[j].Out
	})
	return emissions
}
