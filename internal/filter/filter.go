// Package filter replays an aligned symbol stream through a previously
// reconstructed epsilon-machine, tracking the visited causal state and
// emitting the next-output predictive distribution before each observed
// symbol is consumed.
package filter

import (
	"fmt"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
)

// Violation records one forbidden transition: the replayed stream observed
// an (input, output) pair with zero probability under the current state's
// morph, which signals a mismatch between the stream and the machine.
type Violation struct {
	Step     int
	State    machine.StateID
	Emission machine.Emission
}

// ForbiddenTransitionError is the fatal form of a Violation, returned when
// replay runs with FailFast.
type ForbiddenTransitionError struct {
	Violation Violation
}

func (e *ForbiddenTransitionError) Error() string {
	v := e.Violation
	return fmt.Sprintf("forbidden transition at step %d: state %d has zero probability for %s", v.Step, v.State, v.Emission)
}

func (e *ForbiddenTransitionError) Unwrap() error { return core.ErrForbiddenTransition }

// Options controls replay behavior.
type Options struct {
	// FailFast turns the first forbidden transition into a fatal error,
	// for callers scoring against the machine. The default records each
	// occurrence, resynchronizes at the start state, and keeps going.
	FailFast bool
}

// Result is the replay trace: one row of predictive probabilities per time
// step (columns in the machine's output alphabet order), the state visited
// at each step, the most likely next output per step, and every forbidden
// transition encountered.
type Result struct {
	Predictions [][]float64
	States      []machine.StateID
	Predicted   []core.Symbol
	Violations  []Violation
}

// Replay runs ps through m from the start state.
func Replay(m *machine.Machine, ps stream.Paired, opts Options) (*Result, error) {
	if ps.Inputs.String() != m.Inputs.String() || ps.Outputs.String() != m.Outputs.String() {
		return nil, fmt.Errorf("%w: stream alphabets (%s, %s) do not match machine alphabets (%s, %s)",
			core.ErrInputMismatch, ps.Inputs, ps.Outputs, m.Inputs, m.Outputs)
	}

	res := &Result{
		Predictions: make([][]float64, ps.Len()),
		States:      make([]machine.StateID, ps.Len()),
		Predicted:   make([]core.Symbol, ps.Len()),
	}

	state := m.Start
	for t := 0; t < ps.Len(); t++ {
		in := ps.X.At(t)
		out := ps.Y.At(t)

		probs := m.Predict(state, in)
		res.Predictions[t] = probs
		res.States[t] = state
		res.Predicted[t] = argmax(m.Outputs, probs)

		e := machine.Emission{In: in, Out: out}
		next, ok := m.Successor(state, e)
		if !ok || m.States[state].Morph.Prob(in, out) == 0 {
			v := Violation{Step: t, State: state, Emission: e}
			if opts.FailFast {
				return nil, &ForbiddenTransitionError{Violation: v}
			}
			res.Violations = append(res.Violations, v)
			state = m.Start // resynchronize and keep replaying
			continue
		}
		state = next
	}
	return res, nil
}

func argmax(outputs stream.Alphabet, probs []float64) core.Symbol {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return outputs.Symbols()[best]
}
