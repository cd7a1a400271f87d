package filter

import (
	"errors"
	"testing"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
)

// evenMachine is the two-state even process: state 0 emits 0 or 1 with
// equal probability, state 1 is forced to emit 1 and return to state 0.
func evenMachine() *machine.Machine {
	return &machine.Machine{
		Inputs:  stream.MustAlphabet("0"),
		Outputs: stream.MustAlphabet("0", "1"),
		Start:   0,
		States: []machine.State{
			{
				ID:    0,
				Morph: machine.Morph{"0": {"0": 0.5, "1": 0.5}},
				Next: map[machine.Emission]machine.StateID{
					{In: "0", Out: "0"}: 0,
					{In: "0", Out: "1"}: 1,
				},
			},
			{
				ID:    1,
				Morph: machine.Morph{"0": {"1": 1.0}},
				Next: map[machine.Emission]machine.StateID{
					{In: "0", Out: "1"}: 0,
				},
			},
		},
	}
}

func pairedWith(t *testing.T, m *machine.Machine, ys string) stream.Paired {
	t.Helper()
	xs := make([]byte, len(ys))
	for i := range xs {
		xs[i] = '0'
	}
	ps, err := stream.NewPaired(stream.Stream(xs), stream.Stream(ys), m.Inputs, m.Outputs)
	if err != nil {
		t.Fatal(err)
	}
	return ps
}

func TestReplay_AdmissibleStream(t *testing.T) {
	m := evenMachine()
	res, err := Replay(m, pairedWith(t, m, "0110"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("admissible stream produced violations: %v", res.Violations)
	}

	wantStates := []machine.StateID{0, 0, 1, 0}
	for i, want := range wantStates {
		if res.States[i] != want {
			t.Errorf("step %d visited state %d, want %d", i, res.States[i], want)
		}
	}

	// The forced state predicts 1 with certainty.
	if res.Predictions[2][0] != 0 || res.Predictions[2][1] != 1 {
		t.Errorf("forced-state prediction row = %v, want [0 1]", res.Predictions[2])
	}
	if res.Predicted[2] != "1" {
		t.Errorf("forced-state argmax = %q, want 1", res.Predicted[2])
	}
}

// An odd run of 1s is impossible under the even process; replay records the
// violation at the forced state and resynchronizes at the start.
func TestReplay_ForbiddenTransitionResync(t *testing.T) {
	m := evenMachine()
	res, err := Replay(m, pairedWith(t, m, "0100"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(res.Violations))
	}
	v := res.Violations[0]
	if v.Step != 2 || v.State != 1 {
		t.Errorf("violation at step %d state %d, want step 2 state 1", v.Step, v.State)
	}
	if v.Emission.Out != "0" {
		t.Errorf("violation emission out = %q, want 0", v.Emission.Out)
	}
	// After resync the final step runs from the start state again.
	if res.States[3] != m.Start {
		t.Errorf("post-resync state = %d, want start %d", res.States[3], m.Start)
	}
}

func TestReplay_FailFast(t *testing.T) {
	m := evenMachine()
	_, err := Replay(m, pairedWith(t, m, "0100"), Options{FailFast: true})
	if !core.IsForbiddenTransition(err) {
		t.Fatalf("expected forbidden transition error, got %v", err)
	}
	var fte *ForbiddenTransitionError
	if !errors.As(err, &fte) || fte.Violation.Step != 2 {
		t.Errorf("error should carry the violation, got %+v", err)
	}
}

func TestReplay_AlphabetMismatch(t *testing.T) {
	m := evenMachine()
	ps, err := stream.NewPaired("ab", "ab",
		stream.MustAlphabet("a", "b"), stream.MustAlphabet("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Replay(m, ps, Options{}); !core.IsInputMismatch(err) {
		t.Errorf("expected input mismatch error, got %v", err)
	}
}

// noisyChannelMachine is the one-state binary identity channel with flip
// probability 0.1: the morph conditions on the input symbol.
func noisyChannelMachine() *machine.Machine {
	return &machine.Machine{
		Inputs:  stream.MustAlphabet("0", "1"),
		Outputs: stream.MustAlphabet("0", "1"),
		Start:   0,
		States: []machine.State{
			{
				ID: 0,
				Morph: machine.Morph{
					"0": {"0": 0.9, "1": 0.1},
					"1": {"0": 0.1, "1": 0.9},
				},
				Next: map[machine.Emission]machine.StateID{
					{In: "0", Out: "0"}: 0,
					{In: "0", Out: "1"}: 0,
					{In: "1", Out: "0"}: 0,
					{In: "1", Out: "1"}: 0,
				},
			},
		},
	}
}

func TestReplay_PredictionConditionsOnInput(t *testing.T) {
	m := noisyChannelMachine()
	ps, err := stream.NewPaired("0110", "0100", m.Inputs, m.Outputs)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Replay(m, ps, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("full-support channel produced violations: %v", res.Violations)
	}

	wantRows := [][]float64{
		{0.9, 0.1}, // input 0
		{0.1, 0.9}, // input 1
		{0.1, 0.9}, // input 1
		{0.9, 0.1}, // input 0
	}
	for t0, want := range wantRows {
		for i := range want {
			if res.Predictions[t0][i] != want[i] {
				t.Errorf("step %d prediction row = %v, want %v", t0, res.Predictions[t0], want)
				break
			}
		}
	}
	wantPredicted := []core.Symbol{"0", "1", "1", "0"}
	for t0, want := range wantPredicted {
		if res.Predicted[t0] != want {
			t.Errorf("step %d argmax = %q, want %q", t0, res.Predicted[t0], want)
		}
	}
}

func TestReplay_PredictionRowPerStep(t *testing.T) {
	m := evenMachine()
	res, err := Replay(m, pairedWith(t, m, "011011"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Predictions) != 6 || len(res.States) != 6 || len(res.Predicted) != 6 {
		t.Fatalf("trace lengths %d/%d/%d, want 6 each",
			len(res.Predictions), len(res.States), len(res.Predicted))
	}
	for i, row := range res.Predictions {
		if len(row) != m.Outputs.Size() {
			t.Errorf("row %d has %d columns, want %d", i, len(row), m.Outputs.Size())
		}
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if sum < 1-1e-9 || sum > 1+1e-9 {
			t.Errorf("row %d sums to %g, want 1", i, sum)
		}
	}
}
