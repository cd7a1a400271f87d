package dot

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
)

func evenMachine() *machine.Machine {
	return &machine.Machine{
		ID:      core.MachineID(core.NewID()),
		Name:    "even_process",
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
				Next:  map[machine.Emission]machine.StateID{{In: "0", Out: "1"}: 0},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	orig := evenMachine()
	data, err := Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	if parsed.Name != orig.Name {
		t.Errorf("name %q, want %q", parsed.Name, orig.Name)
	}
	if parsed.ID != orig.ID {
		t.Errorf("machine ID %q, want %q", parsed.ID, orig.ID)
	}
	if parsed.Start != orig.Start {
		t.Errorf("start %d, want %d", parsed.Start, orig.Start)
	}
	if parsed.Inputs.String() != orig.Inputs.String() || parsed.Outputs.String() != orig.Outputs.String() {
		t.Errorf("alphabets (%s, %s), want (%s, %s)", parsed.Inputs, parsed.Outputs, orig.Inputs, orig.Outputs)
	}
	if parsed.StateCount() != orig.StateCount() {
		t.Fatalf("state count %d, want %d", parsed.StateCount(), orig.StateCount())
	}

	for _, st := range orig.States {
		for e, next := range st.Next {
			got, ok := parsed.Successor(st.ID, e)
			if !ok || got != next {
				t.Errorf("state %d transition on %s: got %d, %v; want %d", st.ID, e, got, ok, next)
			}
			p := parsed.States[st.ID].Morph.Prob(e.In, e.Out)
			want := st.Morph.Prob(e.In, e.Out)
			if math.Abs(p-want) > 1e-9 {
				t.Errorf("state %d probability for %s: got %g, want %g", st.ID, e, p, want)
			}
		}
	}

	// Predictions survive the round trip exactly.
	for _, st := range orig.States {
		got := parsed.Predict(st.ID, "0")
		want := orig.Predict(st.ID, "0")
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-9 {
				t.Errorf("state %d prediction column %d: got %g, want %g", st.ID, i, got[i], want[i])
			}
		}
	}
}

func TestWrite_Deterministic(t *testing.T) {
	m := evenMachine()
	first, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two marshals of the same machine differ")
	}
}

func TestWrite_LabelFormat(t *testing.T) {
	data, err := Marshal(evenMachine())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, `"0" -> "1" [label = "0|1:0.5"];`) {
		t.Errorf("missing expected edge line in:\n%s", text)
	}
	if !strings.Contains(text, `"1" -> "0" [label = "0|1:1"];`) {
		t.Errorf("missing forced-state edge line in:\n%s", text)
	}
}

func TestParse_Failures(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no header", `graph [inputs = "0", outputs = "01", start = "0", machine = ""];`},
		{"garbage line", "digraph \"m\" {\n\tnot a dot line\n}\n"},
		{"no states", "digraph \"m\" {\n\tgraph [inputs = \"0\", outputs = \"01\", start = \"0\", machine = \"\"];\n}\n"},
		{"bad morph sum", "digraph \"m\" {\n\tgraph [inputs = \"0\", outputs = \"01\", start = \"0\", machine = \"\"];\n\t\"0\";\n\t\"0\" -> \"0\" [label = \"0|0:0.4\"];\n}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data)); err == nil {
				t.Errorf("expected parse failure for %s", tc.name)
			}
		})
	}
}
