// Package dot serializes epsilon-machines to Graphviz DOT and parses them
// back. The DOT file is the sole persisted artifact: the filter and analyzer
// run from a parsed machine without re-running reconstruction, and the same
// bytes feed the external graph renderer.
//
// The format is one node per causal state and one edge per
// (input, output, probability) triple with positive probability, labeled
// "in|out:prob". Alphabets, the start state, and the machine ID travel as
// graph attributes so a parse reconstructs an isomorphic machine.
package dot

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
)

// Write renders m as DOT with deterministic ordering.
func Write(w io.Writer, m *machine.Machine) error {
	bw := bufio.NewWriter(w)

	name := m.Name
	if name == "" {
		name = "epsilon_machine"
	}
	fmt.Fprintf(bw, "digraph %q {\n", name)
	fmt.Fprintf(bw, "\tgraph [inputs = %q, outputs = %q, start = %q, machine = %q];\n",
		m.Inputs.String(), m.Outputs.String(), strconv.Itoa(int(m.Start)), m.ID.String())
	fmt.Fprintf(bw, "\trankdir = LR;\n")
	fmt.Fprintf(bw, "\tnode [shape = circle];\n")

	for _, st := range m.States {
		fmt.Fprintf(bw, "\t%q;\n", strconv.Itoa(int(st.ID)))
	}
	for _, st := range m.States {
		for _, e := range m.SortedEmissions(st.ID) {
			next := st.Next[e]
			p := st.Morph.Prob(e.In, e.Out)
			fmt.Fprintf(bw, "\t%q -> %q [label = \"%s|%s:%.15g\"];\n",
				strconv.Itoa(int(st.ID)), strconv.Itoa(int(next)), e.In, e.Out, p)
		}
	}
	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

// Marshal renders m to a byte slice.
func Marshal(m *machine.Machine) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	headerRe = regexp.MustCompile(`^digraph\s+"(.*)"\s*\{$`)
	graphRe  = regexp.MustCompile(`^graph\s+\[inputs = "([^"]*)", outputs = "([^"]*)", start = "([^"]*)", machine = "([^"]*)"\];$`)
	nodeRe   = regexp.MustCompile(`^"(\d+)";$`)
	edgeRe   = regexp.MustCompile(`^"(\d+)" -> "(\d+)" \[label = "(.)\|(.):([^"]+)"\];$`)
)

// Parse reconstructs a machine from DOT produced by Write. The result is
// isomorphic to the original: same states, same transition probabilities.
func Parse(data []byte) (*machine.Machine, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		m         machine.Machine
		sawHeader bool
		sawGraph  bool
		maxState  = -1
	)
	type edge struct {
		from, to int
		e        machine.Emission
		p        float64
	}
	var edges []edge

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "}" {
			continue
		}
		switch {
		case !sawHeader:
			mt := headerRe.FindStringSubmatch(line)
			if mt == nil {
				return nil, fmt.Errorf("malformed DOT header: %q", line)
			}
			m.Name = mt[1]
			sawHeader = true
		case graphRe.MatchString(line):
			mt := graphRe.FindStringSubmatch(line)
			inputs, err := stream.ParseAlphabet(mt[1])
			if err != nil {
				return nil, fmt.Errorf("malformed input alphabet %q: %w", mt[1], err)
			}
			outputs, err := stream.ParseAlphabet(mt[2])
			if err != nil {
				return nil, fmt.Errorf("malformed output alphabet %q: %w", mt[2], err)
			}
			start, err := strconv.Atoi(mt[3])
			if err != nil {
				return nil, fmt.Errorf("malformed start state %q: %w", mt[3], err)
			}
			m.Inputs = inputs
			m.Outputs = outputs
			m.Start = machine.StateID(start)
			m.ID = core.MachineID(mt[4])
			sawGraph = true
		case nodeRe.MatchString(line):
			mt := nodeRe.FindStringSubmatch(line)
			id, _ := strconv.Atoi(mt[1])
			if id > maxState {
				maxState = id
			}
		case edgeRe.MatchString(line):
			mt := edgeRe.FindStringSubmatch(line)
			from, _ := strconv.Atoi(mt[1])
			to, _ := strconv.Atoi(mt[2])
			p, err := strconv.ParseFloat(mt[5], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed edge probability %q: %w", mt[5], err)
			}
			if from > maxState {
				maxState = from
			}
			if to > maxState {
				maxState = to
			}
			edges = append(edges, edge{
				from: from,
				to:   to,
				e:    machine.Emission{In: core.Symbol(mt[3]), Out: core.Symbol(mt[4])},
				p:    p,
			})
		case strings.HasPrefix(line, "rankdir"), strings.HasPrefix(line, "node "):
			// Layout hints, nothing to recover.
		default:
			return nil, fmt.Errorf("unrecognized DOT line: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan DOT input: %w", err)
	}
	if !sawHeader || !sawGraph {
		return nil, fmt.Errorf("DOT input is missing the machine header attributes")
	}
	if maxState < 0 {
		return nil, fmt.Errorf("DOT input declares no states")
	}

	m.States = make([]machine.State, maxState+1)
	for i := range m.States {
		m.States[i] = machine.State{
			ID:    machine.StateID(i),
			Morph: make(machine.Morph),
			Next:  make(map[machine.Emission]machine.StateID),
		}
	}
	for _, ed := range edges {
		st := &m.States[ed.from]
		dist, ok := st.Morph[ed.e.In]
		if !ok {
			dist = make(map[core.Symbol]float64)
			st.Morph[ed.e.In] = dist
		}
		dist[ed.e.Out] = ed.p
		st.Next[ed.e] = machine.StateID(ed.to)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("parsed machine failed validation: %w", err)
	}
	return &m, nil
}
