package stream

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"transcssr/domain/core"
)

// Stream is an ordered sequence of single-character symbols. It is stored as
// the raw string read from disk and treated as read-only once loaded.
type Stream string

// Len returns the number of symbols in the stream.
func (s Stream) Len() int { return len(s) }

// At returns the symbol at position i.
func (s Stream) At(i int) core.Symbol { return core.Symbol(s[i : i+1]) }

// Slice returns the symbols in [from, to) as a raw string.
func (s Stream) Slice(from, to int) string { return string(s[from:to]) }

// Alphabet is an ordered finite symbol set. Order is significant: prediction
// matrices use it as their column order.
type Alphabet struct {
	symbols []core.Symbol
	index   map[core.Symbol]int
}

// NewAlphabet builds an alphabet from an ordered list of symbols.
func NewAlphabet(symbols ...core.Symbol) (Alphabet, error) {
	if len(symbols) == 0 {
		return Alphabet{}, core.ErrEmptyAlphabet
	}
	index := make(map[core.Symbol]int, len(symbols))
	for i, sym := range symbols {
		if len(sym) != 1 {
			return Alphabet{}, fmt.Errorf("alphabet symbol %q must be a single character", sym)
		}
		if _, dup := index[sym]; dup {
			return Alphabet{}, fmt.Errorf("alphabet symbol %q appears twice", sym)
		}
		index[sym] = i
	}
	return Alphabet{symbols: symbols, index: index}, nil
}

// MustAlphabet is NewAlphabet that panics on invalid input, for fixed literals.
func MustAlphabet(symbols ...core.Symbol) Alphabet {
	a, err := NewAlphabet(symbols...)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAlphabet builds an alphabet from a string of concatenated symbols,
// e.g. "01" for the binary alphabet.
func ParseAlphabet(s string) (Alphabet, error) {
	symbols := make([]core.Symbol, 0, len(s))
	for _, r := range s {
		symbols = append(symbols, core.Symbol(string(r)))
	}
	return NewAlphabet(symbols...)
}

// Size returns the number of symbols.
func (a Alphabet) Size() int { return len(a.symbols) }

// Symbols returns the ordered symbol list. Callers must not mutate it.
func (a Alphabet) Symbols() []core.Symbol { return a.symbols }

// Index returns the position of sym, or false if sym is not in the alphabet.
func (a Alphabet) Index(sym core.Symbol) (int, bool) {
	i, ok := a.index[sym]
	return i, ok
}

// Contains reports whether sym is in the alphabet.
func (a Alphabet) Contains(sym core.Symbol) bool {
	_, ok := a.index[sym]
	return ok
}

// String returns the concatenated symbols, the inverse of ParseAlphabet.
func (a Alphabet) String() string {
	var b strings.Builder
	for _, sym := range a.symbols {
		b.WriteString(string(sym))
	}
	return b.String()
}

// Paired is a pair of aligned input/output streams over declared alphabets.
// Immutable once constructed.
type Paired struct {
	X, Y    Stream
	Inputs  Alphabet
	Outputs Alphabet
}

// NewPaired validates stream lengths and alphabet membership.
func NewPaired(x, y Stream, inputs, outputs Alphabet) (Paired, error) {
	if x.Len() != y.Len() {
		return Paired{}, core.NewLengthMismatchError(x.Len(), y.Len())
	}
	for i := 0; i < x.Len(); i++ {
		if !inputs.Contains(x.At(i)) {
			return Paired{}, core.NewAlphabetError("input", string(x.At(i)), i)
		}
		if !outputs.Contains(y.At(i)) {
			return Paired{}, core.NewAlphabetError("output", string(y.At(i)), i)
		}
	}
	return Paired{X: x, Y: y, Inputs: inputs, Outputs: outputs}, nil
}

// Len returns the common stream length T.
func (p Paired) Len() int { return p.X.Len() }

// LoadStream reads a stream file: a single line of concatenated
// single-character symbols, no separators.
func LoadStream(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open stream file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read stream file %s: %w", path, err)
		}
		return "", core.NewInsufficientDataError(fmt.Sprintf("stream file %s is empty", path))
	}
	return Stream(strings.TrimSpace(scanner.Text())), nil
}

// LoadPaired loads aligned input and output stream files. An empty xPath
// selects the output-only convention: a constant '0' input stream of the
// output's length over the single-symbol alphabet {'0'}.
func LoadPaired(xPath, yPath string, inputs, outputs Alphabet) (Paired, error) {
	y, err := LoadStream(yPath)
	if err != nil {
		return Paired{}, err
	}

	var x Stream
	if xPath == "" {
		x = Stream(strings.Repeat("0", y.Len()))
		inputs = MustAlphabet("0")
	} else {
		x, err = LoadStream(xPath)
		if err != nil {
			return Paired{}, err
		}
	}

	return NewPaired(x, y, inputs, outputs)
}
