// Package testkit generates symbol streams from processes with known
// closed-form information measures, for tests and demos.
package testkit

import (
	"math/rand"
	"strings"

	"transcssr/domain/stream"
)

// Binary is the {0, 1} alphabet shared by all generators here.
func Binary() stream.Alphabet {
	return stream.MustAlphabet("0", "1")
}

// Periodic repeats pattern until the stream reaches length n. The period-2
// pattern "01" yields a process with entropy rate 0 and statistical
// complexity 1 bit.
func Periodic(pattern string, n int) stream.Stream {
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		b.WriteString(pattern)
	}
	return stream.Stream(b.String()[:n])
}

// Coinflip emits independent fair bits.
func Coinflip(n int, seed int64) stream.Stream {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		if rng.Intn(2) == 0 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return stream.Stream(b.String())
}

// EvenProcess emits runs of 1s of even length separated by 0s: the classic
// two-state process with entropy rate 2/3 bit/symbol and statistical
// complexity log2(3) - 2/3 (about 0.9183) bits.
func EvenProcess(n int, seed int64) stream.Stream {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.Grow(n + 2)
	// State A emits 0 or 1 with equal probability; emitting 1 forces a
	// second 1 before returning to A.
	for b.Len() < n {
		if rng.Intn(2) == 0 {
			b.WriteByte('0')
		} else {
			b.WriteString("11")
		}
	}
	return stream.Stream(b.String()[:n])
}

// GoldenMean emits binary strings with no consecutive 1s.
func GoldenMean(n int, seed int64) stream.Stream {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.Grow(n)
	prevOne := false
	for i := 0; i < n; i++ {
		if prevOne || rng.Intn(2) == 0 {
			b.WriteByte('0')
			prevOne = false
		} else {
			b.WriteByte('1')
			prevOne = true
		}
	}
	return stream.Stream(b.String())
}

// NoisyChannel generates a memoryless binary identity channel: iid fair
// input bits, each output copying its input flipped with probability flip.
// The single-state transducer for it has morph P(y=x|x) = 1-flip.
func NoisyChannel(n int, flip float64, seed int64) (stream.Paired, error) {
	rng := rand.New(rand.NewSource(seed))
	var xb, yb strings.Builder
	xb.Grow(n)
	yb.Grow(n)
	for i := 0; i < n; i++ {
		x := byte('0' + rng.Intn(2))
		y := x
		if rng.Float64() < flip {
			y = '0' + '1' - x
		}
		xb.WriteByte(x)
		yb.WriteByte(y)
	}
	return stream.NewPaired(stream.Stream(xb.String()), stream.Stream(yb.String()), Binary(), Binary())
}

// OutputOnly pairs ys with the constant '0' input stream, the convention for
// processes without an input.
func OutputOnly(ys stream.Stream) (stream.Paired, error) {
	xs := stream.Stream(strings.Repeat("0", ys.Len()))
	return stream.NewPaired(xs, ys, stream.MustAlphabet("0"), Binary())
}
