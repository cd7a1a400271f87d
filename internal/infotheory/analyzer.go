// Package infotheory computes asymptotic and finite-length information
// measures from an epsilon-machine's transition structure alone: stationary
// distribution, statistical complexity, entropy rate, block entropies, and
// excess entropy. Every quantity is a deterministic function of the
// automaton; no data and no hypothesis testing are involved.
package infotheory

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"transcssr/domain/core"
	"transcssr/domain/machine"
)

// pruneTolerance drops zero-probability word branches during block-entropy
// propagation.
const pruneTolerance = 1e-15

// eigenTolerance is how close the leading eigenvalue must be to 1.
const eigenTolerance = 1e-8

// Options configures an analysis run.
type Options struct {
	// LMax is the lookback depth for the finite-L measures. Block
	// entropies are propagated to depth 2*LMax so that E(L) is exact.
	LMax int

	// InputDist weights the per-input transition matrices when averaging.
	// Nil means uniform weights over the input alphabet.
	InputDist map[core.Symbol]float64
}

// Measures is the full analysis output. Slices are indexed by L-1 for
// L = 1..LMax.
type Measures struct {
	// Stationary is the stationary probability of every state; transient
	// states carry zero.
	Stationary map[machine.StateID]float64

	// Cmu is the statistical complexity in bits.
	Cmu float64

	// Hmu is the entropy rate in bits per symbol.
	Hmu float64

	// BlockEntropy[L-1] is H[Y_1^L] in bits.
	BlockEntropy []float64

	// CondEntropy[L-1] is h(L) = H[Y_1^L] - H[Y_1^{L-1}].
	CondEntropy []float64

	// ExcessEntropyL[L-1] is E(L), the mutual information between the
	// preceding and following L symbols.
	ExcessEntropyL []float64

	// E is the asymptotic excess entropy.
	E float64
}

// Analyze computes all measures for m.
func Analyze(m *machine.Machine, opts Options) (*Measures, error) {
	if opts.LMax < 1 {
		opts.LMax = 1
	}

	classes := m.RecurrentClasses()
	if len(classes) == 0 {
		return nil, core.NewNonErgodicError("machine has no closed recurrent class")
	}
	if len(classes) > 1 {
		return nil, core.NewNonErgodicError("transition graph is not irreducible: multiple closed classes")
	}

	class := append([]machine.StateID(nil), classes[0]...)
	sort.Slice(class, func(i, j int) bool { return class[i] < class[j] })
	k := len(class)
	local := make(map[machine.StateID]int, k)
	for i, id := range class {
		local[id] = i
	}

	weights, err := inputWeights(m, opts.InputDist)
	if err != nil {
		return nil, err
	}

	// Per-output emission matrices over the recurrent class, averaged
	// over inputs: emit[y][i][j] = sum_x w(x) P(y|x,i) [succ(i,x,y) = j].
	emit := make(map[core.Symbol]*mat.Dense, m.Outputs.Size())
	for _, out := range m.Outputs.Symbols() {
		emit[out] = mat.NewDense(k, k, nil)
	}
	tbar := mat.NewDense(k, k, nil)
	for i, id := range class {
		st := m.States[id]
		for _, in := range m.Inputs.Symbols() {
			w := weights[in]
			if w == 0 {
				continue
			}
			for out, p := range st.Morph.Dist(in) {
				next, ok := st.Next[machine.Emission{In: in, Out: out}]
				if !ok {
					continue
				}
				j, inClass := local[next]
				if !inClass {
					// A closed class cannot leave itself.
					return nil, core.NewNonErgodicError("recurrent class has an escaping transition")
				}
				emit[out].Set(i, j, emit[out].At(i, j)+w*p)
				tbar.Set(i, j, tbar.At(i, j)+w*p)
			}
		}
	}

	pi, subdominant, err := stationaryDistribution(tbar)
	if err != nil {
		return nil, err
	}

	ms := &Measures{Stationary: make(map[machine.StateID]float64, len(m.States))}
	for _, st := range m.States {
		ms.Stationary[st.ID] = 0
	}
	for i, id := range class {
		ms.Stationary[id] = pi[i]
	}

	ms.Cmu = shannonEntropy(pi)
	ms.Hmu = entropyRate(m, class, pi, weights)

	depth := 2 * opts.LMax
	blocks := blockEntropies(pi, emit, m.Outputs.Symbols(), depth)

	ms.BlockEntropy = blocks[:opts.LMax]
	ms.CondEntropy = make([]float64, opts.LMax)
	for l := 1; l <= opts.LMax; l++ {
		prev := 0.0
		if l > 1 {
			prev = blocks[l-2]
		}
		ms.CondEntropy[l-1] = blocks[l-1] - prev
	}
	ms.ExcessEntropyL = make([]float64, opts.LMax)
	for l := 1; l <= opts.LMax; l++ {
		ms.ExcessEntropyL[l-1] = 2*blocks[l-1] - blocks[2*l-1]
	}

	ms.E = excessEntropy(blocks, ms.Hmu, subdominant)
	return ms, nil
}

// inputWeights resolves the input-averaging distribution.
func inputWeights(m *machine.Machine, dist map[core.Symbol]float64) (map[core.Symbol]float64, error) {
	weights := make(map[core.Symbol]float64, m.Inputs.Size())
	if dist == nil {
		w := 1.0 / float64(m.Inputs.Size())
		for _, in := range m.Inputs.Symbols() {
			weights[in] = w
		}
		return weights, nil
	}
	sum := 0.0
	for _, in := range m.Inputs.Symbols() {
		w := dist[in]
		if w < 0 {
			return nil, core.NewNonErgodicError("input distribution has a negative weight")
		}
		weights[in] = w
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return nil, core.NewNonErgodicError("input distribution does not sum to 1")
	}
	return weights, nil
}

// stationaryDistribution solves for the left eigenvector of t at eigenvalue 1
// and returns it normalized, together with the modulus of the subdominant
// eigenvalue.
func stationaryDistribution(t *mat.Dense) ([]float64, float64, error) {
	k, _ := t.Dims()

	var eig mat.Eigen
	if ok := eig.Factorize(mat.DenseCopyOf(t.T()), mat.EigenRight); !ok {
		return nil, 0, core.NewNonErgodicError("eigendecomposition of the transition matrix failed")
	}
	values := eig.Values(nil)

	lead := -1
	for i, v := range values {
		if cmplx.Abs(v-1) < eigenTolerance {
			if lead == -1 || cmplx.Abs(v-1) < cmplx.Abs(values[lead]-1) {
				lead = i
			}
		}
	}
	if lead == -1 {
		return nil, 0, core.NewNonErgodicError("transition matrix has no eigenvalue at 1")
	}

	subdominant := 0.0
	for i, v := range values {
		if i == lead {
			continue
		}
		if a := cmplx.Abs(v); a > subdominant {
			subdominant = a
		}
	}

	var vecs mat.CDense
	eig.VectorsTo(&vecs)
	pi := make([]float64, k)
	for i := 0; i < k; i++ {
		pi[i] = math.Abs(real(vecs.At(i, lead)))
	}
	total := floats.Sum(pi)
	if total == 0 {
		return nil, 0, core.NewNonErgodicError("stationary eigenvector is degenerate")
	}
	floats.Scale(1/total, pi)
	return pi, subdominant, nil
}

func shannonEntropy(p []float64) float64 {
	h := 0.0
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log2(v)
		}
	}
	return h
}

// entropyRate is the stationary-weighted average local emission entropy.
func entropyRate(m *machine.Machine, class []machine.StateID, pi []float64, weights map[core.Symbol]float64) float64 {
	h := 0.0
	for i, id := range class {
		st := m.States[id]
		for _, in := range m.Inputs.Symbols() {
			w := weights[in]
			if w == 0 {
				continue
			}
			local := 0.0
			for _, p := range st.Morph.Dist(in) {
				if p > 0 {
					local -= p * math.Log2(p)
				}
			}
			h += pi[i] * w * local
		}
	}
	return h
}

// blockEntropies propagates the stationary distribution through the emission
// matrices, accumulating -p log2 p for every output word of each length up
// to depth. Zero-probability branches are pruned, so the walk only visits
// words the machine can actually produce.
func blockEntropies(pi []float64, emit map[core.Symbol]*mat.Dense, outputs []core.Symbol, depth int) []float64 {
	h := make([]float64, depth)
	k := len(pi)

	var walk func(vec []float64, d int)
	walk = func(vec []float64, d int) {
		if d == depth {
			return
		}
		for _, out := range outputs {
			next := make([]float64, k)
			em := emit[out]
			for j := 0; j < k; j++ {
				s := 0.0
				for i := 0; i < k; i++ {
					if vec[i] != 0 {
						s += vec[i] * em.At(i, j)
					}
				}
				next[j] = s
			}
			p := floats.Sum(next)
			if p < pruneTolerance {
				continue
			}
			h[d] -= p * math.Log2(p)
			walk(next, d+1)
		}
	}
	walk(pi, 0)
	return h
}

// excessEntropy sums the convergent series sum_L (h(L) - hmu) and closes the
// geometric tail using the transition matrix's subdominant eigenvalue.
func excessEntropy(blocks []float64, hmu, subdominant float64) float64 {
	e := 0.0
	last := 0.0
	for l := 1; l <= len(blocks); l++ {
		prev := 0.0
		if l > 1 {
			prev = blocks[l-2]
		}
		last = (blocks[l-1] - prev) - hmu
		e += last
	}
	// The per-term decay rate is bounded by the subdominant eigenvalue
	// modulus. When the last term has already vanished the tail is zero.
	if math.Abs(last) > 1e-12 && subdominant > 0 && subdominant < 1 {
		e += last * subdominant / (1 - subdominant)
	}
	return e
}
