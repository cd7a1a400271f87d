package ports

import "transcssr/domain/core"

// Scorer is the external scoring collaborator. It consumes the filter's
// predictive-probability table (rows = time steps, columns in output
// alphabet order) and the observed output symbols, and returns a scalar
// score such as a log-loss. The metric itself is not part of this module.
type Scorer interface {
	Score(predictions [][]float64, observed []core.Symbol, outputs []core.Symbol) (float64, error)
}

// Renderer is the external graph-drawing collaborator. It consumes the DOT
// serialization of a machine; rendering is out of scope here.
type Renderer interface {
	Render(dot []byte, outPath string) error
}
