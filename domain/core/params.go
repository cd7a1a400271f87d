package core

import "fmt"

// Params carries the inference parameters that the original workflow kept in
// module-level dictionaries. Every entry point takes a Params by value; there
// is no process-wide parameter state.
type Params struct {
	// Alpha is the significance level for the state-splitting hypothesis test.
	Alpha float64

	// LMaxWords is the maximum history length tracked by the word statistics.
	LMaxWords int

	// LMaxCSSR is the maximum history depth used for state splitting.
	// Must not exceed LMaxWords.
	LMaxCSSR int

	// LMaxICT is the lookback depth for the finite-L information measures.
	LMaxICT int

	// MaxSplitIters bounds the determinization fixed-point loop.
	MaxSplitIters int
}

// DefaultParams returns the parameter defaults used by the reference workflow.
func DefaultParams() Params {
	return Params{
		Alpha:         0.001,
		LMaxWords:     5,
		LMaxCSSR:      3,
		LMaxICT:       10,
		MaxSplitIters: 100,
	}
}

// Validate checks the internal consistency of the parameters.
func (p Params) Validate() error {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0, 1), got %g", p.Alpha)
	}
	if p.LMaxWords < 1 {
		return fmt.Errorf("LMaxWords must be at least 1, got %d", p.LMaxWords)
	}
	if p.LMaxCSSR < 1 || p.LMaxCSSR > p.LMaxWords {
		return fmt.Errorf("LMaxCSSR must be in [1, LMaxWords=%d], got %d", p.LMaxWords, p.LMaxCSSR)
	}
	if p.LMaxICT < 1 {
		return fmt.Errorf("LMaxICT must be at least 1, got %d", p.LMaxICT)
	}
	if p.MaxSplitIters < 1 {
		return fmt.Errorf("MaxSplitIters must be at least 1, got %d", p.MaxSplitIters)
	}
	return nil
}
