package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInputMismatch = errors.New("aligned streams are inconsistent")
	ErrEmptyAlphabet = errors.New("alphabet is empty")

	// Estimation errors
	ErrInsufficientData = errors.New("insufficient data to estimate distributions")

	// Reconstruction errors
	ErrNonConvergence = errors.New("state splitting did not reach a fixed point")

	// Replay errors
	ErrForbiddenTransition = errors.New("transition not present in trained machine")

	// Analysis errors
	ErrNonErgodicMachine = errors.New("machine has no unique stationary distribution")

	// Registry errors
	ErrMachineNotFound = errors.New("machine not found")
)

// Error constructors with context
func NewLengthMismatchError(lenX, lenY int) error {
	return fmt.Errorf("%w: input stream has %d symbols, output stream has %d", ErrInputMismatch, lenX, lenY)
}

func NewAlphabetError(stream string, symbol string, position int) error {
	return fmt.Errorf("%w: %s stream contains symbol %q at position %d outside its alphabet", ErrInputMismatch, stream, symbol, position)
}

func NewInsufficientDataError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, reason)
}

func NewNonErgodicError(reason string) error {
	return fmt.Errorf("%w: %s", ErrNonErgodicMachine, reason)
}

// Error checking helpers
func IsInputMismatch(err error) bool {
	return errors.Is(err, ErrInputMismatch)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsNonConvergence(err error) bool {
	return errors.Is(err, ErrNonConvergence)
}

func IsForbiddenTransition(err error) bool {
	return errors.Is(err, ErrForbiddenTransition)
}

func IsNonErgodic(err error) bool {
	return errors.Is(err, ErrNonErgodicMachine)
}
