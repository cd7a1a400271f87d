package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	MachineID ID
	RunID     ID
	SweepID   ID
)

// String conversions for domain IDs
func (id MachineID) String() string { return ID(id).String() }
func (id RunID) String() string     { return ID(id).String() }
func (id SweepID) String() string   { return ID(id).String() }

// ParseMachineID parses a string into MachineID
func ParseMachineID(s string) (MachineID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("machine ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("machine ID %q is not a valid UUID: %w", s, err)
	}
	return MachineID(s), nil
}

// Symbol is a single emission symbol from a finite alphabet.
// Streams on disk are single characters, so a Symbol is one character long.
type Symbol string
