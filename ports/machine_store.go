package ports

import (
	"context"
	"time"

	"transcssr/domain/core"
	"transcssr/domain/machine"
)

// MachineRecord is the registry's view of a stored machine.
type MachineRecord struct {
	ID         core.MachineID
	Name       string
	StateCount int
	Inputs     string
	Outputs    string
	CreatedAt  time.Time
}

// MachineStore persists reconstructed machines in their serialized DOT form.
type MachineStore interface {
	// Save stores the machine and its DOT serialization.
	Save(ctx context.Context, m *machine.Machine, dot []byte) error

	// Load returns the machine with the given ID, rebuilt from its
	// serialized form. Returns core.ErrMachineNotFound when absent.
	Load(ctx context.Context, id core.MachineID) (*machine.Machine, error)

	// LoadDOT returns the raw serialized bytes for the renderer.
	LoadDOT(ctx context.Context, id core.MachineID) ([]byte, error)

	// List enumerates stored machines, newest first.
	List(ctx context.Context) ([]MachineRecord, error)
}
