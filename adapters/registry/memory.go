// Package registry provides an in-memory MachineStore, used by tests and by
// the API server when no database is configured.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"transcssr/adapters/dot"
	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/ports"
)

type entry struct {
	record ports.MachineRecord
	dot    []byte
}

// MemoryStore keeps serialized machines in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[core.MachineID]entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[core.MachineID]entry)}
}

// Save stores the machine's DOT form keyed by its ID.
func (s *MemoryStore) Save(_ context.Context, m *machine.Machine, dotBytes []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[m.ID] = entry{
		record: ports.MachineRecord{
			ID:         m.ID,
			Name:       m.Name,
			StateCount: m.StateCount(),
			Inputs:     m.Inputs.String(),
			Outputs:    m.Outputs.String(),
			CreatedAt:  time.Now().UTC(),
		},
		dot: append([]byte(nil), dotBytes...),
	}
	return nil
}

// Load parses the stored DOT back into a machine.
func (s *MemoryStore) Load(ctx context.Context, id core.MachineID) (*machine.Machine, error) {
	data, err := s.LoadDOT(ctx, id)
	if err != nil {
		return nil, err
	}
	return dot.Parse(data)
}

// LoadDOT returns the stored serialization.
func (s *MemoryStore) LoadDOT(_ context.Context, id core.MachineID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, core.ErrMachineNotFound
	}
	return append([]byte(nil), e.dot...), nil
}

// List returns stored machines, newest first.
func (s *MemoryStore) List(_ context.Context) ([]ports.MachineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]ports.MachineRecord, 0, len(s.entries))
	for _, e := range s.entries {
		records = append(records, e.record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

var _ ports.MachineStore = (*MemoryStore)(nil)
