package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/internal/testkit"
	"transcssr/ports"
)

// MockMachineStore lets the handler tests fail the storage layer on demand.
type MockMachineStore struct {
	mock.Mock
}

func (m *MockMachineStore) Save(ctx context.Context, mach *machine.Machine, dot []byte) error {
	args := m.Called(ctx, mach, dot)
	return args.Error(0)
}

func (m *MockMachineStore) Load(ctx context.Context, id core.MachineID) (*machine.Machine, error) {
	args := m.Called(ctx, id)
	if mach, ok := args.Get(0).(*machine.Machine); ok {
		return mach, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMachineStore) LoadDOT(ctx context.Context, id core.MachineID) ([]byte, error) {
	args := m.Called(ctx, id)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMachineStore) List(ctx context.Context) ([]ports.MachineRecord, error) {
	args := m.Called(ctx)
	if records, ok := args.Get(0).([]ports.MachineRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestList_StoreFailure(t *testing.T) {
	store := new(MockMachineStore)
	store.On("List", mock.Anything).Return(nil, errors.New("connection refused"))

	s := NewServer(Config{Params: core.DefaultParams()}, store)
	rec := get(s.Handler(), "/machines")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	store.AssertExpectations(t)
}

func TestReconstruct_SaveFailure(t *testing.T) {
	store := new(MockMachineStore)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	params := core.DefaultParams()
	params.LMaxCSSR = 2
	params.LMaxWords = 3
	s := NewServer(Config{Params: params}, store)

	rec := postJSON(t, s.Handler(), "/machines", map[string]interface{}{
		"name":    "period2",
		"y":       string(testkit.Periodic("01", 400)),
		"outputs": "01",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	store.AssertExpectations(t)
}

func TestFilter_LoadNotFound(t *testing.T) {
	store := new(MockMachineStore)
	id := core.MachineID(core.NewID())
	store.On("Load", mock.Anything, id).Return(nil, core.ErrMachineNotFound)

	s := NewServer(Config{Params: core.DefaultParams()}, store)
	rec := postJSON(t, s.Handler(), "/machines/"+id.String()+"/filter", map[string]interface{}{
		"y": "0101",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	store.AssertExpectations(t)
}
