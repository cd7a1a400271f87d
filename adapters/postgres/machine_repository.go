// Package postgres persists serialized machines and sweep reports.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"transcssr/adapters/dot"
	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/internal/sweep"
	"transcssr/ports"
)

// MachineRepositoryImpl implements ports.MachineStore for PostgreSQL.
type MachineRepositoryImpl struct {
	db *sqlx.DB
}

// NewMachineRepository creates a new PostgreSQL machine repository.
func NewMachineRepository(db *sqlx.DB) *MachineRepositoryImpl {
	return &MachineRepositoryImpl{db: db}
}

var _ ports.MachineStore = (*MachineRepositoryImpl)(nil)

// Migrate creates the schema if it does not exist.
func Migrate(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS machines (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		state_count INT NOT NULL,
		inputs TEXT NOT NULL,
		outputs TEXT NOT NULL,
		dot TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS sweep_reports (
		id UUID PRIMARY KEY,
		total INT NOT NULL,
		succeeded INT NOT NULL,
		forbidden INT NOT NULL,
		failed INT NOT NULL,
		mean_score DOUBLE PRECISION,
		median_score DOUBLE PRECISION,
		stddev_score DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate machine registry schema: %w", err)
	}
	return nil
}

// Save stores the machine and its DOT serialization.
func (r *MachineRepositoryImpl) Save(ctx context.Context, m *machine.Machine, dotBytes []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO machines (id, name, state_count, inputs, outputs, dot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			state_count = EXCLUDED.state_count,
			inputs = EXCLUDED.inputs,
			outputs = EXCLUDED.outputs,
			dot = EXCLUDED.dot`,
		m.ID.String(), m.Name, m.StateCount(), m.Inputs.String(), m.Outputs.String(), string(dotBytes))
	if err != nil {
		return fmt.Errorf("failed to save machine %s: %w", m.ID, err)
	}
	return nil
}

// Load rebuilds a machine from its stored DOT form.
func (r *MachineRepositoryImpl) Load(ctx context.Context, id core.MachineID) (*machine.Machine, error) {
	data, err := r.LoadDOT(ctx, id)
	if err != nil {
		return nil, err
	}
	return dot.Parse(data)
}

// LoadDOT returns the raw serialization.
func (r *MachineRepositoryImpl) LoadDOT(ctx context.Context, id core.MachineID) ([]byte, error) {
	var dotText string
	err := r.db.GetContext(ctx, &dotText, `SELECT dot FROM machines WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrMachineNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load machine %s: %w", id, err)
	}
	return []byte(dotText), nil
}

// List enumerates stored machines, newest first.
func (r *MachineRepositoryImpl) List(ctx context.Context) ([]ports.MachineRecord, error) {
	rows := []struct {
		ID         string    `db:"id"`
		Name       string    `db:"name"`
		StateCount int       `db:"state_count"`
		Inputs     string    `db:"inputs"`
		Outputs    string    `db:"outputs"`
		CreatedAt  time.Time `db:"created_at"`
	}{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, state_count, inputs, outputs, created_at
		FROM machines ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	records := make([]ports.MachineRecord, len(rows))
	for i, row := range rows {
		records[i] = ports.MachineRecord{
			ID:         core.MachineID(row.ID),
			Name:       row.Name,
			StateCount: row.StateCount,
			Inputs:     row.Inputs,
			Outputs:    row.Outputs,
			CreatedAt:  row.CreatedAt,
		}
	}
	return records, nil
}

// SaveSweepReport records an aggregated sweep for later comparison.
func (r *MachineRepositoryImpl) SaveSweepReport(ctx context.Context, id core.SweepID, report sweep.Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sweep_reports (id, total, succeeded, forbidden, failed, mean_score, median_score, stddev_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		id.String(), report.Total, report.Succeeded, report.Forbidden, report.Failed,
		nanToNull(report.MeanScore), nanToNull(report.MedianScore), nanToNull(report.StdDevScore))
	if err != nil {
		return fmt.Errorf("failed to save sweep report %s: %w", id, err)
	}
	return nil
}

// nanToNull maps the report layer's NaN sentinel to SQL NULL.
func nanToNull(v float64) interface{} {
	if v != v {
		return nil
	}
	return v
}
