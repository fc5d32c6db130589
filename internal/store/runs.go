package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hdlforge/fsmc/internal/ir"
)

// ErrRunNotFound is returned when a run lookup matches no record.
var ErrRunNotFound = errors.New("run not found")

// SynthRun is one recorded synthesis: which machine was compiled, what it
// encoded to, and what was emitted.
type SynthRun struct {
	ID          string         `json:"id"`
	MachineName string         `json:"machine_name"`
	MachineHash string         `json:"machine_hash"`
	DesignHash  string         `json:"design_hash"`
	StateCount  int            `json:"state_count"`
	Encoding    map[string]int `json:"encoding"`
	Emitted     string         `json:"emitted"`
	ToolVersion string         `json:"tool_version"`
	IRVersion   string         `json:"ir_version"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewRunToken returns a fresh run identifier. UUIDv7 keeps tokens unique
// and time-ordered, so lexical ID order matches creation order.
func NewRunToken() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WriteRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency - rewriting the same run token is silently ignored. The
// caller is expected to have stamped ID via NewRunToken and CreatedAt.
func (s *Store) WriteRun(ctx context.Context, run SynthRun) error {
	encodingJSON, err := json.Marshal(run.Encoding)
	if err != nil {
		return fmt.Errorf("write run: marshal encoding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, machine_name, machine_hash, design_hash, state_count, encoding, emitted, tool_version, ir_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.MachineName,
		run.MachineHash,
		run.DesignHash,
		run.StateCount,
		string(encodingJSON),
		run.Emitted,
		run.ToolVersion,
		run.IRVersion,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	return nil
}

// RecordRun stamps a fresh token and timestamp on a run and writes it.
// Returns the assigned run token.
func (s *Store) RecordRun(ctx context.Context, run SynthRun) (string, error) {
	run.ID = NewRunToken()
	run.CreatedAt = time.Now().UTC()
	if run.ToolVersion == "" {
		run.ToolVersion = ir.ToolVersion
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	if err := s.WriteRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// GetRun returns the run with the given token.
func (s *Store) GetRun(ctx context.Context, id string) (SynthRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, machine_name, machine_hash, design_hash, state_count, encoding, emitted, tool_version, ir_version, created_at
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SynthRun{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns every run for a machine, oldest first. Ordering is
// deterministic: created_at, then id COLLATE BINARY.
// Returns an empty slice (not nil) when no runs exist.
func (s *Store) ListRuns(ctx context.Context, machineName string) ([]SynthRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, machine_name, machine_hash, design_hash, state_count, encoding, emitted, tool_version, ir_version, created_at
		FROM runs
		WHERE machine_name = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, machineName)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []SynthRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run for a machine.
func (s *Store) LatestRun(ctx context.Context, machineName string) (SynthRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, machine_name, machine_hash, design_hash, state_count, encoding, emitted, tool_version, ir_version, created_at
		FROM runs
		WHERE machine_name = ?
		ORDER BY created_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, machineName)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SynthRun{}, fmt.Errorf("machine %s: %w", machineName, ErrRunNotFound)
	}
	return run, err
}

// FindByDesignHash returns every run that emitted byte-identical logic.
func (s *Store) FindByDesignHash(ctx context.Context, designHash string) ([]SynthRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, machine_name, machine_hash, design_hash, state_count, encoding, emitted, tool_version, ir_version, created_at
		FROM runs
		WHERE design_hash = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, designHash)
	if err != nil {
		return nil, fmt.Errorf("query runs by design hash: %w", err)
	}
	defer rows.Close()

	runs := []SynthRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (SynthRun, error) {
	var (
		run          SynthRun
		encodingJSON string
		createdAt    string
	)
	err := row.Scan(
		&run.ID,
		&run.MachineName,
		&run.MachineHash,
		&run.DesignHash,
		&run.StateCount,
		&encodingJSON,
		&run.Emitted,
		&run.ToolVersion,
		&run.IRVersion,
		&createdAt,
	)
	if err != nil {
		return SynthRun{}, err
	}
	if err := json.Unmarshal([]byte(encodingJSON), &run.Encoding); err != nil {
		return SynthRun{}, fmt.Errorf("scan run %s: decode encoding: %w", run.ID, err)
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return SynthRun{}, fmt.Errorf("scan run %s: parse created_at: %w", run.ID, err)
	}
	return run, nil
}
