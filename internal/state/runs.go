package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sieveworks/sieve/pkg/core"
)

// CreateRun creates a new pipeline run.
func (s *SQLiteStore) CreateRun(env string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:          generateID(),
		Environment: env,
		Status:      core.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	s.logger.Debug("creating run", "run_id", run.ID, "environment", env)

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Environment, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, environment, status, started_at, completed_at, error, record_count, quarantined_count
		 FROM runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run for an environment. An empty
// environment matches any. Returns nil without error when no run exists.
func (s *SQLiteStore) GetLatestRun(env string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	query := `SELECT id, environment, status, started_at, completed_at, error, record_count, quarantined_count
		 FROM runs`
	args := []any{}
	if env != "" {
		query += ` WHERE environment = ?`
		args = append(args, env)
	}
	query += ` ORDER BY started_at DESC LIMIT 1`

	run, err := scanRun(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as completed with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// UpdateRunCounts records how many records entered the run and how many
// were quarantined.
func (s *SQLiteStore) UpdateRunCounts(id string, records, quarantined int) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE runs SET record_count = ?, quarantined_count = ? WHERE id = ?`,
		records, quarantined, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.Run, error) {
	run := &core.Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Environment, &run.Status, &run.StartedAt,
		&completedAt, &errMsg, &run.RecordCount, &run.QuarantinedCount)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}
