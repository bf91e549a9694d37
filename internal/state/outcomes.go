package state

import (
	"fmt"

	"github.com/sieveworks/sieve/pkg/core"
)

// RecordOutcomes appends a batch of rule outcomes for a run. The batch is
// written in one transaction: either every outcome lands or none do.
func (s *SQLiteStore) RecordOutcomes(runID string, outcomes []core.Outcome) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO outcomes (run_id, record_id, rule_name, stage, passed, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.Exec(runID, o.RecordID, o.RuleName, o.Stage, o.Passed, o.Reason, o.Timestamp); err != nil {
			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOutcomesForRun retrieves all outcomes recorded for a run, in the order
// they were appended.
func (s *SQLiteStore) GetOutcomesForRun(runID string) ([]core.Outcome, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT record_id, rule_name, stage, passed, reason, created_at
		 FROM outcomes WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []core.Outcome
	for rows.Next() {
		var o core.Outcome
		if err := rows.Scan(&o.RecordID, &o.RuleName, &o.Stage, &o.Passed, &o.Reason, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
