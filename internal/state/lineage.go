package state

import (
	"fmt"

	"github.com/sieveworks/sieve/pkg/core"
)

// AppendLineage appends lineage entries for a run in one transaction.
// The table is append-only: entries are never updated or deleted.
func (s *SQLiteStore) AppendLineage(runID string, entries []core.LineageEntry) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO lineage_entries (run_id, record_id, stage, verdict, rule_name, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare lineage insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(runID, e.RecordID, e.Stage, e.Verdict, e.RuleName, e.Reason, e.Timestamp); err != nil {
			return fmt.Errorf("failed to insert lineage entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrail retrieves a record's lineage entries across all runs, ordered by
// time with the insertion id breaking ties. An unknown record yields an
// empty trail.
func (s *SQLiteStore) GetTrail(recordID string) ([]core.LineageEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT record_id, stage, verdict, rule_name, reason, created_at
		 FROM lineage_entries WHERE record_id = ? ORDER BY created_at, id`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trail: %w", err)
	}
	defer rows.Close()

	var entries []core.LineageEntry
	for rows.Next() {
		var e core.LineageEntry
		if err := rows.Scan(&e.RecordID, &e.Stage, &e.Verdict, &e.RuleName, &e.Reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan lineage entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
