// Package sink delivers quarantined records out of the pipeline. The
// pipeline hands over (record, failed rules) pairs and moves on; what
// happens to them afterwards is the sink's business.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sieveworks/sieve/pkg/core"
)

// Writer receives quarantined records.
type Writer interface {
	WriteQuarantined(records []core.QuarantinedRecord) error
}

// FileWriter appends quarantined records to a JSONL file, one per line.
// Appends are serialized; the file is opened per batch so concurrent runs
// against the same path interleave whole batches, not partial lines.
type FileWriter struct {
	mu   sync.Mutex
	path string
}

// NewFileWriter creates a writer appending to the given path.
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// quarantineLine is the on-disk shape of one quarantined record.
type quarantineLine struct {
	RecordID      string           `json:"record_id"`
	Stage         string           `json:"stage"`
	QuarantinedAt time.Time        `json:"quarantined_at"`
	Fields        map[string]any   `json:"fields"`
	FailedRules   []failedRuleLine `json:"failed_rules"`
}

type failedRuleLine struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`
	Reason      string `json:"reason"`
}

// WriteQuarantined appends one line per record.
func (w *FileWriter) WriteQuarantined(records []core.QuarantinedRecord) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open quarantine file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	now := time.Now().UTC()
	for _, q := range records {
		line := quarantineLine{
			RecordID:      q.Record.ID,
			Stage:         q.Stage,
			QuarantinedAt: now,
			Fields:        q.Record.Fields,
			FailedRules:   make([]failedRuleLine, len(q.FailedRules)),
		}
		for i, fr := range q.FailedRules {
			line.FailedRules[i] = failedRuleLine{
				Name:        fr.Name,
				Description: fr.Description,
				Severity:    fr.Severity.String(),
				Reason:      fr.Reason,
			}
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write quarantined record %s: %w", q.Record.ID, err)
		}
	}

	return f.Sync()
}
