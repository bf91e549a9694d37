package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sieveworks/sieve/pkg/core"
)

func quarantined(id string) core.QuarantinedRecord {
	return core.QuarantinedRecord{
		Record: core.Record{ID: id, Fields: map[string]any{"amount": -500.0}},
		Stage:  "pos_transactions",
		FailedRules: []core.FailedRule{{
			Name:        "amount_positive",
			Description: "transaction amount must be positive",
			Severity:    core.SeverityCritical,
			Reason:      "amount (-500) <= 0",
		}},
	}
}

func readLines(t *testing.T, path string) []quarantineLine {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []quarantineLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line quarantineLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %d: %v", len(lines)+1, err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestFileWriter_AppendsAcrossBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarantine.jsonl")
	w := NewFileWriter(path)

	if err := w.WriteQuarantined([]core.QuarantinedRecord{quarantined("TXN_LOST")}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteQuarantined([]core.QuarantinedRecord{quarantined("TXN_2"), quarantined("TXN_3")}); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}

	first := lines[0]
	if first.RecordID != "TXN_LOST" || first.Stage != "pos_transactions" {
		t.Errorf("first line = %+v", first)
	}
	if first.QuarantinedAt.IsZero() {
		t.Error("quarantined_at not set")
	}
	if v := first.Fields["amount"]; v != -500.0 {
		t.Errorf("payload amount = %v", v)
	}
	if len(first.FailedRules) != 1 {
		t.Fatalf("failed rules = %d", len(first.FailedRules))
	}
	fr := first.FailedRules[0]
	if fr.Name != "amount_positive" || fr.Severity != "critical" || fr.Reason != "amount (-500) <= 0" {
		t.Errorf("failed rule = %+v", fr)
	}
}

func TestFileWriter_EmptyBatchCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarantine.jsonl")
	if err := NewFileWriter(path).WriteQuarantined(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty batch should not create the file")
	}
}

func TestFileWriter_BadPath(t *testing.T) {
	w := NewFileWriter(filepath.Join(t.TempDir(), "missing-dir", "q.jsonl"))
	if err := w.WriteQuarantined([]core.QuarantinedRecord{quarantined("r1")}); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
