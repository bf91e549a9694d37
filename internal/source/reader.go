// Package source loads record batches into the pipeline. The pipeline is
// transport-agnostic: it consumes a Reader, and the shipped implementation
// reads JSONL files.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sieveworks/sieve/pkg/core"
)

// Reader produces a batch of records for the pipeline.
type Reader interface {
	Read() ([]core.Record, error)
}

// FileReader reads records from a JSONL file: one JSON object per line,
// blank lines skipped. Every object must carry a non-empty string "id"
// field; the remaining fields become the record's payload.
type FileReader struct {
	Path string
}

// NewFileReader creates a reader for the given JSONL file.
func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

// Read loads the whole file into a record batch.
func (r *FileReader) Read() ([]core.Record, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Path, err)
	}
	return records, nil
}

// Decode reads JSONL records from a stream. Duplicate ids within one batch
// are rejected: a batch re-ingesting the same record would corrupt its
// lineage trail.
func Decode(in io.Reader) ([]core.Record, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []core.Record
	seen := make(map[string]struct{})
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}

		id, err := extractID(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate record id %q", line, id)
		}
		seen[id] = struct{}{}

		records = append(records, core.Record{ID: id, Fields: fields})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// FromMaps builds a record batch from already-decoded JSON objects, for
// callers that receive records embedded in a larger payload. Same contract
// as Decode: a non-empty string "id" per object, no duplicates. The maps
// are consumed, not copied.
func FromMaps(objects []map[string]any) ([]core.Record, error) {
	records := make([]core.Record, 0, len(objects))
	seen := make(map[string]struct{}, len(objects))
	for i, fields := range objects {
		if fields == nil {
			return nil, fmt.Errorf("record %d: empty object", i)
		}
		id, err := extractID(fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("record %d: duplicate record id %q", i, id)
		}
		seen[id] = struct{}{}
		records = append(records, core.Record{ID: id, Fields: fields})
	}
	return records, nil
}

// extractID pulls the identity field out of the payload.
func extractID(fields map[string]any) (string, error) {
	raw, ok := fields["id"]
	if !ok {
		return "", fmt.Errorf("record has no id field")
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("record id must be a non-empty string, got %v", raw)
	}
	delete(fields, "id")
	return id, nil
}
