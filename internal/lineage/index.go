package lineage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sieveworks/sieve/pkg/core"
)

// Index is the in-memory append-only lineage store, keyed by record id.
// Append is the only mutator; lookups never mutate. Appends to the same
// record are serialized so the per-record transition ordering invariant
// holds; appends to different records proceed fully in parallel.
type Index struct {
	mu     sync.RWMutex
	trails map[string]*trail
}

type trail struct {
	mu      sync.Mutex
	entries []core.LineageEntry
}

// NewIndex creates an empty lineage index.
func NewIndex() *Index {
	return &Index{trails: make(map[string]*trail)}
}

// Append records one lineage entry. An out-of-order transition (e.g.
// DELIVERED before INGESTED) fails with InvalidLineageTransitionError:
// that is an ordering bug in the caller, never swallowed.
func (ix *Index) Append(e core.LineageEntry) error {
	if e.RecordID == "" {
		return fmt.Errorf("lineage entry has empty record id")
	}
	if !e.Verdict.Valid() {
		return fmt.Errorf("lineage entry has unknown verdict %q", e.Verdict)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	tr := ix.trailFor(e.RecordID)

	tr.mu.Lock()
	defer tr.mu.Unlock()

	var last core.Verdict
	if n := len(tr.entries); n > 0 {
		last = tr.entries[n-1].Verdict
	}
	if !core.CanTransition(last, e.Verdict) {
		return &core.InvalidLineageTransitionError{
			RecordID: e.RecordID,
			Stage:    e.Stage,
			From:     last,
			To:       e.Verdict,
		}
	}

	tr.entries = append(tr.entries, e)
	return nil
}

// trailFor returns the trail for a record id, creating it if needed.
func (ix *Index) trailFor(recordID string) *trail {
	ix.mu.RLock()
	tr, ok := ix.trails[recordID]
	ix.mu.RUnlock()
	if ok {
		return tr
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if tr, ok = ix.trails[recordID]; ok {
		return tr
	}
	tr = &trail{}
	ix.trails[recordID] = tr
	return tr
}

// Trail returns the record's entries in timestamp order. The slice is a
// copy. An unknown record id yields an empty trail, not a failure: absence
// of history is itself meaningful.
func (ix *Index) Trail(recordID string) []core.LineageEntry {
	ix.mu.RLock()
	tr, ok := ix.trails[recordID]
	ix.mu.RUnlock()
	if !ok {
		return nil
	}

	tr.mu.Lock()
	out := make([]core.LineageEntry, len(tr.entries))
	copy(out, tr.entries)
	tr.mu.Unlock()

	// Entries are appended in transition order; a stable sort by timestamp
	// keeps that order for entries sharing a clock tick.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// GetTrail implements TrailSource over the live index.
func (ix *Index) GetTrail(recordID string) ([]core.LineageEntry, error) {
	return ix.Trail(recordID), nil
}

// Records returns the ids with at least one entry, in no particular order.
func (ix *Index) Records() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.trails))
	for id := range ix.trails {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.trails)
}
