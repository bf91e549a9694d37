package lineage

import "github.com/sieveworks/sieve/pkg/core"

// TrailSource is anything that can produce a record's lineage trail in
// timestamp order: the live Index during a run, or the state store for
// queries across process restarts. Callers (dashboard, CLI, API) consume
// the tracer without the core depending on their transport.
type TrailSource interface {
	GetTrail(recordID string) ([]core.LineageEntry, error)
}

// Tracer answers provenance queries over a TrailSource. It is a read-only
// projection: tracing never mutates the underlying index.
type Tracer struct {
	src TrailSource
}

// NewTracer creates a tracer over the given trail source.
func NewTracer(src TrailSource) *Tracer {
	return &Tracer{src: src}
}

// Trace returns the full provenance trail for a record. An empty trail is
// an explicit "no history" result (Found = false), never an error: it is
// the caller's job to distinguish "not yet ingested" from "truly unknown".
func (t *Tracer) Trace(recordID string) (core.TraceResult, error) {
	entries, err := t.src.GetTrail(recordID)
	if err != nil {
		return core.TraceResult{}, err
	}

	result := core.TraceResult{RecordID: recordID}
	if len(entries) == 0 {
		return result, nil
	}

	result.Found = true
	result.Steps = make([]core.TraceStep, len(entries))
	for i, e := range entries {
		result.Steps[i] = core.TraceStep{
			Stage:     e.Stage,
			Verdict:   e.Verdict,
			RuleName:  e.RuleName,
			Reason:    e.Reason,
			Timestamp: e.Timestamp,
		}
	}
	result.FinalVerdict = entries[len(entries)-1].Verdict
	return result, nil
}

// MustTrace is Trace for callers asserting the record should exist: an
// empty trail fails with RecordNotFoundError. Recoverable; the caller
// decides the next action.
func (t *Tracer) MustTrace(recordID string) (core.TraceResult, error) {
	result, err := t.Trace(recordID)
	if err != nil {
		return core.TraceResult{}, err
	}
	if !result.Found {
		return core.TraceResult{}, &core.RecordNotFoundError{RecordID: recordID}
	}
	return result, nil
}
