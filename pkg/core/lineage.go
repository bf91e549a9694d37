package core

import "time"

// Verdict is the state of a record at a pipeline stage.
type Verdict string

// Verdicts. Legal transitions per record:
//
//	(empty) -> INGESTED -> {PASSED, QUARANTINED}
//	PASSED -> DELIVERED -> INGESTED (next stage)
//
// QUARANTINED is terminal for that branch of the pipeline.
const (
	VerdictIngested    Verdict = "INGESTED"
	VerdictPassed      Verdict = "PASSED"
	VerdictQuarantined Verdict = "QUARANTINED"
	VerdictDelivered   Verdict = "DELIVERED"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictIngested, VerdictPassed, VerdictQuarantined, VerdictDelivered:
		return true
	}
	return false
}

// Terminal reports whether no further verdict may follow v.
func (v Verdict) Terminal() bool {
	return v == VerdictQuarantined
}

// CanTransition reports whether a record whose latest verdict is from may
// receive to next. An empty from means the record has no history yet.
func CanTransition(from, to Verdict) bool {
	switch from {
	case "":
		return to == VerdictIngested
	case VerdictIngested:
		return to == VerdictPassed || to == VerdictQuarantined
	case VerdictPassed:
		return to == VerdictDelivered
	case VerdictDelivered:
		return to == VerdictIngested
	case VerdictQuarantined:
		return false
	}
	return false
}

// LineageEntry is one step in a record's provenance trail: the verdict it
// received at a stage, and the failing rule when the verdict is QUARANTINED.
// Entries are append-only; the trail for a record is the totally ordered
// (by timestamp) sequence of its entries.
type LineageEntry struct {
	RecordID  string
	Stage     string
	Verdict   Verdict
	Timestamp time.Time

	// RuleName and Reason identify the failure when Verdict is QUARANTINED.
	RuleName string
	Reason   string
}

// TraceStep is one rendered step of a provenance trail.
type TraceStep struct {
	Stage     string
	Verdict   Verdict
	RuleName  string
	Reason    string
	Timestamp time.Time
}

// TraceResult is the read-only projection of a record's lineage trail.
// Found is false when the record has no history: absence is meaningful
// (never tracked) and distinct from failure, so it is not an error.
type TraceResult struct {
	RecordID     string
	Found        bool
	FinalVerdict Verdict
	Steps        []TraceStep
}
