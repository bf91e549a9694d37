package core

import "time"

// Outcome records the result of evaluating one rule against one record at
// one stage. Outcomes are created once and never mutated; the evaluator
// produces exactly one per (record, rule) pair.
type Outcome struct {
	RecordID  string
	RuleName  string
	Stage     string
	Passed    bool
	Reason    string
	Timestamp time.Time
}

// FailedRule is the failure payload a quarantined record carries with it
// for downstream quarantine-table storage.
type FailedRule struct {
	Name        string
	Description string
	Severity    Severity
	Reason      string
}

// QuarantinedRecord is a record diverted to the quarantine branch, together
// with the rules it violated. The core's obligation ends at handing this
// pair to a sink.
type QuarantinedRecord struct {
	Record      Record
	Stage       string
	FailedRules []FailedRule
}
