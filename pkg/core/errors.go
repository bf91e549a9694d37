package core

import "fmt"

// RuleCompilationError reports a bad rule definition. It is surfaced to the
// rule author and never retried. Field names the offending part of the
// configuration.
type RuleCompilationError struct {
	Rule   string
	Field  string
	Reason string
}

func (e *RuleCompilationError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("rule compilation failed: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("rule %q: %s: %s", e.Rule, e.Field, e.Reason)
}

// DuplicateRuleNameError reports a construction-time name collision within
// a RuleSet. Fatal to that rule set build.
type DuplicateRuleNameError struct {
	Stage string
	Rule  string
}

func (e *DuplicateRuleNameError) Error() string {
	return fmt.Sprintf("duplicate rule name %q in stage %q", e.Rule, e.Stage)
}

// InvalidLineageTransitionError reports an out-of-order lineage append.
// This is a programming/ordering bug: a violated invariant that must not
// be silently swallowed.
type InvalidLineageTransitionError struct {
	RecordID string
	Stage    string
	From     Verdict
	To       Verdict
}

func (e *InvalidLineageTransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "(no history)"
	}
	return fmt.Sprintf("record %q: illegal lineage transition %s -> %s at stage %q",
		e.RecordID, from, e.To, e.Stage)
}

// RecordNotFoundError reports a caller-asserted lookup miss: the caller
// claimed the record should exist but its trail is empty. Recoverable;
// the caller decides the next action.
type RecordNotFoundError struct {
	RecordID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.RecordID)
}
