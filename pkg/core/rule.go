package core

import "sort"

// CheckResult is the outcome of evaluating one rule against one record.
type CheckResult struct {
	Passed bool
	// Reason describes the violation when Passed is false. It is a
	// deterministic rendering of the violated comparison, e.g.
	// "amount (-500) <= 0" or "missing field: amount".
	Reason string
}

// CheckFunc evaluates a record. It must be pure: no side effects, no I/O,
// and it must not panic for well-formed records. Malformed records (missing
// required fields) are expressed as a failing CheckResult, never an error.
type CheckFunc func(Record) CheckResult

// Rule is an immutable named predicate with a severity classification.
// Rules are constructed by the rule compiler and identified by name,
// unique within a RuleSet.
type Rule struct {
	// Name uniquely identifies the rule within its RuleSet.
	Name string
	// Description is the human-readable business phrasing of the rule.
	Description string
	// Severity classifies violations for quarantine policy.
	Severity Severity
	// Fields lists the record fields the predicate reads, for
	// stage-boundary schema validation.
	Fields []string
	// Check is the compiled predicate.
	Check CheckFunc
}

// Evaluate applies the rule predicate to a record.
func (r Rule) Evaluate(rec Record) CheckResult {
	if r.Check == nil {
		// A rule without a predicate cannot fail a record.
		return CheckResult{Passed: true}
	}
	return r.Check(rec)
}

// RuleSet is an ordered collection of rules scoped to a named dataset stage.
// Order determines evaluation and reporting order, not outcome: every rule
// is always evaluated.
type RuleSet struct {
	stage  string
	rules  []Rule
	byName map[string]struct{}
}

// NewRuleSet creates an empty rule set for the given stage.
func NewRuleSet(stage string) *RuleSet {
	return &RuleSet{
		stage:  stage,
		byName: make(map[string]struct{}),
	}
}

// Stage returns the dataset stage this rule set is scoped to.
func (s *RuleSet) Stage() string {
	return s.stage
}

// Add appends a rule to the set. Adding a rule whose name already exists
// in the set fails with a DuplicateRuleNameError.
func (s *RuleSet) Add(r Rule) error {
	if _, exists := s.byName[r.Name]; exists {
		return &DuplicateRuleNameError{Stage: s.stage, Rule: r.Name}
	}
	s.byName[r.Name] = struct{}{}
	s.rules = append(s.rules, r)
	return nil
}

// Rules returns the rules in evaluation order. The returned slice is a copy.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules in the set.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Rule returns the named rule and whether it exists.
func (s *RuleSet) Rule(name string) (Rule, bool) {
	for _, r := range s.rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// RequiredFields returns the sorted, deduplicated set of record fields the
// rules in this set read. Used for schema validation at stage boundaries.
func (s *RuleSet) RequiredFields() []string {
	seen := make(map[string]struct{})
	for _, r := range s.rules {
		for _, f := range r.Fields {
			seen[f] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
