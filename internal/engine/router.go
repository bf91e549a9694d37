package engine

import "github.com/sieveworks/sieve/pkg/core"

// Router splits an evaluated batch into the clean branch and the quarantine
// branch. A record is quarantined when at least one failed outcome belongs
// to a rule at or above the severity threshold; failures below the
// threshold are recorded but do not divert the record.
//
// Routing is a pure function of its inputs: it never mutates records or
// outcomes, and routing the same batch twice yields the same split.
type Router struct {
	set       *core.RuleSet
	threshold core.Severity
}

// NewRouter creates a router for the given stage rule set and threshold.
func NewRouter(set *core.RuleSet, threshold core.Severity) *Router {
	return &Router{set: set, threshold: threshold}
}

// Route partitions records by their outcomes. Passed records keep their
// input order; quarantined records carry every failed rule, in rule-set
// order, with the violation reason attached.
func (r *Router) Route(records []core.Record, outcomes []core.Outcome) ([]core.Record, []core.QuarantinedRecord) {
	failures := make(map[string][]core.FailedRule)
	divert := make(map[string]bool)

	for _, o := range outcomes {
		if o.Passed {
			continue
		}
		rule, ok := r.set.Rule(o.RuleName)
		if !ok {
			continue
		}
		failures[o.RecordID] = append(failures[o.RecordID], core.FailedRule{
			Name:        rule.Name,
			Description: rule.Description,
			Severity:    rule.Severity,
			Reason:      o.Reason,
		})
		if rule.Severity >= r.threshold {
			divert[o.RecordID] = true
		}
	}

	passed := make([]core.Record, 0, len(records))
	var quarantined []core.QuarantinedRecord
	for _, rec := range records {
		if !divert[rec.ID] {
			passed = append(passed, rec)
			continue
		}
		quarantined = append(quarantined, core.QuarantinedRecord{
			Record:      rec,
			Stage:       r.set.Stage(),
			FailedRules: failures[rec.ID],
		})
	}
	return passed, quarantined
}

// triggeringRule returns the first failed rule meeting the threshold, in
// rule-set order. It is the rule reported on the quarantine lineage entry.
func (r *Router) triggeringRule(q core.QuarantinedRecord) (core.FailedRule, bool) {
	for _, f := range q.FailedRules {
		if f.Severity >= r.threshold {
			return f, true
		}
	}
	return core.FailedRule{}, false
}
