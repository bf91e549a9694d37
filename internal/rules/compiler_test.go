package rules

import (
	"errors"
	"testing"

	"github.com/sieveworks/sieve/pkg/core"
)

func mustCompile(t *testing.T, spec RuleSpec) core.Rule {
	t.Helper()
	rule, err := CompileRule(spec)
	if err != nil {
		t.Fatalf("CompileRule(%+v): %v", spec, err)
	}
	return rule
}

func rec(id string, fields map[string]any) core.Record {
	return core.Record{ID: id, Fields: fields}
}

func TestCompileRule_GreaterThan(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name:        "amount_positive",
		Description: "Transaction amount must be positive",
		Severity:    "critical",
		Field:       "amount",
		Op:          "gt",
		Value:       0,
	})

	if rule.Severity != core.SeverityCritical {
		t.Errorf("severity = %v, want critical", rule.Severity)
	}

	res := rule.Evaluate(rec("TXN_100", map[string]any{"amount": 999.99}))
	if !res.Passed {
		t.Errorf("positive amount should pass, got reason %q", res.Reason)
	}

	res = rule.Evaluate(rec("TXN_LOST", map[string]any{"amount": -500.0}))
	if res.Passed {
		t.Fatal("negative amount should fail")
	}
	if res.Reason != "amount (-500) <= 0" {
		t.Errorf("reason = %q, want %q", res.Reason, "amount (-500) <= 0")
	}
}

func TestCompileRule_LessThan(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name:     "age_plausible",
		Severity: "high",
		Field:    "age",
		Op:       "lt",
		Value:    100,
	})

	res := rule.Evaluate(rec("CUST_5", map[string]any{"age": 120}))
	if res.Passed {
		t.Fatal("age 120 should fail age < 100")
	}
	if res.Reason != "age (120) >= 100" {
		t.Errorf("reason = %q", res.Reason)
	}

	if res := rule.Evaluate(rec("CUST_1", map[string]any{"age": 34})); !res.Passed {
		t.Errorf("age 34 should pass, got %q", res.Reason)
	}
}

func TestCompileRule_MissingField(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name: "amount_positive", Severity: "critical", Field: "amount", Op: "gt", Value: 0,
	})

	// Malformed record: deterministic failing outcome, not a panic.
	res := rule.Evaluate(rec("TXN_X", map[string]any{"sku": "SKU_999"}))
	if res.Passed {
		t.Fatal("missing field must fail")
	}
	if res.Reason != "missing field: amount" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestCompileRule_NonNumericValue(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name: "amount_positive", Severity: "high", Field: "amount", Op: "gt", Value: 0,
	})

	res := rule.Evaluate(rec("TXN_X", map[string]any{"amount": "lots"}))
	if res.Passed {
		t.Fatal("non-numeric value must fail a numeric comparison")
	}
	if res.Reason != "amount (lots) is not numeric" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestCompileRule_Between(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name: "sentiment_range", Severity: "low", Field: "sentiment_score",
		Op: "between", Min: -1, Max: 1,
	})

	if res := rule.Evaluate(rec("tw_1001", map[string]any{"sentiment_score": 0.9})); !res.Passed {
		t.Errorf("0.9 in [-1,1] should pass, got %q", res.Reason)
	}

	res := rule.Evaluate(rec("tw_bad", map[string]any{"sentiment_score": 1.5}))
	if res.Passed {
		t.Fatal("1.5 outside [-1,1] should fail")
	}
	if res.Reason != "sentiment_score (1.5) outside [-1, 1]" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestCompileRule_InSet(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name: "store_known", Severity: "high", Field: "store_id",
		Op: "in_set", Values: []any{"online_01", "online_02"},
	})

	if res := rule.Evaluate(rec("t1", map[string]any{"store_id": "online_01"})); !res.Passed {
		t.Errorf("known store should pass, got %q", res.Reason)
	}
	res := rule.Evaluate(rec("t2", map[string]any{"store_id": "kiosk_99"}))
	if res.Passed || res.Reason != "store_id (kiosk_99) not in allowed set" {
		t.Errorf("unexpected result: passed=%v reason=%q", res.Passed, res.Reason)
	}
}

func TestCompileRule_Regex(t *testing.T) {
	match := mustCompile(t, RuleSpec{
		Name: "email_format", Severity: "high", Field: "email",
		Op: "matches", Pattern: `^[^@\s]+@[^@\s]+$`,
	})
	if res := match.Evaluate(rec("c1", map[string]any{"email": "a@b.com"})); !res.Passed {
		t.Errorf("valid email should pass, got %q", res.Reason)
	}
	if res := match.Evaluate(rec("c2", map[string]any{"email": "nope"})); res.Passed {
		t.Error("invalid email should fail")
	}

	prohibit := mustCompile(t, RuleSpec{
		Name: "no_incident_words", Severity: "critical", Field: "content",
		Op: "not_matches", Pattern: `(?i)exploded`,
	})
	res := prohibit.Evaluate(rec("tw_1003", map[string]any{"content": "Mine exploded!"}))
	if res.Passed {
		t.Fatal("prohibited word should fail")
	}
}

func TestCompileRule_NotNull(t *testing.T) {
	rule := mustCompile(t, RuleSpec{
		Name: "sku_present", Severity: "high", Field: "sku", Op: "not_null",
	})

	if res := rule.Evaluate(rec("t1", map[string]any{"sku": "SKU_999"})); !res.Passed {
		t.Errorf("present field should pass, got %q", res.Reason)
	}
	if res := rule.Evaluate(rec("t2", map[string]any{"sku": nil})); res.Passed {
		t.Error("null field should fail")
	}
	if res := rule.Evaluate(rec("t3", map[string]any{})); res.Passed {
		t.Error("missing field should fail")
	}
}

func TestCompileRule_Errors(t *testing.T) {
	cases := []struct {
		name  string
		spec  RuleSpec
		field string
	}{
		{"missing name", RuleSpec{Severity: "high", Field: "x", Op: "gt", Value: 1}, "name"},
		{"bad severity", RuleSpec{Name: "r", Severity: "fatal", Field: "x", Op: "gt", Value: 1}, "severity"},
		{"unknown op", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "approx"}, "op"},
		{"missing field", RuleSpec{Name: "r", Severity: "high", Op: "gt", Value: 1}, "field"},
		{"missing value", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "gt"}, "value"},
		{"non-numeric threshold", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "lt", Value: "ten"}, "value"},
		{"between missing max", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "between", Min: 1}, "min"},
		{"between inverted", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "between", Min: 5, Max: 1}, "min"},
		{"empty set", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "in_set"}, "values"},
		{"missing pattern", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "matches"}, "pattern"},
		{"bad regex", RuleSpec{Name: "r", Severity: "high", Field: "x", Op: "matches", Pattern: "("}, "pattern"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileRule(tc.spec)
			if err == nil {
				t.Fatal("expected compilation error")
			}
			var ce *core.RuleCompilationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected RuleCompilationError, got %T: %v", err, err)
			}
			if ce.Field != tc.field {
				t.Errorf("offending field = %q, want %q", ce.Field, tc.field)
			}
		})
	}
}

func TestCompile_StageSchemaValidation(t *testing.T) {
	spec := StageSpec{
		Stage:  "pos_transactions",
		Schema: []string{"txn_id", "amount"},
		Rules: []RuleSpec{
			{Name: "store_known", Severity: "high", Field: "store_id", Op: "not_null"},
		},
	}

	_, err := Compile(spec)
	if err == nil {
		t.Fatal("expected schema violation")
	}
	var ce *core.RuleCompilationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected RuleCompilationError, got %T", err)
	}
	if ce.Rule != "store_known" {
		t.Errorf("error should name the rule, got %+v", ce)
	}
}

func TestCompile_DuplicateName(t *testing.T) {
	spec := StageSpec{
		Stage: "orders",
		Rules: []RuleSpec{
			{Name: "amount_positive", Severity: "high", Field: "amount", Op: "gt", Value: 0},
			{Name: "amount_positive", Severity: "low", Field: "amount", Op: "lt", Value: 1e6},
		},
	}

	_, err := Compile(spec)
	var dup *core.DuplicateRuleNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRuleNameError, got %v", err)
	}
}

func TestCompile_EmptyStageName(t *testing.T) {
	_, err := Compile(StageSpec{})
	if err == nil {
		t.Fatal("expected error for missing stage name")
	}
}
