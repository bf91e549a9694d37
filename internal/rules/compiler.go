package rules

import (
	"fmt"
	"regexp"

	"github.com/sieveworks/sieve/pkg/core"
)

// RuleSpec is the structured description of a single rule: field name,
// comparison operator, operand and severity. It is what rule authors write
// in a stage rules file.
type RuleSpec struct {
	Name        string `koanf:"name"`
	Description string `koanf:"description"`
	Severity    string `koanf:"severity"`
	Field       string `koanf:"field"`
	Op          string `koanf:"op"`
	Value       any    `koanf:"value"`
	Min         any    `koanf:"min"`
	Max         any    `koanf:"max"`
	Values      []any  `koanf:"values"`
	Pattern     string `koanf:"pattern"`
}

// StageSpec is the rule configuration for one pipeline stage.
// Schema, when declared, restricts rule fields to the stage's known record
// shape; referencing an undeclared field is a compilation error, resolved
// at build time instead of guessed at evaluation time.
type StageSpec struct {
	Stage  string     `koanf:"stage"`
	Schema []string   `koanf:"schema"`
	Rules  []RuleSpec `koanf:"rules"`
}

// CompileRule compiles a single rule spec into an executable rule.
// Malformed configuration fails with a RuleCompilationError naming the
// offending field; it never produces a partially working rule.
func CompileRule(spec RuleSpec) (core.Rule, error) {
	if spec.Name == "" {
		return core.Rule{}, compileErr("", "name", "required")
	}

	sev, ok := core.ParseSeverity(spec.Severity)
	if !ok {
		return core.Rule{}, compileErr(spec.Name, "severity",
			fmt.Sprintf("unknown severity %q (want low, high or critical)", spec.Severity))
	}

	op := Op(spec.Op)
	if !op.Valid() {
		return core.Rule{}, compileErr(spec.Name, "op", fmt.Sprintf("unknown operator %q", spec.Op))
	}
	if spec.Field == "" {
		return core.Rule{}, compileErr(spec.Name, "field", "required")
	}

	cond := &condition{field: spec.Field, op: op}

	switch op {
	case OpGT, OpGTE, OpLT, OpLTE:
		f, numeric := toFloat(spec.Value)
		if spec.Value == nil {
			return core.Rule{}, compileErr(spec.Name, "value", "required for numeric comparison")
		}
		if !numeric {
			return core.Rule{}, compileErr(spec.Name, "value", fmt.Sprintf("not numeric: %v", spec.Value))
		}
		cond.threshold = f

	case OpBetween:
		minF, minOK := toFloat(spec.Min)
		maxF, maxOK := toFloat(spec.Max)
		if spec.Min == nil || spec.Max == nil {
			return core.Rule{}, compileErr(spec.Name, "min", "between requires min and max")
		}
		if !minOK || !maxOK {
			return core.Rule{}, compileErr(spec.Name, "min", "min and max must be numeric")
		}
		if minF > maxF {
			return core.Rule{}, compileErr(spec.Name, "min",
				fmt.Sprintf("min (%s) greater than max (%s)", formatFloat(minF), formatFloat(maxF)))
		}
		cond.min, cond.max = minF, maxF

	case OpEQ, OpNE:
		if spec.Value == nil {
			return core.Rule{}, compileErr(spec.Name, "value", "required for equality comparison")
		}
		cond.value = spec.Value

	case OpInSet:
		if len(spec.Values) == 0 {
			return core.Rule{}, compileErr(spec.Name, "values", "in_set requires a non-empty value set")
		}
		cond.values = spec.Values

	case OpMatches, OpNotMatches:
		if spec.Pattern == "" {
			return core.Rule{}, compileErr(spec.Name, "pattern", "required for regex match")
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return core.Rule{}, compileErr(spec.Name, "pattern", fmt.Sprintf("invalid regex: %v", err))
		}
		cond.re = re
		cond.pattern = spec.Pattern

	case OpNotNull:
		// No operand.
	}

	desc := spec.Description
	if desc == "" {
		desc = spec.Name
	}

	return core.Rule{
		Name:        spec.Name,
		Description: desc,
		Severity:    sev,
		Fields:      []string{spec.Field},
		Check:       cond.check,
	}, nil
}

// Compile compiles a full stage spec into an ordered rule set.
func Compile(spec StageSpec) (*core.RuleSet, error) {
	if spec.Stage == "" {
		return nil, compileErr("", "stage", "required")
	}

	var schema map[string]struct{}
	if len(spec.Schema) > 0 {
		schema = make(map[string]struct{}, len(spec.Schema))
		for _, f := range spec.Schema {
			schema[f] = struct{}{}
		}
	}

	set := core.NewRuleSet(spec.Stage)
	for _, rs := range spec.Rules {
		rule, err := CompileRule(rs)
		if err != nil {
			return nil, err
		}

		if schema != nil {
			for _, f := range rule.Fields {
				if _, ok := schema[f]; !ok {
					return nil, compileErr(rule.Name, "field",
						fmt.Sprintf("field %q not in stage %q schema", f, spec.Stage))
				}
			}
		}

		if err := set.Add(rule); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func compileErr(rule, field, reason string) *core.RuleCompilationError {
	return &core.RuleCompilationError{Rule: rule, Field: field, Reason: reason}
}
