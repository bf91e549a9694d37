// Package rules compiles structured rule configuration into executable
// quality rules. A rule definition names a record field, a comparison
// operator and an operand; the compiler turns it into a pure predicate
// evaluated against a record, never interpreted source text.
package rules

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sieveworks/sieve/pkg/core"
)

// Op is a comparison operator in the rule expression grammar.
type Op string

// Supported operators.
const (
	OpGT         Op = "gt"
	OpGTE        Op = "gte"
	OpLT         Op = "lt"
	OpLTE        Op = "lte"
	OpEQ         Op = "eq"
	OpNE         Op = "ne"
	OpBetween    Op = "between"
	OpInSet      Op = "in_set"
	OpMatches    Op = "matches"
	OpNotMatches Op = "not_matches"
	OpNotNull    Op = "not_null"
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNE, OpBetween, OpInSet, OpMatches, OpNotMatches, OpNotNull:
		return true
	}
	return false
}

// numeric reports whether o compares numbers.
func (o Op) numeric() bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE, OpBetween:
		return true
	}
	return false
}

// condition is a compiled tagged-variant check over a single record field.
// Only the operands relevant to op are populated.
type condition struct {
	field string
	op    Op

	threshold float64 // gt, gte, lt, lte
	min, max  float64 // between
	value     any     // eq, ne
	values    []any   // in_set
	re        *regexp.Regexp
	pattern   string
}

// check evaluates the condition against a record. Missing required fields
// yield a deterministic failing result, never a panic or error: malformed
// data is an expected steady-state condition.
func (c *condition) check(rec core.Record) core.CheckResult {
	v, ok := rec.Field(c.field)
	if !ok {
		return fail("missing field: %s", c.field)
	}

	if c.op == OpNotNull {
		if v == nil {
			return fail("%s is null", c.field)
		}
		return pass()
	}

	if c.op.numeric() {
		f, numeric := toFloat(v)
		if !numeric {
			return fail("%s (%s) is not numeric", c.field, formatValue(v))
		}
		return c.checkNumeric(f)
	}

	switch c.op {
	case OpEQ:
		if !equalValues(v, c.value) {
			return fail("%s (%s) != %s", c.field, formatValue(v), formatValue(c.value))
		}
	case OpNE:
		if equalValues(v, c.value) {
			return fail("%s (%s) == %s", c.field, formatValue(v), formatValue(c.value))
		}
	case OpInSet:
		for _, allowed := range c.values {
			if equalValues(v, allowed) {
				return pass()
			}
		}
		return fail("%s (%s) not in allowed set", c.field, formatValue(v))
	case OpMatches:
		if !c.re.MatchString(stringValue(v)) {
			return fail("%s (%s) does not match pattern %s", c.field, formatValue(v), c.pattern)
		}
	case OpNotMatches:
		if c.re.MatchString(stringValue(v)) {
			return fail("%s (%s) matches prohibited pattern %s", c.field, formatValue(v), c.pattern)
		}
	}
	return pass()
}

func (c *condition) checkNumeric(f float64) core.CheckResult {
	switch c.op {
	case OpGT:
		if f <= c.threshold {
			return fail("%s (%s) <= %s", c.field, formatFloat(f), formatFloat(c.threshold))
		}
	case OpGTE:
		if f < c.threshold {
			return fail("%s (%s) < %s", c.field, formatFloat(f), formatFloat(c.threshold))
		}
	case OpLT:
		if f >= c.threshold {
			return fail("%s (%s) >= %s", c.field, formatFloat(f), formatFloat(c.threshold))
		}
	case OpLTE:
		if f > c.threshold {
			return fail("%s (%s) > %s", c.field, formatFloat(f), formatFloat(c.threshold))
		}
	case OpBetween:
		if f < c.min || f > c.max {
			return fail("%s (%s) outside [%s, %s]", c.field, formatFloat(f), formatFloat(c.min), formatFloat(c.max))
		}
	}
	return pass()
}

func pass() core.CheckResult {
	return core.CheckResult{Passed: true}
}

func fail(format string, args ...any) core.CheckResult {
	return core.CheckResult{Passed: false, Reason: fmt.Sprintf(format, args...)}
}

// toFloat coerces the numeric types JSON and YAML decoding produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// equalValues compares numerically when both sides coerce to numbers,
// otherwise by string rendering. "42" never equals 42: type classes differ.
func equalValues(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum != bNum {
		return false
	}
	if aNum {
		return fa == fb
	}
	return stringValue(a) == stringValue(b)
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// formatValue renders an operand for failure reasons. Floats without a
// fractional part render as integers so reasons stay readable.
func formatValue(v any) string {
	if f, ok := toFloat(v); ok {
		return formatFloat(f)
	}
	return stringValue(v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
