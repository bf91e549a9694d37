package core

import "strings"

// Severity classifies how serious a rule violation is.
type Severity int

// Severity levels, ordered least to most severe. The ordering matters:
// quarantine policy compares severities with >=.
const (
	// SeverityLow marks soft violations. They are recorded for visibility
	// but never block a record under the default policy.
	SeverityLow Severity = iota
	// SeverityHigh marks violations that quarantine under the default policy.
	SeverityHigh
	// SeverityCritical marks violations that always quarantine.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityHigh and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "low":
		return SeverityLow, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return SeverityHigh, false
	}
}
