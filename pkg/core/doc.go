// Package core defines the shared domain types for Sieve: records, rules,
// severities, evaluation outcomes, lineage entries and the error taxonomy.
//
// The Golden Rule: pkg/core imports ONLY the standard library. It carries
// domain data and pure domain logic; mechanisms (evaluation, storage,
// transport) live under internal/ and depend on core, never the reverse.
package core
