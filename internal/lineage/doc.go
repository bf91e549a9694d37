// Package lineage maintains the per-record provenance index: the ordered
// sequence of stage transitions and verdicts each record accumulates as it
// moves through the pipeline, and the tracer that projects a record's trail
// on demand.
package lineage
