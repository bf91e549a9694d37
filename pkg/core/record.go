package core

// Record is a single unit of data flowing through the pipeline.
// The ID is assigned at ingest and never changes; the stage currently
// processing a record owns it until the next stage boundary.
type Record struct {
	ID     string
	Fields map[string]any
}

// Field returns the named field value and whether it is present.
func (r Record) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Clone returns a copy of the record with its own field map.
// Values are shared; rules are pure readers so that is safe.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields}
}
