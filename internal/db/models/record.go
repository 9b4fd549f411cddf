// record.go defines the dynamic row representation shared by the submodule
// repositories and the mutation router. Entity tables have heterogeneous
// columns, so rows travel as key→value maps validated against the field
// catalog rather than as per-entity structs.
package models

// Record is one persisted entity row. Keys are catalog field keys plus "id"
// and "project_id".
type Record map[string]any

// ID returns the numeric primary key, or 0 when absent or non-numeric.
func (r Record) ID() int64 {
	switch v := r["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
