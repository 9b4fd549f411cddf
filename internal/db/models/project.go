// project.go defines the Project model and the lookup (natural key) tables that
// entity handlers resolve human-readable category names against.
package models

import "time"

// Project represents one renewable-energy asset project. Every entity record
// and audit entry is scoped to a project.
type Project struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Lookup is a named category row (loan type, counterparty type, swap
// parameter). Creates reference these by name; the handler resolves the name
// to the internal id before writing the foreign-key column.
type Lookup struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
