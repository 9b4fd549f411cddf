// Package models - audit_log.go defines the AuditEntry model: one row per changed
// field per save, capturing project, module/sub-module labels, before/after values,
// action type, and the acting user.
package models

import "time"

// Audit action types. DELETE wins over CREATE wins over UPDATE when a single
// save carries a mix of mutations.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// AuditEntry represents a single field-level change in the audit trail.
// OldValue is nil for CREATE; NewValue is nil for DELETE. Entries are
// append-only and never mutated after the insert returns.
type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  int64     `db:"project_id" json:"projectId"`
	ModuleName string    `db:"module_name" json:"moduleName"`
	SubModule  string    `db:"sub_module" json:"subModule"`
	FieldName  string    `db:"field_name" json:"fieldName"`
	OldValue   *string   `db:"old_value" json:"oldValue,omitempty"`
	NewValue   *string   `db:"new_value" json:"newValue,omitempty"`
	ActionType string    `db:"action_type" json:"actionType"`
	UserName   string    `db:"user_name" json:"userName"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`

	// ProjectName is joined in on reads for display and export; it is not a
	// column of audit_log and is never written.
	ProjectName string `db:"project_name" json:"projectName,omitempty"`
}
