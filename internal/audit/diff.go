// diff.go builds field-level audit entries by comparing a save bundle against
// a snapshot of the affected rows taken before the mutation ran. One entry is
// emitted per field whose value actually changed; a field written back with an
// identical value produces nothing.
package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/mutation"
	"github.com/project-registry/project-registry/internal/naming"
)

// Snapshot holds the pre-mutation state of the rows a bundle touches, keyed by
// row id. Rows being created have no snapshot entry.
type Snapshot map[int64]models.Record

// CaptureBefore reads the current state of every row a bundle updates or
// deletes. It must run before the bundle is dispatched; afterwards the deleted
// rows are gone and the updated rows already carry the new values.
func CaptureBefore(ctx context.Context, store mutation.Store, table string, projectID int64, b mutation.Bundle) (Snapshot, error) {
	ids := make([]int64, 0, len(b.Updates)+len(b.DeletedIDs))
	for _, u := range b.Updates {
		if id, ok := rowID(u); ok {
			ids = append(ids, id)
		}
	}
	ids = append(ids, b.DeletedIDs...)

	snap := make(Snapshot, len(ids))
	if len(ids) == 0 {
		return snap, nil
	}

	recs, err := store.GetByIDs(ctx, table, projectID, ids)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		snap[rec.ID()] = rec
	}
	return snap, nil
}

// FieldSource supplies the field descriptors and display labels the builder
// needs. *fields.Catalog satisfies it.
type FieldSource interface {
	Fields(entityName string) []models.FieldDescriptor
	Label(entityName, fieldKey string) string
}

// Builder turns bundles and snapshots into audit entries, resolving field keys
// to their catalog display labels.
type Builder struct {
	catalog FieldSource
}

// NewBuilder creates a diff builder over the field catalog.
func NewBuilder(catalog FieldSource) *Builder {
	return &Builder{catalog: catalog}
}

// BuildChangeLog produces one AuditEntry per changed field across the bundle.
// All entries of a save share the action type derived from the bundle shape
// and a single timestamp. Entries follow catalog field order within each row
// so exports read consistently.
func (bld *Builder) BuildChangeLog(entityName string, projectID int64, userName string, b mutation.Bundle, before Snapshot) []models.AuditEntry {
	action := b.ActionType()
	module := naming.ModuleLabel(entityName)
	subModule := naming.SubModuleLabel(entityName)
	now := time.Now()
	descriptors := bld.catalog.Fields(entityName)

	var entries []models.AuditEntry
	add := func(fieldKey string, oldVal, newVal *string) {
		entries = append(entries, models.AuditEntry{
			ProjectID:  projectID,
			ModuleName: module,
			SubModule:  subModule,
			FieldName:  bld.catalog.Label(entityName, fieldKey),
			OldValue:   oldVal,
			NewValue:   newVal,
			ActionType: action,
			UserName:   userName,
			CreatedAt:  now,
		})
	}

	for _, row := range b.Updates {
		id, ok := rowID(row)
		if !ok {
			continue
		}
		old := before[id]
		for _, desc := range descriptors {
			v, touched := row[desc.FieldKey]
			if !touched {
				continue
			}
			oldStr := valueString(snapshotValue(old, desc.FieldKey))
			newStr := valueString(v)
			if equalNormalized(oldStr, newStr) {
				continue
			}
			add(desc.FieldKey, &oldStr, &newStr)
		}
	}

	for _, row := range b.Creates {
		for _, desc := range descriptors {
			v, present := row[desc.FieldKey]
			if !present {
				continue
			}
			newStr := valueString(v)
			if newStr == "" {
				continue
			}
			add(desc.FieldKey, nil, &newStr)
		}
	}

	for _, id := range b.DeletedIDs {
		old, found := before[id]
		if !found {
			continue
		}
		for _, desc := range descriptors {
			oldStr := valueString(snapshotValue(old, desc.FieldKey))
			if oldStr == "" {
				continue
			}
			add(desc.FieldKey, &oldStr, nil)
		}
	}

	return entries
}

// snapshotValue reads a field from a snapshot row. Reference fields appear in
// payloads under their name key ("loan_type") but are stored under the foreign
// key column ("loan_type_id"), so the id column is the fallback.
func snapshotValue(rec models.Record, fieldKey string) any {
	if rec == nil {
		return nil
	}
	if v, ok := rec[fieldKey]; ok {
		return v
	}
	if v, ok := rec[fieldKey+"_id"]; ok {
		return v
	}
	return nil
}

// valueString renders a stored or payload value as audit text. Nil renders as
// the empty string, matching the null≡"" comparison rule.
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	case []byte:
		return string(t)
	default:
		return ""
	}
}

// equalNormalized reports whether two rendered values are the same change-wise.
// Numbers compare numerically so "10" and "10.00" do not produce a phantom
// entry, and dates compare on the calendar day regardless of stored layout.
func equalNormalized(a, b string) bool {
	if a == b {
		return true
	}
	if fa, errA := strconv.ParseFloat(strings.ReplaceAll(a, ",", ""), 64); errA == nil {
		if fb, errB := strconv.ParseFloat(strings.ReplaceAll(b, ",", ""), 64); errB == nil {
			return fa == fb
		}
	}
	if da, ok := datePart(a); ok {
		if db, ok := datePart(b); ok {
			return da == db
		}
	}
	return false
}

func datePart(s string) (string, bool) {
	if len(s) < 10 {
		return "", false
	}
	day := s[:10]
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return "", false
	}
	return day, true
}

func rowID(row map[string]any) (int64, bool) {
	v, ok := row["id"]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
