// entity_handler.go provides the config-driven handler implementation shared
// by the finance entity groups. Each entity declares its table, its payload
// field → column mapping, its natural-key lookups, and (optionally) an
// instance-number rule; the handler body is common.
package mutation

import (
	"context"
	"fmt"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/fields"
)

// Resolver resolves natural keys against the database: category names to
// lookup-table ids, and legacy update keys to row ids.
type Resolver interface {
	// ResolveName returns the id for a named row in a lookup table, or an
	// error wrapping ErrLookupMiss when the name does not exist.
	ResolveName(ctx context.Context, table, name string) (int64, error)
	// FindRowID locates an entity row by column equality for legacy
	// natural-key update payloads.
	FindRowID(ctx context.Context, table string, projectID int64, cols map[string]any) (int64, error)
}

// LookupRef declares one natural-key reference: the payload field carrying a
// human-readable name, the lookup table it resolves against, and the
// foreign-key column the resolved id is written to.
type LookupRef struct {
	Field  string
	Table  string
	Column string
}

// InstanceSpec declares a positional instance-number column assigned as
// max+1 within the grouping column when the caller does not supply one.
type InstanceSpec struct {
	Column  string
	GroupBy string
}

// EntityConfig declares one entity group for the generic handler.
type EntityConfig struct {
	Name  string
	Table string
	// Columns maps payload field keys to table columns. Lookup fields are
	// listed in Lookups instead.
	Columns map[string]string
	// Types maps payload field keys to catalog data types, used to coerce
	// string values arriving from the editing surface.
	Types   map[string]string
	Lookups []LookupRef
	// NaturalKey is the payload field set identifying a row in the legacy
	// update shape (updates without an id).
	NaturalKey []string
	Instance   *InstanceSpec
}

// EntityHandler is the generic Handler implementation.
type EntityHandler struct {
	cfg      EntityConfig
	resolver Resolver
}

// NewEntityHandler builds a handler from its config and resolver.
func NewEntityHandler(cfg EntityConfig, resolver Resolver) *EntityHandler {
	return &EntityHandler{cfg: cfg, resolver: resolver}
}

func (h *EntityHandler) Entity() string { return h.cfg.Name }
func (h *EntityHandler) Table() string  { return h.cfg.Table }

// InstanceRule exposes the instance-number assignment rule, if any.
func (h *EntityHandler) InstanceRule() (string, string) {
	if h.cfg.Instance == nil {
		return "", ""
	}
	return h.cfg.Instance.Column, h.cfg.Instance.GroupBy
}

// ReferenceTable returns the lookup table a natural-key reference field
// resolves against.
func (h *EntityHandler) ReferenceTable(field string) (string, bool) {
	for _, l := range h.cfg.Lookups {
		if l.Field == field {
			return l.Table, true
		}
	}
	return "", false
}

func (h *EntityHandler) knownField(key string) bool {
	if _, ok := h.cfg.Columns[key]; ok {
		return true
	}
	for _, l := range h.cfg.Lookups {
		if l.Field == key {
			return true
		}
	}
	return false
}

// Validate performs the discriminator check once per row: an update is either
// the by-id shape or the legacy natural-key shape; a row matching neither
// rejects the whole batch before any write.
func (h *EntityHandler) Validate(b Bundle) error {
	for i, row := range b.Updates {
		if _, byID := row["id"]; !byID {
			if len(h.cfg.NaturalKey) == 0 {
				return fmt.Errorf("%w: %s update %d has no id", ErrInvalidPayload, h.cfg.Name, i)
			}
			for _, k := range h.cfg.NaturalKey {
				if _, ok := row[k]; !ok {
					return fmt.Errorf("%w: %s update %d has neither id nor natural key %q",
						ErrInvalidPayload, h.cfg.Name, i, k)
				}
			}
		}
		if err := h.checkKeys(row, true); err != nil {
			return fmt.Errorf("%s update %d: %w", h.cfg.Name, i, err)
		}
	}
	for i, row := range b.Creates {
		if _, ok := row["id"]; ok {
			return fmt.Errorf("%w: %s create %d carries an id", ErrInvalidPayload, h.cfg.Name, i)
		}
		if err := h.checkKeys(row, false); err != nil {
			return fmt.Errorf("%s create %d: %w", h.cfg.Name, i, err)
		}
	}
	return nil
}

func (h *EntityHandler) checkKeys(row map[string]any, allowID bool) error {
	for k := range row {
		if k == "id" && allowID {
			continue
		}
		if !h.knownField(k) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidPayload, k)
		}
	}
	return nil
}

// ResolveReferences coerces incoming values per the catalog type, resolves
// lookup names to ids on creates, and normalizes legacy updates to the by-id
// shape. A create whose lookup name does not resolve is skipped and reported;
// the rest of the batch proceeds.
func (h *EntityHandler) ResolveReferences(ctx context.Context, projectID int64, b Bundle) (Resolved, []Skipped, error) {
	out := Resolved{DeletedIDs: b.DeletedIDs}
	var skipped []Skipped

	for i, row := range b.Updates {
		coerced, err := h.coerceRow(row)
		if err != nil {
			return Resolved{}, nil, fmt.Errorf("%s update %d: %w", h.cfg.Name, i, err)
		}
		if _, byID := coerced["id"]; !byID {
			id, err := h.resolveLegacyID(ctx, projectID, coerced)
			if err != nil {
				return Resolved{}, nil, fmt.Errorf("%s update %d: %w", h.cfg.Name, i, err)
			}
			for _, k := range h.cfg.NaturalKey {
				delete(coerced, k)
			}
			coerced["id"] = id
		}
		resolved, miss, err := h.resolveLookups(ctx, coerced)
		if err != nil {
			return Resolved{}, nil, fmt.Errorf("%s update %d: %w", h.cfg.Name, i, err)
		}
		if miss != "" {
			// Updates address a specific row, so an unresolvable
			// reference is an error rather than a skip.
			return Resolved{}, nil, fmt.Errorf("%s update %d: %w: %s", h.cfg.Name, i, ErrLookupMiss, miss)
		}
		out.Updates = append(out.Updates, resolved)
	}

	for i, row := range b.Creates {
		coerced, err := h.coerceRow(row)
		if err != nil {
			return Resolved{}, nil, fmt.Errorf("%s create %d: %w", h.cfg.Name, i, err)
		}
		resolved, miss, err := h.resolveLookups(ctx, coerced)
		if err != nil {
			return Resolved{}, nil, fmt.Errorf("%s create %d: %w", h.cfg.Name, i, err)
		}
		if miss != "" {
			skipped = append(skipped, Skipped{Index: i, Reason: miss})
			continue
		}
		out.Creates = append(out.Creates, resolved)
	}

	return out, skipped, nil
}

func (h *EntityHandler) coerceRow(row map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(row))
	for k, v := range row {
		typ, ok := h.cfg.Types[k]
		if !ok {
			coerced[k] = v
			continue
		}
		if s, isStr := v.(string); isStr {
			cv, err := fields.Coerce(typ, s)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			coerced[k] = cv
			continue
		}
		coerced[k] = v
	}
	return coerced, nil
}

func (h *EntityHandler) resolveLegacyID(ctx context.Context, projectID int64, row map[string]any) (int64, error) {
	keyCols := make(map[string]any, len(h.cfg.NaturalKey))
	for _, k := range h.cfg.NaturalKey {
		col, ok := h.cfg.Columns[k]
		if !ok {
			col = k
		}
		keyCols[col] = row[k]
	}
	return h.resolver.FindRowID(ctx, h.cfg.Table, projectID, keyCols)
}

// resolveLookups replaces lookup field names with resolved ids. The returned
// miss string is non-empty when a name did not resolve; callers decide whether
// that skips the record (creates) or fails (updates always fail, since the row
// was explicitly addressed).
func (h *EntityHandler) resolveLookups(ctx context.Context, row map[string]any) (map[string]any, string, error) {
	for _, l := range h.cfg.Lookups {
		raw, ok := row[l.Field]
		if !ok {
			continue
		}
		delete(row, l.Field)
		name, _ := raw.(string)
		if name == "" || raw == nil {
			row[l.Column] = nil
			continue
		}
		id, err := h.resolver.ResolveName(ctx, l.Table, name)
		if err != nil {
			if isLookupMiss(err) {
				return row, fmt.Sprintf("%s %q not found", l.Field, name), nil
			}
			return nil, "", err
		}
		row[l.Column] = id
	}
	return row, "", nil
}

// ToWrites maps payload field keys to table columns and stamps the project
// scope onto inserts.
func (h *EntityHandler) ToWrites(projectID int64, r Resolved) Writes {
	w := Writes{Deletes: r.DeletedIDs}
	for _, row := range r.Updates {
		id := models.Record(row).ID()
		cols := make(map[string]any, len(row))
		for k, v := range row {
			if k == "id" {
				continue
			}
			cols[h.columnFor(k)] = v
		}
		w.Updates = append(w.Updates, RowWrite{ID: id, Fields: cols})
	}
	for _, row := range r.Creates {
		cols := make(map[string]any, len(row)+1)
		for k, v := range row {
			cols[h.columnFor(k)] = v
		}
		cols["project_id"] = projectID
		w.Inserts = append(w.Inserts, cols)
	}
	return w
}

func (h *EntityHandler) columnFor(key string) string {
	if col, ok := h.cfg.Columns[key]; ok && col != "" {
		return col
	}
	return key
}
