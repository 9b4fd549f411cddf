// registry.go implements the entity handler registry: a string-keyed lookup
// from entity name to its mutation handler. The registry stays open for
// extension — new entity groups register a handler without touching dispatch.
package mutation

import (
	"context"
	"sort"
	"sync"

	"github.com/project-registry/project-registry/internal/db/models"
)

// Resolved is a bundle after reference resolution: update rows normalized to
// the by-id shape, create rows with foreign-key names replaced by ids.
type Resolved struct {
	Updates    []map[string]any
	Creates    []map[string]any
	DeletedIDs []int64
}

// Handler implements entity-specific mutation logic. Validate rejects the
// whole batch on a malformed shape; ResolveReferences converts natural keys to
// ids (reporting unresolvable creates as skipped); ToWrites maps payload field
// keys to table columns.
type Handler interface {
	Entity() string
	Table() string
	Validate(b Bundle) error
	ResolveReferences(ctx context.Context, projectID int64, b Bundle) (Resolved, []Skipped, error)
	ToWrites(projectID int64, r Resolved) Writes
}

// InstanceAssigner is implemented by handlers whose creates carry a positional
// instance number (e.g. "lender-commitment #3 for this loan type"). When a
// create omits the instance column, the dispatcher assigns max+1 within the
// grouping column.
type InstanceAssigner interface {
	InstanceRule() (column, groupBy string)
}

// RowWrite is one sparse by-id update.
type RowWrite struct {
	ID     int64
	Fields map[string]any
}

// Writes is the persistence-ready form of a resolved bundle. Field keys have
// been mapped to column names.
type Writes struct {
	Deletes []int64
	Updates []RowWrite
	Inserts []map[string]any
}

// Store is the persistence surface the dispatcher writes through.
type Store interface {
	// DeleteBatch removes the given ids scoped to the project, in one call.
	DeleteBatch(ctx context.Context, table string, projectID int64, ids []int64) error
	// UpdateSparse writes only the supplied column subset and returns the row.
	UpdateSparse(ctx context.Context, table string, projectID, id int64, cols map[string]any) (models.Record, error)
	// Insert creates a row and returns it with its assigned id.
	Insert(ctx context.Context, table string, cols map[string]any) (models.Record, error)
	// GetByIDs fetches rows by id scoped to the project.
	GetByIDs(ctx context.Context, table string, projectID int64, ids []int64) ([]models.Record, error)
	// FindIDByColumns locates a row id by column equality, for legacy
	// natural-key update payloads.
	FindIDByColumns(ctx context.Context, table string, projectID int64, cols map[string]any) (int64, error)
	// MaxInstance returns the current maximum value of an instance column
	// within a grouping column value, 0 when no rows match.
	MaxInstance(ctx context.Context, table string, projectID int64, instanceCol, groupCol string, groupVal any) (int, error)
}

// Registry maps entity names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its entity name. Last registration wins.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Entity()] = h
}

// Get returns the handler for an entity name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered entity names, sorted so error messages and API
// responses are deterministic.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
