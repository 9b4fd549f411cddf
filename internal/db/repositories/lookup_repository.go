// lookup_repository.go implements LookupRepository, the natural-key resolver
// entity handlers use to turn human-readable category names (loan types,
// counterparty types, swap parameters) into internal ids.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/project-registry/project-registry/internal/db/models"
)

// ErrLookupNotFound marks a natural-key name with no row in its lookup
// table. The mutation layer translates it into its own miss sentinel.
var ErrLookupNotFound = errors.New("lookup row not found")

// LookupRepository resolves natural keys.
type LookupRepository struct {
	db        *sqlx.DB
	submodule *SubmoduleRepository
}

// NewLookupRepository creates a new LookupRepository
func NewLookupRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db, submodule: NewSubmoduleRepository(db)}
}

// ResolveName returns the id of a named lookup row. A missing name wraps
// ErrLookupNotFound so callers can apply partial-failure semantics.
func (r *LookupRepository) ResolveName(ctx context.Context, table, name string) (int64, error) {
	query, args, err := psql.Select("id").From(table).Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s %q", ErrLookupNotFound, table, name)
		}
		return 0, err
	}
	return id, nil
}

// FindRowID locates an entity row by column equality for legacy natural-key
// update payloads.
func (r *LookupRepository) FindRowID(ctx context.Context, table string, projectID int64, cols map[string]any) (int64, error) {
	return r.submodule.FindIDByColumns(ctx, table, projectID, cols)
}

// ListNames returns all rows of a lookup table ordered by name, for the
// editing surface's reference dropdowns.
func (r *LookupRepository) ListNames(ctx context.Context, table string) ([]models.Lookup, error) {
	query, _, err := psql.Select("id", "name").From(table).OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	var lookups []models.Lookup
	if err := r.db.SelectContext(ctx, &lookups, query); err != nil {
		return nil, err
	}
	return lookups, nil
}
