// submodule_repository.go implements SubmoduleRepository, the shared
// persistence surface for every entity table. Statements are built with
// squirrel because the column set of a sparse update is only known at save
// time; table and column names come from registered handler configs and the
// field catalog, never from raw request input.
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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SubmoduleRepository executes the delete/update/insert calls the mutation
// dispatcher issues.
type SubmoduleRepository struct {
	db *sqlx.DB
}

// NewSubmoduleRepository creates a new SubmoduleRepository
func NewSubmoduleRepository(db *sqlx.DB) *SubmoduleRepository {
	return &SubmoduleRepository{db: db}
}

// DeleteBatch removes the given ids in one statement, scoped to the project so
// a stray id can never delete another project's row.
func (r *SubmoduleRepository) DeleteBatch(ctx context.Context, table string, projectID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(table).
		Where(sq.Eq{"project_id": projectID, "id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateSparse writes only the supplied column subset and returns the updated
// row. Fields the caller did not submit are untouched, which is what makes
// overlapping edits field-level last-write-wins rather than row clobbering.
func (r *SubmoduleRepository) UpdateSparse(ctx context.Context, table string, projectID, id int64, cols map[string]any) (models.Record, error) {
	if len(cols) == 0 {
		rows, err := r.GetByIDs(ctx, table, projectID, []int64{id})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%s id=%d: %w", table, id, sql.ErrNoRows)
		}
		return rows[0], nil
	}

	query, args, err := psql.Update(table).
		SetMap(cols).
		Where(sq.Eq{"id": id, "project_id": projectID}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, query, args...)
}

// Insert creates one row and returns it with its database-assigned id.
func (r *SubmoduleRepository) Insert(ctx context.Context, table string, cols map[string]any) (models.Record, error) {
	query, args, err := psql.Insert(table).
		SetMap(cols).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, query, args...)
}

// GetByIDs fetches rows by id within the project.
func (r *SubmoduleRepository) GetByIDs(ctx context.Context, table string, projectID int64, ids []int64) ([]models.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select("*").From(table).
		Where(sq.Eq{"project_id": projectID, "id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec := make(map[string]any)
		if err := rows.MapScan(rec); err != nil {
			return nil, err
		}
		records = append(records, normalizeRow(rec))
	}
	return records, rows.Err()
}

// ListByProject returns every row of an entity table for one project.
func (r *SubmoduleRepository) ListByProject(ctx context.Context, table string, projectID int64) ([]models.Record, error) {
	query, args, err := psql.Select("*").From(table).
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec := make(map[string]any)
		if err := rows.MapScan(rec); err != nil {
			return nil, err
		}
		records = append(records, normalizeRow(rec))
	}
	return records, rows.Err()
}

// FindIDByColumns locates a row id by column equality, for legacy natural-key
// update payloads. Exactly one match is required.
func (r *SubmoduleRepository) FindIDByColumns(ctx context.Context, table string, projectID int64, cols map[string]any) (int64, error) {
	where := sq.Eq{"project_id": projectID}
	for k, v := range cols {
		where[k] = v
	}
	query, args, err := psql.Select("id").From(table).Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no %s row matches %v", table, cols)
		}
		return 0, err
	}
	return id, nil
}

// MaxInstance returns the current maximum of an instance column within a
// grouping column value; 0 when no rows match.
func (r *SubmoduleRepository) MaxInstance(ctx context.Context, table string, projectID int64, instanceCol, groupCol string, groupVal any) (int, error) {
	where := sq.Eq{"project_id": projectID}
	if groupCol != "" {
		where[groupCol] = groupVal
	}
	query, args, err := psql.Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", instanceCol)).
		From(table).
		Where(where).
		ToSql()
	if err != nil {
		return 0, err
	}
	var max int
	if err := r.db.GetContext(ctx, &max, query, args...); err != nil {
		return 0, err
	}
	return max, nil
}

func (r *SubmoduleRepository) queryOne(ctx context.Context, query string, args ...any) (models.Record, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	rec := make(map[string]any)
	if err := rows.MapScan(rec); err != nil {
		return nil, err
	}
	return normalizeRow(rec), rows.Err()
}

// normalizeRow converts driver byte slices to strings so records compare and
// serialize predictably.
func normalizeRow(rec map[string]any) models.Record {
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
		}
	}
	return models.Record(rec)
}
