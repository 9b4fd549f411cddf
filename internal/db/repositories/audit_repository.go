// audit_repository.go implements AuditRepository, providing database queries for
// writing and retrieving field-level audit entries with project and date-range
// filtering.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/project-registry/project-registry/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit entries
type AuditFilters struct {
	ProjectName *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateEntries inserts one row per changed field. Entries are append-only;
// ids and timestamps are assigned here so callers never mutate them afterward.
func (r *AuditRepository) CreateEntries(ctx context.Context, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO audit_log (id, project_id, module_name, sub_module, field_name, old_value, new_value, action_type, user_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	for i := range entries {
		e := &entries[i]
		e.ID = uuid.New().String()
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		_, err := r.db.ExecContext(ctx, query,
			e.ID,
			e.ProjectID,
			e.ModuleName,
			e.SubModule,
			e.FieldName,
			e.OldValue,
			e.NewValue,
			e.ActionType,
			e.UserName,
			e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry for %s.%s: %w", e.SubModule, e.FieldName, err)
		}
	}
	return nil
}

// ListEntries retrieves audit entries newest-first with optional filters.
func (r *AuditRepository) ListEntries(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditEntry, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_log a JOIN projects p ON p.id = a.project_id WHERE 1=1`
	query := `
		SELECT a.id, a.project_id, a.module_name, a.sub_module, a.field_name, a.old_value, a.new_value, a.action_type, a.user_name, a.created_at, p.name
		FROM audit_log a
		JOIN projects p ON p.id = a.project_id
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.ProjectName != nil {
		countQuery += fmt.Sprintf(` AND p.name = $%d`, paramIndex)
		query += fmt.Sprintf(` AND p.name = $%d`, paramIndex)
		args = append(args, *filters.ProjectName)
		paramIndex++
	}

	if filters.StartDate != nil {
		countQuery += fmt.Sprintf(` AND a.created_at >= $%d`, paramIndex)
		query += fmt.Sprintf(` AND a.created_at >= $%d`, paramIndex)
		args = append(args, *filters.StartDate)
		paramIndex++
	}

	if filters.EndDate != nil {
		countQuery += fmt.Sprintf(` AND a.created_at <= $%d`, paramIndex)
		query += fmt.Sprintf(` AND a.created_at <= $%d`, paramIndex)
		args = append(args, *filters.EndDate)
		paramIndex++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0)
	for rows.Next() {
		e := &models.AuditEntry{}
		err := rows.Scan(
			&e.ID,
			&e.ProjectID,
			&e.ModuleName,
			&e.SubModule,
			&e.FieldName,
			&e.OldValue,
			&e.NewValue,
			&e.ActionType,
			&e.UserName,
			&e.CreatedAt,
			&e.ProjectName,
		)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}
