// project_repository.go implements ProjectRepository for the project records
// every entity row and audit entry is scoped to.
package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/project-registry/project-registry/internal/db/models"
)

// ProjectRepository handles project database operations
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns all projects ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.SelectContext(ctx, &projects, `
		SELECT id, name, status, created_at FROM projects ORDER BY name
	`)
	return projects, err
}

// GetByID returns one project, or nil when it does not exist.
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	var p models.Project
	err := r.db.GetContext(ctx, &p, `
		SELECT id, name, status, created_at FROM projects WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByName returns one project by its unique name, or nil when absent.
func (r *ProjectRepository) GetByName(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	err := r.db.GetContext(ctx, &p, `
		SELECT id, name, status, created_at FROM projects WHERE name = $1
	`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a project and returns it with its assigned id.
func (r *ProjectRepository) Create(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO projects (name) VALUES ($1)
		RETURNING id, name, status, created_at
	`, name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
