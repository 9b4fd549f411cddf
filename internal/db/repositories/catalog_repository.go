// catalog_repository.go implements CatalogRepository, the read surface for the
// field metadata catalog and dropdown option tables.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/project-registry/project-registry/internal/db/models"
)

// CatalogRepository reads the field catalog. The catalog is seeded by
// migration and immutable at runtime, so there is no write surface.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListFields returns every field descriptor, ordered for stable form layout.
func (r *CatalogRepository) ListFields(ctx context.Context) ([]models.FieldDescriptor, error) {
	var fields []models.FieldDescriptor
	err := r.db.SelectContext(ctx, &fields, `
		SELECT entity_name, field_key, display_label, data_type, sort_order
		FROM field_catalog
		ORDER BY entity_name, sort_order, field_key
	`)
	return fields, err
}

// GetFields returns the descriptors for one entity.
func (r *CatalogRepository) GetFields(ctx context.Context, entityName string) ([]models.FieldDescriptor, error) {
	var fields []models.FieldDescriptor
	err := r.db.SelectContext(ctx, &fields, `
		SELECT entity_name, field_key, display_label, data_type, sort_order
		FROM field_catalog
		WHERE entity_name = $1
		ORDER BY sort_order, field_key
	`, entityName)
	return fields, err
}

// GetDropdownOptions returns the legal values for a dropdown field. A pair
// that is not dropdown-typed simply has no rows; callers treat the empty list
// as non-fatal rather than an error.
func (r *CatalogRepository) GetDropdownOptions(ctx context.Context, entityName, fieldKey string) ([]models.DropdownOption, error) {
	var opts []models.DropdownOption
	err := r.db.SelectContext(ctx, &opts, `
		SELECT entity_name, field_key, option_value
		FROM dropdown_options
		WHERE entity_name = $1 AND field_key = $2
		ORDER BY option_value
	`, entityName, fieldKey)
	return opts, err
}
