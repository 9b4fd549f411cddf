// records.go implements the per-project entity read endpoints backing the
// edit grid: the persisted rows of one entity tab, shaped as editing slots,
// and the name lists that natural-key reference fields are picked from.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/editing"
	"github.com/project-registry/project-registry/internal/mutation"
)

// RecordLister reads the persisted rows of one entity table for a project.
// *repositories.SubmoduleRepository implements it.
type RecordLister interface {
	ListByProject(ctx context.Context, table string, projectID int64) ([]models.Record, error)
}

// ReferenceSource lists the rows of a lookup table by name.
// *repositories.LookupRepository implements it.
type ReferenceSource interface {
	ListNames(ctx context.Context, table string) ([]models.Lookup, error)
}

// referenceTabler is implemented by handlers whose config declares natural-key
// lookups.
type referenceTabler interface {
	ReferenceTable(field string) (string, bool)
}

// recordView is one row of the edit grid: the slot identity and the catalog
// field values, internal columns already filtered out.
type recordView struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// @Summary      Entity records
// @Description  Returns every persisted record of one entity for a project, in id order, carrying only the catalog fields of the entity.
// @Tags         Records
// @Produce      json
// @Param        projectId  path  int     true  "Project ID"
// @Param        entity     path  string  true  "Entity name"
// @Success      200  {object}  map[string]interface{}  "entity, records: [{id, values}]"
// @Failure      404  {object}  map[string]interface{}  "error: unknown entity"
// @Failure      500  {object}  map[string]interface{}  "error: failed to load records"
// @Router       /api/v1/projects/{projectId}/entities/{entity}/records [get]
// ListEntityRecordsHandler returns the rows backing one entity tab.
func ListEntityRecordsHandler(registry *mutation.Registry, lister RecordLister, catalog FieldCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseInt(c.Param("projectId"), 10, 64)
		if err != nil || projectID < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}

		entity := c.Param("entity")
		handler, ok := registry.Get(entity)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": mutation.UnsupportedEntityError(entity, registry.Names()).Error(),
			})
			return
		}

		records, err := lister.ListByProject(c.Request.Context(), handler.Table(), projectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load records"})
			return
		}

		// The editing session filters each row down to the entity's catalog
		// fields, so raw columns (project_id, foreign keys) never leak.
		session := editing.NewSession(entity, catalog.Fields(entity), records)
		views := make([]recordView, 0, len(records))
		for _, slot := range session.Slots() {
			views = append(views, recordView{ID: slot.ID, Values: slot.Original})
		}

		c.JSON(http.StatusOK, gin.H{
			"entity":  entity,
			"records": views,
		})
	}
}

// @Summary      Reference field options
// @Description  Returns the named rows a natural-key reference field can point at, ordered by name. A non-reference field yields an empty list.
// @Tags         Records
// @Produce      json
// @Param        entity  path  string  true  "Entity name"
// @Param        field   path  string  true  "Field key"
// @Success      200  {object}  map[string]interface{}  "options: [{id, name}]"
// @Failure      404  {object}  map[string]interface{}  "error: unknown entity"
// @Router       /api/v1/entities/{entity}/references/{field}/options [get]
// ReferenceOptionsHandler lists the legal names for one reference field.
func ReferenceOptionsHandler(registry *mutation.Registry, refs ReferenceSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		handler, ok := registry.Get(entity)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": mutation.UnsupportedEntityError(entity, registry.Names()).Error(),
			})
			return
		}

		rt, ok := handler.(referenceTabler)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"options": []models.Lookup{}})
			return
		}
		table, ok := rt.ReferenceTable(c.Param("field"))
		if !ok {
			c.JSON(http.StatusOK, gin.H{"options": []models.Lookup{}})
			return
		}

		options, err := refs.ListNames(c.Request.Context(), table)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reference options"})
			return
		}
		if options == nil {
			options = []models.Lookup{}
		}
		c.JSON(http.StatusOK, gin.H{"options": options})
	}
}
