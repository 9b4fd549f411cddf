// fields.go implements the field metadata read endpoints. The catalog is
// in-process and immutable after startup; only dropdown options touch the
// database (through the Redis cache when one is configured).
package api

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/project-registry/project-registry/internal/db/models"
)

// FieldCatalog is the read surface of the field metadata catalog the handlers
// consume. *fields.Catalog implements it.
type FieldCatalog interface {
	Fields(entityName string) []models.FieldDescriptor
	ByEntity() map[string][]models.FieldDescriptor
	DropdownOptions(ctx context.Context, entityName, fieldKey string) ([]models.DropdownOption, error)
	PrefetchDropdowns(ctx context.Context, entityName string) (map[string][]models.DropdownOption, error)
}

// @Summary      Entity field descriptors
// @Description  Returns the field descriptors of one entity in form layout order, plus the legal values of every dropdown field.
// @Tags         Fields
// @Produce      json
// @Param        entity  path  string  true  "Entity name"
// @Success      200  {object}  map[string]interface{}  "entity, fields: [], options: {fieldKey: []}"
// @Failure      404  {object}  map[string]interface{}  "error: unknown entity"
// @Router       /api/v1/entities/{entity}/fields [get]
// EntityFieldsHandler returns the catalog view backing one entity tab.
func EntityFieldsHandler(catalog FieldCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		descriptors := catalog.Fields(entity)
		if len(descriptors) == 0 {
			c.JSON(http.StatusNotFound, gin.H{
				"error": unknownEntityMessage(catalog, entity),
			})
			return
		}

		options, err := catalog.PrefetchDropdowns(c.Request.Context(), entity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dropdown options"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entity":  entity,
			"fields":  descriptors,
			"options": options,
		})
	}
}

// @Summary      Dropdown field options
// @Description  Returns the legal values for one dropdown field. A non-dropdown field yields an empty list, not an error.
// @Tags         Fields
// @Produce      json
// @Param        entity  path  string  true  "Entity name"
// @Param        field   path  string  true  "Field key"
// @Success      200  {object}  map[string]interface{}  "options: []"
// @Failure      404  {object}  map[string]interface{}  "error: unknown entity"
// @Router       /api/v1/entities/{entity}/fields/{field}/options [get]
// FieldOptionsHandler returns the dropdown options for one field.
func FieldOptionsHandler(catalog FieldCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		if len(catalog.Fields(entity)) == 0 {
			c.JSON(http.StatusNotFound, gin.H{
				"error": unknownEntityMessage(catalog, entity),
			})
			return
		}

		options, err := catalog.DropdownOptions(c.Request.Context(), entity, c.Param("field"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dropdown options"})
			return
		}
		if options == nil {
			options = []models.DropdownOption{}
		}
		c.JSON(http.StatusOK, gin.H{"options": options})
	}
}

// unknownEntityMessage enumerates the catalog's entities so a typo in the URL
// is self-diagnosing.
func unknownEntityMessage(catalog FieldCatalog, entity string) string {
	names := make([]string, 0, len(catalog.ByEntity()))
	for name := range catalog.ByEntity() {
		names = append(names, name)
	}
	sort.Strings(names)
	return "unknown entity \"" + entity + "\" (valid entities: " + strings.Join(names, ", ") + ")"
}
