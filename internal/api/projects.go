// projects.go implements the project list endpoint backing every entity tab.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/project-registry/project-registry/internal/db/repositories"
)

// @Summary      List projects
// @Description  Returns all projects ordered by name.
// @Tags         Projects
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "projects: []"
// @Failure      500  {object}  map[string]interface{}  "error: failed to list projects"
// @Router       /api/v1/projects [get]
// ListProjectsHandler returns all projects.
func ListProjectsHandler(repo *repositories.ProjectRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := repo.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	}
}
