// mutations.go implements the save endpoint: one request carries every change
// the user made on an entity tab (sparse updates, creates, deletions) and is
// dispatched as a single bundle. The audit snapshot is captured strictly
// before dispatch and diffed strictly after; the audit write itself is
// fire-and-forget and never delays the response.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/project-registry/project-registry/internal/audit"
	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/middleware"
	"github.com/project-registry/project-registry/internal/mutation"
)

// @Summary      Save entity mutations
// @Description  Applies one bundle of updates, creates, and deletions for a single entity of a project. Deletes run first, then sparse updates, then creates. Creates whose lookup references do not resolve are skipped and reported, not failed.
// @Tags         Mutations
// @Accept       json
// @Produce      json
// @Param        projectId  path  int     true  "Project ID"
// @Param        entity     path  string  true  "Entity name (e.g. dscr, lender-commitments)"
// @Param        bundle     body  mutation.Bundle  true  "Mutation bundle: {updates?, creates?, deletedIds?}"
// @Success      200  {object}  map[string]interface{}  "success: true, data: [], skipped: [], action"
// @Failure      400  {object}  map[string]interface{}  "error: invalid payload or unknown entity"
// @Failure      500  {object}  map[string]interface{}  "error: failed to save changes"
// @Router       /api/v1/projects/{projectId}/entities/{entity}/mutations [post]
// SaveMutationsHandler handles mutation save requests for one entity.
func SaveMutationsHandler(
	dispatcher *mutation.Dispatcher,
	store mutation.Store,
	changeLog *audit.Builder,
	auditLogger *audit.Logger,
	auditEnabled bool,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseInt(c.Param("projectId"), 10, 64)
		if err != nil || projectID < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}

		entity := c.Param("entity")
		handler, ok := dispatcher.Registry().Get(entity)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": mutation.UnsupportedEntityError(entity, dispatcher.Registry().Names()).Error(),
			})
			return
		}

		var bundle mutation.Bundle
		if err := c.ShouldBindJSON(&bundle); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed mutation bundle"})
			return
		}
		if bundle.Empty() {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"message": "no changes",
			})
			return
		}

		ctx := c.Request.Context()

		// The snapshot must precede dispatch: old values for updates and
		// deletes are only observable before the writes land. A snapshot
		// failure degrades to an unaudited save rather than a failed one.
		var before audit.Snapshot
		snapshotOK := false
		if auditEnabled {
			before, err = audit.CaptureBefore(ctx, store, handler.Table(), projectID, bundle)
			if err != nil {
				slog.Warn("audit snapshot failed, save proceeds unaudited",
					"entity", entity, "project_id", projectID, "error", err)
			} else {
				snapshotOK = true
			}
		}

		result, err := dispatcher.Dispatch(ctx, entity, projectID, bundle)
		if err != nil {
			if errors.Is(err, mutation.ErrInvalidPayload) || errors.Is(err, mutation.ErrLookupMiss) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("mutation dispatch failed",
				"entity", entity, "project_id", projectID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save changes"})
			return
		}

		if auditEnabled && snapshotOK {
			audited := bundle.WithoutSkipped(result.Skipped)
			entries := changeLog.BuildChangeLog(entity, projectID, middleware.UserName(c), audited, before)
			auditLogger.Record(entries)
		}

		response := gin.H{
			"success": true,
			"data":    result.Records,
			"action":  result.Action,
		}
		if len(result.Skipped) > 0 {
			response["skipped"] = result.Skipped
			response["message"] = strconv.Itoa(len(result.Skipped)) + " record(s) skipped: unresolved references"
		}
		c.JSON(http.StatusOK, response)
	}
}

// @Summary      Save mutations across entities
// @Description  Applies one bundle per entity for a single project in one request. Bundles for different entities fan out concurrently; within each entity deletes still run first. The whole request is rejected before any write when a bundle names an unknown entity.
// @Tags         Mutations
// @Accept       json
// @Produce      json
// @Param        projectId  path  int                        true  "Project ID"
// @Param        bundles    body  map[string]mutation.Bundle true  "Bundles keyed by entity name"
// @Success      200  {object}  map[string]interface{}  "success: true, results: []"
// @Failure      400  {object}  map[string]interface{}  "error: invalid payload or unknown entity"
// @Failure      500  {object}  map[string]interface{}  "error: failed to save changes"
// @Router       /api/v1/projects/{projectId}/mutations [post]
// SaveAllMutationsHandler saves every touched tab of a project at once.
func SaveAllMutationsHandler(
	dispatcher *mutation.Dispatcher,
	store mutation.Store,
	changeLog *audit.Builder,
	auditLogger *audit.Logger,
	auditEnabled bool,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseInt(c.Param("projectId"), 10, 64)
		if err != nil || projectID < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}

		var bundles map[string]mutation.Bundle
		if err := c.ShouldBindJSON(&bundles); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed mutation bundles"})
			return
		}
		for entity, bundle := range bundles {
			if bundle.Empty() {
				delete(bundles, entity)
			}
		}
		if len(bundles) == 0 {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"message": "no changes",
			})
			return
		}

		// An unknown entity rejects the whole request before any write; the
		// per-entity bundles are otherwise independent.
		handlers := make(map[string]mutation.Handler, len(bundles))
		for entity := range bundles {
			h, ok := dispatcher.Registry().Get(entity)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": mutation.UnsupportedEntityError(entity, dispatcher.Registry().Names()).Error(),
				})
				return
			}
			handlers[entity] = h
		}

		ctx := c.Request.Context()

		snapshots := make(map[string]audit.Snapshot, len(bundles))
		if auditEnabled {
			for entity, bundle := range bundles {
				before, err := audit.CaptureBefore(ctx, store, handlers[entity].Table(), projectID, bundle)
				if err != nil {
					slog.Warn("audit snapshot failed, entity saves unaudited",
						"entity", entity, "project_id", projectID, "error", err)
					continue
				}
				snapshots[entity] = before
			}
		}

		results, err := dispatcher.DispatchAll(ctx, projectID, bundles)
		if err != nil {
			if errors.Is(err, mutation.ErrInvalidPayload) || errors.Is(err, mutation.ErrLookupMiss) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("mutation dispatch failed",
				"project_id", projectID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save changes"})
			return
		}

		if auditEnabled {
			var entries []models.AuditEntry
			user := middleware.UserName(c)
			for _, res := range results {
				before, ok := snapshots[res.Entity]
				if !ok {
					continue
				}
				audited := bundles[res.Entity].WithoutSkipped(res.Skipped)
				entries = append(entries, changeLog.BuildChangeLog(res.Entity, projectID, user, audited, before)...)
			}
			auditLogger.Record(entries)
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"results": results,
		})
	}
}
