// auditlog.go implements the audit trail query surface: a paginated
// newest-first listing and a CSV export of the same filtered range.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/project-registry/project-registry/internal/audit"
	"github.com/project-registry/project-registry/internal/db/repositories"
)

const filterDateLayout = "2006-01-02"

// exportMaxRows bounds a single CSV export. The UI filters by project and
// date range, so a well-formed export is far below this.
const exportMaxRows = 100000

// @Summary      List audit entries
// @Description  Returns field-level audit entries newest-first, optionally filtered by project name and date range. endDate is inclusive of the whole day.
// @Tags         Audit
// @Produce      json
// @Param        projectName  query  string  false  "Filter by project name"
// @Param        startDate    query  string  false  "Start date (YYYY-MM-DD)"
// @Param        endDate      query  string  false  "End date (YYYY-MM-DD, inclusive)"
// @Param        limit        query  int     false  "Maximum results (default 50, max 500)"
// @Param        offset       query  int     false  "Offset for pagination (default 0)"
// @Success      200  {object}  map[string]interface{}  "entries: [], meta: {limit, offset, total}"
// @Failure      400  {object}  map[string]interface{}  "error: invalid date filter"
// @Failure      500  {object}  map[string]interface{}  "error: failed to query audit log"
// @Router       /api/v1/audit-log [get]
// ListAuditLogHandler handles audit trail queries.
func ListAuditLogHandler(repo *repositories.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseAuditFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			limit = 50
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			offset = 0
		}

		entries, total, err := repo.ListEntries(c.Request.Context(), filters, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit log"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entries": entries,
			"meta": gin.H{
				"limit":  limit,
				"offset": offset,
				"total":  total,
			},
		})
	}
}

// @Summary      Export audit entries as CSV
// @Description  Streams the filtered audit entries as a CSV attachment with a fixed column order and local-time timestamps.
// @Tags         Audit
// @Produce      text/csv
// @Param        projectName  query  string  false  "Filter by project name"
// @Param        startDate    query  string  false  "Start date (YYYY-MM-DD)"
// @Param        endDate      query  string  false  "End date (YYYY-MM-DD, inclusive)"
// @Success      200  {string}  string  "CSV attachment"
// @Failure      400  {object}  map[string]interface{}  "error: invalid date filter"
// @Failure      500  {object}  map[string]interface{}  "error: failed to export audit log"
// @Router       /api/v1/audit-log/export [get]
// ExportAuditLogHandler handles audit trail CSV exports.
func ExportAuditLogHandler(repo *repositories.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseAuditFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		entries, _, err := repo.ListEntries(c.Request.Context(), filters, exportMaxRows, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export audit log"})
			return
		}

		filename := "audit-log-" + time.Now().Format("20060102") + ".csv"
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Status(http.StatusOK)

		if err := audit.WriteCSV(c.Writer, entries); err != nil {
			// Headers are already out; all we can do is cut the response short.
			c.Abort()
		}
	}
}

// parseAuditFilters reads the shared query filters. The end date is a
// calendar day, so it extends to the last instant of that day.
func parseAuditFilters(c *gin.Context) (repositories.AuditFilters, error) {
	var filters repositories.AuditFilters

	if name := c.Query("projectName"); name != "" {
		filters.ProjectName = &name
	}
	if s := c.Query("startDate"); s != "" {
		t, err := time.ParseInLocation(filterDateLayout, s, time.Local)
		if err != nil {
			return filters, &filterError{param: "startDate", value: s}
		}
		filters.StartDate = &t
	}
	if s := c.Query("endDate"); s != "" {
		t, err := time.ParseInLocation(filterDateLayout, s, time.Local)
		if err != nil {
			return filters, &filterError{param: "endDate", value: s}
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filters.EndDate = &end
	}
	return filters, nil
}

type filterError struct {
	param string
	value string
}

func (e *filterError) Error() string {
	return "invalid " + e.param + " " + strconv.Quote(e.value) + ": expected YYYY-MM-DD"
}
