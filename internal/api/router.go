// Package api wires together all HTTP routes for the Project Data Registry
// backend.
//
// Route grouping philosophy:
//   - System probes (/health, /ready, /version) are unauthenticated so that
//     load balancers and Kubernetes gates can reach them without credentials.
//   - Everything under /api/v1/ runs behind the actor-identity middleware:
//     the platform gateway in front of this service handles access control,
//     and the bearer token here only attributes audit entries to a user.
//     PDR_AUTH_REQUIRED upgrades that to a hard 401 for deployments exposed
//     beyond the gateway.
//   - Mutation saves and CSV exports carry their own stricter rate limits on
//     top of the general limiter; both endpoints do real database work per
//     request.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/project-registry/project-registry/internal/audit"
	"github.com/project-registry/project-registry/internal/config"
	"github.com/project-registry/project-registry/internal/db/repositories"
	"github.com/project-registry/project-registry/internal/fields"
	"github.com/project-registry/project-registry/internal/middleware"
	"github.com/project-registry/project-registry/internal/mutation"
	"github.com/project-registry/project-registry/internal/mutation/handlers"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible
// for calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	shipper      audit.Shipper
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines and flushes the audit shipper. It
// should be called after the HTTP server has been shut down so that in-flight
// requests (and the audit writes they spawned) drain first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("audit shipper close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil when the
// dropdown cache is disabled.
func NewRouter(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	// Wrap *sql.DB with sqlx for the map-scan repositories
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Initialize repositories
	catalogRepo := repositories.NewCatalogRepository(sqlxDB)
	projectRepo := repositories.NewProjectRepository(sqlxDB)
	submoduleRepo := repositories.NewSubmoduleRepository(sqlxDB)
	lookupRepo := repositories.NewLookupRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(db)

	// Load the field catalog once; it is immutable for the process lifetime
	catalog := fields.NewCatalog(catalogRepo, rdb)
	if err := catalog.Load(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("load field catalog: %w", err)
	}

	// Register entity handlers and build the dispatcher
	registry := mutation.NewRegistry()
	handlers.Register(registry, catalog.ByEntity(), handlers.NewDBResolver(lookupRepo))
	dispatcher := mutation.NewDispatcher(registry, submoduleRepo)

	// Audit pipeline: optional external shippers on top of the audit_log table
	var shipper audit.Shipper
	if cfg.Audit.Enabled && len(cfg.Audit.Shippers) > 0 {
		ms, err := audit.NewMultiShipper(shipperConfigs(cfg.Audit.Shippers))
		if err != nil {
			return nil, nil, fmt.Errorf("configure audit shippers: %w", err)
		}
		shipper = ms
	}
	changeLog := audit.NewBuilder(catalog)
	auditLogger := audit.NewLogger(auditRepo, shipper)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes the optional Redis cache probe)
	router.GET("/ready", readinessHandler(db, rdb))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	mutationRateLimiter := middleware.NewRateLimiter(middleware.MutationRateLimitConfig())
	exportRateLimiter := middleware.NewRateLimiter(middleware.ExportRateLimitConfig())

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.RateLimitMiddleware(generalRateLimiter))
	apiV1.Use(middleware.ActorIdentity(cfg.Auth.JWTSecret))
	if cfg.Auth.Required {
		apiV1.Use(middleware.RequireActor(cfg.Auth.JWTSecret))
	}
	{
		// Field metadata reads
		apiV1.GET("/entities/:entity/fields", EntityFieldsHandler(catalog))
		apiV1.GET("/entities/:entity/fields/:field/options", FieldOptionsHandler(catalog))
		apiV1.GET("/entities/:entity/references/:field/options",
			ReferenceOptionsHandler(registry, lookupRepo))

		// Project list backing every tab
		apiV1.GET("/projects", ListProjectsHandler(projectRepo))

		// Entity rows backing the edit grid
		apiV1.GET("/projects/:projectId/entities/:entity/records",
			ListEntityRecordsHandler(registry, submoduleRepo, catalog))

		// Mutation saves (stricter rate limit: one save per second sustained)
		apiV1.POST("/projects/:projectId/entities/:entity/mutations",
			middleware.RateLimitMiddleware(mutationRateLimiter),
			SaveMutationsHandler(dispatcher, submoduleRepo, changeLog, auditLogger, cfg.Audit.Enabled))
		apiV1.POST("/projects/:projectId/mutations",
			middleware.RateLimitMiddleware(mutationRateLimiter),
			SaveAllMutationsHandler(dispatcher, submoduleRepo, changeLog, auditLogger, cfg.Audit.Enabled))

		// Audit trail reads and export
		apiV1.GET("/audit-log", ListAuditLogHandler(auditRepo))
		apiV1.GET("/audit-log/export",
			middleware.RateLimitMiddleware(exportRateLimiter),
			ExportAuditLogHandler(auditRepo))
	}

	bg := &BackgroundServices{
		shipper:      shipper,
		rateLimiters: []*middleware.RateLimiter{generalRateLimiter, mutationRateLimiter, exportRateLimiter},
	}

	return router, bg, nil
}

// shipperConfigs converts the viper-bound audit shipper config into the audit
// package's own config types.
func shipperConfigs(configs []config.AuditShipperConfig) []audit.ShipperConfig {
	out := make([]audit.ShipperConfig, 0, len(configs))
	for _, c := range configs {
		sc := audit.ShipperConfig{
			Enabled: c.Enabled,
			Type:    c.Type,
		}
		if c.Webhook != nil {
			sc.Webhook = &audit.WebhookConfig{
				URL:           c.Webhook.URL,
				Headers:       c.Webhook.Headers,
				Timeout:       time.Duration(c.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     c.Webhook.BatchSize,
				FlushInterval: time.Duration(c.Webhook.FlushInterval) * time.Second,
			}
		}
		if c.File != nil {
			sc.File = &audit.FileConfig{
				Path:       c.File.Path,
				MaxSizeMB:  c.File.MaxSizeMB,
				MaxBackups: c.File.MaxBackups,
			}
		}
		out = append(out, sc)
	}
	return out
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database and, when enabled, Redis connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks: {database, cache}"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also pings the dropdown cache; a
// broken cache degrades to direct database reads, so it reports as a check
// but never fails readiness.
func readinessHandler(db *sql.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				checks["cache"] = "unhealthy"
			} else {
				checks["cache"] = "healthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
