// logger.go persists audit entries in the background. Audit writes never block
// or fail the save that produced them; a broken audit pipeline surfaces
// through logs and the audit_write_failures_total counter instead.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/safego"
	"github.com/project-registry/project-registry/internal/telemetry"
)

const writeTimeout = 10 * time.Second

// entryWriter is the persistence surface the logger writes through.
type entryWriter interface {
	CreateEntries(ctx context.Context, entries []models.AuditEntry) error
}

// Logger writes audit entries asynchronously and optionally ships them to
// external destinations.
type Logger struct {
	repo    entryWriter
	shipper Shipper
}

// NewLogger creates an audit logger. shipper may be nil when no external
// destination is configured.
func NewLogger(repo entryWriter, shipper Shipper) *Logger {
	return &Logger{repo: repo, shipper: shipper}
}

// Record persists entries in a fire-and-forget goroutine. The caller's save
// has already committed by the time this runs; nothing here can undo it.
func (l *Logger) Record(entries []models.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		l.write(ctx, entries)
	})
}

func (l *Logger) write(ctx context.Context, entries []models.AuditEntry) {
	if err := l.repo.CreateEntries(ctx, entries); err != nil {
		telemetry.AuditWriteFailuresTotal.Inc()
		slog.Error("audit write failed",
			"entries", len(entries),
			"module", entries[0].ModuleName,
			"sub_module", entries[0].SubModule,
			"error", err)
		return
	}
	for range entries {
		telemetry.AuditEntriesWrittenTotal.Inc()
	}

	if l.shipper == nil {
		return
	}
	for i := range entries {
		if err := l.shipper.Ship(ctx, &entries[i]); err != nil {
			slog.Warn("audit shipper error", "error", err)
		}
	}
}
