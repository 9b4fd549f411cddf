// csv.go renders audit entries as a CSV document for export downloads.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/project-registry/project-registry/internal/db/models"
)

// csvHeader is the fixed export column order. Consumers build spreadsheets on
// top of these positions, so the order never changes.
var csvHeader = []string{
	"Timestamp",
	"Project",
	"User",
	"Module",
	"Sub-Module",
	"Field",
	"Old Value",
	"New Value",
	"Action",
}

const csvTimeLayout = "2006-01-02 15:04:05"

// WriteCSV streams entries to w as CSV, header first. Nil old and new values
// render as empty cells.
func WriteCSV(w io.Writer, entries []*models.AuditEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.CreatedAt.Local().Format(csvTimeLayout),
			e.ProjectName,
			e.UserName,
			e.ModuleName,
			e.SubModule,
			e.FieldName,
			deref(e.OldValue),
			deref(e.NewValue),
			e.ActionType,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
