package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/project-registry/project-registry/internal/db/models"
)

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	old, new := "1.3", "1.45"
	created := time.Date(2025, 3, 15, 9, 30, 0, 0, time.Local)
	entries := []*models.AuditEntry{{
		ProjectName: "Sunrise Solar",
		UserName:    "analyst@example.com",
		ModuleName:  "Financing",
		SubModule:   "DSCR",
		FieldName:   "DSCR Value",
		OldValue:    &old,
		NewValue:    &new,
		ActionType:  models.ActionUpdate,
		CreatedAt:   created,
	}}

	var buf strings.Builder
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header plus one row", len(lines))
	}
	if lines[0] != "Timestamp,Project,User,Module,Sub-Module,Field,Old Value,New Value,Action" {
		t.Errorf("header = %q, column order is fixed", lines[0])
	}
	if lines[1] != "2025-03-15 09:30:00,Sunrise Solar,analyst@example.com,Financing,DSCR,DSCR Value,1.3,1.45,UPDATE" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestWriteCSV_NilValuesRenderEmpty(t *testing.T) {
	new := "NTP"
	entries := []*models.AuditEntry{{
		ProjectName: "Prairie Wind",
		ModuleName:  "Schedule",
		SubModule:   "Milestones",
		FieldName:   "Name",
		NewValue:    &new,
		ActionType:  models.ActionCreate,
	}}

	var buf strings.Builder
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if !strings.Contains(lines[1], ",Name,,NTP,CREATE") {
		t.Errorf("row = %q, a nil old value should be an empty cell", lines[1])
	}
}

func TestWriteCSV_QuotesEmbeddedCommas(t *testing.T) {
	old := "Acme, Inc."
	entries := []*models.AuditEntry{{
		ProjectName: "Sunrise Solar",
		ModuleName:  "Counterparties",
		SubModule:   "Parties",
		FieldName:   "Name",
		OldValue:    &old,
		ActionType:  models.ActionDelete,
	}}

	var buf strings.Builder
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"Acme, Inc."`) {
		t.Errorf("output = %q, embedded commas must be quoted", buf.String())
	}
}

func TestWriteCSV_EmptyEntriesStillWriteHeader(t *testing.T) {
	var buf strings.Builder
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("lines = %d, an empty export is just the header", len(lines))
	}
}
