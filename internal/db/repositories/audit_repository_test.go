package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/project-registry/project-registry/internal/db/models"
)

var errDB = errors.New("db error")

// ---------------------------------------------------------------------------
// Column definitions (positional order must match Scan calls)
// ---------------------------------------------------------------------------

// ListEntries: a.id, a.project_id, a.module_name, a.sub_module, a.field_name,
// a.old_value, a.new_value, a.action_type, a.user_name, a.created_at, p.name
var auditCols = []string{
	"id", "project_id", "module_name", "sub_module", "field_name",
	"old_value", "new_value", "action_type", "user_name", "created_at", "name",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(db), mock
}

func strPtr(s string) *string { return &s }

func sampleAuditRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow("e1", int64(1), "Financing", "DSCR", "DSCR Value",
			"1.3", "1.45", "UPDATE", "analyst@example.com", time.Now(), "Sunrise Solar")
}

// ---------------------------------------------------------------------------
// CreateEntries
// ---------------------------------------------------------------------------

func TestCreateEntries_AssignsIDAndTimestamp(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	entries := []models.AuditEntry{{
		ProjectID:  1,
		ModuleName: "Financing",
		SubModule:  "DSCR",
		FieldName:  "DSCR Value",
		OldValue:   strPtr("1.3"),
		NewValue:   strPtr("1.45"),
		ActionType: models.ActionUpdate,
		UserName:   "analyst@example.com",
	}}
	if err := repo.CreateEntries(context.Background(), entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries[0].ID == "" {
		t.Error("entry id was not assigned")
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at was not assigned")
	}
}

func TestCreateEntries_OneInsertPerField(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))

	entries := []models.AuditEntry{
		{ProjectID: 1, ModuleName: "Financing", SubModule: "DSCR", FieldName: "Scenario", ActionType: models.ActionCreate},
		{ProjectID: 1, ModuleName: "Financing", SubModule: "DSCR", FieldName: "DSCR Value", ActionType: models.ActionCreate},
	}
	if err := repo.CreateEntries(context.Background(), entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateEntries_Empty(t *testing.T) {
	repo, mock := newAuditRepo(t)

	if err := repo.CreateEntries(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statements should run for an empty batch: %v", err)
	}
}

func TestCreateEntries_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errDB)

	entries := []models.AuditEntry{{ProjectID: 1, FieldName: "Scenario", ActionType: models.ActionCreate}}
	if err := repo.CreateEntries(context.Background(), entries); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListEntries
// ---------------------------------------------------------------------------

func TestListEntries_NoFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT a.id.*FROM audit_log").
		WithArgs(10, 0).
		WillReturnRows(sampleAuditRow())

	entries, total, err := repo.ListEntries(context.Background(), AuditFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].ProjectName != "Sunrise Solar" {
		t.Errorf("project name = %q, want joined name", entries[0].ProjectName)
	}
}

func TestListEntries_AllFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT.*FROM audit_log").
		WithArgs("Sunrise Solar", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT a.id.*FROM audit_log").
		WithArgs("Sunrise Solar", start, end, 10, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	entries, total, err := repo.ListEntries(context.Background(), AuditFilters{
		ProjectName: strPtr("Sunrise Solar"),
		StartDate:   &start,
		EndDate:     &end,
	}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(entries) != 0 {
		t.Errorf("total = %d len = %d, want 0/0", total, len(entries))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListEntries_CountError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_log").WillReturnError(errDB)

	if _, _, err := repo.ListEntries(context.Background(), AuditFilters{}, 10, 0); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestListEntries_QueryError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT a.id.*FROM audit_log").WillReturnError(errDB)

	if _, _, err := repo.ListEntries(context.Background(), AuditFilters{}, 10, 0); err == nil {
		t.Error("expected error, got nil")
	}
}
