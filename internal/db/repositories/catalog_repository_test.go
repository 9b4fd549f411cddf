package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var fieldCols = []string{"entity_name", "field_key", "display_label", "data_type", "sort_order"}
var optionCols = []string{"entity_name", "field_key", "option_value"}

func newCatalogRepo(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCatalogRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestListFields(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	mock.ExpectQuery("SELECT entity_name, field_key, display_label, data_type, sort_order\\s+FROM field_catalog").
		WillReturnRows(sqlmock.NewRows(fieldCols).
			AddRow("dscr", "scenario", "Scenario", "dropdown", 1).
			AddRow("dscr", "dscr_value", "DSCR Value", "number", 2).
			AddRow("milestones", "name", "Milestone", "text", 1))

	fields, err := repo.ListFields(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("len(fields) = %d, want 3", len(fields))
	}
	if fields[0].FieldKey != "scenario" || fields[0].DataType != "dropdown" {
		t.Errorf("first field = %+v", fields[0])
	}
}

func TestGetFields_FiltersByEntity(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	mock.ExpectQuery("FROM field_catalog\\s+WHERE entity_name").
		WithArgs("dscr").
		WillReturnRows(sqlmock.NewRows(fieldCols).
			AddRow("dscr", "scenario", "Scenario", "dropdown", 1))

	fields, err := repo.GetFields(context.Background(), "dscr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 1 || fields[0].EntityName != "dscr" {
		t.Errorf("fields = %+v, want one dscr descriptor", fields)
	}
}

func TestGetDropdownOptions(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	mock.ExpectQuery("FROM dropdown_options").
		WithArgs("dscr", "scenario").
		WillReturnRows(sqlmock.NewRows(optionCols).
			AddRow("dscr", "scenario", "P50").
			AddRow("dscr", "scenario", "P90"))

	opts, err := repo.GetDropdownOptions(context.Background(), "dscr", "scenario")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 2 || opts[0].OptionValue != "P50" {
		t.Errorf("opts = %+v, want P50 and P90", opts)
	}
}

func TestGetDropdownOptions_NonDropdownPairIsEmpty(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	mock.ExpectQuery("FROM dropdown_options").
		WithArgs("dscr", "dscr_value").
		WillReturnRows(sqlmock.NewRows(optionCols))

	opts, err := repo.GetDropdownOptions(context.Background(), "dscr", "dscr_value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 0 {
		t.Errorf("opts = %+v, want empty", opts)
	}
}
