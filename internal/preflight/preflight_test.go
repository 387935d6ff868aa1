package preflight

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbsmedya/gorelations/internal/config"
	"github.com/dbsmedya/gorelations/internal/logger"
	"github.com/dbsmedya/gorelations/internal/schema"
)

const (
	tablesQuery  = `FROM information_schema.TABLES WHERE TABLE_NAME IN`
	columnsQuery = `FROM information_schema.COLUMNS WHERE TABLE_NAME IN`
	indexQuery   = `FROM information_schema.STATISTICS WHERE TABLE_NAME IN`
)

func createTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.FromConfig(&config.SchemaConfig{
		Tables: map[string]config.TableConfig{
			"factories": {Relations: []config.RelationConfig{
				{Table: "machines", Type: "hasMany", ForeignKey: "factory_id"},
			}},
			"machines": {Relations: []config.RelationConfig{
				{Table: "factories", Type: "belongsTo", ForeignKey: "factory_id"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	return s
}

func newTestChecker(t *testing.T) (*Checker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	checker, err := NewChecker(db, "plant", createTestSchema(t), logger.NewNop())
	if err != nil {
		t.Fatalf("NewChecker failed: %v", err)
	}
	return checker, mock
}

func TestNewChecker_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer func() { _ = db.Close() }()
	s := createTestSchema(t)

	if _, err := NewChecker(nil, "plant", s, nil); err == nil {
		t.Error("expected error for nil database")
	}
	if _, err := NewChecker(db, "", s, nil); err == nil {
		t.Error("expected error for empty database name")
	}
	if _, err := NewChecker(db, "plant", nil, nil); err == nil {
		t.Error("expected error for nil schema")
	}
	checker, err := NewChecker(db, "plant", s, nil)
	if err != nil {
		t.Fatalf("NewChecker failed: %v", err)
	}
	if checker.logger == nil {
		t.Error("expected a default logger")
	}
}

func TestRunAll_Success(t *testing.T) {
	checker, mock := newTestChecker(t)

	mock.ExpectQuery(tablesQuery).
		WithArgs("factories", "machines", "plant").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("factories").AddRow("machines"))
	mock.ExpectQuery(columnsQuery).
		WithArgs("factories", "machines", "plant").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME"}).
			AddRow("factories", "id").
			AddRow("factories", "name").
			AddRow("machines", "id").
			AddRow("machines", "factory_id"))
	mock.ExpectQuery(indexQuery).
		WithArgs("machines", "plant").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME"}).AddRow("machines", "id"))

	unindexed, err := checker.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if want := []string{"machines.factory_id"}; !reflect.DeepEqual(unindexed, want) {
		t.Errorf("unindexed = %v, want %v", unindexed, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestRunAll_MissingTable(t *testing.T) {
	checker, mock := newTestChecker(t)

	mock.ExpectQuery(tablesQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("factories"))

	_, err := checker.RunAll(context.Background())
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Check != CheckTableExistence {
		t.Errorf("Check = %s", pe.Check)
	}
	if !reflect.DeepEqual(pe.Tables, []string{"machines"}) {
		t.Errorf("Tables = %v", pe.Tables)
	}
	if !strings.Contains(pe.Error(), "machines") {
		t.Errorf("message does not name the table: %s", pe.Error())
	}
}

func TestRunAll_MissingRequiredColumn(t *testing.T) {
	checker, mock := newTestChecker(t)
	checker.RequireColumns("machines", "deleted_at")

	mock.ExpectQuery(tablesQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("factories").AddRow("machines"))
	mock.ExpectQuery(columnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME"}).
			AddRow("factories", "id").
			AddRow("machines", "id").
			AddRow("machines", "factory_id"))

	_, err := checker.RunAll(context.Background())
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Check != CheckColumnExistence {
		t.Errorf("Check = %s", pe.Check)
	}
	if !reflect.DeepEqual(pe.Tables, []string{"machines.deleted_at"}) {
		t.Errorf("Tables = %v", pe.Tables)
	}
}

func TestValidateTablesExist_QueryError(t *testing.T) {
	checker, mock := newTestChecker(t)
	mock.ExpectQuery(tablesQuery).WillReturnError(errors.New("connection reset"))

	err := checker.ValidateTablesExist(context.Background(), []string{"factories"})
	if err == nil || !strings.Contains(err.Error(), "failed to query tables") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTablesExist_Empty(t *testing.T) {
	checker, mock := newTestChecker(t)
	if err := checker.ValidateTablesExist(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no query expected: %v", err)
	}
}

func TestError_Format(t *testing.T) {
	e := &Error{Check: "X", Message: "broken"}
	if e.Error() != "X: broken" {
		t.Errorf("got %q", e.Error())
	}
	e.Tables = []string{"a"}
	if e.Error() != "X: broken (tables: [a])" {
		t.Errorf("got %q", e.Error())
	}
}
