package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/metasync/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testCreatedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// createTestPendingExport creates an Update Pending Export with the given changes.
func createTestPendingExport(csoID uuid.UUID, changes ...model.AttributeChange) *model.PendingExport {
	pe := &model.PendingExport{
		ID:                      uuid.New(),
		ConnectedSystemID:       1,
		ConnectedSystemObjectID: csoID,
		ChangeType:              model.PendingExportUpdate,
		Status:                  model.PendingExportPending,
		CreatedAt:               testCreatedAt,
	}
	for _, c := range changes {
		pe.AddChange(c)
	}
	return pe
}

// createTestChange creates a Pending attribute change with a fresh id.
func createTestChange(attrID int, ct model.AttributeChangeType, v model.Value) model.AttributeChange {
	return model.AttributeChange{
		ID:          uuid.New(),
		AttributeID: attrID,
		ChangeType:  ct,
		Value:       v,
		Status:      model.AttributeChangePending,
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
