package store

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pragma(t, s, tt.name); got != tt.expected {
				t.Errorf("%s = %q, expected %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	if got := pragma(t, s, "user_version"); got != "1" {
		t.Errorf("user_version = %s, expected %d", got, currentSchemaVersion)
	}
}

func TestOpen_Tables(t *testing.T) {
	s := createTestStore(t)

	for table, want := range traceColumns {
		have, err := tableColumns(s.db, table)
		if err != nil {
			t.Fatalf("describe %s: %v", table, err)
		}
		if len(have) != len(want) {
			t.Errorf("table %s has columns %v, expected %v", table, have, want)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var idx string
	err = s2.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_writes_record_field'",
	).Scan(&idx)
	if err != nil {
		t.Errorf("migration index missing: %v", err)
	}
}

func TestOpen_RejectsForeignSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE frames (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create foreign table: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err == nil {
		s.Close()
		t.Fatal("Open() accepted a database with a foreign frames table")
	}
	if !strings.Contains(err.Error(), "table frames is not a trace table") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClose_ZeroStore(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on zero store: %v", err)
	}
}
