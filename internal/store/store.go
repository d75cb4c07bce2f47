package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"slices"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions (PRAGMA user_version):
// 0 - tables from schema.sql only
// 1 - per-field history index on writes
const currentSchemaVersion = 1

// traceColumns lists, per table, the columns the readers and writers in
// this package rely on. Open refuses a database that lacks any of them.
var traceColumns = map[string][]string{
	"runs":        {"id", "name", "graph_hash", "graph_version", "engine_version"},
	"frames":      {"run_id", "idx", "wall_delta"},
	"frame_times": {"run_id", "idx", "ord", "timeline", "t", "prev_t", "paused", "prev_paused"},
	"writes":      {"run_id", "idx", "ord", "sink", "timeline", "record", "field", "op", "value"},
	"prunes":      {"run_id", "idx", "ord", "ledger", "batch"},
}

// Store records evaluated frames in SQLite and reads them back in frame
// order. One Store holds any number of runs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the trace database at path, applies pragmas and
// migrations, and checks that every trace table has the expected columns.
// Opening an existing trace database again is a no-op.
//
// The connection runs in WAL mode with NORMAL sync, a 5s busy timeout and
// foreign keys enforced. Writes are serialised over a single connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	if err := setup(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func setup(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect to trace database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create trace tables: %w", err)
	}
	if err := checkSchema(db); err != nil {
		return err
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the connection. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// checkSchema fails when a table created by someone else shadows one of
// the trace tables.
func checkSchema(db *sql.DB) error {
	tables := make([]string, 0, len(traceColumns))
	for table := range traceColumns {
		tables = append(tables, table)
	}
	slices.Sort(tables)

	for _, table := range tables {
		have, err := tableColumns(db, table)
		if err != nil {
			return err
		}
		for _, col := range traceColumns[table] {
			if !slices.Contains(have, col) {
				return fmt.Errorf("table %s is not a trace table: missing column %s", table, col)
			}
		}
	}
	return nil
}

func tableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("describe %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(
			"CREATE INDEX IF NOT EXISTS idx_writes_record_field ON writes(run_id, record, field)",
		); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
