package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/sink"
)

// marshalValue converts a sink write value to canonical JSON TEXT.
// Removals carry no value and are stored as NULL.
func marshalValue(op sink.Op, v any) (sql.NullString, error) {
	if op == sink.OpRemove {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// boolInt stores booleans as SQLite integers.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
