package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/timeline"
)

// createTestStore creates a new store in a temporary directory.
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

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) Run {
	return Run{
		ID:            id,
		Name:          "test",
		GraphHash:     "test-hash",
		GraphVersion:  ir.GraphVersion,
		EngineVersion: ir.EngineVersion,
	}
}

// createTestReport creates a frame report with one time, one set, one
// remove and one prune.
func createTestReport(runID string, idx uint64) *engine.FrameReport {
	return &engine.FrameReport{
		RunID:     runID,
		Index:     idx,
		WallDelta: 0.5,
		Times: []engine.TimelineTime{
			{Timeline: "main", Time: timeline.EvaluationTime{T: 1.5, PrevT: 1, Paused: false, PrevPaused: true}},
		},
		Writes: []engine.SinkWrite{
			{Sink: "ship_hp", Timeline: "main", Record: "ship", Field: "hp", Op: sink.OpSet, Value: ir.Scalar(75)},
			{Sink: "ship_dock", Timeline: "main", Record: "ship", Field: "dock", Op: sink.OpRemove},
		},
		Pruned: []engine.PrunedBatch{
			{Ledger: "hp", Batch: 7},
		},
	}
}

// pragma returns the current value of a connection pragma.
func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		t.Fatalf("query %s: %v", name, err)
	}
	return value
}
