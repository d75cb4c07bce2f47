package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rewind/internal/engine"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, graph_hash, graph_version, engine_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Name, run.GraphHash, run.GraphVersion, run.EngineVersion)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteFrame inserts one frame report and its times, writes and prunes in a
// single transaction.
//
// The run referenced by r.RunID must exist (foreign key constraint).
// Writing the same frame index twice is a no-op: children are only inserted
// when the frame row is new.
func (s *Store) WriteFrame(ctx context.Context, r *engine.FrameReport) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO frames (run_id, idx, wall_delta)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, idx) DO NOTHING
	`, r.RunID, int64(r.Index), r.WallDelta)
	if err != nil {
		return fmt.Errorf("write frame %d: %w", r.Index, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write frame %d: %w", r.Index, err)
	}
	if n == 0 {
		return tx.Commit()
	}

	if err := writeTimes(ctx, tx, r); err != nil {
		return err
	}
	if err := writeWrites(ctx, tx, r); err != nil {
		return err
	}
	if err := writePrunes(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write frame %d: commit: %w", r.Index, err)
	}
	return nil
}

func writeTimes(ctx context.Context, tx *sql.Tx, r *engine.FrameReport) error {
	for i, tt := range r.Times {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO frame_times (run_id, idx, ord, timeline, t, prev_t, paused, prev_paused)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.RunID,
			int64(r.Index),
			i,
			string(tt.Timeline),
			tt.Time.T,
			tt.Time.PrevT,
			boolInt(tt.Time.Paused),
			boolInt(tt.Time.PrevPaused),
		)
		if err != nil {
			return fmt.Errorf("write frame %d time %q: %w", r.Index, tt.Timeline, err)
		}
	}
	return nil
}

func writeWrites(ctx context.Context, tx *sql.Tx, r *engine.FrameReport) error {
	for i, w := range r.Writes {
		value, err := marshalValue(w.Op, w.Value)
		if err != nil {
			return fmt.Errorf("write frame %d sink %q: %w", r.Index, w.Sink, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO writes (run_id, idx, ord, sink, timeline, record, field, op, value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.RunID,
			int64(r.Index),
			i,
			w.Sink,
			string(w.Timeline),
			w.Record,
			w.Field,
			string(w.Op),
			value,
		)
		if err != nil {
			return fmt.Errorf("write frame %d sink %q: %w", r.Index, w.Sink, err)
		}
	}
	return nil
}

func writePrunes(ctx context.Context, tx *sql.Tx, r *engine.FrameReport) error {
	for i, p := range r.Pruned {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prunes (run_id, idx, ord, ledger, batch)
			VALUES (?, ?, ?, ?, ?)
		`, r.RunID, int64(r.Index), i, string(p.Ledger), int64(p.Batch))
		if err != nil {
			return fmt.Errorf("write frame %d prune %q: %w", r.Index, p.Ledger, err)
		}
	}
	return nil
}
