package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadRuns returns every recorded run ordered by id.
// UUIDv7 ids sort in creation order.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, graph_hash, graph_version, engine_version
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.GraphHash, &r.GraphVersion, &r.EngineVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, graph_hash, graph_version, engine_version
		FROM runs
		WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.GraphHash, &r.GraphVersion, &r.EngineVersion)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// ReadLatestRun returns the most recently created run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) ReadLatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, graph_hash, graph_version, engine_version
		FROM runs
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`).Scan(&r.ID, &r.Name, &r.GraphHash, &r.GraphVersion, &r.EngineVersion)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// ReadFrames returns every frame of a run in index order, each with its
// times, writes and prunes in evaluation order.
//
// Returns an empty slice (not nil) if the run has no frames.
func (s *Store) ReadFrames(ctx context.Context, runID string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, wall_delta
		FROM frames
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []Frame{}
	byIdx := make(map[uint64]int)
	for rows.Next() {
		var idx int64
		f := Frame{RunID: runID, Times: []FrameTime{}, Writes: []Write{}, Pruned: []Prune{}}
		if err := rows.Scan(&idx, &f.WallDelta); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Index = uint64(idx)
		byIdx[f.Index] = len(frames)
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}

	if err := s.readTimes(ctx, runID, frames, byIdx); err != nil {
		return nil, err
	}
	if err := s.readWrites(ctx, runID, frames, byIdx); err != nil {
		return nil, err
	}
	if err := s.readPrunes(ctx, runID, frames, byIdx); err != nil {
		return nil, err
	}
	return frames, nil
}

// ReadFieldHistory returns every recorded write to one record field in frame
// order.
//
// Returns an empty slice (not nil) if the field was never written.
func (s *Store) ReadFieldHistory(ctx context.Context, runID, record, field string) ([]Write, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, sink, timeline, record, field, op, value
		FROM writes
		WHERE run_id = ? AND record = ? AND field = ?
		ORDER BY idx ASC, ord ASC
	`, runID, record, field)
	if err != nil {
		return nil, fmt.Errorf("query field history: %w", err)
	}
	defer rows.Close()

	writes := []Write{}
	for rows.Next() {
		w, err := scanWrite(rows)
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field history: %w", err)
	}
	return writes, nil
}

func (s *Store) readTimes(ctx context.Context, runID string, frames []Frame, byIdx map[uint64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, timeline, t, prev_t, paused, prev_paused
		FROM frame_times
		WHERE run_id = ?
		ORDER BY idx ASC, ord ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query frame times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx                int64
			ft                 FrameTime
			paused, prevPaused int
		)
		if err := rows.Scan(&idx, &ft.Timeline, &ft.T, &ft.PrevT, &paused, &prevPaused); err != nil {
			return fmt.Errorf("scan frame time: %w", err)
		}
		ft.Paused = paused != 0
		ft.PrevPaused = prevPaused != 0
		if i, ok := byIdx[uint64(idx)]; ok {
			frames[i].Times = append(frames[i].Times, ft)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate frame times: %w", err)
	}
	return nil
}

func (s *Store) readWrites(ctx context.Context, runID string, frames []Frame, byIdx map[uint64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, sink, timeline, record, field, op, value
		FROM writes
		WHERE run_id = ?
		ORDER BY idx ASC, ord ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query writes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWrite(rows)
		if err != nil {
			return err
		}
		if i, ok := byIdx[w.Frame]; ok {
			frames[i].Writes = append(frames[i].Writes, w)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate writes: %w", err)
	}
	return nil
}

func (s *Store) readPrunes(ctx context.Context, runID string, frames []Frame, byIdx map[uint64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, ledger, batch
		FROM prunes
		WHERE run_id = ?
		ORDER BY idx ASC, ord ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query prunes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx, batch int64
			p          Prune
		)
		if err := rows.Scan(&idx, &p.Ledger, &batch); err != nil {
			return fmt.Errorf("scan prune: %w", err)
		}
		p.Batch = uint64(batch)
		if i, ok := byIdx[uint64(idx)]; ok {
			frames[i].Pruned = append(frames[i].Pruned, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate prunes: %w", err)
	}
	return nil
}

func scanWrite(rows *sql.Rows) (Write, error) {
	var (
		w     Write
		idx   int64
		value sql.NullString
	)
	if err := rows.Scan(&idx, &w.Sink, &w.Timeline, &w.Record, &w.Field, &w.Op, &value); err != nil {
		return Write{}, fmt.Errorf("scan write: %w", err)
	}
	w.Frame = uint64(idx)
	w.Value = value.String
	return w, nil
}
