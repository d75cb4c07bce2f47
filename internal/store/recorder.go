package store

import (
	"context"
	"fmt"

	"github.com/roach88/rewind/internal/engine"
)

var _ engine.Recorder = (*Recorder)(nil)

// Recorder writes every frame report of one run to a Store.
//
// The run row is written lazily on the first frame. An empty Run.ID is
// taken from the first report's RunID.
type Recorder struct {
	store   *Store
	run     Run
	started bool
}

// NewRecorder creates a recorder for run.
func NewRecorder(s *Store, run Run) *Recorder {
	return &Recorder{store: s, run: run}
}

// RunID returns the id of the recorded run, empty until the first frame.
func (r *Recorder) RunID() string {
	return r.run.ID
}

// RecordFrame implements engine.Recorder.
func (r *Recorder) RecordFrame(ctx context.Context, rep *engine.FrameReport) error {
	if !r.started {
		if r.run.ID == "" {
			r.run.ID = rep.RunID
		}
		if err := r.store.WriteRun(ctx, r.run); err != nil {
			return err
		}
		r.started = true
	}
	if rep.RunID != r.run.ID {
		return fmt.Errorf("record frame %d: run id %q, recorder run %q", rep.Index, rep.RunID, r.run.ID)
	}
	return r.store.WriteFrame(ctx, rep)
}
