package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/store"
)

func TestPlayRunsForDuration(t *testing.T) {
	out, err := execute(t, NewPlayCommand(textOpts()), rockGraph, "--tick", "5ms", "--duration", "60ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Playing "+rockGraph)
	assert.Contains(t, out, "frame(s)")
	assert.Contains(t, out, "rock:")
}

func TestPlayJSON(t *testing.T) {
	out, err := execute(t, NewPlayCommand(jsonOpts()), rockGraph, "--tick", "5ms", "--duration", "60ms")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			RunID  string         `json:"run_id"`
			Frames uint64         `json:"frames"`
			State  map[string]any `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Positive(t, resp.Data.Frames)
	assert.Equal(t, map[string]any{"hp": float64(100), "alive": true}, resp.Data.State["rock"])
}

func TestPlayRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "play.db")

	out, err := execute(t, NewPlayCommand(jsonOpts()), rockGraph, "--tick", "5ms", "--duration", "60ms", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data struct {
			RunID  string `json:"run_id"`
			Frames uint64 `json:"frames"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	frames, err := st.ReadFrames(context.Background(), resp.Data.RunID)
	require.NoError(t, err)
	// The deadline can interrupt the last frame before it is recorded.
	require.NotEmpty(t, frames)
	assert.InDelta(t, float64(resp.Data.Frames), float64(len(frames)), 1)
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewPlayCommand(textOpts())
	cmd.SetContext(ctx)
	_, err := execute(t, cmd, rockGraph, "--tick", "5ms")
	require.NoError(t, err)
}

func TestPlayRejectsNonPositiveTick(t *testing.T) {
	_, err := execute(t, NewPlayCommand(textOpts()), rockGraph, "--tick", "0s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "tick must be positive")
}

func TestPlayRejectsInvalidGraph(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", typeMismatchGraph)

	_, err := execute(t, NewPlayCommand(textOpts()), path, "--tick", "5ms", "--duration", "10ms")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
