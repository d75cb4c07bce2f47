package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/store"
)

func TestReplayMatchesRecording(t *testing.T) {
	dbPath := recordRock(t)

	out, err := execute(t, NewReplayCommand(textOpts()), rockScenario, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay rock_rewind (run rock-run): 8 frame(s)")
	assert.Contains(t, out, "✓ Replay matches recording")
}

func TestReplayMatchesRecordingJSON(t *testing.T) {
	dbPath := recordRock(t)

	out, err := execute(t, NewReplayCommand(jsonOpts()), rockScenario, "--db", dbPath, "--run", "rock-run")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.Empty(t, resp.Data.Divergences)
}

func TestReplayLeavesDatabaseUntouched(t *testing.T) {
	dbPath := recordRock(t)

	_, err := execute(t, NewReplayCommand(textOpts()), rockScenario, "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", dbPath, "--list")
	require.NoError(t, err)
	var resp struct {
		Data []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestReplayDetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trace.db")
	recorded := writeFile(t, dir, "recorded.yaml", fmtScenario("1"))
	_, err := execute(t, NewRunCommand(textOpts()), recorded, "--db", dbPath)
	require.NoError(t, err)

	changed := strings.Replace(fmtScenario("3"), "value: 1}]", "value: 3}]", 1)
	replayed := writeFile(t, dir, "changed.yaml", changed)

	out, err := execute(t, NewReplayCommand(textOpts()), replayed, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "graph hash: recorded")
	assert.Contains(t, out, "frame 0: 1 write(s)")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplayDivergenceJSON(t *testing.T) {
	dbPath := recordRock(t)

	out, err := execute(t, NewReplayCommand(jsonOpts()), dockScenario, "--db", dbPath, "--run", "rock-run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Deterministic)
	assert.NotEmpty(t, resp.Data.Divergences)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
}

func TestReplayMissingDatabase(t *testing.T) {
	_, err := execute(t, NewReplayCommand(textOpts()), rockScenario, "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := recordRock(t)

	_, err := execute(t, NewReplayCommand(textOpts()), rockScenario, "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

func frame(idx uint64, at float64, writes ...store.Write) store.Frame {
	return store.Frame{
		Index:     idx,
		WallDelta: 0.5,
		Times:     []store.FrameTime{{Timeline: "main", T: at}},
		Writes:    writes,
		Pruned:    []store.Prune{},
	}
}

func TestDiffFrames(t *testing.T) {
	hp := store.Write{Sink: "rock_hp", Record: "rock", Field: "hp", Op: "set", Value: "100"}
	want := []store.Frame{frame(0, 0.5, hp), frame(1, 1)}

	t.Run("identical", func(t *testing.T) {
		assert.Empty(t, diffFrames(want, []store.Frame{frame(0, 0.5, hp), frame(1, 1)}))
	})

	t.Run("frame count", func(t *testing.T) {
		diffs := diffFrames(want, want[:1])
		assert.Equal(t, []string{"frame count: recorded 2, replayed 1"}, diffs)
	})

	t.Run("times", func(t *testing.T) {
		diffs := diffFrames(want, []store.Frame{frame(0, 0.5, hp), frame(1, 2)})
		require.Len(t, diffs, 1)
		assert.True(t, strings.HasPrefix(diffs[0], "frame 1: times"), diffs[0])
	})

	t.Run("writes", func(t *testing.T) {
		other := hp
		other.Value = "50"
		diffs := diffFrames(want, []store.Frame{frame(0, 0.5, other), frame(1, 1)})
		assert.Equal(t, []string{"frame 0: 1 write(s), replayed 1 differing"}, diffs)
	})

	t.Run("pruned", func(t *testing.T) {
		got := []store.Frame{frame(0, 0.5, hp), frame(1, 1)}
		got[1].Pruned = []store.Prune{{Ledger: "hp", Batch: 1}}
		diffs := diffFrames(want, got)
		require.Len(t, diffs, 1)
		assert.Contains(t, diffs[0], "frame 1: pruned")
	})

	t.Run("capped", func(t *testing.T) {
		var long, shifted []store.Frame
		for i := range 20 {
			long = append(long, frame(uint64(i), float64(i)))
			shifted = append(shifted, frame(uint64(i), float64(i)+1))
		}
		assert.Len(t, diffFrames(long, shifted), maxDivergences)
	})
}
