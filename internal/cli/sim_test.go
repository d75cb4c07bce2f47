package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/game"
	"github.com/roach88/rewind/internal/store"
)

var shortSim = []string{"--seconds", "3", "--rewind-at", "2", "--rewind-to", "1", "--seed", "3"}

func decodeSim(t *testing.T, out string) SimResult {
	t.Helper()
	var resp struct {
		Status string    `json:"status"`
		Data   SimResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestSimText(t *testing.T) {
	out, err := execute(t, NewSimCommand(textOpts()), shortSim...)
	require.NoError(t, err)
	assert.Contains(t, out, "(seed 3)")
	assert.Contains(t, out, "frames: ")
	assert.Contains(t, out, "destroyed at t=")
}

func TestSimPhases(t *testing.T) {
	out, err := execute(t, NewSimCommand(jsonOpts()), shortSim...)
	require.NoError(t, err)

	result := decodeSim(t, out)
	assert.Equal(t, uint64(3), result.Seed)
	assert.Positive(t, result.Frames[string(game.PhasePlay)])
	assert.Positive(t, result.Frames[string(game.PhaseScrub)])
	assert.Positive(t, result.Frames[string(game.PhaseReplay)])
	assert.InDelta(t, 3.0, result.FinalT, 0.1)
	assert.NotNil(t, result.Destroyed)
}

func TestSimStraightThrough(t *testing.T) {
	out, err := execute(t, NewSimCommand(jsonOpts()), "--seconds", "1", "--rewind-at", "0")
	require.NoError(t, err)

	result := decodeSim(t, out)
	assert.Zero(t, result.Frames[string(game.PhaseScrub)])
	assert.Zero(t, result.Pruned)
}

func TestSimDeterministic(t *testing.T) {
	run := func() string {
		buf := &bytes.Buffer{}
		cmd := &cobra.Command{}
		cmd.SetOut(buf)
		cmd.SetContext(context.Background())
		opts := &SimOptions{
			RootOptions: jsonOpts(),
			Script:      game.Script{Seconds: 3, Step: 0.05, RewindAt: 2, RewindTo: 1, ScrubRate: 4},
			Seed:        5,
			RunIDs:      fixedRunID("sim-run"),
		}
		require.NoError(t, runSim(opts, cmd))
		return buf.String()
	}
	assert.Equal(t, run(), run())
}

func TestSimInvalidScript(t *testing.T) {
	_, err := execute(t, NewSimCommand(textOpts()), "--rewind-at", "2", "--rewind-to", "5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid script")
}

func TestSimRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")

	out, err := execute(t, NewSimCommand(jsonOpts()), append(shortSim, "--db", dbPath)...)
	require.NoError(t, err)
	result := decodeSim(t, out)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "sim seed=3", run.Name)

	frames, err := st.ReadFrames(ctx, result.RunID)
	require.NoError(t, err)
	total := 0
	for _, n := range result.Frames {
		total += n
	}
	assert.Len(t, frames, total)
}
