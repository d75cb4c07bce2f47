package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/harness"
	"github.com/roach88/rewind/internal/store"
)

const inlineScenario = `
name: inline_hp
source: |
  timeline: main: {}
  ledger: hp: {kind: "scalar", timeline: "main", stops: [{t: 0, value: 1}]}
  node: hp_now: {type: "animate", ledger: "hp"}
  sink: rock_hp: {type: "try_apply", node: "hp_now", record: "rock", field: "hp"}
steps:
  - advance: { frames: 2, delta: 0.5 }
  - expect: { record: rock, field: hp, value: %s }
`

func fmtScenario(expected string) string {
	return fmt.Sprintf(inlineScenario, expected)
}

func scenarioFile(t *testing.T, expected string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "inline.yaml", fmtScenario(expected))
}

func TestRunScenarioText(t *testing.T) {
	out, err := execute(t, NewRunCommand(textOpts()), rockScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario rock_rewind (run rock-run)")
	assert.Contains(t, out, "[0] main t=0.5 prev=0")
	assert.Contains(t, out, "set rock.hp = 50 (rock_hp)")
	assert.Contains(t, out, "pruned hit from hp")
	assert.Contains(t, out, "✓ rock_rewind")
}

func TestRunScenarioJSON(t *testing.T) {
	out, err := execute(t, NewRunCommand(jsonOpts()), rockScenario)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "rock-run", resp.Data.RunID)
	assert.Len(t, resp.Data.Trace, 8)
	assert.Equal(t, map[string]any{"hp": float64(100), "alive": true}, resp.Data.State["rock"])
}

func TestRunScenarioFailure(t *testing.T) {
	path := scenarioFile(t, "2")

	out, err := execute(t, NewRunCommand(textOpts()), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ inline_hp")
	assert.Contains(t, out, "rock.hp: expected 2, got 1")
}

func TestRunScenarioFailureJSON(t *testing.T) {
	path := scenarioFile(t, "2")

	out, err := execute(t, NewRunCommand(jsonOpts()), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
}

func TestRunScenarioMissingFile(t *testing.T) {
	_, err := execute(t, NewRunCommand(textOpts()), "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunScenarioFreshRunID(t *testing.T) {
	path := scenarioFile(t, "1")
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	opts := &RunOptions{RootOptions: textOpts(), RunIDs: fixedRunID("cli-run")}
	require.NoError(t, runScenarioFile(opts, path, cmd))
	assert.Contains(t, buf.String(), "scenario inline_hp (run cli-run)")
}

func TestRunScenarioRecords(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	_, err := execute(t, NewRunCommand(textOpts()), rockScenario, "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, "rock-run")
	require.NoError(t, err)
	assert.Equal(t, "rock_rewind", run.Name)

	scenario, err := harness.LoadScenario(rockScenario)
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, result.GraphHash, run.GraphHash)

	frames, err := st.ReadFrames(ctx, "rock-run")
	require.NoError(t, err)
	assert.Len(t, frames, 8)

	history, err := st.ReadFieldHistory(ctx, "rock-run", "rock", "hp")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "100", history[0].Value)
	assert.Equal(t, "50", history[1].Value)
	assert.Equal(t, "100", history[2].Value)
}
