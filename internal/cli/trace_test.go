package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/store"
)

// recordRock records the rock_rewind scenario into a fresh database.
func recordRock(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	_, err := execute(t, NewRunCommand(textOpts()), rockScenario, "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func TestTraceMissingDatabase(t *testing.T) {
	_, err := execute(t, NewTraceCommand(textOpts()), "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceRequiresDatabase(t *testing.T) {
	_, err := execute(t, NewTraceCommand(textOpts()))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--db is required")
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = execute(t, NewTraceCommand(textOpts()), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no runs recorded")

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTraceLatestRunText(t *testing.T) {
	dbPath := recordRock(t)

	out, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run rock-run (rock_rewind)")
	assert.Contains(t, out, "[0] dt=0.5 main t=0.5 prev=0")
	assert.Contains(t, out, "set rock.hp 50 (rock_hp)")
	assert.Contains(t, out, "pruned batch 1 from hp")
	assert.Contains(t, out, "Stats: 8 frame(s)")
}

func TestTraceRunJSON(t *testing.T) {
	dbPath := recordRock(t)

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", dbPath, "--run", "rock-run")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "rock-run", resp.Data.Run.ID)
	assert.Len(t, resp.Data.Frames, 8)
	assert.Equal(t, 8, resp.Data.Stats.Frames)
	assert.Equal(t, 2, resp.Data.Stats.Pruned)
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := recordRock(t)

	_, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: nope")
}

func TestTraceFieldHistory(t *testing.T) {
	dbPath := recordRock(t)

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", dbPath, "--field", "rock.hp")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.History, 3)
	assert.Empty(t, resp.Data.Frames)

	values := make([]string, 0, 3)
	for _, w := range resp.Data.History {
		values = append(values, w.Value)
	}
	assert.Equal(t, []string{"100", "50", "100"}, values)
}

func TestTraceInvalidField(t *testing.T) {
	dbPath := recordRock(t)

	_, err := execute(t, NewTraceCommand(textOpts()), "--db", dbPath, "--field", "hp")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "want record.field")
}

func TestTraceList(t *testing.T) {
	dbPath := recordRock(t)
	_, err := execute(t, NewRunCommand(textOpts()), dockScenario, "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, NewTraceCommand(jsonOpts()), "--db", dbPath, "--list")
	require.NoError(t, err)

	var resp struct {
		Data []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	// Ordered by id.
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "dock-run", resp.Data[0].ID)
	assert.Equal(t, "rock-run", resp.Data[1].ID)
}
