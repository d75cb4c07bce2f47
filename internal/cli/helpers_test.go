package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/testutil"
)

var (
	testdataDir  = filepath.Join("..", "harness", "testdata")
	scenariosDir = filepath.Join(testdataDir, "scenarios")
	rockGraph    = filepath.Join(testdataDir, "graphs", "rock.cue")
	rockScenario = filepath.Join(scenariosDir, "rock_rewind.yaml")
	dockScenario = filepath.Join(scenariosDir, "dock_sequence.yaml")
	goldenDir    = filepath.Join(testdataDir, "golden")
)

// execute runs cmd with args and returns what it printed to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeFile writes content to name under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func textOpts() *RootOptions { return &RootOptions{Format: "text"} }
func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }

func fixedRunID(id string) *testutil.FixedRunIDGenerator {
	return testutil.NewFixedRunIDGenerator(id)
}
