package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rewind", cmd.Use)
	assert.Contains(t, cmd.Long, "rewound")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "compile", "run", "test", "replay", "play", "sim", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	levelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "info", levelFlag.DefValue)
}

func TestEnvironmentDefaults(t *testing.T) {
	t.Setenv("REWIND_FORMAT", "json")
	t.Setenv("REWIND_TRACE_DB", "/tmp/trace.db")
	t.Setenv("REWIND_TICK", "40ms")
	t.Setenv("REWIND_SEED", "9")

	cmd := NewRootCommand()
	assert.Equal(t, "json", cmd.PersistentFlags().Lookup("format").DefValue)

	for _, name := range []string{"run", "sim", "play", "trace", "replay"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, "/tmp/trace.db", sub.Flags().Lookup("db").DefValue, name)
	}

	play, _, err := cmd.Find([]string{"play"})
	require.NoError(t, err)
	assert.Equal(t, "40ms", play.Flags().Lookup("tick").DefValue)

	sim, _, err := cmd.Find([]string{"sim"})
	require.NoError(t, err)
	assert.Equal(t, "9", sim.Flags().Lookup("seed").DefValue)
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("REWIND_TICK", "soon")

	cmd := NewRootCommand()
	_, err := execute(t, cmd, "validate", rockGraph)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid environment")
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--format", "yaml", "validate", rockGraph)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestInvalidLogLevel(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--log-level", "loud", "validate", rockGraph)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestRootExecutesSubcommand(t *testing.T) {
	cmd := NewRootCommand()
	out, err := execute(t, cmd, "--format", "text", "validate", rockGraph)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Graph valid")
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	for _, name := range []string{"update", "filter", "golden"} {
		assert.NotNil(t, testCmd.Flags().Lookup(name), name)
	}
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("JSON"))
}
