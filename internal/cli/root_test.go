package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdlforge/fsmc/internal/testutil"
)

// writeLoaderDir writes the loader machine fixture into a temp dir and
// returns the dir path. Shared by the command tests.
func writeLoaderDir(t *testing.T) string {
	t.Helper()
	return testutil.WriteDir(t, map[string]string{"loader.cue": `
machine: loader: {
	inputs: [{name: "start", width: 1}]
	states: [
		{name: "Idle", statements: [{"if": {signal: "start", then: [{goto: "Loading"}]}}]},
		{name: "Loading"},
		{name: "Done"},
	]
	delays: [{name: "Loading", target: "Done", delay: 2}]
	observers: [{kind: "before_entering", state: "Done"}]
}
`})
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fsmc", cmd.Use)
	assert.Contains(t, cmd.Long, "state machine")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "emit", "trace", "test"}

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
}

func TestEmitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	emitCmd, _, err := cmd.Find([]string{"emit"})
	require.NoError(t, err)

	outputFlag := emitCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	dbFlag := emitCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	machineFlag := traceCmd.Flags().Lookup("machine")
	require.NotNil(t, machineFlag)
	assert.Equal(t, "m", machineFlag.Shorthand)

	cyclesFlag := traceCmd.Flags().Lookup("cycles")
	require.NotNil(t, cyclesFlag)
	assert.Equal(t, "8", cyclesFlag.DefValue)

	driveFlag := traceCmd.Flags().Lookup("drive")
	require.NotNil(t, driveFlag)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	traceFlag := testCmd.Flags().Lookup("trace")
	require.NotNil(t, traceFlag)
	assert.Equal(t, "false", traceFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
