package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdlforge/fsmc/internal/store"
)

func TestParseDrives(t *testing.T) {
	drives, err := parseDrives([]string{"0:start=1", "2:start=0", "0:mode=3"})
	require.NoError(t, err)
	assert.Equal(t, map[int]map[string]uint64{
		0: {"start": 1, "mode": 3},
		2: {"start": 0},
	}, drives)
}

func TestParseDrivesRejectsMalformed(t *testing.T) {
	cases := []string{"start=1", "x:start=1", "-1:start=1", "0:start", "0:=1", "0:start=zz"}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, err := parseDrives([]string{c})
			require.Error(t, err)
		})
	}
}

func TestTraceLoaderStartPulse(t *testing.T) {
	dir := writeLoaderDir(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--cycles", "5", "--drive", "0:start=1", "--drive", "1:start=0"})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "machine: loader")
	assert.Contains(t, out, "cycle 0: state=Idle before_entering_done=0")
	assert.Contains(t, out, "cycle 1: state=Loading before_entering_done=0")
	assert.Contains(t, out, "cycle 2: state=anon_1 before_entering_done=1")
	assert.Contains(t, out, "cycle 3: state=Done before_entering_done=0")
	assert.Contains(t, out, "cycle 4: state=Done before_entering_done=0")
}

func TestTraceRecordsRun(t *testing.T) {
	dir := writeLoaderDir(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--cycles", "2", "--db", dbPath})

	require.NoError(t, cmd.Execute())

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.LatestRun(context.Background(), "loader")
	require.NoError(t, err)
	assert.Equal(t, 4, run.StateCount)
	assert.Contains(t, run.Emitted, "module loader (")
}

func TestTraceUnknownSignal(t *testing.T) {
	dir := writeLoaderDir(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--drive", "0:ghost=1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "UNKNOWN_SIGNAL")
}

func TestTraceDriveBeyondCycles(t *testing.T) {
	dir := writeLoaderDir(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--cycles", "2", "--drive", "5:start=1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceRejectsZeroCycles(t *testing.T) {
	dir := writeLoaderDir(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--cycles", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
