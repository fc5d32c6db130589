package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Code: ExitCommandError, Message: "load failed"}
	assert.Equal(t, "load failed", err.Error())

	wrapped := &ExitError{Code: ExitFailure, Message: "validation failed", Err: errors.New("E201: no states")}
	assert.Equal(t, "validation failed: E201: no states", wrapped.Error())
	assert.Equal(t, "E201: no states", wrapped.Unwrap().Error())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError}))
	assert.Equal(t, ExitFailure, GetExitCode(&ExitError{Code: ExitFailure}))

	// Wrapped ExitErrors still resolve.
	wrapped := fmt.Errorf("outer: %w", &ExitError{Code: ExitCommandError})
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))

	// Plain errors default to failure.
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
}

func TestFormatterSuccessJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"states": 4}))

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Nil(t, response.Error)
}

func TestFormatterErrorJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error(ErrCodeNoMachine, "machine not found", nil))

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeNoMachine, response.Error.Code)
	assert.Equal(t, "machine not found", response.Error.Message)
}

func TestFormatterErrorText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Error(ErrCodeLoadFailed, "no CUE files", nil))
	assert.Contains(t, buf.String(), "Error [E002]: no CUE files")
}

func TestVerboseLogGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("elaborated %d states", 4)
	assert.Empty(t, out.String(), "verbose logs must not pollute JSON output")
	assert.Equal(t, "elaborated 4 states\n", errOut.String())
}

func TestVerboseLogSuppressedWhenQuiet(t *testing.T) {
	out := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: out, Verbose: false}

	f.VerboseLog("should not appear")
	assert.Empty(t, out.String())
}
