package bench_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdlforge/fsmc/internal/bench"
	"github.com/hdlforge/fsmc/internal/compiler"
)

const loaderCUE = `
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
`

const loaderScenario = `
name: loader_start_pulse
machine: loader
description: One start pulse walks Idle through the delay chain to Done.
cycles:
  - set: {start: 1}
    expect: {state: Idle}
  - set: {start: 0}
    expect: {state: Loading}
  - expect: {state: anon_1, signals: {before_entering_done: 1}}
  - expect: {state: Done, signals: {before_entering_done: 0}}
`

func elaborateLoader(t *testing.T) *compiler.Elaborated {
	t.Helper()
	specs, err := compiler.ParseSource(loaderCUE)
	require.NoError(t, err)
	e, err := compiler.Elaborate(&specs[0])
	require.NoError(t, err)
	return e
}

func TestParseScenario_Valid(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(loaderScenario))
	require.NoError(t, err)
	assert.Equal(t, "loader_start_pulse", scn.Name)
	assert.Equal(t, "loader", scn.Machine)
	require.Len(t, scn.Cycles, 4)
	assert.Equal(t, uint64(1), scn.Cycles[0].Set["start"])
	require.NotNil(t, scn.Cycles[2].Expect)
	assert.Equal(t, "anon_1", scn.Cycles[2].Expect.State)
}

func TestParseScenario_RequiresNameMachineCycles(t *testing.T) {
	_, err := bench.ParseScenario([]byte(`machine: m`))
	assert.Error(t, err, "name is required")

	_, err = bench.ParseScenario([]byte("name: s\ncycles: [{}]"))
	assert.Error(t, err, "machine is required")

	_, err = bench.ParseScenario([]byte("name: s\nmachine: m"))
	assert.Error(t, err, "cycles are required")
}

func TestRun_PassingScenario(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(loaderScenario))
	require.NoError(t, err)

	result, err := bench.Run(scn, elaborateLoader(t))
	require.NoError(t, err)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "Idle", result.Trace[0].State)
	assert.Equal(t, "Done", result.Trace[3].State)
}

func TestRun_ExpectFailureCarriesCycle(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(`
name: wrong
machine: loader
cycles:
  - set: {start: 1}
  - expect: {state: Done}
`))
	require.NoError(t, err)

	_, err = bench.Run(scn, elaborateLoader(t))
	require.Error(t, err)
	assert.True(t, bench.IsExpectFailure(err))

	var se *bench.ScenarioError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Cycle)
}

func TestRun_UnknownSignalRejected(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(`
name: typo
machine: loader
cycles:
  - set: {strat: 1}
`))
	require.NoError(t, err)

	_, err = bench.Run(scn, elaborateLoader(t))
	require.Error(t, err)
	var se *bench.ScenarioError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, bench.ErrCodeUnknownSignal, se.Code)
}

func TestRun_WrongMachineRejected(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(`
name: mismatch
machine: elevator
cycles:
  - expect: {state: Idle}
`))
	require.NoError(t, err)

	_, err = bench.Run(scn, elaborateLoader(t))
	require.Error(t, err)
	var se *bench.ScenarioError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, bench.ErrCodeWrongMachine, se.Code)
}

func TestRunWithGolden_Loader(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(loaderScenario))
	require.NoError(t, err)

	require.NoError(t, bench.RunWithGolden(t, scn, elaborateLoader(t)))
}

func TestRenderTrace_Deterministic(t *testing.T) {
	scn, err := bench.ParseScenario([]byte(loaderScenario))
	require.NoError(t, err)

	r1, err := bench.Run(scn, elaborateLoader(t))
	require.NoError(t, err)
	r2, err := bench.Run(scn, elaborateLoader(t))
	require.NoError(t, err)
	assert.Equal(t, bench.RenderTrace(r1), bench.RenderTrace(r2))
}
