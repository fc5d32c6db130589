package bench

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hdlforge/fsmc/internal/compiler"
)

// RunWithGolden executes a scenario and compares its rendered trace against
// the golden file testdata/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/bench -update
//
// The golden trace is the source of truth for expected cycle-by-cycle
// behavior; goldie fails the test when the trace drifts.
func RunWithGolden(t *testing.T, scn *Scenario, e *compiler.Elaborated) error {
	t.Helper()

	result, err := Run(scn, e)
	if err != nil {
		return err
	}

	g := goldie.New(t)
	g.Assert(t, scn.Name, []byte(RenderTrace(result)))
	return nil
}
