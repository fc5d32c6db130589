package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hdlforge/fsmc/internal/bench"
	"github.com/hdlforge/fsmc/internal/compiler"
	"github.com/hdlforge/fsmc/internal/ir"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Trace bool // print the trace of failing scenarios
}

// ScenarioResult is the per-scenario outcome for JSON output.
type ScenarioResult struct {
	Scenario string `json:"scenario"`
	Machine  string `json:"machine"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
}

// TestReport summarizes a test run.
type TestReport struct {
	Total   int              `json:"total"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Results []ScenarioResult `json:"results"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <machines-dir> <scenarios-dir>",
		Short: "Run YAML scenarios against synthesized machines",
		Long: `Run every scenario in a directory against the machines it names.

Scenarios are YAML files (*.yaml, *.yml) scripting inputs and expected
settled values cycle by cycle. Exit code 1 means at least one scenario
failed; 2 means the machines or scenarios could not be loaded.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the trace of failing scenarios")

	return cmd
}

func runTest(opts *TestOptions, machinesDir, scenariosDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	specs, err := compiler.LoadDir(machinesDir)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "load failed", Err: err}
	}
	byName := make(map[string]*ir.MachineSpec, len(specs))
	for i := range specs {
		byName[specs[i].Name] = &specs[i]
	}

	paths, err := findScenarioFiles(scenariosDir)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "load failed", Err: err}
	}
	if len(paths) == 0 {
		msg := fmt.Sprintf("no scenario files in %s", scenariosDir)
		formatter.Error(ErrCodeLoadFailed, msg, nil)
		return &ExitError{Code: ExitCommandError, Message: msg}
	}

	report := TestReport{}
	// Elaboration is deterministic, so each machine is elaborated once and
	// shared across scenarios. The simulator is fresh per run.
	elaborated := make(map[string]*compiler.Elaborated)

	for _, path := range paths {
		scn, err := bench.LoadScenario(path)
		if err != nil {
			formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "load failed", Err: err}
		}

		res := ScenarioResult{Scenario: scn.Name, Machine: scn.Machine}
		elab, ok := elaborated[scn.Machine]
		if !ok {
			spec, found := byName[ir.NormalizeName(scn.Machine)]
			if !found {
				res.Error = fmt.Sprintf("machine %q not found in %s", scn.Machine, machinesDir)
			} else if e, err := compiler.Elaborate(spec); err != nil {
				res.Error = err.Error()
			} else {
				elab = e
				elaborated[scn.Machine] = e
			}
		}

		var runResult *bench.Result
		if res.Error == "" {
			runResult, err = bench.Run(scn, elab)
			if err != nil {
				res.Error = err.Error()
			}
		}
		res.Passed = res.Error == ""

		report.Total++
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)

		if opts.Format != "json" {
			if res.Passed {
				fmt.Fprintf(cmd.OutOrStdout(), "PASS %s\n", scn.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", scn.Name, res.Error)
				if opts.Trace && runResult != nil {
					fmt.Fprint(cmd.OutOrStdout(), bench.RenderTrace(runResult))
				}
			}
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d scenarios: %d passed, %d failed\n",
			report.Total, report.Passed, report.Failed)
	}

	if report.Failed > 0 {
		return &ExitError{
			Code:    ExitFailure,
			Message: fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total),
		}
	}
	return nil
}

// findScenarioFiles lists *.yaml and *.yml files in dir, sorted by name.
func findScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
