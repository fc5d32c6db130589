package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hdlforge/fsmc/internal/bench"
	"github.com/hdlforge/fsmc/internal/compiler"
	"github.com/hdlforge/fsmc/internal/emit"
	"github.com/hdlforge/fsmc/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Machine string
	Cycles  int
	Drives  []string // "cycle:signal=value"
	DB      string   // optional run store path
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <machines-dir>",
		Short: "Simulate a machine and print its waveform",
		Long: `Simulate a synthesized machine for a number of cycles and print the
state and output values per cycle.

Inputs are driven with --drive, one flag per change, in the form
cycle:signal=value. A driven value persists until the next change:

  fsmc trace specs/ --machine loader --cycles 6 --drive 0:start=1 --drive 1:start=0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Machine, "machine", "m", "", "machine name (defaults to the only machine)")
	cmd.Flags().IntVarP(&opts.Cycles, "cycles", "n", 8, "number of cycles to simulate")
	cmd.Flags().StringArrayVar(&opts.Drives, "drive", nil, "input change as cycle:signal=value")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the synthesis run in this SQLite store")

	return cmd
}

func runTrace(opts *TraceOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Cycles < 1 {
		return &ExitError{Code: ExitCommandError, Message: "cycles must be at least 1"}
	}

	spec, err := loadOneMachine(dir, opts.Machine, formatter)
	if err != nil {
		return err
	}
	elab, err := compiler.Elaborate(spec)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "elaboration failed", Err: err}
	}

	if opts.DB != "" {
		text := emit.Module(spec.Name, elab.Inputs, elab.Outputs, elab.Design)
		machineHash, err := spec.MachineHash()
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "hashing failed", Err: err}
		}
		runID, err := recordRun(opts.DB, elab, EmitResult{
			Machine:     spec.Name,
			MachineHash: machineHash,
			DesignHash:  ir.DesignHash(text),
			StateCount:  elab.Design.NumStates(),
			Emitted:     text,
		})
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "run store", Err: err}
		}
		formatter.VerboseLog("Recorded run %s in %s", runID, opts.DB)
	}

	drives, err := parseDrives(opts.Drives)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "bad --drive", Err: err}
	}

	// A trace is a scenario with stimulus and no expectations.
	scn := &bench.Scenario{
		Name:    "trace",
		Machine: spec.Name,
		Cycles:  make([]bench.CycleStep, opts.Cycles),
	}
	for cycle, set := range drives {
		if cycle >= opts.Cycles {
			return &ExitError{
				Code:    ExitCommandError,
				Message: fmt.Sprintf("--drive cycle %d beyond --cycles %d", cycle, opts.Cycles),
			}
		}
		scn.Cycles[cycle].Set = set
	}

	result, err := bench.Run(scn, elab)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "simulation failed", Err: err}
	}

	if opts.Format == "json" {
		return formatter.Success(result.Trace)
	}
	fmt.Fprint(cmd.OutOrStdout(), bench.RenderTrace(result))
	return nil
}

// parseDrives parses --drive flags into per-cycle input maps.
func parseDrives(drives []string) (map[int]map[string]uint64, error) {
	out := make(map[int]map[string]uint64)
	for _, d := range drives {
		cyclePart, assign, ok := strings.Cut(d, ":")
		if !ok {
			return nil, fmt.Errorf("drive %q: expected cycle:signal=value", d)
		}
		cycle, err := strconv.Atoi(cyclePart)
		if err != nil || cycle < 0 {
			return nil, fmt.Errorf("drive %q: bad cycle %q", d, cyclePart)
		}
		name, valPart, ok := strings.Cut(assign, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("drive %q: expected signal=value", d)
		}
		val, err := strconv.ParseUint(valPart, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("drive %q: bad value %q", d, valPart)
		}
		if out[cycle] == nil {
			out[cycle] = make(map[string]uint64)
		}
		out[cycle][name] = val
	}
	return out, nil
}
