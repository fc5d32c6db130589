package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hdlforge/fsmc/internal/compiler"
	"github.com/hdlforge/fsmc/internal/emit"
	"github.com/hdlforge/fsmc/internal/fsm"
	"github.com/hdlforge/fsmc/internal/ir"
	"github.com/hdlforge/fsmc/internal/store"
)

// EmitOptions holds flags for the emit command.
type EmitOptions struct {
	*RootOptions
	Machine string // machine to emit; optional when the dir has exactly one
	Output  string // output file path
	DB      string // optional run store path
}

// EmitResult is the JSON payload for a successful emit.
type EmitResult struct {
	Machine     string `json:"machine"`
	MachineHash string `json:"machine_hash"`
	DesignHash  string `json:"design_hash"`
	StateCount  int    `json:"state_count"`
	Emitted     string `json:"emitted"`
	RunID       string `json:"run_id,omitempty"`
}

// NewEmitCommand creates the emit command.
func NewEmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "emit <machines-dir>",
		Short: "Synthesize a machine and emit its module text",
		Long: `Synthesize a machine description and emit Verilog-flavoured module text.

With --db, the run is also recorded in the synthesis run store: machine and
design hashes, the state encoding, and the emitted text.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Machine, "machine", "m", "", "machine name (defaults to the only machine)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the run in this SQLite store")

	return cmd
}

func runEmit(opts *EmitOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
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
	text := emit.Module(spec.Name, elab.Inputs, elab.Outputs, elab.Design)

	machineHash, err := spec.MachineHash()
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "hashing failed", Err: err}
	}
	result := EmitResult{
		Machine:     spec.Name,
		MachineHash: machineHash,
		DesignHash:  ir.DesignHash(text),
		StateCount:  elab.Design.NumStates(),
		Emitted:     text,
	}

	if opts.DB != "" {
		runID, err := recordRun(opts.DB, elab, result)
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "run store", Err: err}
		}
		result.RunID = runID
		formatter.VerboseLog("Recorded run %s in %s", runID, opts.DB)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(text), 0o644); err != nil {
			return &ExitError{Code: ExitCommandError, Message: "write failed", Err: err}
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
		if opts.Format == "json" {
			result.Emitted = ""
			return formatter.Success(result)
		}
		return nil
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

// recordRun persists one synthesis run and returns its token.
func recordRun(dbPath string, elab *compiler.Elaborated, result EmitResult) (string, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer s.Close()

	encoding := make(map[string]int, elab.Design.NumStates())
	for _, state := range elab.Design.States() {
		code, _ := elab.Design.Code(state)
		encoding[fsm.StateName(state)] = code
	}
	return s.RecordRun(context.Background(), store.SynthRun{
		MachineName: result.Machine,
		MachineHash: result.MachineHash,
		DesignHash:  result.DesignHash,
		StateCount:  result.StateCount,
		Encoding:    encoding,
		Emitted:     result.Emitted,
	})
}

// loadOneMachine loads a directory and selects one machine by name, or the
// only machine when name is empty.
func loadOneMachine(dir, name string, formatter *OutputFormatter) (*ir.MachineSpec, error) {
	specs, err := compiler.LoadDir(dir)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return nil, &ExitError{Code: ExitCommandError, Message: "load failed", Err: err}
	}
	if name == "" {
		if len(specs) != 1 {
			msg := fmt.Sprintf("%d machines found; pick one with --machine", len(specs))
			formatter.Error(ErrCodeNoMachine, msg, nil)
			return nil, &ExitError{Code: ExitCommandError, Message: msg}
		}
		return &specs[0], nil
	}
	norm := ir.NormalizeName(name)
	for i := range specs {
		if specs[i].Name == norm {
			return &specs[i], nil
		}
	}
	msg := fmt.Sprintf("machine %q not found in %s", name, dir)
	formatter.Error(ErrCodeNoMachine, msg, nil)
	return nil, &ExitError{Code: ExitCommandError, Message: msg}
}
