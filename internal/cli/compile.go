package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hdlforge/fsmc/internal/compiler"
	"github.com/hdlforge/fsmc/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledMachine pairs a canonicalized machine with its content hash.
type CompiledMachine struct {
	Spec        ir.MachineSpec `json:"spec"`
	MachineHash string         `json:"machine_hash"`
}

// CompilationResult holds the compiled machines.
type CompilationResult struct {
	Machines []CompiledMachine `json:"machines"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <machines-dir>",
		Short: "Compile CUE machine descriptions to canonical IR",
		Long: `Compile CUE machine descriptions to canonical IR JSON.

The compiler parses CUE files, validates them against the machine schema,
and outputs the canonical, content-hashed IR used by emit and trace.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	specs, err := compiler.LoadDir(dir)
	if err != nil {
		formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "load failed", Err: err}
	}
	formatter.VerboseLog("Loaded %d machine(s) from %s", len(specs), dir)

	var allErrs []compiler.ValidationError
	result := CompilationResult{}
	for i := range specs {
		spec := &specs[i]
		formatter.VerboseLog("Compiling machine: %s", spec.Name)
		if errs := compiler.Validate(spec); len(errs) > 0 {
			allErrs = append(allErrs, errs...)
			continue
		}
		hash, err := spec.MachineHash()
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "hashing failed", Err: err}
		}
		result.Machines = append(result.Machines, CompiledMachine{
			Spec:        *spec.Canonicalize(),
			MachineHash: hash,
		})
	}

	if len(allErrs) > 0 {
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("%d validation error(s)", len(allErrs)), allErrs)
		return &ExitError{Code: ExitFailure, Message: "validation failed"}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "marshal failed", Err: err}
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(out, '\n'), 0o644); err != nil {
			return &ExitError{Code: ExitCommandError, Message: "write failed", Err: err}
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
