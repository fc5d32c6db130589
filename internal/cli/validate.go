package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hdlforge/fsmc/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <machines-dir>",
		Short: "Validate machine descriptions without emitting logic",
		Long: `Validate CUE machine descriptions without synthesizing.

Performs syntax checking and schema validation only. Faster than emit for
development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
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
	for i := range specs {
		allErrs = append(allErrs, compiler.Validate(&specs[i])...)
	}

	if len(allErrs) > 0 {
		if opts.Format == "json" {
			formatter.Success(ValidationResult{Valid: false, Errors: allErrs})
		} else {
			for _, e := range allErrs {
				fmt.Fprintln(cmd.OutOrStdout(), e.Error())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d validation error(s)\n", len(allErrs))
		}
		return &ExitError{Code: ExitFailure, Message: "validation failed"}
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d machine(s) valid\n", len(specs))
	return nil
}
