package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/autosync/internal/descriptor"
	"github.com/roach88/autosync/internal/engine"
)

// ErrCodeConfig marks a configuration that cannot be decoded or applied.
const ErrCodeConfig = "CONFIG"

// ValidationError is one problem found in a configuration.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Types       []string          `json:"types,omitempty"`
	SyncedTypes []string          `json:"synced_types,omitempty"`
	Descriptors int               `json:"descriptors"`
	Errors      []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a descriptor configuration",
		Long: `Load a descriptor configuration and resolve every type, link,
descriptor and sync pair it declares.

All resolution errors are reported, not only the first. The configuration
is read from the argument, or from --config when no argument is given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if path == "" {
		return outputValidateError(formatter, ErrCodeConfig, "no configuration given (argument or --config)")
	}

	formatter.VerboseLog("Loading %s", path)
	cfg, err := descriptor.LoadFile(path)
	if err != nil {
		var cfgErr *descriptor.ConfigError
		if errors.As(err, &cfgErr) {
			return outputValidationErrors(formatter, []ValidationError{toValidationError(err)})
		}
		return outputValidateError(formatter, ErrCodeConfig, err.Error())
	}

	reg := descriptor.NewRegistry()
	if err := cfg.Apply(reg); err != nil {
		return outputValidationErrors(formatter, splitValidationErrors(err))
	}

	result := ValidationResult{
		Valid:       true,
		Types:       reg.TypeNames(),
		SyncedTypes: reg.SyncedTypes(),
		Descriptors: len(cfg.Descriptors),
	}
	return outputValidateSuccess(formatter, result)
}

// splitValidationErrors flattens the joined error returned by Config.Apply.
func splitValidationErrors(err error) []ValidationError {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []ValidationError{toValidationError(err)}
	}
	var out []ValidationError
	for _, e := range joined.Unwrap() {
		out = append(out, toValidationError(e))
	}
	return out
}

func toValidationError(err error) ValidationError {
	ve := ValidationError{Code: ErrCodeConfig, Message: err.Error()}

	var cfgErr *descriptor.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		ve.Message = cfgErr.Message
		if cfgErr.Pos.IsValid() {
			ve.Line = cfgErr.Pos.Line()
		}
	case descriptor.IsResolutionError(err):
		ve.Code = string(engine.ErrCodeDescriptorResolution)
	case descriptor.IsUnknownType(err):
		ve.Code = string(engine.ErrCodeUnknownType)
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%d types, %d descriptors)\n",
		len(result.Types), result.Descriptors)
	for _, t := range result.SyncedTypes {
		formatter.VerboseLog("  synced: %s", t)
	}
	return nil
}

// outputValidateError outputs a single command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
