package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/metasync/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Rules    int                        `json:"rules"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate a CUE configuration",
		Long: `Compile the schema and sync rules in a CUE configuration directory and
check them for duplicate ids, flows without targets and conflicting
enforcement.

Warnings are reported but do not fail validation.

Exit codes:
  0 - Configuration valid
  1 - Validation errors found
  2 - Configuration missing or failed to compile`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, configDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("config directory not found: %s", configDir), nil)
	}

	cfg, err := compiler.LoadDir(configDir)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", cfg.FileCount, configDir)

	result := ValidationResult{Valid: true, Rules: len(cfg.Rules)}
	for _, finding := range compiler.Validate(cfg) {
		if finding.Severity == compiler.SeverityError {
			result.Errors = append(result.Errors, finding)
			result.Valid = false
		} else {
			result.Warnings = append(result.Warnings, finding)
		}
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputCompileError reports a configuration that failed to compile,
// with its source position when the compiler has one.
func outputCompileError(formatter *OutputFormatter, err error) error {
	var details interface{}
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) && cErr.Pos.IsValid() {
		details = map[string]interface{}{
			"file":   cErr.Pos.Filename(),
			"line":   cErr.Pos.Line(),
			"column": cErr.Pos.Column(),
			"field":  cErr.Field,
		}
	}
	_ = formatter.Error(ErrCodeCompileFailed, err.Error(), details)
	return WrapExitError(ExitCommandError, "failed to compile config", err)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "warning %s: %s: %s\n", w.Code, w.Field, w.Message)
	}
	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%d sync rule(s))\n", result.Rules)
	return nil
}

// outputValidationErrors outputs validation findings.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, finding := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", finding.Code, finding.Field, finding.Message)
	}
	for _, finding := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s: %s: %s\n", finding.Code, finding.Field, finding.Message)
	}

	return exitErr
}
