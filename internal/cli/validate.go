package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sanigraph/internal/library"
)

// ValidationIssue is one finding from library validation, flattened
// for CLI output.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool              `json:"valid"`
	Technologies int               `json:"technologies,omitempty"`
	Sources      []string          `json:"sources,omitempty"`
	Errors       []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <library>",
		Short: "Validate a technology library",
		Long: `Validate a technology library document without synthesizing.

Runs schema validation and catalog consistency checks (duplicate names,
transfer fractions summing to 1, sources without transfer behavior) and
reports every finding in one pass. Accepts .json and .csv libraries.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	lib, loadErrors := loadLibrary(path)
	if lib == nil && len(loadErrors) > 0 {
		// A load that failed before the document could be judged at
		// all (missing file, unsupported format) is a command error;
		// findings about the document itself are validation failures.
		if issue, fatal := fileIssue(loadErrors); fatal {
			return outputValidateError(formatter, issue.Code, issue.Message)
		}
		return outputValidationErrors(formatter, issues(loadErrors))
	}

	formatter.VerboseLog("library %s: %d technologies, %d sources", path, lib.Len(), len(lib.Sources()))

	return outputValidateSuccess(formatter, lib)
}

// fileIssue reports whether the errors describe a failure to read the
// library at all rather than findings about its content.
func fileIssue(errs []error) (ValidationIssue, bool) {
	if len(errs) != 1 {
		return ValidationIssue{}, false
	}
	issue := issueFromError(errs[0])
	switch issue.Code {
	case library.ErrCodeNotFound, library.ErrCodeGeneric:
		return issue, true
	}
	return ValidationIssue{}, false
}

// issues flattens loader errors into CLI validation issues.
func issues(errs []error) []ValidationIssue {
	out := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		out = append(out, issueFromError(err))
	}
	return out
}

func issueFromError(err error) ValidationIssue {
	var ve *library.ValidationError
	if errors.As(err, &ve) {
		issue := ValidationIssue{Code: ve.Code, Message: ve.Message}
		if ve.Pos.IsValid() {
			issue.Line = ve.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Code: library.ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, lib *library.Library) error {
	sources := lib.Sources()
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}

	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:        true,
			Technologies: lib.Len(),
			Sources:      names,
		}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Library valid (%d technologies, %d sources)\n", lib.Len(), len(sources))
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs the validation findings.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationIssue) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
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

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
