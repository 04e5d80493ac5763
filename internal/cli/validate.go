package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typedb/typedb-sub067/internal/compiler"
)

// ValidationResult holds validation results. Recursion is reported as a
// warning: recursive rules are legal but worth knowing about.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate a CUE schema directory without loading it",
		Long: `Validate the types, rules and data of a CUE directory.

Checks the type hierarchy, rule syntax and rule safety, and that every
instance matches its type. Rules taking part in recursion are reported as
warnings. Nothing is written to the store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	rep := newReporter(opts, cmd)

	loaded, loadErr := LoadSchemaDir(dir)
	if loadErr != nil {
		// A document that does not compile is reported like a failed check.
		if loadErr.Code != ErrCodeNotFound && loadErr.Code != ErrCodeNoFiles && loadErr.Code != ErrCodeScanError {
			return outputValidationErrors(rep, ValidationResult{Errors: []compiler.ValidationError{{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    loadErr.Line(),
			}}})
		}
		_ = rep.Report(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	rep.Logf("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	result := ValidateDocument(loaded.Document)
	if !result.Valid {
		return outputValidationErrors(rep, result)
	}
	return outputValidateSuccess(rep, result)
}

// ValidateDocument runs every document check and the recursion analysis.
func ValidateDocument(doc *compiler.Document) ValidationResult {
	result := ValidationResult{Errors: compiler.Validate(doc)}
	if len(result.Errors) > 0 {
		return result
	}

	warnings, err := compiler.AnalyzeRecursion(doc)
	if err != nil {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "rules",
			Message: err.Error(),
			Code:    compiler.ErrInvalidRule,
		})
		return result
	}
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, compiler.ValidationError{
			Field:   "rules." + strings.Join(w.Path, " -> "),
			Message: w.Message,
			Code:    compiler.ErrRecursiveRule,
		})
	}
	result.Valid = true
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(rep *Reporter, result ValidationResult) error {
	if rep.json() {
		return rep.Result(result)
	}

	fmt.Fprintln(rep.Out, "✓ Schema valid")
	for _, w := range result.Warnings {
		fmt.Fprintf(rep.Out, "  warning %s: %s: %s\n", w.Code, w.Field, w.Message)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(rep *Reporter, result ValidationResult) error {
	errs := result.Errors
	if rep.json() {
		err := rep.Document(Envelope{
			Status: "error",
			Data:   result,
			Error:  &Problem{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(rep.Out, "✗ Validation failed")
	fmt.Fprintln(rep.Out)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(rep.Out, "line %d\n", err.Line)
		}
		fmt.Fprintf(rep.Out, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
