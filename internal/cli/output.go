package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/typedb/typedb-sub067/internal/resolve"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a query, scenario or validation failed
	ExitCommandError = 2 // bad arguments, missing paths, unreadable store
)

// ExitError ends a command with a process exit status.
type ExitError struct {
	Status  int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(status int, message string) *ExitError {
	return &ExitError{Status: status, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(status int, message string, err error) *ExitError {
	return &ExitError{Status: status, Message: message, Err: err}
}

// ExitStatus is the process exit status for err. Errors that carry no
// status fail with ExitFailure.
func ExitStatus(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}
	return ExitFailure
}

// Envelope is the JSON document every command writes in json format.
type Envelope struct {
	Status string   `json:"status"` // "ok" or "error"
	Data   any      `json:"data,omitempty"`
	Error  *Problem `json:"error,omitempty"`
}

// Problem describes a failed command. Codes are either loader codes such
// as E201 or reasoner codes such as UNBOUNDED_NEGATION.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Reporter writes command results and failures in the selected format.
// Diagnostics go to Diag so they never interleave with a JSON document.
type Reporter struct {
	Format  string
	Out     io.Writer
	Diag    io.Writer // defaults to Out
	Verbose bool
}

func newReporter(opts *RootOptions, cmd *cobra.Command) *Reporter {
	return &Reporter{
		Format:  opts.Format,
		Out:     cmd.OutOrStdout(),
		Diag:    cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}
}

func (r *Reporter) json() bool { return r.Format == "json" }

func (r *Reporter) diag() io.Writer {
	if r.Diag != nil {
		return r.Diag
	}
	return r.Out
}

// Result writes a successful result. In text format a fmt.Stringer
// renders itself.
func (r *Reporter) Result(data any) error {
	if r.json() {
		return r.encode(Envelope{Status: "ok", Data: data})
	}
	if s, ok := data.(fmt.Stringer); ok {
		_, err := io.WriteString(r.Out, s.String())
		return err
	}
	_, err := fmt.Fprintln(r.Out, data)
	return err
}

// Report writes a failure. Text output shows details only when verbose;
// string maps print one sorted key per line.
func (r *Reporter) Report(code, message string, details any) error {
	if r.json() {
		return r.encode(Envelope{Status: "error", Error: &Problem{Code: code, Message: message, Details: details}})
	}
	if _, err := fmt.Fprintf(r.Out, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if !r.Verbose || details == nil {
		return nil
	}
	if m, ok := details.(map[string]string); ok {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			fmt.Fprintf(r.Out, "  %s: %s\n", k, m[k])
		}
		return nil
	}
	_, err := fmt.Fprintf(r.Out, "Details: %v\n", details)
	return err
}

// Fail reports err under code and returns the ExitError the command should
// end with.
func (r *Reporter) Fail(status int, code, message string, err error) error {
	_ = r.Report(code, err.Error(), nil)
	return WrapExitError(status, message, err)
}

// FailResolve reports a resolution failure. Reasoner errors report their
// own code with the failing query and details.
func (r *Reporter) FailResolve(err error) error {
	var re *resolve.ReasonerError
	if !errors.As(err, &re) {
		return r.Fail(ExitFailure, ErrCodeGeneric, "resolution failed", err)
	}
	details := maps.Clone(re.Details)
	if re.Query != "" {
		if details == nil {
			details = make(map[string]string)
		}
		details["query"] = re.Query
	}
	_ = r.Report(string(re.Code), re.Message, details)
	return WrapExitError(ExitFailure, "resolution failed", err)
}

// Logf writes a diagnostic line when verbose.
func (r *Reporter) Logf(format string, args ...any) {
	if r.Verbose {
		fmt.Fprintf(r.diag(), format+"\n", args...)
	}
}

// Document writes env as indented JSON whatever the format.
func (r *Reporter) Document(env Envelope) error {
	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

func (r *Reporter) encode(env Envelope) error {
	return json.NewEncoder(r.Out).Encode(env)
}
