package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue/token"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/typedb/typedb-sub067/internal/cache"
	"github.com/typedb/typedb-sub067/internal/compiler"
	"github.com/typedb/typedb-sub067/internal/resolve"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/store"
	"github.com/typedb/typedb-sub067/internal/traversal"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeStoreFailed = "E006" // Store open, read or write error

	// Document compile errors, one per section
	ErrCodeMalformedType = "E100" // types section does not compile
	ErrCodeMalformedRule = "E110" // rules section does not compile
	ErrCodeMalformedData = "E126" // data section does not compile
	ErrCodeInvalidValue  = "E127" // value of an unsupported kind (e.g. float)

	// Query errors
	ErrCodeQueryParse    = "E201" // query does not parse
	ErrCodeNoExplanation = "E202" // no explanation recorded for a key
)

// LoadError represents an error that occurred while loading a schema
// directory.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0 when unknown.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadSchemaDir compiles a CUE schema directory. Every failure comes back
// as a *LoadError carrying a CLI error code.
func LoadSchemaDir(dir string) (*compiler.Loaded, *LoadError) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	loaded, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return loaded, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	section, _, _ := strings.Cut(field, ".")
	switch section {
	case "cue":
		return ErrCodeLoadFailed
	case "types":
		return ErrCodeMalformedType
	case "rules":
		return ErrCodeMalformedRule
	case "data":
		return ErrCodeMalformedData
	case "value":
		return ErrCodeInvalidValue
	default:
		return ErrCodeGeneric
	}
}

// session is an open store with the schema installed in it and a resolver
// over both.
type session struct {
	store    *store.Store
	schema   *schema.Schema
	resolver *resolve.Resolver
}

// openSession opens the configured database, loads its schema and builds
// a resolver with the configured limits. With persist set, every new
// explanation is written back to the store.
func openSession(ctx context.Context, opts *RootOptions, persist bool) (*session, error) {
	cfg := opts.Config
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s (run load first)", cfg.Database))
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	sch, err := compiler.LoadSchema(ctx, st)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load schema from database", err)
	}

	structural := cache.NewStructuralCache(
		traversal.NewPlanner(sch),
		traversal.NewExecutor(st, traversal.WithPageSize(cfg.PageSize)),
	)
	ropts := []resolve.Option{
		resolve.WithMaxIterations(cfg.MaxIterations),
		resolve.WithExplanationStore(st),
	}
	if !cfg.Tracing {
		ropts = append(ropts, resolve.WithTracerProvider(noop.NewTracerProvider()))
	}
	if persist {
		ropts = append(ropts, resolve.WithExplanationSink(st))
	}

	slog.Debug("session opened",
		"database", cfg.Database,
		"types", len(sch.Types()),
		"rules", len(sch.Rules()),
		"max_iterations", cfg.MaxIterations,
		"page_size", cfg.PageSize,
		"persist_explanations", persist)

	return &session{
		store:    st,
		schema:   sch,
		resolver: resolve.New(sch, structural, ropts...),
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
