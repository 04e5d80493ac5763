package resolve

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/reactive"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// ReasonerError represents an error that aborts a resolution.
//
// Reasoner errors include:
//   - Unbounded negation: a negated block or inequality uses variables the
//     enclosing conjunction never binds
//   - Illegal atom conversion: an atom cannot be viewed as another shape
//   - Domain mismatch: an answer cannot be mapped back to the querying frame
//   - Iteration limit: reiteration did not reach a fixpoint in time
//   - Protocol violation: a stream was pulled while a pull was outstanding
type ReasonerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Query is the query or sub-query being resolved, if known.
	Query string

	// Rule is the rule being applied, if any.
	Rule string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying error.
	Err error
}

// ErrorCode categorizes reasoner errors.
type ErrorCode string

const (
	// ErrCodeUnboundedNegation indicates a negation over unbound variables.
	ErrCodeUnboundedNegation ErrorCode = "UNBOUNDED_NEGATION"

	// ErrCodeIllegalConversion indicates an atom that cannot take the
	// requested shape.
	ErrCodeIllegalConversion ErrorCode = "ILLEGAL_ATOM_CONVERSION"

	// ErrCodeDomainMismatch indicates an answer whose variables are not in
	// the co-domain of the unifier mapping it back.
	ErrCodeDomainMismatch ErrorCode = "DOMAIN_MISMATCH"

	// ErrCodeIterationLimit indicates resolution kept deriving new answers
	// past the configured number of iterations.
	ErrCodeIterationLimit ErrorCode = "ITERATION_LIMIT"

	// ErrCodeProtocolViolation indicates a misuse of the pull protocol.
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
)

// Error implements the error interface.
func (e *ReasonerError) Error() string {
	switch {
	case e.Rule != "":
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.Rule)
	case e.Query != "":
		return fmt.Sprintf("%s: %s (query=%s)", e.Code, e.Message, e.Query)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *ReasonerError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *ReasonerError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnboundedNegation reports whether err is an unbounded negation error.
// Uses errors.As to handle wrapped errors.
func IsUnboundedNegation(err error) bool {
	return hasCode(err, ErrCodeUnboundedNegation) || pattern.IsNegationError(err)
}

// IsIllegalConversion reports whether err is an illegal conversion error.
func IsIllegalConversion(err error) bool {
	return hasCode(err, ErrCodeIllegalConversion) || pattern.IsConversionError(err)
}

// IsDomainMismatch reports whether err is a domain mismatch error.
func IsDomainMismatch(err error) bool {
	return hasCode(err, ErrCodeDomainMismatch) || unify.IsDomainMismatch(err)
}

// IsIterationLimit reports whether err is an iteration limit error.
func IsIterationLimit(err error) bool {
	return hasCode(err, ErrCodeIterationLimit)
}

// IsProtocolViolation reports whether err is a pull protocol violation.
func IsProtocolViolation(err error) bool {
	return hasCode(err, ErrCodeProtocolViolation) || reactive.IsProtocolError(err)
}

// classify wraps pattern and unifier errors into a ReasonerError.
// Other errors are returned unchanged.
func classify(err error, query string) error {
	if err == nil {
		return nil
	}
	var re *ReasonerError
	if errors.As(err, &re) {
		return err
	}
	var code ErrorCode
	switch {
	case pattern.IsNegationError(err):
		code = ErrCodeUnboundedNegation
	case pattern.IsConversionError(err):
		code = ErrCodeIllegalConversion
	case unify.IsDomainMismatch(err):
		code = ErrCodeDomainMismatch
	default:
		return err
	}
	return &ReasonerError{Code: code, Message: err.Error(), Query: query, Err: err}
}

// NewIterationLimitError creates a ReasonerError for a missed fixpoint.
func NewIterationLimitError(query string, iterations int) *ReasonerError {
	return &ReasonerError{
		Code:    ErrCodeIterationLimit,
		Message: fmt.Sprintf("no fixpoint after %d iterations", iterations),
		Query:   query,
		Details: map[string]string{
			"max_iterations": strconv.Itoa(iterations),
		},
	}
}

// NewDomainMismatchError creates a ReasonerError for an answer that a rule
// unifier cannot map back.
func NewDomainMismatchError(query, rule string, err error) *ReasonerError {
	return &ReasonerError{
		Code:    ErrCodeDomainMismatch,
		Message: err.Error(),
		Query:   query,
		Rule:    rule,
		Err:     err,
	}
}
