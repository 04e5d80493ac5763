package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// NegationError reports a negated constraint whose variables are not bound
// by the enclosing conjunction. Such a constraint has no finite meaning and
// is rejected when the query is built.
type NegationError struct {
	// Pattern is the offending negation or inequality.
	Pattern string

	// Unbound lists the variables the enclosing conjunction does not bind.
	Unbound []ir.Identifier
}

func (e *NegationError) Error() string {
	names := make([]string, len(e.Unbound))
	for i, id := range e.Unbound {
		names[i] = id.String()
	}
	return fmt.Sprintf("unbounded negation %q: variables [%s] are not bound by the enclosing conjunction",
		e.Pattern, strings.Join(names, ", "))
}

// ConversionError reports an atom that cannot be reinterpreted as another
// atom shape, such as a non-implicit relation viewed as an ownership.
type ConversionError struct {
	Atom   string
	Target string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("illegal conversion of %q to %s: %s", e.Atom, e.Target, e.Reason)
}

// PredicateError reports a value predicate on a variable the conjunction
// never binds.
type PredicateError struct {
	Pattern string
	Var     ir.Identifier
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("value predicate %q: variable %s is not bound by the enclosing conjunction", e.Pattern, e.Var)
}

// IsPredicateError reports whether err is or wraps a PredicateError.
func IsPredicateError(err error) bool {
	var pe *PredicateError
	return errors.As(err, &pe)
}

// IsNegationError reports whether err is or wraps a NegationError.
func IsNegationError(err error) bool {
	var ne *NegationError
	return errors.As(err, &ne)
}

// IsConversionError reports whether err is or wraps a ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}
