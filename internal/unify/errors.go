package unify

import (
	"errors"
	"fmt"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// DomainMismatchError reports a concept map passed to UnTransform that
// binds identifiers outside the unifier's co-domain. It indicates answers
// from one frame being fed to the unifier of another.
type DomainMismatchError struct {
	Unknown []ir.Identifier
}

func (e *DomainMismatchError) Error() string {
	return fmt.Sprintf("domain mismatch: identifiers %v are not in the unifier co-domain", e.Unknown)
}

// IsDomainMismatch reports whether err is or wraps a DomainMismatchError.
func IsDomainMismatch(err error) bool {
	var dm *DomainMismatchError
	return errors.As(err, &dm)
}

// MappingError reports identifier pairs that do not form a bijection.
type MappingError struct {
	From ir.Identifier
	To   ir.Identifier
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s -> %s breaks the bijection", e.From, e.To)
}
