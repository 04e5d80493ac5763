package schema

import (
	"errors"
	"fmt"
)

// Error reports an invalid type or rule definition.
type Error struct {
	Type    string
	Rule    string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Rule != "":
		return fmt.Sprintf("rule %s: %s", e.Rule, e.Message)
	case e.Type != "":
		return fmt.Sprintf("type %s: %s", e.Type, e.Message)
	default:
		return e.Message
	}
}

// IsSchemaError reports whether err is or wraps a schema Error.
func IsSchemaError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
