package ir

import (
	"fmt"
	"strings"
)

// Identifier names a logical variable within a query.
//
// Retrievable identifiers are written by the user ($x) and appear in
// answers. Anonymous identifiers ($_0) are introduced by the parser or by
// rule normalisation and are filtered out of answers returned to clients.
type Identifier struct {
	Name      string
	Anonymous bool
}

// Var creates a retrievable identifier.
func Var(name string) Identifier {
	return Identifier{Name: name}
}

// AnonVar creates an anonymous identifier.
func AnonVar(name string) Identifier {
	return Identifier{Name: name, Anonymous: true}
}

// Retrievable reports whether the identifier is externally visible.
func (id Identifier) Retrievable() bool {
	return !id.Anonymous
}

// String renders the identifier as it appears in a query.
func (id Identifier) String() string {
	if id.Anonymous {
		return "$_" + id.Name
	}
	return "$" + id.Name
}

// Key is the identifier's canonical map key. Anonymous identifiers are
// prefixed so they cannot collide with a retrievable one of the same name.
func (id Identifier) Key() string {
	if id.Anonymous {
		return "_" + id.Name
	}
	return id.Name
}

// ParseIdentifier parses the Key form produced by Identifier.Key.
func ParseIdentifier(key string) Identifier {
	if name, ok := strings.CutPrefix(key, "_"); ok {
		return AnonVar(name)
	}
	return Var(key)
}

// CompareIdentifiers orders identifiers by their key.
func CompareIdentifiers(a, b Identifier) int {
	return strings.Compare(a.Key(), b.Key())
}

// Kind is the root kind of a type: entity, relation or attribute.
type Kind string

const (
	KindEntity    Kind = "entity"
	KindRelation  Kind = "relation"
	KindAttribute Kind = "attribute"
)

// Concept is a resolved graph element bound to an identifier.
//
// IID is the instance id. For attributes it is derived from the type and
// value (see AttributeIID), so an attribute inferred by a rule has the same
// IID as a stored attribute with the same type and value.
type Concept struct {
	IID      string
	Type     string
	Kind     Kind
	Value    Value // nil unless Kind == KindAttribute
	Inferred bool
}

// Equal compares concepts by identity. Two concepts with the same IID are
// the same element regardless of how they were produced.
func (c Concept) Equal(other Concept) bool {
	return c.IID == other.IID
}

// String renders the concept for logs and text output.
func (c Concept) String() string {
	if c.Kind == KindAttribute && c.Value != nil {
		return fmt.Sprintf("%s:%s", c.Type, FormatValue(c.Value))
	}
	return fmt.Sprintf("%s[%s]", c.Type, c.IID)
}

// canonical returns the hashed form of a concept. Only identity-bearing
// fields take part, so inferred and stored copies hash the same.
func (c Concept) canonical() map[string]any {
	return map[string]any{
		"iid":  c.IID,
		"type": c.Type,
	}
}
