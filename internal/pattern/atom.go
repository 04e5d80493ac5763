package pattern

import (
	"fmt"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Atom is the smallest pattern unit.
//
// This is a sealed interface - only the atom types in this package
// implement it, which keeps type switches in the planner and unifier
// exhaustive.
type Atom interface {
	atomNode() // Marker method - seals interface to this package

	// Vars returns the atom's identifiers in order of appearance.
	Vars() []ir.Identifier

	// String renders the atom in query syntax, without the trailing ';'.
	String() string
}

// Isa constrains the type of a variable: $x isa person.
// Exact (isa!) excludes subtypes.
type Isa struct {
	Var   ir.Identifier
	Type  string
	Exact bool
}

func (Isa) atomNode() {}

// Vars implements Atom.
func (a Isa) Vars() []ir.Identifier { return []ir.Identifier{a.Var} }

func (a Isa) String() string {
	if a.Exact {
		return fmt.Sprintf("%s isa! %s", a.Var, a.Type)
	}
	return fmt.Sprintf("%s isa %s", a.Var, a.Type)
}

// Has is an attribute ownership: $x has status $s, or $x has status "active"
// when Value is set. Attribute is always an identifier; the parser
// introduces an anonymous one for literal forms.
type Has struct {
	Owner     ir.Identifier
	Attribute ir.Identifier
	Type      string
	Value     ir.Value // nil when the value is unconstrained
}

func (Has) atomNode() {}

// Vars implements Atom.
func (a Has) Vars() []ir.Identifier { return []ir.Identifier{a.Owner, a.Attribute} }

func (a Has) String() string {
	if a.Value != nil {
		if a.Attribute.Anonymous {
			return fmt.Sprintf("%s has %s %s", a.Owner, a.Type, ir.FormatValue(a.Value))
		}
		return fmt.Sprintf("%s has %s %s == %s", a.Owner, a.Type, a.Attribute, ir.FormatValue(a.Value))
	}
	return fmt.Sprintf("%s has %s %s", a.Owner, a.Type, a.Attribute)
}

// RolePlayer is one role assignment in a relation. An empty Role matches
// any role.
type RolePlayer struct {
	Role   string
	Player ir.Identifier
}

func (rp RolePlayer) String() string {
	if rp.Role == "" {
		return rp.Player.String()
	}
	return rp.Role + ": " + rp.Player.String()
}

// Relation is a relation pattern: $r (employee: $x, employer: $y) isa employment.
type Relation struct {
	Var     ir.Identifier
	Type    string
	Players []RolePlayer
}

func (Relation) atomNode() {}

// Vars implements Atom. The relation variable comes first.
func (a Relation) Vars() []ir.Identifier {
	vars := []ir.Identifier{a.Var}
	for _, rp := range a.Players {
		vars = appendUnique(vars, rp.Player)
	}
	return vars
}

func (a Relation) String() string {
	parts := make([]string, len(a.Players))
	for i, rp := range a.Players {
		parts[i] = rp.String()
	}
	players := "(" + strings.Join(parts, ", ") + ")"
	if a.Var.Anonymous {
		return fmt.Sprintf("%s isa %s", players, a.Type)
	}
	return fmt.Sprintf("%s %s isa %s", a.Var, players, a.Type)
}

// IID pins a variable to a concrete instance.
type IID struct {
	Var ir.Identifier
	IID string
}

func (IID) atomNode() {}

// Vars implements Atom.
func (a IID) Vars() []ir.Identifier { return []ir.Identifier{a.Var} }

func (a IID) String() string {
	return fmt.Sprintf("%s iid %s", a.Var, a.IID)
}

// Neq requires two variables to be bound to different concepts.
// Both sides must be bound by positive atoms of the enclosing conjunction.
type Neq struct {
	Left  ir.Identifier
	Right ir.Identifier
}

func (Neq) atomNode() {}

// Vars implements Atom.
func (a Neq) Vars() []ir.Identifier { return []ir.Identifier{a.Left, a.Right} }

func (a Neq) String() string {
	return fmt.Sprintf("%s != %s", a.Left, a.Right)
}

// ValuePredicate compares the value of an attribute variable with a
// literal: $a > 18, $n contains "li". The variable must be bound by a
// positive atom of the enclosing conjunction.
type ValuePredicate struct {
	Var   ir.Identifier
	Op    ir.Comparator
	Value ir.Value
}

func (ValuePredicate) atomNode() {}

// Vars implements Atom.
func (a ValuePredicate) Vars() []ir.Identifier { return []ir.Identifier{a.Var} }

func (a ValuePredicate) String() string {
	return fmt.Sprintf("%s %s %s", a.Var, a.Op, ir.FormatValue(a.Value))
}

// Holds reports whether the predicate accepts c.
func (a ValuePredicate) Holds(c ir.Concept) bool {
	return ir.Satisfies(c.Value, a.Op, a.Value)
}

// IsConcludable reports whether a rule conclusion could produce answers for
// the atom. Rules conclude ownerships and relations; an isa atom is
// concludable through relation and attribute conclusions of its type.
func IsConcludable(a Atom) bool {
	switch a.(type) {
	case Has, Relation, Isa:
		return true
	default:
		return false
	}
}

func appendUnique(ids []ir.Identifier, id ir.Identifier) []ir.Identifier {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
