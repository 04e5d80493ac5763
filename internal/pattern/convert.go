package pattern

import (
	"fmt"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Implicit ownership relations. An ownership $x has T $a can be viewed as
// the relation (@has-T-owner: $x, @has-T-value: $a) isa @has-T.
const (
	implicitPrefix = "@has-"
	ownerSuffix    = "-owner"
	valueSuffix    = "-value"
)

// ImplicitRelationType returns the implicit relation type for an attribute type.
func ImplicitRelationType(attrType string) string {
	return implicitPrefix + attrType
}

// IsImplicitRelationType reports whether a relation type label names an
// implicit ownership relation.
func IsImplicitRelationType(label string) bool {
	return strings.HasPrefix(label, implicitPrefix)
}

// AsRelation views an ownership as its implicit relation. The relation
// variable is anonymous and derived from the owner and attribute names, so
// converting the same ownership twice yields equal relations.
func (a Has) AsRelation() Relation {
	return Relation{
		Var:  ir.AnonVar("has_" + a.Owner.Key() + "_" + a.Attribute.Key()),
		Type: ImplicitRelationType(a.Type),
		Players: []RolePlayer{
			{Role: ImplicitRelationType(a.Type) + ownerSuffix, Player: a.Owner},
			{Role: ImplicitRelationType(a.Type) + valueSuffix, Player: a.Attribute},
		},
	}
}

// AsHas views a relation as an attribute ownership. Only implicit ownership
// relations with exactly one owner and one value player can be converted.
func AsHas(r Relation) (Has, error) {
	if !IsImplicitRelationType(r.Type) {
		return Has{}, &ConversionError{
			Atom:   r.String(),
			Target: "has",
			Reason: fmt.Sprintf("relation type %q is not an implicit ownership", r.Type),
		}
	}
	attrType := strings.TrimPrefix(r.Type, implicitPrefix)
	if len(r.Players) != 2 {
		return Has{}, &ConversionError{
			Atom:   r.String(),
			Target: "has",
			Reason: fmt.Sprintf("implicit ownership needs 2 role players, got %d", len(r.Players)),
		}
	}

	var owner, attr *ir.Identifier
	for i := range r.Players {
		rp := r.Players[i]
		switch rp.Role {
		case r.Type + ownerSuffix:
			owner = &r.Players[i].Player
		case r.Type + valueSuffix:
			attr = &r.Players[i].Player
		default:
			return Has{}, &ConversionError{
				Atom:   r.String(),
				Target: "has",
				Reason: fmt.Sprintf("role %q is not an implicit ownership role", rp.Role),
			}
		}
	}
	if owner == nil || attr == nil {
		return Has{}, &ConversionError{
			Atom:   r.String(),
			Target: "has",
			Reason: "implicit ownership needs one owner and one value role player",
		}
	}
	return Has{Owner: *owner, Attribute: *attr, Type: attrType}, nil
}

// Normalize rewrites implicit ownership relations into Has atoms so the
// rest of the engine deals with a single ownership shape. Malformed implicit
// relations are rejected with a ConversionError.
func Normalize(c Conjunction) (Conjunction, error) {
	atoms := make([]Atom, 0, len(c.Atoms))
	for _, a := range c.Atoms {
		rel, ok := a.(Relation)
		if !ok || !IsImplicitRelationType(rel.Type) {
			atoms = append(atoms, a)
			continue
		}
		if rel.Var.Retrievable() {
			return Conjunction{}, &ConversionError{
				Atom:   rel.String(),
				Target: "has",
				Reason: "an implicit ownership cannot be bound to a named variable",
			}
		}
		has, err := AsHas(rel)
		if err != nil {
			return Conjunction{}, err
		}
		atoms = append(atoms, has)
	}

	negations := make([]Conjunction, 0, len(c.Negations))
	for _, neg := range c.Negations {
		n, err := Normalize(neg)
		if err != nil {
			return Conjunction{}, err
		}
		negations = append(negations, n)
	}
	return Conjunction{Atoms: atoms, Negations: negations}, nil
}
