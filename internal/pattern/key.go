package pattern

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Canonical is a query rewritten into a variable-agnostic normal form.
//
// Two queries that differ only in variable names share Key, and Vars[i] in
// one corresponds to Vars[i] in the other. For structural forms, IID
// constants are replaced by "#" and listed in Params in order of appearance.
type Canonical struct {
	Key    string
	Vars   []ir.Identifier
	Params []string
}

// Hash returns the bucket hash of the key.
func (c Canonical) Hash() string {
	return ir.PatternHash(c.Key)
}

// ExactKey identifies a query up to atom order. Variable names and IID
// constants take part in the key.
func ExactKey(q Query) string {
	atoms := q.Conjunction().Atoms
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = a.String()
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}

// AlphaKey identifies a query up to variable renaming.
func AlphaKey(q Query) Canonical {
	return canonicalize(q, false)
}

// StructuralKey identifies a query up to variable renaming and IID
// constants.
func StructuralKey(q Query) Canonical {
	return canonicalize(q, true)
}

// KeyHash hashes a key string for bucketing.
func KeyHash(key string) string {
	return ir.PatternHash(key)
}

func canonicalize(q Query, structural bool) Canonical {
	atoms := q.Conjunction().Atoms
	type entry struct {
		sig  string
		atom Atom
		pos  int
	}
	entries := make([]entry, len(atoms))
	for i, a := range atoms {
		entries[i] = entry{sig: signature(a, structural), atom: a, pos: i}
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.sig, b.sig)
	})

	c := Canonical{}
	index := make(map[ir.Identifier]int)
	name := func(id ir.Identifier) string {
		n, ok := index[id]
		if !ok {
			n = len(c.Vars)
			index[id] = n
			c.Vars = append(c.Vars, id)
		}
		return "v" + strconv.Itoa(n)
	}
	iid := func(v string) string {
		if structural {
			c.Params = append(c.Params, v)
			return "#"
		}
		return v
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		switch a := e.atom.(type) {
		case Isa:
			op := "isa"
			if a.Exact {
				op = "isa!"
			}
			parts[i] = name(a.Var) + " " + op + " " + a.Type
		case Has:
			s := name(a.Owner) + " has " + a.Type + " " + name(a.Attribute)
			if a.Value != nil {
				s += " == " + ir.FormatValue(a.Value)
			}
			parts[i] = s
		case Relation:
			players := sortedPlayers(a.Players)
			ps := make([]string, len(players))
			for j, rp := range players {
				ps[j] = rp.Role + ":" + name(rp.Player)
			}
			parts[i] = name(a.Var) + " (" + strings.Join(ps, ", ") + ") isa " + a.Type
		case IID:
			parts[i] = name(a.Var) + " iid " + iid(a.IID)
		case Neq:
			parts[i] = name(a.Left) + " != " + name(a.Right)
		case ValuePredicate:
			parts[i] = name(a.Var) + " " + string(a.Op) + " " + ir.FormatValue(a.Value)
		}
	}
	c.Key = strings.Join(parts, "; ")
	return c
}

// signature renders an atom with every variable erased. Atoms are sorted by
// signature before variables are numbered.
func signature(a Atom, structural bool) string {
	switch a := a.(type) {
	case Isa:
		if a.Exact {
			return "1isa! " + a.Type
		}
		return "1isa " + a.Type
	case Has:
		s := "2has " + a.Type
		if a.Value != nil {
			s += " == " + ir.FormatValue(a.Value)
		}
		return s
	case Relation:
		roles := make([]string, len(a.Players))
		for i, rp := range sortedPlayers(a.Players) {
			roles[i] = rp.Role
		}
		return "0rel " + a.Type + " (" + strings.Join(roles, ",") + ")"
	case IID:
		if structural {
			return "3iid #"
		}
		return "3iid " + a.IID
	case Neq:
		return "4neq"
	case ValuePredicate:
		return "5val " + string(a.Op) + " " + ir.FormatValue(a.Value)
	default:
		return ""
	}
}

func sortedPlayers(players []RolePlayer) []RolePlayer {
	out := slices.Clone(players)
	slices.SortStableFunc(out, func(a, b RolePlayer) int {
		return cmp.Compare(a.Role, b.Role)
	})
	return out
}
