package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub067/internal/ir"
)

var (
	x = ir.Var("x")
	y = ir.Var("y")
	z = ir.Var("z")
	s = ir.Var("s")
)

// hierarchy is a TypeChecker over a child -> parent map.
type hierarchy map[string]string

func (h hierarchy) IsSubtype(sub, sup string) bool {
	for t := sub; t != ""; t = h[t] {
		if t == sup {
			return true
		}
	}
	return false
}

var testTypes = hierarchy{
	"person":     "entity",
	"employee":   "person",
	"company":    "entity",
	"status":     "attribute",
	"age":        "attribute",
	"friendship": "relation",
}

func concept(iid, typ string, kind ir.Kind) ir.Concept {
	return ir.Concept{IID: iid, Type: typ, Kind: kind}
}

// ===== Decompose =====

func TestDecomposeAttachesConstraints(t *testing.T) {
	conj := NewConjunction(
		Isa{Var: x, Type: "person"},
		Has{Owner: x, Attribute: s, Type: "status"},
		Isa{Var: y, Type: "company"},
	)

	queries, err := Decompose(conj)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, Has{Owner: x, Attribute: s, Type: "status"}, queries[0].Main)
	assert.Equal(t, []Atom{Isa{Var: x, Type: "person"}}, queries[0].Constraints)
	assert.Equal(t, Isa{Var: y, Type: "company"}, queries[1].Main)
	assert.Empty(t, queries[1].Constraints)
}

func TestDecomposeStandaloneIID(t *testing.T) {
	conj := NewConjunction(IID{Var: x, IID: "0x01"}, Isa{Var: x, Type: "person"})

	queries, err := Decompose(conj)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, Isa{Var: x, Type: "person"}, queries[0].Main)
	assert.Equal(t, []Atom{IID{Var: x, IID: "0x01"}}, queries[0].Constraints)
}

func TestDecomposeAttachesNeqToFirstBindingQuery(t *testing.T) {
	conj := NewConjunction(
		Isa{Var: x, Type: "person"},
		Isa{Var: y, Type: "person"},
		Relation{Var: z, Type: "friendship", Players: []RolePlayer{{Role: "friend", Player: x}, {Role: "friend", Player: y}}},
		Neq{Left: x, Right: y},
	)

	queries, err := Decompose(conj)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, []Neq{{Left: x, Right: y}}, queries[0].Neqs)
}

func TestDecomposeNeqAcrossQueries(t *testing.T) {
	conj := NewConjunction(
		Isa{Var: x, Type: "person"},
		Isa{Var: y, Type: "person"},
		Neq{Left: x, Right: y},
	)

	queries, err := Decompose(conj)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Empty(t, queries[0].Neqs)
	assert.Equal(t, []Neq{{Left: x, Right: y}}, queries[1].Neqs)
}

// ===== Negation safety =====

func TestUnboundedNeqIsRejected(t *testing.T) {
	conj := NewConjunction(Isa{Var: x, Type: "person"}, Neq{Left: x, Right: y})

	_, err := Decompose(conj)
	require.Error(t, err)
	assert.True(t, IsNegationError(err))

	var ne *NegationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, []ir.Identifier{y}, ne.Unbound)
}

func TestNegationOverFreeVariablesIsRejected(t *testing.T) {
	conj := Conjunction{
		Atoms:     []Atom{Isa{Var: x, Type: "person"}},
		Negations: []Conjunction{NewConjunction(Has{Owner: y, Attribute: s, Type: "status"})},
	}

	err := CheckNegations(conj)
	require.Error(t, err)
	assert.True(t, IsNegationError(err))
}

func TestNegationOverBoundVariablesIsAccepted(t *testing.T) {
	conj := Conjunction{
		Atoms:     []Atom{Isa{Var: x, Type: "person"}},
		Negations: []Conjunction{NewConjunction(Has{Owner: x, Attribute: s, Type: "status"})},
	}

	assert.NoError(t, CheckNegations(conj))
	_, err := Decompose(conj)
	assert.NoError(t, err)
}

func TestNestedNegationSeesOuterBindings(t *testing.T) {
	inner := Conjunction{
		Atoms:     []Atom{Has{Owner: x, Attribute: s, Type: "status"}},
		Negations: []Conjunction{NewConjunction(Neq{Left: s, Right: x})},
	}
	conj := Conjunction{Atoms: []Atom{Isa{Var: x, Type: "person"}}, Negations: []Conjunction{inner}}

	assert.NoError(t, CheckNegations(conj))
}

// ===== Bind =====

func TestBindAddsSortedIIDConstraints(t *testing.T) {
	q := NewQuery(Has{Owner: x, Attribute: s, Type: "status"})
	sub := ir.NewConceptMap(map[ir.Identifier]ir.Concept{
		x: concept("0x02", "person", ir.KindEntity),
		s: concept("0x01", "status", ir.KindAttribute),
		z: concept("0x09", "person", ir.KindEntity),
	})

	bound := q.Bind(sub)
	assert.Equal(t, []Atom{IID{Var: s, IID: "0x01"}, IID{Var: x, IID: "0x02"}}, bound.Constraints)
	assert.Empty(t, q.Constraints, "Bind must not mutate the receiver")
}

func TestBindSkipsPinnedVariables(t *testing.T) {
	q := NewQuery(Isa{Var: x, Type: "person"}, IID{Var: x, IID: "0x01"})
	sub := ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: concept("0x01", "person", ir.KindEntity)})

	assert.Equal(t, q, q.Bind(sub))
}

// ===== Keys =====

func TestAlphaKeyIgnoresVariableNames(t *testing.T) {
	a := NewQuery(Has{Owner: x, Attribute: s, Type: "status"}, Isa{Var: x, Type: "person"})
	b := NewQuery(Has{Owner: y, Attribute: z, Type: "status"}, Isa{Var: y, Type: "person"})

	ka, kb := AlphaKey(a), AlphaKey(b)
	assert.Equal(t, ka.Key, kb.Key)
	assert.Equal(t, ka.Hash(), kb.Hash())
	assert.Equal(t, []ir.Identifier{x, s}, ka.Vars)
	assert.Equal(t, []ir.Identifier{y, z}, kb.Vars)
	assert.NotEqual(t, ExactKey(a), ExactKey(b))
}

func TestAlphaKeyIgnoresAtomOrder(t *testing.T) {
	a := NewQuery(Isa{Var: x, Type: "person"}, IID{Var: x, IID: "0x01"})
	b := NewQuery(Isa{Var: x, Type: "person"})
	b.Constraints = []Atom{IID{Var: x, IID: "0x01"}}
	c := Query{Main: IID{Var: x, IID: "0x01"}, Constraints: []Atom{Isa{Var: x, Type: "person"}}}

	assert.Equal(t, AlphaKey(a).Key, AlphaKey(b).Key)
	assert.Equal(t, AlphaKey(a).Key, AlphaKey(c).Key)
	assert.Equal(t, ExactKey(a), ExactKey(c))
}

func TestStructuralKeyAbstractsIIDs(t *testing.T) {
	a := NewQuery(Has{Owner: x, Attribute: s, Type: "status"}, IID{Var: x, IID: "0x01"})
	b := NewQuery(Has{Owner: y, Attribute: z, Type: "status"}, IID{Var: y, IID: "0x02"})

	assert.NotEqual(t, AlphaKey(a).Key, AlphaKey(b).Key)

	sa, sb := StructuralKey(a), StructuralKey(b)
	assert.Equal(t, sa.Key, sb.Key)
	assert.Equal(t, []string{"0x01"}, sa.Params)
	assert.Equal(t, []string{"0x02"}, sb.Params)
}

func TestKeysDistinguishValuesAndTypes(t *testing.T) {
	active := NewQuery(Has{Owner: x, Attribute: s, Type: "status", Value: ir.String("active")})
	idle := NewQuery(Has{Owner: x, Attribute: s, Type: "status", Value: ir.String("idle")})
	isaP := NewQuery(Isa{Var: x, Type: "person"})
	isaExact := NewQuery(Isa{Var: x, Type: "person", Exact: true})

	assert.NotEqual(t, StructuralKey(active).Key, StructuralKey(idle).Key)
	assert.NotEqual(t, AlphaKey(isaP).Key, AlphaKey(isaExact).Key)
}

// ===== Admits =====

func TestAdmits(t *testing.T) {
	q := NewQuery(Has{Owner: x, Attribute: s, Type: "status", Value: ir.String("active")}, Isa{Var: x, Type: "person"})
	active := ir.Concept{IID: "0xa", Type: "status", Kind: ir.KindAttribute, Value: ir.String("active")}
	idle := ir.Concept{IID: "0xb", Type: "status", Kind: ir.KindAttribute, Value: ir.String("idle")}

	tests := []struct {
		name string
		sub  map[ir.Identifier]ir.Concept
		want bool
	}{
		{"unbound", nil, true},
		{"subtype owner", map[ir.Identifier]ir.Concept{x: concept("0x1", "employee", ir.KindEntity)}, true},
		{"wrong owner type", map[ir.Identifier]ir.Concept{x: concept("0x1", "company", ir.KindEntity)}, false},
		{"matching value", map[ir.Identifier]ir.Concept{s: active}, true},
		{"other value", map[ir.Identifier]ir.Concept{s: idle}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Admits(q, ir.NewConceptMap(tt.sub), testTypes))
		})
	}
}

func TestAdmitsChecksIIDAndNeq(t *testing.T) {
	q := Query{
		Main:        Isa{Var: x, Type: "person"},
		Constraints: []Atom{IID{Var: x, IID: "0x1"}},
		Neqs:        []Neq{{Left: x, Right: y}},
	}
	p1 := concept("0x1", "person", ir.KindEntity)
	p2 := concept("0x2", "person", ir.KindEntity)

	assert.True(t, Admits(q, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: p1, y: p2}), testTypes))
	assert.False(t, Admits(q, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: p2}), testTypes))
	assert.False(t, Admits(q, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: p1, y: p1}), testTypes))
}

// ===== Value predicates =====

func ageOver(n int64) (Has, ValuePredicate) {
	a := ir.Var("a")
	return Has{Owner: x, Attribute: a, Type: "age"}, ValuePredicate{Var: a, Op: ir.Gt, Value: ir.Long(n)}
}

func TestDecomposeAttachesValuePredicates(t *testing.T) {
	has, over := ageOver(18)
	c := NewConjunction(Isa{Var: x, Type: "person"}, has, over)

	queries, err := Decompose(c)
	require.NoError(t, err)

	require.Len(t, queries, 1)
	assert.Equal(t, has, queries[0].Main)
	assert.ElementsMatch(t, []Atom{Isa{Var: x, Type: "person"}, over}, queries[0].Constraints)
	assert.Equal(t, []ir.Identifier{x, ir.Var("a")}, c.Vars())
}

func TestDecomposeRejectsUnboundValuePredicate(t *testing.T) {
	c := NewConjunction(Isa{Var: x, Type: "person"}, ValuePredicate{Var: y, Op: ir.Lt, Value: ir.Long(3)})

	_, err := Decompose(c)

	require.Error(t, err)
	assert.True(t, IsPredicateError(err))
	assert.Contains(t, err.Error(), "$y < 3")
}

func TestAdmitsChecksValuePredicates(t *testing.T) {
	has, over := ageOver(18)
	q := NewQuery(has, over)
	age := func(n int64) ir.Concept {
		return ir.Concept{IID: "0xage", Type: "age", Kind: ir.KindAttribute, Value: ir.Long(n)}
	}

	assert.True(t, Admits(q, ir.NewConceptMap(nil), testTypes))
	assert.True(t, Admits(q, ir.NewConceptMap(map[ir.Identifier]ir.Concept{ir.Var("a"): age(30)}), testTypes))
	assert.False(t, Admits(q, ir.NewConceptMap(map[ir.Identifier]ir.Concept{ir.Var("a"): age(18)}), testTypes))
}

func TestKeysDistinguishValuePredicates(t *testing.T) {
	has, over18 := ageOver(18)
	_, over21 := ageOver(21)
	renamed := NewQuery(
		Has{Owner: y, Attribute: z, Type: "age"},
		ValuePredicate{Var: z, Op: ir.Gt, Value: ir.Long(18)},
	)
	under := over18
	under.Op = ir.Lt

	assert.Equal(t, AlphaKey(NewQuery(has, over18)).Key, AlphaKey(renamed).Key)
	assert.NotEqual(t, AlphaKey(NewQuery(has, over18)).Key, AlphaKey(NewQuery(has, over21)).Key)
	assert.NotEqual(t, StructuralKey(NewQuery(has, over18)).Key, StructuralKey(NewQuery(has, under)).Key)
	assert.NotEqual(t, AlphaKey(NewQuery(has)).Key, AlphaKey(NewQuery(has, over18)).Key)
	assert.Equal(t, `$a > 18`, over18.String())
}

// ===== Conversion =====

func TestHasRelationRoundTrip(t *testing.T) {
	has := Has{Owner: x, Attribute: s, Type: "status"}
	rel := has.AsRelation()

	assert.True(t, IsImplicitRelationType(rel.Type))
	back, err := AsHas(rel)
	require.NoError(t, err)
	assert.Equal(t, has, back)
}

func TestAsHasRejectsExplicitRelation(t *testing.T) {
	rel := Relation{Var: z, Type: "friendship", Players: []RolePlayer{{Role: "friend", Player: x}}}

	_, err := AsHas(rel)
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
}

func TestNormalizeRewritesImplicitRelations(t *testing.T) {
	has := Has{Owner: x, Attribute: s, Type: "status"}
	conj := Conjunction{
		Atoms:     []Atom{Isa{Var: x, Type: "person"}},
		Negations: []Conjunction{NewConjunction(has.AsRelation())},
	}

	norm, err := Normalize(conj)
	require.NoError(t, err)
	assert.Equal(t, []Atom{has}, norm.Negations[0].Atoms)
}

func TestNormalizeRejectsNamedImplicitRelation(t *testing.T) {
	rel := Has{Owner: x, Attribute: s, Type: "status"}.AsRelation()
	rel.Var = z

	_, err := Normalize(NewConjunction(rel))
	assert.True(t, IsConversionError(err))
}
