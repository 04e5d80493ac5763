package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Construction =====

func TestNewConceptMapCopiesInput(t *testing.T) {
	src := map[Identifier]Concept{Var("x"): person("p1")}
	m := NewConceptMap(src)

	src[Var("y")] = person("p2")

	assert.Equal(t, 1, m.Len(), "mutating the source must not affect the map")
}

func TestZeroConceptMapIsEmpty(t *testing.T) {
	var m ConceptMap
	assert.True(t, m.IsEmpty())
	assert.Empty(t, m.Identifiers())
	assert.Equal(t, "{}", m.String())
}

// ===== Composition =====

func TestConceptMapWithDoesNotMutate(t *testing.T) {
	m := NewConceptMap(map[Identifier]Concept{Var("x"): person("p1")})
	m2 := m.With(Var("y"), person("p2"))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, m2.Len())
}

func TestConceptMapMerge(t *testing.T) {
	a := NewConceptMap(map[Identifier]Concept{Var("x"): person("p1")})
	b := NewConceptMap(map[Identifier]Concept{Var("x"): person("p1"), Var("y"): person("p2")})

	merged, ok := a.Merge(b)
	require.True(t, ok)
	assert.Equal(t, 2, merged.Len())
}

func TestConceptMapMergeConflict(t *testing.T) {
	a := NewConceptMap(map[Identifier]Concept{Var("x"): person("p1")})
	b := NewConceptMap(map[Identifier]Concept{Var("x"): person("p2")})

	_, ok := a.Merge(b)
	assert.False(t, ok)
}

func TestConceptMapMergeUnionsExplainables(t *testing.T) {
	a := NewConceptMap(nil).WithExplainables(Explainable{Key: "b"})
	b := NewConceptMap(nil).WithExplainables(Explainable{Key: "a"}, Explainable{Key: "b"})

	merged, ok := a.Merge(b)
	require.True(t, ok)
	assert.Equal(t, []Explainable{{Key: "a"}, {Key: "b"}}, merged.Explainables())
}

func TestConceptMapFilterAndRetrievable(t *testing.T) {
	m := NewConceptMap(map[Identifier]Concept{
		Var("x"):     person("p1"),
		Var("y"):     person("p2"),
		AnonVar("0"): person("p3"),
	})

	assert.Equal(t, []Identifier{Var("x")}, m.Filter([]Identifier{Var("x"), Var("z")}).Identifiers())
	assert.Equal(t, []Identifier{Var("x"), Var("y")}, m.Retrievable().Identifiers())
}

// ===== Equality =====

func TestConceptMapEqual(t *testing.T) {
	a := NewConceptMap(map[Identifier]Concept{Var("x"): person("p1")})
	b := NewConceptMap(map[Identifier]Concept{Var("x"): person("p1")}).WithExplainables(Explainable{Key: "k"})
	c := NewConceptMap(map[Identifier]Concept{Var("x"): person("p2")})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(NewConceptMap(nil)))
}

func TestConceptMapString(t *testing.T) {
	m := NewConceptMap(map[Identifier]Concept{
		Var("y"): {IID: "a1", Type: "status", Kind: KindAttribute, Value: String("active")},
		Var("x"): person("p1"),
	})
	assert.Equal(t, `{$x=person[p1]; $y=status:"active"}`, m.String())
}

func TestParseIdentifierRoundTrip(t *testing.T) {
	for _, id := range []Identifier{Var("x"), AnonVar("0")} {
		assert.Equal(t, id, ParseIdentifier(id.Key()))
	}
}

// ===== JSON =====

func TestConceptMapJSONPreservesValuesAndExplainables(t *testing.T) {
	status := Concept{IID: MustAttributeIID("status", String("active")), Type: "status", Kind: KindAttribute, Value: String("active"), Inferred: true}
	m := NewConceptMap(map[Identifier]Concept{
		Var("x"):     person("p1"),
		AnonVar("s"): status,
	}).WithExplainables(Explainable{Key: "k1", Atom: `$x has status "active"`})

	data, err := m.MarshalJSON()
	require.NoError(t, err)

	var back ConceptMap
	require.NoError(t, back.UnmarshalJSON(data))

	assert.True(t, m.Equal(back))
	assert.Equal(t, m.Explainables(), back.Explainables())
	got, ok := back.Get(AnonVar("s"))
	require.True(t, ok)
	assert.Equal(t, status, got)
}
