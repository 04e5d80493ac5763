package answer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/unify"
)

var (
	x = ir.Var("x")
	s = ir.AnonVar("s")
)

func alice() ir.Concept {
	return ir.Concept{IID: "alice", Type: "person", Kind: ir.KindEntity}
}

func active() ir.Concept {
	return ir.Concept{
		IID:      ir.MustAttributeIID("status", ir.String("active")),
		Type:     "status",
		Kind:     ir.KindAttribute,
		Value:    ir.String("active"),
		Inferred: true,
	}
}

func activeExplanation(t *testing.T) (string, Explanation) {
	t.Helper()
	head := pattern.Has{Owner: x, Attribute: s, Type: "status", Value: ir.String("active")}
	conclusion := ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice(), s: active()})
	condition := ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice()})

	u := unify.New(map[ir.Identifier][]ir.Identifier{x: {x}, s: {s}})
	e, err := NewExplanation(PartialExplanation{Rule: "person-active", Conclusion: conclusion, Condition: condition}, u)
	require.NoError(t, err)

	key, ok := FactKey(head, conclusion)
	require.True(t, ok)
	return key, e
}

// ===== Explanation =====

func TestNewExplanationIsContentAddressed(t *testing.T) {
	_, e1 := activeExplanation(t)
	_, e2 := activeExplanation(t)

	assert.Equal(t, e1.ID, e2.ID)
	assert.Equal(t, "person-active", e1.Rule)
	assert.Equal(t, []string{"$_s"}, e1.Mapping["$_s"])
	assert.Equal(t, 1, e1.Condition.Len())
}

func TestExplanationJSON(t *testing.T) {
	_, e := activeExplanation(t)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	var back Explanation
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, e.ID, back.ID)
	assert.True(t, e.Conclusion.Equal(back.Conclusion))
	assert.True(t, e.Condition.Equal(back.Condition))
}

func TestFactKeyDependsOnConcepts(t *testing.T) {
	head := pattern.Has{Owner: x, Attribute: s, Type: "status"}
	bob := ir.Concept{IID: "bob", Type: "person", Kind: ir.KindEntity}

	k1, ok := FactKey(head, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice(), s: active()}))
	require.True(t, ok)
	k2, ok := FactKey(head, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: bob, s: active()}))
	require.True(t, ok)
	assert.NotEqual(t, k1, k2)

	_, ok = FactKey(head, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice()}))
	assert.False(t, ok)
	_, ok = FactKey(pattern.IID{Var: x, IID: "alice"}, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice()}))
	assert.False(t, ok)
}

func TestExplainableDescribesAtom(t *testing.T) {
	head := pattern.Has{Owner: x, Attribute: s, Type: "status", Value: ir.String("active")}
	ex, ok := Explainable(head, ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice(), s: active()}))
	require.True(t, ok)
	assert.Equal(t, `person[alice] has status "active"`, ex.Atom)
}

// ===== Registry =====

func TestRegistryDeduplicates(t *testing.T) {
	key, e := activeExplanation(t)
	r := NewRegistry()

	assert.True(t, r.Record(key, e))
	assert.False(t, r.Record(key, e))
	assert.Len(t, r.Get(key), 1)
	assert.Equal(t, []string{key}, r.Keys())
}

func TestRegistryConcurrentRecord(t *testing.T) {
	key, e := activeExplanation(t)
	r := NewRegistry()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(key, e)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}

// ===== Derivation =====

func TestExplainBuildsTree(t *testing.T) {
	key, e := activeExplanation(t)
	r := NewRegistry()
	r.Record(key, e)

	ans := ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice()}).
		WithExplainables(ir.Explainable{Key: key, Atom: `person[alice] has status "active"`})

	d, err := Explain(context.Background(), r, ans)
	require.NoError(t, err)
	require.Len(t, d.Facts, 1)
	require.Len(t, d.Facts[0].Steps, 1)
	assert.Equal(t, "person-active", d.Facts[0].Steps[0].Explanation.Rule)
	assert.Empty(t, d.Facts[0].Steps[0].Premises.Facts)

	want := "answer {$x=person[alice]}\n" +
		"  fact person[alice] has status \"active\"\n" +
		"    rule person-active\n" +
		"      then {$_s=status:\"active\"; $x=person[alice]}\n" +
		"      answer {$x=person[alice]}\n"
	assert.Equal(t, want, d.Format())
}

func TestExplainStopsOnCycles(t *testing.T) {
	r := NewRegistry()
	self := ir.NewConceptMap(map[ir.Identifier]ir.Concept{x: alice()}).
		WithExplainables(ir.Explainable{Key: "k", Atom: "loop"})
	r.Record("k", Explanation{ID: "e1", Rule: "loop", Condition: self, Conclusion: self})

	d, err := Explain(context.Background(), r, self)
	require.NoError(t, err)
	require.Len(t, d.Facts, 1)
	nested := d.Facts[0].Steps[0].Premises.Facts
	require.Len(t, nested, 1)
	assert.True(t, nested[0].Cyclic)
}

func TestExplainUnknownKey(t *testing.T) {
	ans := ir.NewConceptMap(nil).WithExplainables(ir.Explainable{Key: "missing", Atom: "a"})

	d, err := Explain(context.Background(), NewRegistry(), ans)
	require.NoError(t, err)
	assert.Contains(t, d.Format(), "(unexplained)")
}
