package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/store"
	"github.com/typedb/typedb-sub067/internal/typeql"
)

// Graph is a test fixture: a schema, rule sources and instance data.
type Graph struct {
	Types []schema.Type
	Rules []string // "rule <label>: when { ... } then { ... };"
	Data  store.Data
}

// Env is an opened fixture.
type Env struct {
	Store  *store.Store
	Schema *schema.Schema
}

// Open writes g into a fresh store under t.TempDir and builds its schema.
// The store is closed when the test ends.
func Open(t testing.TB, g Graph) Env {
	t.Helper()
	ctx := context.Background()

	rules := make([]schema.Rule, 0, len(g.Rules))
	for _, src := range g.Rules {
		r, err := typeql.ParseRule(src)
		if err != nil {
			t.Fatalf("parse rule %q: %v", src, err)
		}
		rules = append(rules, r)
	}
	sch, err := schema.New(g.Types, rules)
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}

	s, err := store.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.WriteTypes(ctx, g.Types); err != nil {
		t.Fatalf("write types: %v", err)
	}
	if err := s.WriteData(ctx, g.Data); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return Env{Store: s, Schema: sch}
}

// Entity is shorthand for a schema entity type under the root.
func Entity(label string) schema.Type {
	return schema.Type{Label: label, Kind: ir.KindEntity, Super: schema.RootEntity}
}

// Attribute is shorthand for a schema attribute type under the root.
func Attribute(label string, vt ir.ValueType) schema.Type {
	return schema.Type{Label: label, Kind: ir.KindAttribute, Super: schema.RootAttribute, ValueType: vt}
}

// Relation is shorthand for a schema relation type under the root.
func Relation(label string, roles ...string) schema.Type {
	return schema.Type{Label: label, Kind: ir.KindRelation, Super: schema.RootRelation, Relates: roles}
}

// Sub returns t re-parented under super.
func Sub(t schema.Type, super string) schema.Type {
	t.Super = super
	return t
}

// People is the shared social fixture: persons with names, a student
// subtype, friendships and an employment.
//
//	alice (person, name "Alice") friend of bob (student, name "Bob")
//	bob friend of carol (person, name "Carol")
//	alice employed by acme (company)
func People() Graph {
	return Graph{
		Types: []schema.Type{
			Entity("person"),
			Sub(Entity("student"), "person"),
			Entity("company"),
			Attribute("name", ir.ValueTypeString),
			Attribute("status", ir.ValueTypeString),
			Attribute("age", ir.ValueTypeLong),
			Relation("friendship", "friend"),
			Relation("employment", "employee", "employer"),
		},
		Data: store.Data{
			Entities: []store.Entity{
				{IID: "alice", Type: "person"},
				{IID: "bob", Type: "student"},
				{IID: "carol", Type: "person"},
				{IID: "acme", Type: "company"},
			},
			Ownerships: []store.Ownership{
				{Owner: "alice", Attribute: store.Attribute{Type: "name", Value: ir.String("Alice")}},
				{Owner: "bob", Attribute: store.Attribute{Type: "name", Value: ir.String("Bob")}},
				{Owner: "carol", Attribute: store.Attribute{Type: "name", Value: ir.String("Carol")}},
				{Owner: "alice", Attribute: store.Attribute{Type: "age", Value: ir.Long(30)}},
			},
			Relations: []store.Relation{
				{IID: "f1", Type: "friendship", Players: []store.RolePlayer{{Role: "friend", Player: "alice"}, {Role: "friend", Player: "bob"}}},
				{IID: "f2", Type: "friendship", Players: []store.RolePlayer{{Role: "friend", Player: "bob"}, {Role: "friend", Player: "carol"}}},
				{IID: "e1", Type: "employment", Players: []store.RolePlayer{{Role: "employee", Player: "alice"}, {Role: "employer", Player: "acme"}}},
			},
		},
	}
}
