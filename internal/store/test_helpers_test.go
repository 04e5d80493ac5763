package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/schema"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTypes is a small person/employment schema.
func testTypes() []schema.Type {
	return []schema.Type{
		{Label: "person", Kind: ir.KindEntity, Super: schema.RootEntity},
		{Label: "company", Kind: ir.KindEntity, Super: schema.RootEntity},
		{Label: "name", Kind: ir.KindAttribute, Super: schema.RootAttribute, ValueType: ir.ValueTypeString},
		{Label: "age", Kind: ir.KindAttribute, Super: schema.RootAttribute, ValueType: ir.ValueTypeLong},
		{Label: "employment", Kind: ir.KindRelation, Super: schema.RootRelation, Relates: []string{"employee", "employer"}},
		{Label: "contract", Kind: ir.KindRelation, Super: "employment"},
	}
}

// seedStore writes testTypes and a handful of instances.
func seedStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.WriteTypes(ctx, testTypes()); err != nil {
		t.Fatalf("WriteTypes() failed: %v", err)
	}
	err := s.WriteData(ctx, Data{
		Entities: []Entity{
			{IID: "p1", Type: "person"},
			{IID: "p2", Type: "person"},
			{IID: "c1", Type: "company"},
		},
		Ownerships: []Ownership{
			{Owner: "p1", Attribute: Attribute{Type: "name", Value: ir.String("Alice")}},
			{Owner: "p1", Attribute: Attribute{Type: "age", Value: ir.Long(42)}},
			{Owner: "p2", Attribute: Attribute{Type: "name", Value: ir.String("Bob")}},
		},
		Relations: []Relation{
			{IID: "r1", Type: "contract", Players: []RolePlayer{
				{Role: "employee", Player: "p1"},
				{Role: "employer", Player: "c1"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("WriteData() failed: %v", err)
	}
}
