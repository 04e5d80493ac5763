package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func personWithName() Select {
	x := ColumnRef{"t_x", "iid"}
	n := ColumnRef{"t_n", "iid"}
	return Select{
		Sources: []Source{{"things", "t_x"}, {"ownerships", "o0"}, {"things", "t_n"}},
		Filter: And{Predicates: []Predicate{
			Equals{Ref: ColumnRef{"t_x", "type"}, Value: "person"},
			ColumnEquals{Left: ColumnRef{"o0", "owner"}, Right: x},
			ColumnEquals{Left: ColumnRef{"o0", "attribute"}, Right: n},
			In{Ref: ColumnRef{"t_n", "type"}, Values: []string{"name", "nickname"}},
			Param{Ref: x, Slot: 0},
		}},
		Columns: []Column{{Ref: x, As: "x_iid"}, {Ref: n, As: "n_iid"}},
		OrderBy: []ColumnRef{x, n},
	}
}

func TestValidate_WellFormed(t *testing.T) {
	res := Validate(personWithName())
	assert.True(t, res.IsValid, "problems: %v", res.Problems)
	assert.Empty(t, res.Problems)
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Select)
		want   string
	}{
		{"no sources", func(s *Select) { s.Sources = nil; s.Columns = nil; s.OrderBy = nil; s.Filter = nil }, "select has no sources"},
		{"duplicate alias", func(s *Select) { s.Sources = append(s.Sources, Source{"things", "t_x"}) }, `duplicate alias "t_x"`},
		{"bad table", func(s *Select) { s.Sources[0].Table = "things; DROP" }, `invalid table name "things; DROP"`},
		{"undeclared alias", func(s *Select) { s.Filter = Equals{Ref: ColumnRef{"zz", "type"}, Value: "x"} }, `reference to undeclared alias "zz"`},
		{"duplicate output", func(s *Select) { s.Columns[1].As = "x_iid" }, `duplicate output name "x_iid"`},
		{"no outputs", func(s *Select) { s.Columns = nil; s.OrderBy = nil }, "select has no output columns"},
		{"order not output", func(s *Select) { s.OrderBy = []ColumnRef{{"o0", "owner"}} }, "ordering column o0.owner is not an output column"},
		{"slot gap", func(s *Select) { s.Filter = Param{Ref: ColumnRef{"t_x", "iid"}, Slot: 1} }, "parameter slots are not contiguous: missing $0"},
		{"bad operator", func(s *Select) { s.Filter = Compare{Ref: ColumnRef{"t_n", "value"}, Op: "~", Value: "1"} }, `invalid comparison operator "~"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := personWithName()
			tt.mutate(&sel)
			res := Validate(sel)
			assert.False(t, res.IsValid)
			assert.Contains(t, res.Problems, tt.want)
		})
	}
}

func TestValidate_NilQuery(t *testing.T) {
	res := Validate(nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{"nil query"}, res.Problems)
}

func TestConjoin(t *testing.T) {
	a := Equals{Ref: ColumnRef{"t", "type"}, Value: "a"}
	b := Param{Ref: ColumnRef{"t", "iid"}, Slot: 0}

	assert.Nil(t, Conjoin())
	assert.Nil(t, Conjoin(nil, And{}))
	assert.Equal(t, a, Conjoin(nil, a))
	assert.Equal(t, And{Predicates: []Predicate{a, b, a}}, Conjoin(a, And{Predicates: []Predicate{b, And{Predicates: []Predicate{a}}}}))
}

func TestSlots(t *testing.T) {
	assert.Equal(t, 0, Slots(nil))
	assert.Equal(t, 1, Slots(personWithName().Filter))
	assert.Equal(t, 3, Slots(And{Predicates: []Predicate{
		Param{Ref: ColumnRef{"a", "iid"}, Slot: 2},
		Param{Ref: ColumnRef{"b", "iid"}, Slot: 0},
	}}))
}

func TestString(t *testing.T) {
	got := String(personWithName().Filter)
	assert.Equal(t,
		"t_x.type = 'person' AND o0.owner = t_x.iid AND o0.attribute = t_n.iid AND t_n.type IN ('name', 'nickname') AND t_x.iid = $0",
		got)
	assert.Equal(t, "t.value = 'it''s'", String(Equals{Ref: ColumnRef{"t", "value"}, Value: "it's"}))
	assert.Equal(t, "decode(t.value) > decode('18')", String(Compare{Ref: ColumnRef{"t", "value"}, Op: ">", Value: "18"}))
}
