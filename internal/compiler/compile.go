package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/store"
	"github.com/typedb/typedb-sub067/internal/typeql"
)

// Document is a compiled CUE document.
type Document struct {
	Types []schema.Type
	Rules []store.RuleText
	Data  store.Data
}

// Compile compiles every section present in v. Missing sections are
// empty.
func Compile(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	doc := &Document{}

	var err error
	if tv := v.LookupPath(cue.ParsePath("types")); tv.Exists() {
		if doc.Types, err = CompileTypes(tv); err != nil {
			return nil, err
		}
	}
	if rv := v.LookupPath(cue.ParsePath("rules")); rv.Exists() {
		if doc.Rules, err = CompileRules(rv); err != nil {
			return nil, err
		}
	}
	if dv := v.LookupPath(cue.ParsePath("data")); dv.Exists() {
		if doc.Data, err = CompileData(dv); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Schema parses the document's rules and builds the schema they are
// checked against.
func (d *Document) Schema() (*schema.Schema, error) {
	rules := make([]schema.Rule, 0, len(d.Rules))
	for _, rt := range d.Rules {
		r, err := ParseRule(rt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return schema.New(d.Types, rules)
}

// ParseRule parses a stored rule.
func ParseRule(rt store.RuleText) (schema.Rule, error) {
	r, err := typeql.ParseRule(RuleSource(rt))
	if err != nil {
		return schema.Rule{}, fmt.Errorf("rule %s: %w", rt.Label, err)
	}
	return r, nil
}

// RuleSource renders a stored rule in query syntax.
func RuleSource(rt store.RuleText) string {
	return fmt.Sprintf("rule %s: when { %s } then { %s };", rt.Label, terminated(rt.When), terminated(rt.Then))
}

// CompileTypes compiles the types section: one field per type label.
func CompileTypes(v cue.Value) ([]schema.Type, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var types []schema.Type
	for iter.Next() {
		label := iter.Label()
		tv := iter.Value()
		t := schema.Type{Label: label}

		sub, err := requiredString(tv, "sub", "types."+label)
		if err != nil {
			return nil, err
		}
		t.Super = sub

		if vt, ok, err := optionalString(tv, "value"); err != nil {
			return nil, err
		} else if ok {
			if !ir.ValidValueTypes[ir.ValueType(vt)] {
				return nil, &CompileError{
					Field:   "types." + label + ".value",
					Message: fmt.Sprintf("unknown value type %q (want string, long or boolean)", vt),
					Pos:     tv.Pos(),
				}
			}
			t.ValueType = ir.ValueType(vt)
		}

		if t.Relates, err = stringList(tv, "relates"); err != nil {
			return nil, err
		}

		if av := tv.LookupPath(cue.ParsePath("abstract")); av.Exists() {
			if t.Abstract, err = av.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		types = append(types, t)
	}
	return types, nil
}

// CompileRules compiles the rules section. Each rule's blocks are parsed
// so syntax errors surface at compile time.
func CompileRules(v cue.Value) ([]store.RuleText, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []store.RuleText
	for iter.Next() {
		label := iter.Label()
		rv := iter.Value()
		field := "rules." + label

		when, err := requiredString(rv, "when", field)
		if err != nil {
			return nil, err
		}
		then, err := requiredString(rv, "then", field)
		if err != nil {
			return nil, err
		}
		rt := store.RuleText{Label: label, When: when, Then: then}
		if _, err := ParseRule(rt); err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: rv.Pos()}
		}
		rules = append(rules, rt)
	}
	return rules, nil
}

// CompileData compiles the data section.
func CompileData(v cue.Value) (store.Data, error) {
	var d store.Data

	err := eachElement(v, "entities", func(ev cue.Value) error {
		iid, err := requiredString(ev, "iid", "data.entities")
		if err != nil {
			return err
		}
		typ, err := requiredString(ev, "type", "data.entities")
		if err != nil {
			return err
		}
		d.Entities = append(d.Entities, store.Entity{IID: iid, Type: typ})
		return nil
	})
	if err != nil {
		return store.Data{}, err
	}

	err = eachElement(v, "attributes", func(av cue.Value) error {
		a, err := attribute(av, "data.attributes")
		if err != nil {
			return err
		}
		d.Attributes = append(d.Attributes, a)
		return nil
	})
	if err != nil {
		return store.Data{}, err
	}

	err = eachElement(v, "ownerships", func(ov cue.Value) error {
		owner, err := requiredString(ov, "owner", "data.ownerships")
		if err != nil {
			return err
		}
		a, err := attribute(ov, "data.ownerships")
		if err != nil {
			return err
		}
		d.Ownerships = append(d.Ownerships, store.Ownership{Owner: owner, Attribute: a})
		return nil
	})
	if err != nil {
		return store.Data{}, err
	}

	err = eachElement(v, "relations", func(rv cue.Value) error {
		iid, err := requiredString(rv, "iid", "data.relations")
		if err != nil {
			return err
		}
		typ, err := requiredString(rv, "type", "data.relations")
		if err != nil {
			return err
		}
		r := store.Relation{IID: iid, Type: typ}
		err = eachElement(rv, "players", func(pv cue.Value) error {
			role, err := requiredString(pv, "role", "data.relations.players")
			if err != nil {
				return err
			}
			player, err := requiredString(pv, "player", "data.relations.players")
			if err != nil {
				return err
			}
			r.Players = append(r.Players, store.RolePlayer{Role: role, Player: player})
			return nil
		})
		if err != nil {
			return err
		}
		if len(r.Players) == 0 {
			return &CompileError{Field: "data.relations." + iid, Message: "relation needs at least one role player", Pos: rv.Pos()}
		}
		d.Relations = append(d.Relations, r)
		return nil
	})
	if err != nil {
		return store.Data{}, err
	}
	return d, nil
}

func attribute(v cue.Value, field string) (store.Attribute, error) {
	typ, err := requiredString(v, "type", field)
	if err != nil {
		return store.Attribute{}, err
	}
	vv := v.LookupPath(cue.ParsePath("value"))
	if !vv.Exists() {
		return store.Attribute{}, &CompileError{Field: field + ".value", Message: "value is required", Pos: v.Pos()}
	}
	val, err := Value(vv)
	if err != nil {
		return store.Attribute{}, err
	}
	return store.Attribute{Type: typ, Value: val}, nil
}

// Value converts a concrete CUE scalar into an attribute value.
// Floats are forbidden; use integers instead.
func Value(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Long(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, name, field string) (string, error) {
	s, ok, err := optionalString(v, name)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	var out []string
	err := eachElement(v, name, func(ev cue.Value) error {
		s, err := ev.String()
		if err != nil {
			return formatCUEError(err)
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// eachElement calls fn for every element of the list field name of v. A
// missing field is an empty list.
func eachElement(v cue.Value, name string, fn func(cue.Value) error) error {
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil
	}
	iter, err := lv.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func terminated(block string) string {
	block = strings.TrimSpace(block)
	if strings.HasSuffix(block, ";") {
		return block
	}
	return block + ";"
}
