package typeql

import (
	"fmt"
	"strconv"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/schema"
)

// Query is a parsed match query.
type Query struct {
	Pattern pattern.Conjunction

	// Get lists the projected variables. Empty means every named
	// variable of the pattern.
	Get []ir.Identifier
}

// Projection returns the variables answers are filtered to.
func (q Query) Projection() []ir.Identifier {
	if len(q.Get) > 0 {
		return q.Get
	}
	return q.Pattern.Retrievable()
}

// ParseQuery parses "match <patterns> [get <vars>;]".
func ParseQuery(src string) (Query, error) {
	p, err := newParser(src)
	if err != nil {
		return Query{}, err
	}
	if err := p.keyword("match"); err != nil {
		return Query{}, err
	}
	conj, err := p.statements(func() bool { return p.peekKeyword("get") || p.at(tokEOF) })
	if err != nil {
		return Query{}, err
	}
	q := Query{Pattern: conj}
	if p.peekKeyword("get") {
		p.next()
		for !p.atPunct(";") && !p.at(tokEOF) {
			v, err := p.variable()
			if err != nil {
				return Query{}, err
			}
			q.Get = append(q.Get, v)
			if p.atPunct(",") {
				p.next()
			}
		}
		if p.atPunct(";") {
			p.next()
		}
	}
	if err := p.expect(tokEOF); err != nil {
		return Query{}, err
	}
	for _, v := range q.Get {
		found := false
		for _, pv := range conj.Vars() {
			if pv == v {
				found = true
				break
			}
		}
		if !found {
			return Query{}, &ParseError{Line: 1, Col: 1, Message: fmt.Sprintf("get variable %s is not bound by the pattern", v)}
		}
	}
	return q, nil
}

// ParsePattern parses a sequence of statements.
func ParsePattern(src string) (pattern.Conjunction, error) {
	p, err := newParser(src)
	if err != nil {
		return pattern.Conjunction{}, err
	}
	conj, err := p.statements(func() bool { return p.at(tokEOF) })
	if err != nil {
		return pattern.Conjunction{}, err
	}
	return conj, nil
}

// ParseConclusion parses a rule conclusion: exactly one ownership or
// relation statement.
func ParseConclusion(src string) (pattern.Atom, error) {
	conj, err := ParsePattern(src)
	if err != nil {
		return nil, err
	}
	return conclusion(conj)
}

// ParseRule parses "rule <label>: when { ... } then { ... };".
func ParseRule(src string) (schema.Rule, error) {
	p, err := newParser(src)
	if err != nil {
		return schema.Rule{}, err
	}
	if err := p.keyword("rule"); err != nil {
		return schema.Rule{}, err
	}
	label, err := p.label()
	if err != nil {
		return schema.Rule{}, err
	}
	if err := p.punct(":"); err != nil {
		return schema.Rule{}, err
	}
	if err := p.keyword("when"); err != nil {
		return schema.Rule{}, err
	}
	when, err := p.block()
	if err != nil {
		return schema.Rule{}, err
	}
	if err := p.keyword("then"); err != nil {
		return schema.Rule{}, err
	}
	thenTok := p.peek()
	then, err := p.block()
	if err != nil {
		return schema.Rule{}, err
	}
	if p.atPunct(";") {
		p.next()
	}
	if err := p.expect(tokEOF); err != nil {
		return schema.Rule{}, err
	}
	head, err := conclusion(then)
	if err != nil {
		return schema.Rule{}, &ParseError{Line: thenTok.line, Col: thenTok.col, Message: err.Error()}
	}
	return schema.Rule{Label: label, When: when, Then: head}, nil
}

func conclusion(conj pattern.Conjunction) (pattern.Atom, error) {
	if len(conj.Negations) > 0 {
		return nil, fmt.Errorf("a conclusion cannot contain negation")
	}
	var head pattern.Atom
	for _, a := range conj.Atoms {
		switch a.(type) {
		case pattern.Has, pattern.Relation:
			if head != nil {
				return nil, fmt.Errorf("a conclusion must be a single ownership or relation")
			}
			head = a
		case pattern.Isa:
			// The relation statement's own isa is folded into the atom.
		default:
			return nil, fmt.Errorf("a conclusion must be a single ownership or relation, got %q", a)
		}
	}
	if head == nil {
		return nil, fmt.Errorf("a conclusion must be a single ownership or relation")
	}
	if h, ok := head.(pattern.Has); ok {
		for _, a := range conj.Atoms {
			if isa, ok := a.(pattern.Isa); ok && isa.Var != h.Owner {
				return nil, fmt.Errorf("a conclusion must be a single ownership or relation, got %q", isa)
			}
		}
	}
	return head, nil
}

type parser struct {
	toks []token
	pos  int
	anon int
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(k tokenKind) bool { return p.peek().kind == k }

func (p *parser) atPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) peekKeyword(s string) bool {
	t := p.peek()
	return t.kind == tokLabel && t.text == s
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Line: t.line, Col: t.col, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k tokenKind) error {
	if t := p.peek(); t.kind != k {
		return p.errorf(t, "expected %s, found %s", k, t)
	}
	return nil
}

func (p *parser) keyword(s string) error {
	t := p.next()
	if t.kind != tokLabel || t.text != s {
		return p.errorf(t, "expected %q, found %s", s, t)
	}
	return nil
}

func (p *parser) punct(s string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		return p.errorf(t, "expected %q, found %s", s, t)
	}
	return nil
}

func (p *parser) label() (string, error) {
	t := p.next()
	if t.kind != tokLabel {
		return "", p.errorf(t, "expected a label, found %s", t)
	}
	return t.text, nil
}

func (p *parser) variable() (ir.Identifier, error) {
	t := p.next()
	if t.kind != tokVar {
		return ir.Identifier{}, p.errorf(t, "expected a variable, found %s", t)
	}
	if len(t.text) > 0 && t.text[0] == '_' {
		return ir.Identifier{}, p.errorf(t, "variable names may not start with '_'")
	}
	return ir.Var(t.text), nil
}

func (p *parser) fresh() ir.Identifier {
	id := ir.AnonVar(strconv.Itoa(p.anon))
	p.anon++
	return id
}

// block parses "{ statements }".
func (p *parser) block() (pattern.Conjunction, error) {
	if err := p.punct("{"); err != nil {
		return pattern.Conjunction{}, err
	}
	conj, err := p.statements(func() bool { return p.atPunct("}") || p.at(tokEOF) })
	if err != nil {
		return pattern.Conjunction{}, err
	}
	if err := p.punct("}"); err != nil {
		return pattern.Conjunction{}, err
	}
	return conj, nil
}

func (p *parser) statements(done func() bool) (pattern.Conjunction, error) {
	var conj pattern.Conjunction
	for !done() {
		if p.peekKeyword("not") {
			p.next()
			neg, err := p.block()
			if err != nil {
				return pattern.Conjunction{}, err
			}
			conj.Negations = append(conj.Negations, neg)
		} else {
			atoms, err := p.statement()
			if err != nil {
				return pattern.Conjunction{}, err
			}
			conj.Atoms = append(conj.Atoms, atoms...)
		}
		if err := p.punct(";"); err != nil {
			return pattern.Conjunction{}, err
		}
	}
	return conj, nil
}

// statement parses one statement up to, not including, the ';'.
func (p *parser) statement() ([]pattern.Atom, error) {
	if p.atPunct("(") {
		return p.relation(p.fresh())
	}
	subject, err := p.variable()
	if err != nil {
		return nil, err
	}
	if p.atPunct("(") {
		return p.relation(subject)
	}
	if p.atPunct("!=") && p.toks[p.pos+1].kind == tokVar {
		p.next()
		other, err := p.variable()
		if err != nil {
			return nil, err
		}
		return []pattern.Atom{pattern.Neq{Left: subject, Right: other}}, nil
	}
	if op, ok := p.comparator(); ok {
		pred, err := p.predicate(subject, op)
		if err != nil {
			return nil, err
		}
		return []pattern.Atom{pred}, nil
	}
	return p.properties(subject, nil)
}

// comparator consumes a value comparison operator if one is next.
func (p *parser) comparator() (ir.Comparator, bool) {
	t := p.peek()
	if (t.kind != tokPunct && t.kind != tokLabel) || !ir.ValidComparators[ir.Comparator(t.text)] {
		return "", false
	}
	p.next()
	return ir.Comparator(t.text), true
}

// predicate parses the literal of "subject <op> literal".
func (p *parser) predicate(subject ir.Identifier, op ir.Comparator) (pattern.ValuePredicate, error) {
	t := p.peek()
	if t.kind == tokVar {
		return pattern.ValuePredicate{}, p.errorf(t, "value predicates compare with a literal, found %s", t)
	}
	v, err := p.value()
	if err != nil {
		return pattern.ValuePredicate{}, err
	}
	if !op.Applies(v.ValueType()) {
		return pattern.ValuePredicate{}, p.errorf(t, "operator %s cannot compare %s values", op, v.ValueType())
	}
	return pattern.ValuePredicate{Var: subject, Op: op, Value: v}, nil
}

// properties parses "isa T, has T v, iid I" clauses for a subject.
func (p *parser) properties(subject ir.Identifier, atoms []pattern.Atom) ([]pattern.Atom, error) {
	for {
		t := p.next()
		if t.kind != tokLabel {
			return nil, p.errorf(t, "expected isa, has or iid, found %s", t)
		}
		switch t.text {
		case "isa", "isa!":
			typ, err := p.label()
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, pattern.Isa{Var: subject, Type: typ, Exact: t.text == "isa!"})
		case "has":
			has, err := p.has(subject)
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, has...)
		case "iid":
			iid, err := p.label()
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, pattern.IID{Var: subject, IID: iid})
		default:
			return nil, p.errorf(t, "expected isa, has or iid, found %s", t)
		}
		if !p.atPunct(",") {
			return atoms, nil
		}
		p.next()
	}
}

// has parses "T $a", "T literal", "T <op> literal" or "T $a <op> literal"
// after the has keyword. A comparison adds a value predicate on the
// attribute; equality with a literal stays part of the ownership.
func (p *parser) has(owner ir.Identifier) ([]pattern.Atom, error) {
	typ, err := p.label()
	if err != nil {
		return nil, err
	}
	var attr ir.Identifier
	if p.at(tokVar) {
		if attr, err = p.variable(); err != nil {
			return nil, err
		}
	} else {
		attr = p.fresh()
	}
	if op, ok := p.comparator(); ok {
		pred, err := p.predicate(attr, op)
		if err != nil {
			return nil, err
		}
		if op == ir.Eq && attr.Anonymous {
			return []pattern.Atom{pattern.Has{Owner: owner, Attribute: attr, Type: typ, Value: pred.Value}}, nil
		}
		return []pattern.Atom{pattern.Has{Owner: owner, Attribute: attr, Type: typ}, pred}, nil
	}
	if !attr.Anonymous {
		return []pattern.Atom{pattern.Has{Owner: owner, Attribute: attr, Type: typ}}, nil
	}

	t := p.peek()
	switch t.kind {
	case tokString, tokInt, tokLabel:
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		return []pattern.Atom{pattern.Has{Owner: owner, Attribute: attr, Type: typ, Value: v}}, nil
	default:
		return nil, p.errorf(t, "expected a variable or value after has %s, found %s", typ, t)
	}
}

func (p *parser) value() (ir.Value, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return ir.String(t.text), nil
	case tokInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid integer %s", t.text)
		}
		return ir.Long(n), nil
	case tokLabel:
		switch t.text {
		case "true":
			return ir.Bool(true), nil
		case "false":
			return ir.Bool(false), nil
		}
	}
	return nil, p.errorf(t, "expected a value, found %s", t)
}

// relation parses "(role: $a, $b) isa T" with optional trailing clauses.
func (p *parser) relation(rel ir.Identifier) ([]pattern.Atom, error) {
	if err := p.punct("("); err != nil {
		return nil, err
	}
	var players []pattern.RolePlayer
	for !p.atPunct(")") {
		var role string
		if p.at(tokLabel) {
			role, _ = p.label()
			if err := p.punct(":"); err != nil {
				return nil, err
			}
		}
		player, err := p.variable()
		if err != nil {
			return nil, err
		}
		players = append(players, pattern.RolePlayer{Role: role, Player: player})
		if p.atPunct(",") {
			p.next()
		} else if !p.atPunct(")") {
			return nil, p.errorf(p.peek(), "expected ',' or ')', found %s", p.peek())
		}
	}
	p.next()
	if len(players) == 0 {
		return nil, p.errorf(p.peek(), "relation needs at least one role player")
	}
	if err := p.keyword("isa"); err != nil {
		return nil, err
	}
	typ, err := p.label()
	if err != nil {
		return nil, err
	}
	atoms := []pattern.Atom{pattern.Relation{Var: rel, Type: typ, Players: players}}
	if p.atPunct(",") {
		p.next()
		return p.properties(rel, atoms)
	}
	return atoms, nil
}
