package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/schema"
)

// RuleText is a rule as stored: its when and then blocks in query syntax.
type RuleText struct {
	Label string
	When  string
	Then  string
}

// Entity is an entity instance to insert.
type Entity struct {
	IID  string
	Type string
}

// Attribute is an attribute instance to insert. Its IID is derived from
// type and value.
type Attribute struct {
	Type  string
	Value ir.Value
}

// IID returns the attribute's content-addressed instance id.
func (a Attribute) IID() (string, error) {
	return ir.AttributeIID(a.Type, a.Value)
}

// Ownership connects an owner to an attribute instance.
type Ownership struct {
	Owner     string
	Attribute Attribute
}

// RolePlayer is one role assignment of a relation instance.
type RolePlayer struct {
	Role   string
	Player string
}

// Relation is a relation instance to insert.
type Relation struct {
	IID     string
	Type    string
	Players []RolePlayer
}

// Data is a batch of instances written in one transaction.
type Data struct {
	Entities   []Entity
	Attributes []Attribute
	Ownerships []Ownership
	Relations  []Relation
}

// WriteTypes inserts types and their roles. Root types are implicit and
// skipped. Existing labels are left unchanged.
func (s *Store) WriteTypes(ctx context.Context, types []schema.Type) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write types: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM types`).Scan(&seq); err != nil {
		return fmt.Errorf("write types: next seq: %w", err)
	}
	for _, t := range types {
		if t.Root() {
			continue
		}
		seq++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO types (label, kind, supertype, value_type, abstract, seq)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(label) DO NOTHING
		`, t.Label, string(t.Kind), t.Super, string(t.ValueType), t.Abstract, seq)
		if err != nil {
			return fmt.Errorf("write type %s: %w", t.Label, err)
		}
		for _, role := range t.Relates {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO type_roles (relation, role) VALUES (?, ?)
				ON CONFLICT DO NOTHING
			`, t.Label, role)
			if err != nil {
				return fmt.Errorf("write role %s:%s: %w", t.Label, role, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write types: commit: %w", err)
	}
	return nil
}

// WriteRules inserts rules. Existing labels are left unchanged.
func (s *Store) WriteRules(ctx context.Context, rules []RuleText) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write rules: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM rules`).Scan(&seq); err != nil {
		return fmt.Errorf("write rules: next seq: %w", err)
	}
	for _, r := range rules {
		seq++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rules (label, when_pattern, then_pattern, seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(label) DO NOTHING
		`, r.Label, r.When, r.Then, seq)
		if err != nil {
			return fmt.Errorf("write rule %s: %w", r.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write rules: commit: %w", err)
	}
	return nil
}

// WriteData inserts a batch of instances in one transaction. Every type
// must already exist with the matching kind.
func (s *Store) WriteData(ctx context.Context, d Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write data: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range d.Entities {
		if err := insertThing(ctx, tx, e.IID, e.Type, ir.KindEntity, ""); err != nil {
			return err
		}
	}
	for _, a := range d.Attributes {
		if _, err := insertAttribute(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, r := range d.Relations {
		if err := insertThing(ctx, tx, r.IID, r.Type, ir.KindRelation, ""); err != nil {
			return err
		}
		for _, rp := range r.Players {
			if err := checkRole(ctx, tx, r.Type, rp.Role); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO role_players (relation, role, player) VALUES (?, ?, ?)
				ON CONFLICT DO NOTHING
			`, r.IID, rp.Role, rp.Player)
			if err != nil {
				return fmt.Errorf("write role player %s of %s: %w", rp.Player, r.IID, err)
			}
		}
	}
	for _, o := range d.Ownerships {
		attrIID, err := insertAttribute(ctx, tx, o.Attribute)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ownerships (owner, attribute) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, o.Owner, attrIID)
		if err != nil {
			return fmt.Errorf("write ownership %s -> %s: %w", o.Owner, attrIID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write data: commit: %w", err)
	}
	return nil
}

func insertAttribute(ctx context.Context, tx *sql.Tx, a Attribute) (string, error) {
	iid, err := a.IID()
	if err != nil {
		return "", fmt.Errorf("write attribute %s: %w", a.Type, err)
	}
	vt, err := valueTypeOf(ctx, tx, a.Type)
	if err != nil {
		return "", err
	}
	if a.Value.ValueType() != vt {
		return "", fmt.Errorf("write attribute %s: value %s is not a %s", a.Type, ir.FormatValue(a.Value), vt)
	}
	enc, err := marshalValue(a.Value)
	if err != nil {
		return "", fmt.Errorf("write attribute %s: %w", a.Type, err)
	}
	return iid, insertThing(ctx, tx, iid, a.Type, ir.KindAttribute, enc)
}

func insertThing(ctx context.Context, tx *sql.Tx, iid, typ string, kind ir.Kind, value string) error {
	if iid == "" {
		return fmt.Errorf("write %s of type %s: empty iid", kind, typ)
	}
	var declared string
	err := tx.QueryRowContext(ctx, `SELECT kind FROM types WHERE label = ?`, typ).Scan(&declared)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("write %s: unknown type %q", iid, typ)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", iid, err)
	}
	if ir.Kind(declared) != kind {
		return fmt.Errorf("write %s: type %s is a %s type, not %s", iid, typ, declared, kind)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO things (iid, type, kind, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(iid) DO NOTHING
	`, iid, typ, string(kind), value)
	if err != nil {
		return fmt.Errorf("write %s: %w", iid, err)
	}
	return nil
}

func valueTypeOf(ctx context.Context, tx *sql.Tx, typ string) (ir.ValueType, error) {
	var vt string
	err := tx.QueryRowContext(ctx, `SELECT value_type FROM types WHERE label = ?`, typ).Scan(&vt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("write attribute: unknown type %q", typ)
	}
	if err != nil {
		return "", fmt.Errorf("write attribute %s: %w", typ, err)
	}
	return ir.ValueType(vt), nil
}

// checkRole verifies that a relation type, or a supertype, relates role.
func checkRole(ctx context.Context, tx *sql.Tx, relType, role string) error {
	for cur := relType; cur != "" && cur != schema.RootRelation; {
		var n int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM type_roles WHERE relation = ? AND role = ?
		`, cur, role).Scan(&n); err != nil {
			return fmt.Errorf("check role %s:%s: %w", relType, role, err)
		}
		if n > 0 {
			return nil
		}
		if err := tx.QueryRowContext(ctx, `SELECT supertype FROM types WHERE label = ?`, cur).Scan(&cur); err != nil {
			return fmt.Errorf("check role %s:%s: %w", relType, role, err)
		}
	}
	return fmt.Errorf("relation type %s does not relate role %q", relType, role)
}

// WriteExplanation records an explanation under a fact key. Recording the
// same explanation twice is a no-op. Store implements answer.Sink.
func (s *Store) WriteExplanation(ctx context.Context, key string, e answer.Explanation) error {
	body, err := marshalExplanation(e)
	if err != nil {
		return fmt.Errorf("write explanation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO explanations (id, fact_key, rule, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(fact_key, id) DO NOTHING
	`, e.ID, key, e.Rule, body)
	if err != nil {
		return fmt.Errorf("write explanation: %w", err)
	}
	return nil
}

var _ answer.Sink = (*Store)(nil)
