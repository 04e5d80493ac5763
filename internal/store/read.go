package store

import (
	"context"
	"fmt"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/schema"
)

// ReadTypes returns the stored types in definition order. Root types are
// not stored.
func (s *Store) ReadTypes(ctx context.Context) ([]schema.Type, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, kind, supertype, value_type, abstract
		FROM types
		ORDER BY seq ASC, label COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer rows.Close()

	var types []schema.Type
	for rows.Next() {
		var t schema.Type
		var kind, vt string
		if err := rows.Scan(&t.Label, &kind, &t.Super, &vt, &t.Abstract); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		t.Kind = ir.Kind(kind)
		t.ValueType = ir.ValueType(vt)
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	rows.Close()

	roles, err := s.readRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range types {
		types[i].Relates = roles[types[i].Label]
	}

	if types == nil {
		types = []schema.Type{}
	}
	return types, nil
}

func (s *Store) readRoles(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relation, role FROM type_roles
		ORDER BY relation COLLATE BINARY ASC, role COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[string][]string)
	for rows.Next() {
		var rel, role string
		if err := rows.Scan(&rel, &role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles[rel] = append(roles[rel], role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// ReadRules returns the stored rules in definition order.
func (s *Store) ReadRules(ctx context.Context) ([]RuleText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, when_pattern, then_pattern
		FROM rules
		ORDER BY seq ASC, label COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []RuleText{}
	for rows.Next() {
		var r RuleText
		if err := rows.Scan(&r.Label, &r.When, &r.Then); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// ReadThing retrieves a single instance by IID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadThing(ctx context.Context, iid string) (ir.Concept, error) {
	var c ir.Concept
	var kind, value string
	err := s.db.QueryRowContext(ctx, `
		SELECT iid, type, kind, value FROM things WHERE iid = ?
	`, iid).Scan(&c.IID, &c.Type, &kind, &value)
	if err != nil {
		return ir.Concept{}, err
	}
	c.Kind = ir.Kind(kind)
	if c.Value, err = unmarshalValue(value); err != nil {
		return ir.Concept{}, err
	}
	return c, nil
}

// CountThings returns the number of stored instances per kind.
func (s *Store) CountThings(ctx context.Context) (map[ir.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM things GROUP BY kind ORDER BY kind COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count things: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[ir.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// Explanations returns the explanations recorded for a fact key in
// recording order. Store implements answer.Lookup.
func (s *Store) Explanations(ctx context.Context, key string) ([]answer.Explanation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM explanations
		WHERE fact_key = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query explanations: %w", err)
	}
	defer rows.Close()

	var out []answer.Explanation
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan explanation: %w", err)
		}
		e, err := unmarshalExplanation(body)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate explanations: %w", err)
	}
	return out, nil
}

// ExplanationKeys returns every fact key with a recorded explanation.
func (s *Store) ExplanationKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT fact_key FROM explanations ORDER BY fact_key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query explanation keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan explanation key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

var _ answer.Lookup = (*Store)(nil)
