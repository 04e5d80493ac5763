package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Derivation is the explanation tree of an answer: one node per inferred
// fact the answer depends on.
type Derivation struct {
	Answer ir.ConceptMap `json:"answer"`
	Facts  []Fact        `json:"facts,omitempty"`
}

// Fact is one inferred atom and every rule application that produced it.
type Fact struct {
	Key   string `json:"key"`
	Atom  string `json:"atom"`
	Steps []Step `json:"steps"`

	// Cyclic marks a fact already being explained higher up the tree.
	Cyclic bool `json:"cyclic,omitempty"`
}

// Step is one rule application and the derivation of the body answer it
// fired on.
type Step struct {
	Explanation Explanation `json:"explanation"`
	Premises    Derivation  `json:"premises"`
}

// Explain reconstructs the derivation tree of m from recorded
// explanations. Facts with no recorded explanation appear with no steps.
func Explain(ctx context.Context, lookup Lookup, m ir.ConceptMap) (Derivation, error) {
	return explain(ctx, lookup, m, map[string]bool{})
}

func explain(ctx context.Context, lookup Lookup, m ir.ConceptMap, active map[string]bool) (Derivation, error) {
	d := Derivation{Answer: m}
	for _, ex := range m.Explainables() {
		if err := ctx.Err(); err != nil {
			return Derivation{}, err
		}
		fact := Fact{Key: ex.Key, Atom: ex.Atom}
		if active[ex.Key] {
			fact.Cyclic = true
			d.Facts = append(d.Facts, fact)
			continue
		}
		explanations, err := lookup.Explanations(ctx, ex.Key)
		if err != nil {
			return Derivation{}, fmt.Errorf("explain %s: %w", ex.Atom, err)
		}
		active[ex.Key] = true
		for _, e := range explanations {
			premises, err := explain(ctx, lookup, e.Condition, active)
			if err != nil {
				return Derivation{}, err
			}
			fact.Steps = append(fact.Steps, Step{Explanation: e, Premises: premises})
		}
		delete(active, ex.Key)
		d.Facts = append(d.Facts, fact)
	}
	return d, nil
}

// Format renders the tree as indented text. Fact keys are omitted so the
// output is stable across hash changes.
func (d Derivation) Format() string {
	var sb strings.Builder
	d.format(&sb, 0)
	return sb.String()
}

func (d Derivation) format(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%sanswer %s\n", indent, d.Answer)
	for _, f := range d.Facts {
		fmt.Fprintf(sb, "%s  fact %s", indent, f.Atom)
		switch {
		case f.Cyclic:
			sb.WriteString(" (cycle)\n")
			continue
		case len(f.Steps) == 0:
			sb.WriteString(" (unexplained)\n")
			continue
		}
		sb.WriteByte('\n')
		for _, s := range f.Steps {
			fmt.Fprintf(sb, "%s    rule %s\n", indent, s.Explanation.Rule)
			fmt.Fprintf(sb, "%s      then %s\n", indent, s.Explanation.Conclusion)
			s.Premises.format(sb, depth+3)
		}
	}
}
