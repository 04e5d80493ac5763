package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/resolve"
	"github.com/typedb/typedb-sub067/internal/typeql"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Explain bool
	Limit   int
}

// ConceptJSON is one bound concept in JSON output.
type ConceptJSON struct {
	IID      string `json:"iid"`
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	Value    any    `json:"value,omitempty"`
	Inferred bool   `json:"inferred,omitempty"`
}

// AnswerJSON is one answer in JSON output.
type AnswerJSON struct {
	Bindings     map[string]ConceptJSON `json:"bindings"`
	Explainables []ir.Explainable       `json:"explainables,omitempty"`
	Rules        []string               `json:"rules,omitempty"`
}

// MatchResult is the output of the match command.
type MatchResult struct {
	Query   string        `json:"query"`
	Answers []AnswerJSON  `json:"answers"`
	Stats   resolve.Stats `json:"stats"`
}

func (r MatchResult) String() string {
	var b strings.Builder
	for _, a := range r.Answers {
		b.WriteString(formatAnswer(a))
		b.WriteByte('\n')
		for _, ex := range a.Explainables {
			fmt.Fprintf(&b, "  inferred %s (explain %s)\n", ex.Atom, ex.Key)
		}
	}
	fmt.Fprintf(&b, "%d answer(s)\n", len(r.Answers))
	return b.String()
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <query>",
		Short: "Answer a query from stored and inferred facts",
		Long: `Resolve a match query against the store, applying rules as needed.

Inferred answers list the keys of their inferred facts. With --explain the
explanations are written to the store so "reasoner explain <key>" can show
the derivation later.

Examples:
  reasoner match --db ./graph.db 'match $x isa person, has status "active"; get $x;'
  reasoner match --db ./graph.db --explain 'match (origin: $a, dest: $b) isa reach;'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "persist explanations of inferred answers (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many answers (0 = all)")

	return cmd
}

func runMatch(opts *MatchOptions, src string, cmd *cobra.Command) error {
	rep := newReporter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	q, err := typeql.ParseQuery(src)
	if err != nil {
		return rep.Fail(ExitFailure, ErrCodeQueryParse, "invalid query", err)
	}

	explain := opts.Explain || opts.Config.Explain
	sess, err := openSession(ctx, opts.RootOptions, explain)
	if err != nil {
		return err
	}
	defer sess.Close()

	result := MatchResult{Query: src, Answers: []AnswerJSON{}}
	for a, err := range sess.resolver.Resolve(ctx, q, ir.ConceptMap{}) {
		if err != nil {
			return rep.FailResolve(err)
		}
		result.Answers = append(result.Answers, toAnswerJSON(a))
		if opts.Limit > 0 && len(result.Answers) >= opts.Limit {
			break
		}
	}
	result.Stats = sess.resolver.Stats()
	slog.Debug("match finished",
		"answers", len(result.Answers),
		"rule_expansions", result.Stats.RuleExpansions,
		"iterations", result.Stats.Iterations)

	return rep.Result(result)
}

func toAnswerJSON(a answer.Answer) AnswerJSON {
	out := AnswerJSON{
		Bindings:     make(map[string]ConceptJSON, a.Map.Len()),
		Explainables: a.Map.Explainables(),
	}
	for _, id := range a.Map.Identifiers() {
		c, _ := a.Map.Get(id)
		cj := ConceptJSON{IID: c.IID, Type: c.Type, Kind: string(c.Kind), Inferred: c.Inferred}
		if c.Value != nil {
			cj.Value = c.Value
		}
		out.Bindings[id.Name] = cj
	}
	out.Rules = a.Rules()
	return out
}

// formatAnswer renders an answer like a concept map: {$x=person[alice]}.
func formatAnswer(a AnswerJSON) string {
	m := make(map[ir.Identifier]ir.Concept, len(a.Bindings))
	for name, c := range a.Bindings {
		concept := ir.Concept{IID: c.IID, Type: c.Type, Kind: ir.Kind(c.Kind)}
		if v, ok := c.Value.(ir.Value); ok {
			concept.Value = v
		}
		m[ir.Var(name)] = concept
	}
	return ir.NewConceptMap(m).String()
}
