package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/cache"
	"github.com/typedb/typedb-sub067/internal/compiler"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/resolve"
	"github.com/typedb/typedb-sub067/internal/store"
	"github.com/typedb/typedb-sub067/internal/testutil"
	"github.com/typedb/typedb-sub067/internal/traversal"
	"github.com/typedb/typedb-sub067/internal/typeql"
)

// Harness runs one scenario against a fresh store.
type Harness struct {
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Request ids come from
// a sequence generator so logs and snapshots are reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the CUE schema directory and install it
// 3. Resolve the query and explain every answer
// 4. Compare against the expect clause and assertions
//
// The returned error covers setup failures only. A resolution error is
// part of the result and fails it unless the scenario expects it.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	loaded, err := compiler.LoadDir(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	sch, err := compiler.Install(ctx, st, loaded.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to install schema: %w", err)
	}

	opts := []resolve.Option{resolve.WithRequestIDs(testutil.NewSequenceGenerator(scenario.Name))}
	if scenario.MaxIterations > 0 {
		opts = append(opts, resolve.WithMaxIterations(scenario.MaxIterations))
	}
	structural := cache.NewStructuralCache(traversal.NewPlanner(sch), traversal.NewExecutor(st))

	h := &Harness{
		resolver: resolve.New(sch, structural, opts...),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result := NewResult()
	if err := h.resolve(ctx, scenario.Query, result); err != nil {
		return nil, err
	}
	h.logger.Debug("scenario resolved",
		"scenario", scenario.Name,
		"answers", len(result.Answers),
		"error_code", result.ErrorCode)

	for _, msg := range checkExpect(scenario.Expect, result) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// resolve runs the query and records every answer with its derivation.
// Reasoner errors are recorded on the result. Parse errors and failures
// to explain are returned.
func (h *Harness) resolve(ctx context.Context, src string, result *Result) error {
	q, err := typeql.ParseQuery(src)
	if err != nil {
		return fmt.Errorf("failed to parse query: %w", err)
	}

	var answers []answer.Answer
	for a, err := range h.resolver.Resolve(ctx, q, ir.ConceptMap{}) {
		if err != nil {
			var re *resolve.ReasonerError
			if !errors.As(err, &re) {
				return fmt.Errorf("resolution failed: %w", err)
			}
			result.ErrorCode = string(re.Code)
			result.AddError(err.Error())
			break
		}
		answers = append(answers, a)
	}
	result.Stats = h.resolver.Stats()

	for _, a := range answers {
		d, err := h.resolver.Explain(ctx, a.Map)
		if err != nil {
			return fmt.Errorf("failed to explain %s: %w", a.Map, err)
		}
		result.Answers = append(result.Answers, AnswerTrace{
			Row:        RenderRow(a.Map),
			Rules:      derivationRules(d),
			Derivation: d,
		})
	}
	return nil
}

// checkExpect compares the result against the expect clause. An expected
// error code replaces a failure with that code by a pass.
func checkExpect(exp Expect, result *Result) []string {
	if exp.Error != "" {
		if result.ErrorCode != exp.Error {
			got := result.ErrorCode
			if got == "" {
				got = "no error"
			}
			return []string{fmt.Sprintf("expected error %s, got %s", exp.Error, got)}
		}
		result.Errors = result.Errors[:0]
		result.Pass = true
		return nil
	}

	var errs []string
	if exp.Count != nil && len(result.Answers) != *exp.Count {
		errs = append(errs, fmt.Sprintf("expected %d answers, got %d", *exp.Count, len(result.Answers)))
	}
	if exp.Answers != nil {
		want := make([]string, len(exp.Answers))
		for i, row := range exp.Answers {
			want[i] = Row(row).String()
		}
		got := make([]string, len(result.Answers))
		for i, a := range result.Answers {
			got[i] = a.Row.String()
		}
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			errs = append(errs, fmt.Sprintf("answers mismatch:\n  expected: %v\n  actual:   %v", want, got))
		}
	}
	return errs
}

// RenderRow renders the retrievable bindings of m. Entities and relations
// render as their instance id, attributes as their raw value.
func RenderRow(m ir.ConceptMap) Row {
	row := make(Row, m.Len())
	for _, id := range m.Identifiers() {
		if !id.Retrievable() {
			continue
		}
		c, _ := m.Get(id)
		row[id.Name] = renderConcept(c)
	}
	return row
}

func renderConcept(c ir.Concept) string {
	if c.Kind != ir.KindAttribute || c.Value == nil {
		return c.IID
	}
	switch v := c.Value.(type) {
	case ir.String:
		return string(v)
	case ir.Long:
		return strconv.FormatInt(int64(v), 10)
	case ir.Bool:
		return strconv.FormatBool(bool(v))
	default:
		return ir.FormatValue(v)
	}
}

// String renders the row in key order, e.g. {x=alice, y=bob}.
func (r Row) String() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k + "=" + r[k]
	}
	return out + "}"
}

// matches reports whether every binding of want is in r.
func (r Row) matches(want map[string]string) bool {
	for k, v := range want {
		if r[k] != v {
			return false
		}
	}
	return true
}

// derivationRules collects the labels of every rule applied anywhere in d,
// sorted and without duplicates.
func derivationRules(d answer.Derivation) []string {
	seen := map[string]bool{}
	var walk func(answer.Derivation)
	walk = func(d answer.Derivation) {
		for _, f := range d.Facts {
			for _, s := range f.Steps {
				seen[s.Explanation.Rule] = true
				walk(s.Premises)
			}
		}
	}
	walk(d)

	rules := make([]string, 0, len(seen))
	for r := range seen {
		rules = append(rules, r)
	}
	slices.Sort(rules)
	return rules
}
