package harness

import (
	"context"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// AnswerSnapshot captures the answers of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
//
// Only rows and rule labels are kept. Fact keys and explanation ids are
// content hashes and anonymous variable names depend on parse order, so
// full derivations would make snapshots brittle.
type AnswerSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Answers      []AnswerTrace `json:"answers"`
	ErrorCode    string        `json:"error_code,omitempty"`
}

// toCanonicalMap converts the snapshot to a map[string]any for canonical
// JSON serialization. Answers are sorted by row so resolution order does
// not matter.
func (s *AnswerSnapshot) toCanonicalMap() map[string]any {
	rows := make([]string, len(s.Answers))
	byRow := make(map[string]AnswerTrace, len(s.Answers))
	for i, a := range s.Answers {
		rows[i] = a.Row.String()
		byRow[rows[i]] = a
	}
	slices.Sort(rows)

	answers := make([]any, len(rows))
	for i, key := range rows {
		a := byRow[key]
		rules := a.Rules
		if rules == nil {
			rules = []string{}
		}
		answers[i] = map[string]any{
			"bindings": map[string]string(a.Row),
			"rules":    rules,
		}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"answers":       answers,
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// RunWithGolden executes a scenario and compares its answers against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the answers don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// Snapshot renders the canonical JSON compared against golden files.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := AnswerSnapshot{
		ScenarioName: scenarioName,
		Answers:      result.Answers,
		ErrorCode:    result.ErrorCode,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
