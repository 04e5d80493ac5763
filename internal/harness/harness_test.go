package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_InferredAnswers(t *testing.T) {
	result, err := Run(context.Background(), loadTestdata(t, "student_active"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Answers, 1)
	assert.Equal(t, Row{"x": "bob"}, result.Answers[0].Row)
	assert.Equal(t, []string{"student-active"}, result.Answers[0].Rules)
	assert.NotEmpty(t, result.Answers[0].Derivation.Facts)
	assert.Positive(t, result.Stats.RuleExpansions)
}

func TestRun_RecursiveRules(t *testing.T) {
	result, err := Run(context.Background(), loadTestdata(t, "reachability"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Answers, 3)
}

func TestRun_ExpectedError(t *testing.T) {
	result, err := Run(context.Background(), loadTestdata(t, "unbound_negation"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "UNBOUNDED_NEGATION", result.ErrorCode)
	assert.Empty(t, result.Answers)
}

func TestRun_Failures(t *testing.T) {
	count := 5
	s := loadTestdata(t, "student_active")
	s.Expect.Count = &count
	s.Expect.Answers = []map[string]string{{"x": "alice"}}
	s.Assertions = []Assertion{{Type: AssertContains, Answer: map[string]string{"x": "carol"}}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected 5 answers, got 1")
	assert.Contains(t, result.Errors[1], "answers mismatch")
	assert.Contains(t, result.Errors[2], "no matching answer")
}

func TestRun_UnexpectedError(t *testing.T) {
	s := loadTestdata(t, "unbound_negation")
	s.Expect = Expect{}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, "UNBOUNDED_NEGATION", result.ErrorCode)
}

func TestRun_MissedError(t *testing.T) {
	s := loadTestdata(t, "student_active")
	s.Expect = Expect{Error: "ITERATION_LIMIT"}
	s.Assertions = nil

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{"expected error ITERATION_LIMIT, got no error"}, result.Errors)
}

func TestRun_BadQuery(t *testing.T) {
	s := loadTestdata(t, "student_active")
	s.Query = "match $x"

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse query")
}

func TestRenderRow(t *testing.T) {
	result, err := Run(context.Background(), loadTestdata(t, "inactive_people"))
	require.NoError(t, err)

	rows := result.Rows()
	assert.ElementsMatch(t, []Row{
		{"x": "alice", "n": "Alice"},
		{"x": "carol", "n": "Carol"},
	}, rows)
}

func TestRow_String(t *testing.T) {
	assert.Equal(t, "{a=n1, b=n2}", Row{"b": "n2", "a": "n1"}.String())
	assert.Equal(t, "{}", Row{}.String())
}
