package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios. Scenarios
// marked golden are also compared against testdata/golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(s.Name, func(t *testing.T) {
			var (
				result *Result
				err    error
			)
			if s.Golden {
				result, err = RunWithGolden(t, s)
			} else {
				result, err = Run(t.Context(), s)
			}
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAnswerSnapshot_SortsAnswers(t *testing.T) {
	s := AnswerSnapshot{
		ScenarioName: "sorted",
		Answers: []AnswerTrace{
			{Row: Row{"x": "bob"}, Rules: []string{"r"}},
			{Row: Row{"x": "alice"}},
		},
	}

	m := s.toCanonicalMap()
	answers, ok := m["answers"].([]any)
	require.True(t, ok)
	require.Len(t, answers, 2)
	assert.Equal(t, map[string]any{
		"bindings": map[string]string{"x": "alice"},
		"rules":    []string{},
	}, answers[0])
	_, hasCode := m["error_code"]
	assert.False(t, hasCode)
}
