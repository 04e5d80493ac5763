package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub067/internal/resolve"
)

func decodeEnvelope(t *testing.T, buf *bytes.Buffer) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	return env
}

func TestReporter_JSONResult(t *testing.T) {
	buf := &bytes.Buffer{}
	rep := &Reporter{Format: "json", Out: buf}

	require.NoError(t, rep.Result(map[string]int{"answers": 3}))

	env := decodeEnvelope(t, buf)
	assert.Equal(t, "ok", env.Status)
	assert.Equal(t, map[string]any{"answers": float64(3)}, env.Data)
	assert.Nil(t, env.Error)
}

func TestReporter_JSONReport(t *testing.T) {
	buf := &bytes.Buffer{}
	rep := &Reporter{Format: "json", Out: buf}

	require.NoError(t, rep.Report(ErrCodeMalformedRule, "rules section does not compile", []string{"rules.adult: when is required"}))

	env := decodeEnvelope(t, buf)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeMalformedRule, env.Error.Code)
	assert.Equal(t, "rules section does not compile", env.Error.Message)
	assert.Equal(t, []any{"rules.adult: when is required"}, env.Error.Details)
}

func TestReporter_TextReport(t *testing.T) {
	details := map[string]string{"query": "match $x isa person;", "max_iterations": "4"}

	t.Run("quiet", func(t *testing.T) {
		buf := &bytes.Buffer{}
		rep := &Reporter{Format: "text", Out: buf}

		require.NoError(t, rep.Report(ErrCodeQueryParse, "unexpected ;", details))
		assert.Equal(t, "Error [E201]: unexpected ;\n", buf.String())
	})

	t.Run("verbose", func(t *testing.T) {
		buf := &bytes.Buffer{}
		rep := &Reporter{Format: "text", Out: buf, Verbose: true}

		require.NoError(t, rep.Report(ErrCodeQueryParse, "unexpected ;", details))
		assert.Equal(t, "Error [E201]: unexpected ;\n  max_iterations: 4\n  query: match $x isa person;\n", buf.String())
	})
}

type answerCount int

func (n answerCount) String() string { return fmt.Sprintf("%d answer(s)\n", int(n)) }

func TestReporter_TextResult(t *testing.T) {
	buf := &bytes.Buffer{}
	rep := &Reporter{Format: "text", Out: buf}

	require.NoError(t, rep.Result(answerCount(3)))
	require.NoError(t, rep.Result("Schema valid"))
	assert.Equal(t, "3 answer(s)\nSchema valid\n", buf.String())
}

func TestReporter_LogfGoesToDiag(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		t.Run(fmt.Sprint(verbose), func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			rep := &Reporter{Format: "json", Out: out, Diag: diag, Verbose: verbose}

			rep.Logf("Found %d CUE file(s) in %s", 2, "social")

			assert.Empty(t, out.String())
			if verbose {
				assert.Equal(t, "Found 2 CUE file(s) in social\n", diag.String())
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestReporter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	rep := &Reporter{Format: "json", Out: buf}

	err := rep.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", assert.AnError)

	assert.Equal(t, ExitCommandError, ExitStatus(err))
	assert.ErrorIs(t, err, assert.AnError)
	env := decodeEnvelope(t, buf)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeStoreFailed, env.Error.Code)
	assert.Equal(t, assert.AnError.Error(), env.Error.Message)
}

func TestReporter_FailResolve(t *testing.T) {
	t.Run("reasoner error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		rep := &Reporter{Format: "json", Out: buf}
		cause := resolve.NewIterationLimitError("match $x isa person;", 4)

		err := rep.FailResolve(fmt.Errorf("resolve: %w", cause))

		assert.Equal(t, ExitFailure, ExitStatus(err))
		env := decodeEnvelope(t, buf)
		require.NotNil(t, env.Error)
		assert.Equal(t, string(resolve.ErrCodeIterationLimit), env.Error.Code)
		assert.Equal(t, cause.Message, env.Error.Message)
		assert.Equal(t, map[string]any{"max_iterations": "4", "query": "match $x isa person;"}, env.Error.Details)
		assert.Equal(t, "4", cause.Details["max_iterations"])
		assert.NotContains(t, cause.Details, "query", "the error's own details are not modified")
	})

	t.Run("other error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		rep := &Reporter{Format: "json", Out: buf}

		err := rep.FailResolve(assert.AnError)

		assert.Equal(t, ExitFailure, ExitStatus(err))
		env := decodeEnvelope(t, buf)
		require.NotNil(t, env.Error)
		assert.Equal(t, ErrCodeGeneric, env.Error.Code)
		assert.Nil(t, env.Error.Details)
	})
}

func TestReporter_DocumentIsIndented(t *testing.T) {
	buf := &bytes.Buffer{}
	rep := &Reporter{Format: "text", Out: buf}

	require.NoError(t, rep.Document(Envelope{Status: "error", Error: &Problem{Code: "TEST_FAILED", Message: "1 of 2 scenarios failed"}}))

	assert.Contains(t, buf.String(), "\n  \"status\": \"error\"")
	assert.Equal(t, "TEST_FAILED", decodeEnvelope(t, buf).Error.Code)
}

func TestExitStatus(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitStatus(nil))
	assert.Equal(t, ExitCommandError, ExitStatus(NewExitError(ExitCommandError, "missing db")))
	assert.Equal(t, ExitFailure, ExitStatus(WrapExitError(ExitFailure, "resolution failed", assert.AnError)))
	assert.Equal(t, ExitFailure, ExitStatus(assert.AnError))

	err := WrapExitError(ExitCommandError, "failed to open database", assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "failed to open database: "+assert.AnError.Error(), err.Error())
}
