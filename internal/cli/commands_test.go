package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub067/internal/resolve"
)

// loadDB loads schemaDir into a fresh database and returns its path.
func loadDB(t *testing.T, schemaDir string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "graph.db")
	_, _, err := execute(t, "--db", db, "load", schemaDir)
	require.NoError(t, err)
	return db
}

func TestLoadCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "graph.db")

	out, _, err := execute(t, "--db", db, "load", socialDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 file(s) into "+db)
	assert.Contains(t, out, "rules:      1")
	assert.Contains(t, out, "entities:   3")
}

func TestLoadCommandJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "graph.db")

	out, _, err := execute(t, "--db", db, "--format", "json", "load", reachDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   LoadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, LoadResult{
		Database:  db,
		Files:     1,
		Types:     3,
		Rules:     2,
		Entities:  3,
		Relations: 2,
	}, resp.Data)
}

func TestLoadCommandInvalidSchema(t *testing.T) {
	dir := writeSchema(t, "package bad\n\ntypes: person: {sub: \"animal\"}\n")
	db := filepath.Join(t.TempDir(), "graph.db")

	out, _, err := execute(t, "--db", db, "load", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitStatus(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.NoFileExists(t, db)
}

func TestLoadCommandMissingDir(t *testing.T) {
	_, _, err := execute(t, "--db", filepath.Join(t.TempDir(), "graph.db"), "load", "/nonexistent/schema")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitStatus(err))
}

func TestMatchCommand(t *testing.T) {
	db := loadDB(t, socialDir)

	out, _, err := execute(t, "--db", db, "match", `match $x has status "active"; get $x;`)
	require.NoError(t, err)
	assert.Contains(t, out, "bob")
	assert.NotContains(t, out, "alice")
	assert.Contains(t, out, "1 answer(s)")
}

func TestMatchCommandJSON(t *testing.T) {
	db := loadDB(t, reachDir)

	out, _, err := execute(t, "--db", db, "--format", "json", "match",
		`match $a iid n1; (origin: $a, dest: $b) isa reach; get $a, $b;`)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   MatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Answers, 2)

	var dests []string
	for _, a := range resp.Data.Answers {
		assert.Equal(t, "n1", a.Bindings["a"].IID)
		assert.Equal(t, "node", a.Bindings["a"].Type)
		dests = append(dests, a.Bindings["b"].IID)
	}
	assert.ElementsMatch(t, []string{"n2", "n3"}, dests)
	assert.Positive(t, resp.Data.Stats.RuleExpansions)
}

func TestMatchCommandLimit(t *testing.T) {
	db := loadDB(t, reachDir)

	out, _, err := execute(t, "--db", db, "match", "--limit", "1",
		`match (origin: $a, dest: $b) isa reach;`)
	require.NoError(t, err)
	assert.Contains(t, out, "1 answer(s)")
}

func TestMatchCommandErrors(t *testing.T) {
	db := loadDB(t, socialDir)

	t.Run("parse", func(t *testing.T) {
		out, _, err := execute(t, "--db", db, "--format", "json", "match", `match $x isa;`)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, ExitStatus(err))

		var resp Envelope
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeQueryParse, resp.Error.Code)
	})

	t.Run("unbound negation", func(t *testing.T) {
		out, _, err := execute(t, "--db", db, "--format", "json", "match",
			`match $x isa person; not { $y has status "active"; };`)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, ExitStatus(err))

		var resp Envelope
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(resolve.ErrCodeUnboundedNegation), resp.Error.Code)
		details, ok := resp.Error.Details.(map[string]any)
		require.True(t, ok, "reasoner errors carry the failing query")
		assert.NotEmpty(t, details["query"])
	})

	t.Run("missing database", func(t *testing.T) {
		_, _, err := execute(t, "--db", filepath.Join(t.TempDir(), "none.db"), "match", `match $x isa person;`)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, ExitStatus(err))
		assert.Contains(t, err.Error(), "run load first")
	})
}

func TestExplainCommand(t *testing.T) {
	db := loadDB(t, socialDir)

	out, _, err := execute(t, "--db", db, "explain")
	require.NoError(t, err)
	assert.Equal(t, "No explanations recorded.\n", out)

	out, _, err = execute(t, "--db", db, "--format", "json", "match", "--explain",
		`match $x has status "active"; get $x;`)
	require.NoError(t, err)

	var resp struct {
		Data MatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Answers, 1)
	require.Len(t, resp.Data.Answers[0].Explainables, 1)
	key := resp.Data.Answers[0].Explainables[0].Key

	out, _, err = execute(t, "--db", db, "explain")
	require.NoError(t, err)
	assert.Equal(t, key+"\n", out)

	out, _, err = execute(t, "--db", db, "explain", key)
	require.NoError(t, err)
	assert.Contains(t, out, "rule student-active")
	assert.Contains(t, out, "bob")
}

func TestExplainCommandUnknownKey(t *testing.T) {
	db := loadDB(t, socialDir)

	out, _, err := execute(t, "--db", db, "--format", "json", "explain", "deadbeef")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitStatus(err))

	var resp Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoExplanation, resp.Error.Code)
}
