package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedb/typedb-sub067/internal/compiler"
)

var (
	socialDir = filepath.Join("..", "harness", "testdata", "schemas", "social")
	reachDir  = filepath.Join("..", "harness", "testdata", "schemas", "reach")
)

// writeSchema writes a single CUE file into a fresh directory.
func writeSchema(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(content), 0o644))
	return dir
}

func TestValidateValidSchema(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{socialDir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Schema valid")
	assert.NotContains(t, buf.String(), "warning")
}

func TestValidateRecursionWarning(t *testing.T) {
	out, _, err := execute(t, "validate", reachDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema valid")
	assert.Contains(t, out, "warning E111")
	assert.Contains(t, out, "reach-step")
}

func TestValidateValidSchemaJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", reachDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Warnings)
	assert.Equal(t, compiler.ErrRecursiveRule, resp.Data.Warnings[0].Code)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitStatus(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, _, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitStatus(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateInvalidSchema(t *testing.T) {
	dir := writeSchema(t, `package bad

types: {
	person: {sub: "animal"}
	name:   {sub: "attribute"}
}
`)

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitStatus(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownSupertype)
	assert.Contains(t, out, compiler.ErrInvalidValueType)
	assert.Contains(t, err.Error(), "2 error(s)")
}

func TestValidateInvalidSchemaJSON(t *testing.T) {
	dir := writeSchema(t, `package bad

types: person: {sub: "entity"}
data: entities: [
	{iid: "p1", type: "person"},
	{iid: "p1", type: "person"},
]
`)

	out, _, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitStatus(err))

	var resp Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrDuplicateIID, resp.Error.Code)
}

func TestValidateInvalidRule(t *testing.T) {
	dir := writeSchema(t, `package bad

types: person: {sub: "entity"}
rules: broken: {when: "$x isa person;", then: "$x has status \"active\";"}
`)

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, out, compiler.ErrInvalidRule)
	assert.Contains(t, out, "rules.broken")
}

func TestValidateCUEError(t *testing.T) {
	dir := writeSchema(t, "package bad\n\ntypes: {\n")

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitStatus(err))
	assert.Contains(t, out, "✗ Validation failed")
}

func TestValidateVerboseOutput(t *testing.T) {
	_, errOut, err := execute(t, "--verbose", "validate", socialDir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Found 2 CUE file(s)")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"types.person", ErrCodeMalformedType},
		{"types", ErrCodeMalformedType},
		{"rules.reach-step", ErrCodeMalformedRule},
		{"data.entities[0]", ErrCodeMalformedData},
		{"value", ErrCodeInvalidValue},
		{"cue", ErrCodeLoadFailed},
		{"other", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
