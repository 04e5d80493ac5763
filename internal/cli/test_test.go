package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

// writeScenario writes a scenario over the social schema into dir.
func writeScenario(t *testing.T, dir, name, query string, golden bool) string {
	t.Helper()
	schemaDir, err := filepath.Abs(socialDir)
	require.NoError(t, err)
	content := fmt.Sprintf("name: %s\ndescription: %s\nschema: %s\nquery: '%s'\ngolden: %t\n",
		name, name, schemaDir, query, golden)
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitStatus(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data.Scenarios)
	assert.Zero(t, resp.Data.Total)
}

func TestTestCommandScenarios(t *testing.T) {
	out, _, err := execute(t, "test", scenariosDir, "--golden-dir", goldenDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ student_active")
	assert.Contains(t, out, "✓ reachability")
	assert.Contains(t, out, "✓ unbound_negation")
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", scenariosDir, "--golden-dir", goldenDir, "--filter", "reach*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "reachability", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.Equal(t, 3, resp.Data.Scenarios[0].Answers)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "wrong_count", `match $x isa person; get $x;`, false)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("expect:\n  count: 1\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitStatus(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *Problem  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors, "expected 1 answers, got 3")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "students", `match $x isa student; get $x;`, true)

	_, _, err := execute(t, "test", dir)
	require.Error(t, err, "golden file does not exist yet")

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ students (golden updated)")

	data, err := os.ReadFile(filepath.Join(dir, "golden", "students.golden"))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"answers":[{"bindings":{"x":"bob"},"rules":[]}],"scenario_name":"students"}`,
		string(data))

	out, _, err = execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ students")
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(scenariosDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	files, err := findScenarioFiles(scenariosDir, "*_active")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "student_active.yaml", filepath.Base(files[0]))

	_, err = findScenarioFiles(scenariosDir, "[")
	require.Error(t, err)
}

func TestFindScenarioFilesSingleFile(t *testing.T) {
	path := filepath.Join(scenariosDir, "reachability.yaml")
	files, err := findScenarioFiles(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.yml"), []byte("name: a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.yml", filepath.Base(files[0]))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "reachability.golden"),
		goldenFilePath("", filepath.Join("scenarios", "reachability.yaml"), "reachability"))
	assert.Equal(t,
		filepath.Join("out", "reachability.golden"),
		goldenFilePath("out", filepath.Join("scenarios", "reachability.yaml"), "reachability"))
}
