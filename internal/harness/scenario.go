package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reasoning test scenario.
// A scenario loads a CUE schema directory into a fresh store, resolves one
// query and checks the answers it produces.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE directory holding types, rules and data.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema"`

	// Query is the match query to resolve, e.g. `match $x isa person; get $x;`.
	Query string `yaml:"query"`

	// MaxIterations overrides the resolver's fixpoint iteration limit.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// Expect describes the answers or the error resolution must produce.
	Expect Expect `yaml:"expect"`

	// Assertions check individual answers and their derivations.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden compares the answer snapshot against testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// Expect specifies the expected outcome of resolution.
type Expect struct {
	// Count is the exact number of answers. Nil skips the check.
	Count *int `yaml:"count,omitempty"`

	// Answers is the exact answer set, each answer rendered as variable
	// name to instance id (or raw value for attributes). Order is ignored.
	Answers []map[string]string `yaml:"answers,omitempty"`

	// Error is the expected reasoner error code, e.g. UNBOUNDED_NEGATION.
	// When set, resolution must fail with that code.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks one answer row.
type Assertion struct {
	// Type is one of contains, excludes or inferred_by.
	Type string `yaml:"type"`

	// Answer is the row the assertion is about. Subset match: only the
	// listed variables are compared.
	Answer map[string]string `yaml:"answer"`

	// Rule is the rule label that must appear in the derivation of the
	// matching answer (inferred_by only).
	Rule string `yaml:"rule,omitempty"`
}

// Assertion type constants.
const (
	AssertContains   = "contains"
	AssertExcludes   = "excludes"
	AssertInferredBy = "inferred_by"
)

// LoadScenario reads and parses a scenario YAML file. The schema path is
// resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schema path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema directory is required")
	}
	if s.Query == "" {
		return fmt.Errorf("query is required")
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}

	info, err := os.Stat(s.Schema)
	if os.IsNotExist(err) {
		return fmt.Errorf("schema directory not found: %s", s.Schema)
	}
	if err == nil && !info.IsDir() {
		return fmt.Errorf("schema is not a directory: %s", s.Schema)
	}

	if s.Expect.Error != "" && (s.Expect.Count != nil || len(s.Expect.Answers) > 0) {
		return fmt.Errorf("expect: error cannot be combined with count or answers")
	}
	if s.Expect.Count != nil && *s.Expect.Count < 0 {
		return fmt.Errorf("expect: count must not be negative")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	switch a.Type {
	case AssertContains, AssertExcludes:
	case AssertInferredBy:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for inferred_by", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if len(a.Answer) == 0 {
		return fmt.Errorf("assertions[%d]: answer is required for %s", index, a.Type)
	}
	return nil
}
