package harness

import (
	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/resolve"
)

// Row is one answer rendered for comparison: variable name to instance id,
// or to the raw value for attributes.
type Row map[string]string

// AnswerTrace is one answer with the rules its derivation used.
type AnswerTrace struct {
	Row        Row               `json:"row"`
	Rules      []string          `json:"rules"`
	Derivation answer.Derivation `json:"derivation"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Answers holds the answers in the order the resolver produced them.
	Answers []AnswerTrace `json:"answers"`

	// Stats is the resolver's work counters for the run.
	Stats resolve.Stats `json:"stats"`

	// ErrorCode is the reasoner error code when resolution failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Answers: []AnswerTrace{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Rows returns the rendered rows of every answer.
func (r *Result) Rows() []Row {
	rows := make([]Row, len(r.Answers))
	for i, a := range r.Answers {
		rows[i] = a.Row
	}
	return rows
}
