package resolve

import (
	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// stateID indexes a state in the driver's arena.
type stateID int

// noParent is the parent of the top state.
const noParent stateID = -1

// state is one node of the resolution tree.
//
// generateSubGoal returns the next state to explore below this one, or
// false once the state is exhausted. propagateAnswer receives an answer
// from a child and returns the state that carries it further up, or false
// when the answer is filtered out.
type state interface {
	generateSubGoal(d *driver, self stateID) (stateID, bool, error)
	propagateAnswer(d *driver, self stateID, a *answerState) (stateID, bool, error)
	parent() stateID
	isAnswerState() bool
}

// answerState carries one answer to its parent. unifier is set on answers
// of rule conclusions, which are still in the rule's frame.
type answerState struct {
	parentID stateID
	m        ir.ConceptMap
	unifier  *unify.Unifier
	expls    []answer.Explanation
}

// rule returns the first rule among the answer's explanations.
func (a *answerState) rule() string {
	for _, e := range a.expls {
		if !e.IsLookup() {
			return e.Rule
		}
	}
	return ""
}

func (a *answerState) generateSubGoal(d *driver, _ stateID) (stateID, bool, error) {
	if a.parentID == noParent {
		return noParent, false, nil
	}
	return d.states[a.parentID].propagateAnswer(d, a.parentID, a)
}

func (a *answerState) propagateAnswer(*driver, stateID, *answerState) (stateID, bool, error) {
	return noParent, false, nil
}

func (a *answerState) parent() stateID { return a.parentID }
func (a *answerState) isAnswerState() bool { return true }
