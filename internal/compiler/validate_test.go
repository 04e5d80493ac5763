package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidDocument(t *testing.T) {
	doc, err := Compile(compileString(t, social))
	require.NoError(t, err)

	assert.Empty(t, Validate(doc))
}

func TestValidateTypeErrors(t *testing.T) {
	doc, err := Compile(compileString(t, `
		types: {
			person:  {sub: "animal"}
			score:   {sub: "attribute"}
			company: {sub: "entity", relates: ["member"]}
			bare:    {sub: "relation"}
		}
	`))
	require.NoError(t, err)

	errs := Validate(doc)

	assert.ElementsMatch(t, []string{
		ErrUnknownSupertype,
		ErrInvalidValueType,
		ErrRolesOnNonRelation,
		ErrRelationNoRoles,
	}, codes(errs))
}

func TestValidateDataErrors(t *testing.T) {
	doc, err := Compile(compileString(t, `
		types: {
			person:     {sub: "entity"}
			age:        {sub: "attribute", value: "long"}
			friendship: {sub: "relation", relates: ["friend"]}
		}
		data: {
			entities: [
				{iid: "alice", type: "person"},
				{iid: "alice", type: "person"},
				{iid: "x", type: "robot"},
				{iid: "y", type: "age"},
			]
			ownerships: [
				{owner: "alice", type: "age", value: "thirty"},
				{owner: "ghost", type: "age", value: 3},
			]
			relations: [
				{iid: "f1", type: "friendship", players: [{role: "enemy", player: "alice"}, {role: "friend", player: "nobody"}]},
			]
		}
	`))
	require.NoError(t, err)

	errs := Validate(doc)

	assert.ElementsMatch(t, []string{
		ErrDuplicateIID,
		ErrUnknownType,
		ErrKindMismatch,
		ErrValueTypeMismatch,
		ErrUnknownPlayer,
		ErrUnknownRole,
		ErrUnknownPlayer,
	}, codes(errs))
}

func TestValidateRuleErrors(t *testing.T) {
	doc, err := Compile(compileString(t, `
		types: {
			person: {sub: "entity"}
			status: {sub: "attribute", value: "string"}
		}
		rules: {
			"unknown-type": {when: "$x isa robot;", then: "$x has status \"on\";"}
			"unbound-head": {when: "$x isa person;", then: "$y has status \"on\";"}
			"fine":         {when: "$x isa person;", then: "$x has status \"on\";"}
		}
	`))
	require.NoError(t, err)

	errs := Validate(doc)

	require.Len(t, errs, 2)
	assert.Equal(t, []string{ErrInvalidRule, ErrInvalidRule}, codes(errs))
	assert.Equal(t, "rules.unknown-type", errs[0].Field)
	assert.Equal(t, "rules.unbound-head", errs[1].Field)
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "types.x", Message: "bad", Code: ErrInvalidLabel, Line: 3}
	assert.Equal(t, "[E105] line 3: types.x: bad", e.Error())

	e.Line = 0
	assert.Equal(t, "[E105] types.x: bad", e.Error())
}

func TestAnalyzeRecursion(t *testing.T) {
	doc, err := Compile(compileString(t, `
		types: {
			node:  {sub: "entity"}
			edge:  {sub: "relation", relates: ["source", "target"]}
			reach: {sub: "relation", relates: ["origin", "dest"]}
		}
		rules: {
			"reach-edge": {
				when: "(source: $a, target: $b) isa edge;"
				then: "(origin: $a, dest: $b) isa reach;"
			}
			"reach-step": {
				when: "(source: $a, target: $b) isa edge; (origin: $b, dest: $c) isa reach;"
				then: "(origin: $a, dest: $c) isa reach;"
			}
		}
	`))
	require.NoError(t, err)

	warnings, err := AnalyzeRecursion(doc)
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"reach-step", "reach-step"}, warnings[0].Path)
}

func TestAnalyzeRecursionNone(t *testing.T) {
	doc, err := Compile(compileString(t, social))
	require.NoError(t, err)

	warnings, err := AnalyzeRecursion(doc)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
