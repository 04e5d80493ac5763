// Package harness runs reasoning scenarios as executable contract tests.
//
// A scenario loads a CUE schema directory (types, rules and data) into a
// fresh in-memory store, resolves one query and checks the answers and
// their derivations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: person_active
//	description: "Every person is inferred active"
//	schema: schemas/social
//	query: 'match $x has status "active"; get $x;'
//	expect:
//	  count: 2
//	  answers:
//	    - {x: alice}
//	    - {x: bob}
//	assertions:
//	  - type: inferred_by
//	    answer: {x: alice}
//	    rule: person-active
//	golden: true
//
// An expect clause may instead name a reasoner error code:
//
//	expect:
//	  error: UNBOUNDED_NEGATION
//
// # Assertion Types
//
//   - contains: some answer matches the row (subset match)
//   - excludes: no answer matches the row
//   - inferred_by: a matching answer was derived through the named rule
//
// # Deterministic Testing
//
// Request ids come from a sequence generator seeded with the scenario name
// and golden snapshots sort answers by row, so repeated runs produce
// identical output.
package harness
