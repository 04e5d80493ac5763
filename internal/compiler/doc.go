// Package compiler turns CUE documents into schema types, rules and
// instance data.
//
// A document has three optional top-level sections:
//
//	types: {
//		person:     {sub: "entity"}
//		name:       {sub: "attribute", value: "string"}
//		friendship: {sub: "relation", relates: ["friend"]}
//	}
//	rules: {
//		"person-active": {when: "$x isa person;", then: "$x has status \"active\";"}
//	}
//	data: {
//		entities:   [{iid: "alice", type: "person"}]
//		ownerships: [{owner: "alice", type: "name", value: "Alice"}]
//		relations:  [{iid: "f1", type: "friendship", players: [{role: "friend", player: "alice"}]}]
//	}
//
// Values are strings, integers or booleans. Floats are rejected.
package compiler
