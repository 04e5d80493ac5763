// Package unify translates answers between the variable frames of two
// queries.
//
// A Unifier is computed by matching the atoms of a parent query against a
// child query (a cached representative, or a rule conclusion). It maps each
// parent variable to one or more child variables. Transform moves a concept
// map into the child frame; UnTransform moves child answers back, checking
// any constraints the parent placed on values the child does not fix.
//
// When atoms match in more than one way, for example a relation whose role
// players share a role, Unify returns every candidate as a MultiUnifier.
//
// A Mapping is the cheap special case: a bijective rename between two
// queries known to be alpha-equivalent, derived from their canonical keys.
package unify
