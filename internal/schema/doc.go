// Package schema holds the type hierarchy and the rule set the resolver
// reasons over.
//
// Every type descends from one of the roots entity, relation or attribute.
// Rules pair a when conjunction with a single then atom, either an
// ownership or a relation. The schema answers the two questions the
// resolver asks of it: which concrete types a label covers (Subtypes) and
// which rules could conclude a given atom (RulesMatchingConclusion).
package schema
