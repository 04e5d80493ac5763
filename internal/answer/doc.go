// Package answer holds the values the resolver produces: answers, the
// explanations that record how inferred answers were derived, and the
// registry that lets a client ask why an answer holds.
//
// Every successful rule application yields one Explanation. Inferred facts
// are addressed by a fact key (see ir.FactKey) carried on answers as an
// ir.Explainable, so all derivations of the same fact are found together
// no matter which query produced them.
package answer
