package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainConceptMap  = "typedb/concept-map/v1"
	DomainAttribute   = "typedb/attribute/v1"
	DomainInferred    = "typedb/inferred/v1"
	DomainExplanation = "typedb/explanation/v1"
	DomainPattern     = "typedb/pattern/v1"
	DomainRuleBinding = "typedb/rule-binding/v1"
	DomainFact        = "typedb/fact/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConceptMapHash computes the content hash of a concept map's bindings.
func ConceptMapHash(m ConceptMap) (string, error) {
	canonical, err := MarshalCanonical(m.Canonical())
	if err != nil {
		return "", fmt.Errorf("ConceptMapHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConceptMap, canonical), nil
}

// RuleBindingHash identifies a rule firing under a specific substitution.
// Used as the visited-set key guarding rule expansion against cycles.
func RuleBindingHash(rule string, sub ConceptMap) (string, error) {
	obj := map[string]any{
		"rule":     rule,
		"bindings": sub.Canonical(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RuleBindingHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleBinding, canonical), nil
}

// PatternHash hashes a canonical pattern key. Used to bucket cache entries.
func PatternHash(key string) string {
	return hashWithDomain(DomainPattern, []byte(key))
}

// AttributeIID derives the instance id of an attribute from its type and
// value. Attributes are unique by (type, value), so stored and inferred
// attributes share ids.
func AttributeIID(attrType string, v Value) (string, error) {
	enc, err := MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("AttributeIID: %w", err)
	}
	obj := map[string]any{
		"type":  attrType,
		"value": string(enc),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("AttributeIID: failed to marshal: %w", err)
	}
	return "0x" + hashWithDomain(DomainAttribute, canonical)[:24], nil
}

// InferredIID derives the id of a relation created by a rule conclusion
// from its type and role players. players maps "role/player-iid" to the
// role, so the same conclusion over the same players always yields the
// same relation whichever rule or role order produced it.
func InferredIID(relType string, players map[string]string) (string, error) {
	obj := map[string]any{
		"type":    relType,
		"players": players,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InferredIID: failed to marshal: %w", err)
	}
	return "0x" + hashWithDomain(DomainInferred, canonical)[:24], nil
}

// ExplanationID computes the id of an explanation record from its parts.
func ExplanationID(rule string, conclusion, condition ConceptMap) (string, error) {
	obj := map[string]any{
		"rule":       rule,
		"conclusion": conclusion.Canonical(),
		"condition":  condition.Canonical(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ExplanationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExplanation, canonical), nil
}

// FactKey identifies an inferred fact by its shape and the ids of the
// concepts it connects: ("has", owner, attribute) or ("relation", iid).
// Every derivation of the same fact shares the key.
func FactKey(shape string, iids ...string) string {
	var b []byte
	b = append(b, shape...)
	for _, iid := range iids {
		b = append(b, 0x00)
		b = append(b, iid...)
	}
	return hashWithDomain(DomainFact, b)
}

// MustConceptMapHash is like ConceptMapHash but panics on error.
// Concept maps only hold strings, so marshaling cannot fail in practice.
func MustConceptMapHash(m ConceptMap) string {
	h, err := ConceptMapHash(m)
	if err != nil {
		panic(err)
	}
	return h
}

// MustAttributeIID is like AttributeIID but panics on error.
// Use only in tests or when the value is known to be valid.
func MustAttributeIID(attrType string, v Value) string {
	id, err := AttributeIID(attrType, v)
	if err != nil {
		panic(err)
	}
	return id
}
