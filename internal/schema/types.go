package schema

import (
	"fmt"
	"slices"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Root type labels.
const (
	RootEntity    = "entity"
	RootRelation  = "relation"
	RootAttribute = "attribute"
)

// Type is a schema type.
type Type struct {
	Label     string
	Kind      ir.Kind
	Super     string       // empty only for roots
	ValueType ir.ValueType // attributes only
	Relates   []string     // relations only: role labels
	Abstract  bool
}

// Root reports whether t is one of the three root types.
func (t Type) Root() bool {
	return t.Super == ""
}

func roots() []Type {
	return []Type{
		{Label: RootEntity, Kind: ir.KindEntity, Abstract: true},
		{Label: RootRelation, Kind: ir.KindRelation, Abstract: true},
		{Label: RootAttribute, Kind: ir.KindAttribute, Abstract: true},
	}
}

// hierarchy indexes types by label and by direct supertype.
type hierarchy struct {
	types    map[string]Type
	children map[string][]string
	subtypes map[string][]string // transitive, inclusive, sorted
}

func newHierarchy(types []Type) (*hierarchy, error) {
	h := &hierarchy{
		types:    make(map[string]Type),
		children: make(map[string][]string),
		subtypes: make(map[string][]string),
	}
	for _, t := range roots() {
		h.types[t.Label] = t
	}
	for _, t := range types {
		if t.Label == "" {
			return nil, &Error{Message: "type with empty label"}
		}
		if _, ok := h.types[t.Label]; ok {
			if isRoot(t.Label) {
				continue
			}
			return nil, &Error{Type: t.Label, Message: "type defined twice"}
		}
		if t.Super == "" {
			return nil, &Error{Type: t.Label, Message: "type has no supertype"}
		}
		h.types[t.Label] = t
	}

	// Resolve kinds from the root each type descends from, rejecting
	// unknown supertypes and cycles.
	for _, label := range h.labels() {
		t := h.types[label]
		if t.Root() {
			continue
		}
		kind, err := h.rootKind(label)
		if err != nil {
			return nil, err
		}
		if t.Kind != "" && t.Kind != kind {
			return nil, &Error{Type: label, Message: fmt.Sprintf("declared kind %s but descends from %s", t.Kind, kind)}
		}
		t.Kind = kind
		if kind == ir.KindAttribute {
			if t.ValueType == "" {
				t.ValueType = h.inheritedValueType(label)
			}
			if !ir.ValidValueTypes[t.ValueType] {
				return nil, &Error{Type: label, Message: fmt.Sprintf("attribute has invalid value type %q", t.ValueType)}
			}
		} else if t.ValueType != "" {
			return nil, &Error{Type: label, Message: "only attribute types have a value type"}
		}
		if kind != ir.KindRelation && len(t.Relates) > 0 {
			return nil, &Error{Type: label, Message: "only relation types relate roles"}
		}
		h.types[label] = t
		h.children[t.Super] = append(h.children[t.Super], label)
	}
	for parent := range h.children {
		slices.Sort(h.children[parent])
	}
	for label := range h.types {
		h.subtypes[label] = h.collect(label)
	}
	return h, nil
}

func isRoot(label string) bool {
	return label == RootEntity || label == RootRelation || label == RootAttribute
}

func (h *hierarchy) labels() []string {
	out := make([]string, 0, len(h.types))
	for label := range h.types {
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

func (h *hierarchy) rootKind(label string) (ir.Kind, error) {
	seen := map[string]bool{}
	for cur := label; ; {
		if seen[cur] {
			return "", &Error{Type: label, Message: "cyclic type hierarchy"}
		}
		seen[cur] = true
		t, ok := h.types[cur]
		if !ok {
			return "", &Error{Type: label, Message: fmt.Sprintf("unknown supertype %q", cur)}
		}
		if t.Root() {
			return t.Kind, nil
		}
		cur = t.Super
	}
}

func (h *hierarchy) inheritedValueType(label string) ir.ValueType {
	for cur := h.types[label].Super; cur != ""; cur = h.types[cur].Super {
		if vt := h.types[cur].ValueType; vt != "" {
			return vt
		}
	}
	return ""
}

func (h *hierarchy) collect(label string) []string {
	out := []string{label}
	for _, child := range h.children[label] {
		out = append(out, h.collect(child)...)
	}
	slices.Sort(out)
	return out
}

// relatesRole reports whether a relation type or one of its supertypes
// relates the role.
func (h *hierarchy) relatesRole(relType, role string) bool {
	for cur := relType; cur != ""; cur = h.types[cur].Super {
		if slices.Contains(h.types[cur].Relates, role) {
			return true
		}
	}
	return false
}
