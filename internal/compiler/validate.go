package compiler

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/store"
)

// Validation error codes (E100-E199)
const (
	// Type errors (E101-E109)
	ErrUnknownSupertype   = "E101" // supertype is not defined
	ErrInvalidValueType   = "E102" // attribute without a valid value type
	ErrRolesOnNonRelation = "E103" // relates on an entity or attribute type
	ErrRelationNoRoles    = "E104" // relation type relates no role
	ErrInvalidLabel       = "E105" // label is not a valid identifier

	// Rule errors (E110-E119)
	ErrInvalidRule   = "E110" // rule does not parse or fails schema checks
	ErrRecursiveRule = "E111" // rule takes part in recursion (warning)

	// Data errors (E120-E129)
	ErrUnknownType       = "E120" // instance of an undefined type
	ErrKindMismatch      = "E121" // instance of a type of another kind
	ErrValueTypeMismatch = "E122" // attribute value does not match its type
	ErrUnknownRole       = "E123" // role player in a role the relation lacks
	ErrUnknownPlayer     = "E124" // role player or owner not defined in data
	ErrDuplicateIID      = "E125" // instance id used twice
)

// ValidationError is one problem found in a compiled document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// labelPattern matches type, role and rule labels.
var labelPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// Validate checks a compiled document and returns every error found. It
// does not stop at the first one.
func Validate(doc *Document) []ValidationError {
	kinds, errs := validateTypes(doc.Types)
	errs = append(errs, validateData(doc, kinds)...)

	// Rule checks need a consistent type hierarchy.
	if len(errs) == 0 {
		errs = append(errs, validateRules(doc)...)
	}
	return errs
}

// validateTypes resolves the kind of every type and reports hierarchy
// problems.
func validateTypes(types []schema.Type) (map[string]schema.Type, []ValidationError) {
	var errs []ValidationError
	byLabel := map[string]schema.Type{
		schema.RootEntity:    {Label: schema.RootEntity, Kind: ir.KindEntity},
		schema.RootRelation:  {Label: schema.RootRelation, Kind: ir.KindRelation},
		schema.RootAttribute: {Label: schema.RootAttribute, Kind: ir.KindAttribute},
	}
	for _, t := range types {
		byLabel[t.Label] = t
	}

	resolved := make(map[string]schema.Type, len(byLabel))
	for _, t := range types {
		field := "types." + t.Label
		if !labelPattern.MatchString(t.Label) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid label %q", t.Label), Code: ErrInvalidLabel})
			continue
		}
		kind, vt, roles, ok := inherit(byLabel, t.Label)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".sub",
				Message: fmt.Sprintf("supertype %q is not defined or the hierarchy is cyclic", t.Super),
				Code:    ErrUnknownSupertype,
			})
			continue
		}
		t.Kind = kind
		switch kind {
		case ir.KindAttribute:
			if t.ValueType == "" {
				t.ValueType = vt
			}
			if !ir.ValidValueTypes[t.ValueType] {
				errs = append(errs, ValidationError{Field: field + ".value", Message: "attribute type needs a value type", Code: ErrInvalidValueType})
			}
		case ir.KindRelation:
			if len(roles) == 0 {
				errs = append(errs, ValidationError{Field: field + ".relates", Message: "relation type relates no role", Code: ErrRelationNoRoles})
			}
		}
		if kind != ir.KindRelation && len(t.Relates) > 0 {
			errs = append(errs, ValidationError{Field: field + ".relates", Message: fmt.Sprintf("%s type cannot relate roles", kind), Code: ErrRolesOnNonRelation})
		}
		if kind != ir.KindAttribute && t.ValueType != "" {
			errs = append(errs, ValidationError{Field: field + ".value", Message: fmt.Sprintf("%s type cannot have a value type", kind), Code: ErrInvalidValueType})
		}
		resolved[t.Label] = t
	}
	for _, root := range []string{schema.RootEntity, schema.RootRelation, schema.RootAttribute} {
		resolved[root] = byLabel[root]
	}
	return resolved, errs
}

// inherit walks from label to its root, collecting the kind, the nearest
// value type and every role along the way.
func inherit(byLabel map[string]schema.Type, label string) (ir.Kind, ir.ValueType, []string, bool) {
	var vt ir.ValueType
	var roles []string
	seen := map[string]bool{}
	for cur := label; ; {
		if seen[cur] {
			return "", "", nil, false
		}
		seen[cur] = true
		t, ok := byLabel[cur]
		if !ok {
			return "", "", nil, false
		}
		if vt == "" {
			vt = t.ValueType
		}
		roles = append(roles, t.Relates...)
		if t.Super == "" {
			return t.Kind, vt, roles, true
		}
		cur = t.Super
	}
}

func validateData(doc *Document, types map[string]schema.Type) []ValidationError {
	var errs []ValidationError
	known := map[string]bool{}

	checkType := func(field, label string, kind ir.Kind) (schema.Type, bool) {
		t, ok := types[label]
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("type %q is not defined", label), Code: ErrUnknownType})
			return t, false
		}
		if t.Kind != kind {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("type %q is a %s type, not %s", label, t.Kind, kind), Code: ErrKindMismatch})
			return t, false
		}
		return t, true
	}
	checkValue := func(field string, a store.Attribute) {
		t, ok := checkType(field, a.Type, ir.KindAttribute)
		if ok && a.Value.ValueType() != t.ValueType {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("value %s is not a %s", ir.FormatValue(a.Value), t.ValueType),
				Code:    ErrValueTypeMismatch,
			})
		}
	}
	define := func(field, iid string) {
		if known[iid] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("instance id %q used twice", iid), Code: ErrDuplicateIID})
		}
		known[iid] = true
	}

	for i, e := range doc.Data.Entities {
		field := fmt.Sprintf("data.entities[%d]", i)
		define(field, e.IID)
		checkType(field, e.Type, ir.KindEntity)
	}
	for i, r := range doc.Data.Relations {
		define(fmt.Sprintf("data.relations[%d]", i), r.IID)
	}
	for i, a := range doc.Data.Attributes {
		checkValue(fmt.Sprintf("data.attributes[%d]", i), a)
	}
	for i, o := range doc.Data.Ownerships {
		field := fmt.Sprintf("data.ownerships[%d]", i)
		checkValue(field, o.Attribute)
		if !known[o.Owner] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("owner %q is not defined", o.Owner), Code: ErrUnknownPlayer})
		}
	}
	for i, r := range doc.Data.Relations {
		field := fmt.Sprintf("data.relations[%d]", i)
		if _, ok := checkType(field, r.Type, ir.KindRelation); !ok {
			continue
		}
		_, _, roles, _ := inherit(types, r.Type)
		for j, rp := range r.Players {
			pf := fmt.Sprintf("%s.players[%d]", field, j)
			if !slices.Contains(roles, rp.Role) {
				errs = append(errs, ValidationError{Field: pf, Message: fmt.Sprintf("%s does not relate role %q", r.Type, rp.Role), Code: ErrUnknownRole})
			}
			if !known[rp.Player] {
				errs = append(errs, ValidationError{Field: pf, Message: fmt.Sprintf("player %q is not defined", rp.Player), Code: ErrUnknownPlayer})
			}
		}
	}
	return errs
}

func validateRules(doc *Document) []ValidationError {
	var errs []ValidationError
	for _, rt := range doc.Rules {
		if !labelPattern.MatchString(rt.Label) {
			errs = append(errs, ValidationError{Field: "rules." + rt.Label, Message: fmt.Sprintf("invalid label %q", rt.Label), Code: ErrInvalidLabel})
			continue
		}
		r, err := ParseRule(rt)
		if err == nil {
			// Each rule on its own, so every broken rule is reported.
			_, err = schema.New(doc.Types, []schema.Rule{r})
		}
		if err != nil {
			errs = append(errs, ValidationError{Field: "rules." + rt.Label, Message: err.Error(), Code: ErrInvalidRule})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	if _, err := doc.Schema(); err != nil {
		errs = append(errs, ValidationError{Field: "rules", Message: err.Error(), Code: ErrInvalidRule})
	}
	return errs
}

// AnalyzeRecursion reports the groups of rules that depend on their own
// conclusions. Recursion is legal; the warnings tell rule authors where
// resolution reiterates to a fixpoint.
func AnalyzeRecursion(doc *Document) ([]schema.RecursionWarning, error) {
	sch, err := doc.Schema()
	if err != nil {
		return nil, err
	}
	warnings := sch.Recursive()
	if warnings == nil {
		warnings = []schema.RecursionWarning{}
	}
	return warnings, nil
}
