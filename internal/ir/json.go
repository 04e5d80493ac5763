package ir

import (
	"encoding/json"
	"fmt"
)

// conceptJSON is the persisted form of a Concept.
type conceptJSON struct {
	IID      string          `json:"iid"`
	Type     string          `json:"type"`
	Kind     Kind            `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Inferred bool            `json:"inferred,omitempty"`
}

type conceptMapJSON struct {
	Bindings     map[string]conceptJSON `json:"bindings"`
	Explainables []Explainable          `json:"explainables,omitempty"`
}

// MarshalJSON encodes the concept, including its value.
func (c Concept) MarshalJSON() ([]byte, error) {
	cj := conceptJSON{IID: c.IID, Type: c.Type, Kind: c.Kind, Inferred: c.Inferred}
	if c.Value != nil {
		enc, err := MarshalValue(c.Value)
		if err != nil {
			return nil, fmt.Errorf("concept %s: %w", c.IID, err)
		}
		cj.Value = enc
	}
	return json.Marshal(cj)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (c *Concept) UnmarshalJSON(data []byte) error {
	var cj conceptJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	*c = Concept{IID: cj.IID, Type: cj.Type, Kind: cj.Kind, Inferred: cj.Inferred}
	if len(cj.Value) > 0 {
		v, err := UnmarshalValue(cj.Value)
		if err != nil {
			return fmt.Errorf("concept %s: %w", cj.IID, err)
		}
		c.Value = v
	}
	return nil
}

// MarshalJSON encodes bindings keyed by Identifier.Key, plus explainables.
func (m ConceptMap) MarshalJSON() ([]byte, error) {
	out := conceptMapJSON{
		Bindings:     make(map[string]conceptJSON, len(m.bindings)),
		Explainables: m.explainables,
	}
	for id, c := range m.bindings {
		raw, err := c.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var cj conceptJSON
		if err := json.Unmarshal(raw, &cj); err != nil {
			return nil, err
		}
		out.Bindings[id.Key()] = cj
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (m *ConceptMap) UnmarshalJSON(data []byte) error {
	var in struct {
		Bindings     map[string]Concept `json:"bindings"`
		Explainables []Explainable      `json:"explainables"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	bindings := make(map[Identifier]Concept, len(in.Bindings))
	for key, c := range in.Bindings {
		bindings[ParseIdentifier(key)] = c
	}
	*m = NewConceptMap(bindings).WithExplainables(in.Explainables...)
	return nil
}
