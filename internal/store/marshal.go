package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
)

// marshalValue converts an attribute value to its stored TEXT form.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses the stored TEXT form. Empty text means no value.
func unmarshalValue(data string) (ir.Value, error) {
	if data == "" {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalExplanation converts an explanation to JSON TEXT with HTML
// escaping disabled, so stored bodies match what clients see.
func marshalExplanation(e answer.Explanation) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("marshal explanation: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalExplanation(data string) (answer.Explanation, error) {
	var e answer.Explanation
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return answer.Explanation{}, fmt.Errorf("unmarshal explanation: %w", err)
	}
	return e, nil
}
