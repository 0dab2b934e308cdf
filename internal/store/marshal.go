package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sanigraph/internal/tech"
)

// marshalSystem serializes a System to JSON TEXT for the document
// column. Go's json.Marshal sorts map keys, so the output is
// deterministic for a given system. This column is storage, not
// identity - identity lives in the hash column, which never covers
// mass values.
func marshalSystem(sys *tech.System) (string, error) {
	return marshalDocument(sys, "system")
}

// marshalResult serializes a MassflowResult to JSON TEXT.
func marshalResult(res *tech.MassflowResult) (string, error) {
	return marshalDocument(res, "result")
}

func marshalDocument(v any, what string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalSystem parses a document column back into a System.
func unmarshalSystem(data string) (*tech.System, error) {
	var sys tech.System
	if err := json.Unmarshal([]byte(data), &sys); err != nil {
		return nil, fmt.Errorf("unmarshal system: %w", err)
	}
	return &sys, nil
}

// unmarshalResult parses a summary document back into a MassflowResult.
func unmarshalResult(data string) (*tech.MassflowResult, error) {
	var res tech.MassflowResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &res, nil
}
