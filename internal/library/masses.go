package library

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sanigraph/internal/massflow"
)

// massDocument is the input-mass file layout:
//
//	inputs:
//	  household:
//	    water: 100
//	    nitrogen: 4.5
type massDocument struct {
	Inputs map[string]map[string]float64 `yaml:"inputs"`
}

// LoadInputMasses reads a strict-YAML input-mass file keyed by source
// technology name. Unknown fields are rejected (catches typos like
// "input:" for "inputs:"), as are negative masses.
func LoadInputMasses(path string) (massflow.Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input-mass file: %w", err)
	}
	return ParseInputMasses(data)
}

// ParseInputMasses parses and validates input-mass YAML.
func ParseInputMasses(data []byte) (massflow.Inputs, error) {
	var doc massDocument
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(doc.Inputs) == 0 {
		return nil, fmt.Errorf("invalid input masses: inputs map is required and must be non-empty")
	}
	for source, masses := range doc.Inputs {
		if source == "" {
			return nil, fmt.Errorf("invalid input masses: empty source technology name")
		}
		if len(masses) == 0 {
			return nil, fmt.Errorf("invalid input masses: source %q declares no substances", source)
		}
		for substance, mass := range masses {
			if substance == "" {
				return nil, fmt.Errorf("invalid input masses: source %q declares an empty substance name", source)
			}
			if mass < 0 {
				return nil, fmt.Errorf("invalid input masses: source %q substance %q has negative mass %g", source, substance, mass)
			}
		}
	}
	return massflow.Inputs(doc.Inputs), nil
}
