// Package library loads technology catalogs and input-mass documents.
//
// The canonical library form is a JSON document validated against the
// embedded CUE schema (schema.cue); a flat CSV form covers
// spreadsheet-authored catalogs. Input-mass files are strict YAML.
// Loaders collect every error they can find rather than stopping at
// the first, so one pass over a document reports all its problems.
package library

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"sanigraph/internal/tech"
)

//go:embed schema.cue
var schemaCUE string

// Library is a validated technology catalog: the candidate pool for
// network synthesis. Technology names are unique within a library.
type Library struct {
	Version      string
	Technologies []tech.Technology
}

// Technology looks up a catalog entry by name.
func (l *Library) Technology(name string) (tech.Technology, bool) {
	for _, t := range l.Technologies {
		if t.Name == name {
			return t, true
		}
	}
	return tech.Technology{}, false
}

// Sources returns the catalog entries with no inputs.
func (l *Library) Sources() []tech.Technology {
	var out []tech.Technology
	for _, t := range l.Technologies {
		if t.IsSource() {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of catalog entries.
func (l *Library) Len() int { return len(l.Technologies) }

// ValidationError is a library-loading error with an optional source
// position (JSON documents carry positions; CSV records do not).
type ValidationError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all library loaders.
const (
	ErrCodeGeneric     = "E001" // Unclassified error
	ErrCodeNotFound    = "E002" // Library file not found
	ErrCodeParseFailed = "E003" // Document does not parse
	ErrCodeSchema      = "E004" // Document rejected by the schema

	// Catalog validation errors
	ErrCodeEmptyLibrary   = "E101" // No technologies
	ErrCodeDuplicateName  = "E102" // Duplicate technology name
	ErrCodeBadPartition   = "E103" // Transfer fractions do not sum to 1
	ErrCodeSourceTransfer = "E104" // Source declares transfer behavior
	ErrCodeBlankName      = "E105" // Empty substance or loss-pathway name
)

// LoadJSON reads and validates a JSON library document.
func LoadJSON(path string) (*Library, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, []error{&ValidationError{Code: ErrCodeNotFound, Message: fmt.Sprintf("library file not found: %s", path)}}
		}
		return nil, []error{&ValidationError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading library file: %v", err)}}
	}
	return ParseJSON(path, data)
}

// ParseJSON validates a JSON library document against the embedded
// schema and compiles it into a Library. JSON is a subset of CUE, so
// the document is compiled directly and unified with the closed
// #Library definition; schema violations are collected with their
// source positions rather than failing one at a time.
func ParseJSON(filename string, data []byte) (*Library, []error) {
	// Schema and document must share one context: values from
	// different contexts cannot unify.
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, []error{&ValidationError{Code: ErrCodeGeneric, Message: fmt.Sprintf("compiling embedded schema: %v", err)}}
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, collectCUEErrors(ErrCodeParseFailed, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Library")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, collectCUEErrors(ErrCodeSchema, err)
	}

	lib, errs := compileLibrary(unified)
	if len(errs) > 0 {
		return nil, errs
	}
	if errs := validateLibrary(lib); len(errs) > 0 {
		return nil, errs
	}
	return lib, nil
}

// collectCUEErrors flattens a CUE error list into one ValidationError
// per underlying error, keeping source positions.
func collectCUEErrors(code string, err error) []error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return []error{&ValidationError{Code: code, Message: err.Error()}}
	}
	out := make([]error, 0, len(list))
	for _, e := range list {
		ve := &ValidationError{Code: code, Message: e.Error()}
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			ve.Pos = positions[0]
		}
		out = append(out, ve)
	}
	return out
}

// partitionTolerance bounds how far a substance's transfer fractions
// may drift from summing to exactly 1.
const partitionTolerance = 1e-9

// validateLibrary checks catalog-level invariants the schema cannot
// express. All violations are collected.
func validateLibrary(lib *Library) []error {
	var errs []error
	if len(lib.Technologies) == 0 {
		errs = append(errs, &ValidationError{Code: ErrCodeEmptyLibrary, Message: "library contains no technologies"})
		return errs
	}

	seen := make(map[string]bool, len(lib.Technologies))
	for _, t := range lib.Technologies {
		if seen[t.Name] {
			errs = append(errs, &ValidationError{
				Code:    ErrCodeDuplicateName,
				Message: fmt.Sprintf("duplicate technology name %q", t.Name),
			})
		}
		seen[t.Name] = true

		for sub, split := range t.Transfer.Substances {
			if sub == "" {
				errs = append(errs, &ValidationError{
					Code:    ErrCodeBlankName,
					Message: fmt.Sprintf("technology %q: transfer declares a substance with an empty name", t.Name),
				})
			}
			if _, ok := split.Losses[""]; ok {
				errs = append(errs, &ValidationError{
					Code:    ErrCodeBlankName,
					Message: fmt.Sprintf("technology %q: substance %q has a loss pathway with an empty name", t.Name, sub),
				})
			}
			total := split.ToOutputs
			for _, f := range split.Losses {
				total += f
			}
			if total < 1-partitionTolerance || total > 1+partitionTolerance {
				errs = append(errs, &ValidationError{
					Code:    ErrCodeBadPartition,
					Message: fmt.Sprintf("technology %q: transfer fractions for substance %q sum to %g, want 1", t.Name, sub, total),
				})
			}
		}

		if t.IsSource() && len(t.Transfer.Substances) > 0 {
			errs = append(errs, &ValidationError{
				Code:    ErrCodeSourceTransfer,
				Message: fmt.Sprintf("source technology %q must not declare transfer substances (sources never partition)", t.Name),
			})
		}
	}
	return errs
}
