package library

import (
	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"

	"sanigraph/internal/tech"
)

// compileLibrary walks a schema-validated CUE value and builds the
// Library. The value is concrete at this point, so extraction errors
// indicate a schema gap rather than bad input; they are still
// collected and reported with positions.
func compileLibrary(v cue.Value) (*Library, []error) {
	lib := &Library{Version: tech.SchemaVersion}
	var errs []error

	versionVal := v.LookupPath(cue.ParsePath("version"))
	if versionVal.Exists() {
		version, err := versionVal.String()
		if err != nil {
			return nil, []error{cueError(err)}
		}
		lib.Version = version
	}

	techsVal := v.LookupPath(cue.ParsePath("technologies"))
	iter, err := techsVal.List()
	if err != nil {
		return nil, []error{cueError(err)}
	}
	for iter.Next() {
		t, err := compileTechnology(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lib.Technologies = append(lib.Technologies, t)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return lib, nil
}

// compileTechnology parses one technology entry.
func compileTechnology(v cue.Value) (tech.Technology, error) {
	var zero tech.Technology

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return zero, cueError(err)
	}
	group, err := v.LookupPath(cue.ParsePath("group")).String()
	if err != nil {
		return zero, cueError(err)
	}
	inputs, err := compileProducts(v, "inputs")
	if err != nil {
		return zero, err
	}
	outputs, err := compileProducts(v, "outputs")
	if err != nil {
		return zero, err
	}
	transfer, err := compileTransfer(v)
	if err != nil {
		return zero, err
	}
	return tech.NewTechnology(name, group, inputs, outputs, transfer), nil
}

// compileProducts parses an ordered product list. Repeating a product
// name declares additional units of it.
func compileProducts(v cue.Value, field string) ([]tech.Product, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, cueError(err)
	}
	var out []tech.Product
	for iter.Next() {
		name, err := iter.Value().LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, cueError(err)
		}
		out = append(out, tech.Product{Name: name})
	}
	return out, nil
}

func compileTransfer(v cue.Value) (tech.Transfer, error) {
	var tr tech.Transfer
	val := v.LookupPath(cue.ParsePath("transfer"))
	if !val.Exists() {
		return tr, nil
	}

	relVal := val.LookupPath(cue.ParsePath("reliability"))
	if relVal.Exists() {
		rel, err := relVal.Float64()
		if err != nil {
			return tr, cueError(err)
		}
		tr.Reliability = rel
	}

	subsVal := val.LookupPath(cue.ParsePath("substances"))
	if subsVal.Exists() {
		iter, err := subsVal.Fields()
		if err != nil {
			return tr, cueError(err)
		}
		tr.Substances = make(map[string]tech.Split)
		for iter.Next() {
			split, err := compileSplit(iter.Value())
			if err != nil {
				return tr, err
			}
			tr.Substances[iter.Selector().Unquoted()] = split
		}
	}
	return tr, nil
}

func compileSplit(v cue.Value) (tech.Split, error) {
	var s tech.Split
	to, err := v.LookupPath(cue.ParsePath("to_outputs")).Float64()
	if err != nil {
		return s, cueError(err)
	}
	s.ToOutputs = to

	lossesVal := v.LookupPath(cue.ParsePath("losses"))
	if lossesVal.Exists() {
		iter, err := lossesVal.Fields()
		if err != nil {
			return s, cueError(err)
		}
		s.Losses = make(map[string]float64)
		for iter.Next() {
			f, err := iter.Value().Float64()
			if err != nil {
				return s, cueError(err)
			}
			s.Losses[iter.Selector().Unquoted()] = f
		}
	}
	return s, nil
}

// cueError extracts position info from a CUE error.
func cueError(err error) error {
	ve := &ValidationError{Code: ErrCodeSchema, Message: err.Error()}
	if list := cueerrors.Errors(err); len(list) > 0 {
		ve.Message = list[0].Error()
		if positions := cueerrors.Positions(list[0]); len(positions) > 0 {
			ve.Pos = positions[0]
		}
	}
	return ve
}
