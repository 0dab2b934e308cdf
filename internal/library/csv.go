package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sanigraph/internal/tech"
)

// csvHeader is the required first record of the CSV library form.
var csvHeader = []string{"name", "group", "inputs", "outputs", "reliability"}

// LoadCSV reads the spreadsheet form of a technology library:
//
//	name,group,inputs,outputs,reliability
//	household,source,,blackwater,
//	septic tank,onsite storage,blackwater,sludge;effluent,60
//
// Port lists are semicolon-separated product names; repeating a name
// declares additional units. Reliability is optional. The CSV form
// carries network structure only - transfer splits need the JSON form,
// and CSV-loaded technologies pass substances through unchanged.
func LoadCSV(path string) (*Library, []error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, []error{&ValidationError{Code: ErrCodeNotFound, Message: fmt.Sprintf("library file not found: %s", path)}}
		}
		return nil, []error{&ValidationError{Code: ErrCodeGeneric, Message: fmt.Sprintf("opening library file: %v", err)}}
	}
	defer f.Close()
	return parseCSV(path, f)
}

func parseCSV(filename string, r io.Reader) (*Library, []error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, []error{&ValidationError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: reading header: %v", filename, err)}}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.ToLower(header[i]))
	}
	if len(header) != len(csvHeader) || !equalFields(header, csvHeader) {
		return nil, []error{&ValidationError{
			Code:    ErrCodeParseFailed,
			Message: fmt.Sprintf("%s: header must be %q, got %q", filename, strings.Join(csvHeader, ","), strings.Join(header, ",")),
		}}
	}

	lib := &Library{Version: tech.SchemaVersion}
	var errs []error
	for record := 2; ; record++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, &ValidationError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: record %d: %v", filename, record, err)})
			continue
		}

		t, recordErrs := parseCSVRecord(filename, record, fields)
		if len(recordErrs) > 0 {
			errs = append(errs, recordErrs...)
			continue
		}
		lib.Technologies = append(lib.Technologies, t)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if errs := validateLibrary(lib); len(errs) > 0 {
		return nil, errs
	}
	return lib, nil
}

func parseCSVRecord(filename string, record int, fields []string) (tech.Technology, []error) {
	var zero tech.Technology
	var errs []error

	name := strings.TrimSpace(fields[0])
	if name == "" {
		errs = append(errs, &ValidationError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: record %d: name is required", filename, record)})
	}
	group := strings.TrimSpace(fields[1])
	if group == "" {
		errs = append(errs, &ValidationError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: record %d: group is required", filename, record)})
	}

	var transfer tech.Transfer
	if rel := strings.TrimSpace(fields[4]); rel != "" {
		parsed, err := strconv.ParseFloat(rel, 64)
		if err != nil || parsed <= 0 {
			errs = append(errs, &ValidationError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: record %d: reliability must be a positive number, got %q", filename, record, rel)})
		} else {
			transfer.Reliability = parsed
		}
	}

	if len(errs) > 0 {
		return zero, errs
	}
	return tech.NewTechnology(name, group, splitPorts(fields[2]), splitPorts(fields[3]), transfer), nil
}

// splitPorts parses a semicolon-separated product list, preserving
// order and repetition.
func splitPorts(s string) []tech.Product {
	var out []tech.Product
	for _, part := range strings.Split(s, ";") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		out = append(out, tech.Product{Name: name})
	}
	return out
}

func equalFields(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
