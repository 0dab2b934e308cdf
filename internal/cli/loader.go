package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sanigraph/internal/library"
	"sanigraph/internal/tech"
)

// loadLibrary reads a technology catalog, dispatching on the file
// extension: .json documents go through the CUE-validated JSON loader,
// .csv through the spreadsheet loader.
func loadLibrary(path string) (*library.Library, []error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return library.LoadJSON(path)
	case ".csv":
		return library.LoadCSV(path)
	default:
		return nil, []error{&library.ValidationError{
			Code:    library.ErrCodeGeneric,
			Message: fmt.Sprintf("unsupported library format %q (want .json or .csv)", filepath.Ext(path)),
		}}
	}
}

// libraryForRun loads a catalog for a pipeline command. Unlike
// validate, which renders every finding, pipeline commands want one
// error to wrap into their exit status.
func libraryForRun(path string) (*library.Library, error) {
	lib, errs := loadLibrary(path)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return lib, nil
}

// findSource resolves a --source flag against the catalog.
func findSource(lib *library.Library, name string) (tech.Technology, error) {
	t, ok := lib.Technology(name)
	if !ok {
		return tech.Technology{}, fmt.Errorf("source %q not in library (sources: %s)", name, sourceNames(lib))
	}
	if !t.IsSource() {
		return tech.Technology{}, fmt.Errorf("technology %q has inputs; only sources can seed synthesis", name)
	}
	return t, nil
}

func sourceNames(lib *library.Library) string {
	sources := lib.Sources()
	if len(sources) == 0 {
		return "none"
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

// readSystemsNDJSON loads systems from a newline-delimited JSON stream
// as written by synthesize --out. Blank lines are skipped.
func readSystemsNDJSON(path string) ([]*tech.System, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open systems file: %w", err)
	}
	defer f.Close()

	var systems []*tech.System
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		sys := &tech.System{}
		if err := json.Unmarshal([]byte(text), sys); err != nil {
			return nil, fmt.Errorf("%s:%d: decode system: %w", path, line, err)
		}
		systems = append(systems, sys)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read systems file: %w", err)
	}
	return systems, nil
}
