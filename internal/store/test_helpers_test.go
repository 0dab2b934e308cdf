package store

import (
	"path/filepath"
	"testing"

	"sanigraph/internal/tech"
)

// createTestStore creates a store backed by a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSystem builds a minimal complete two-stage system. The
// source and product names parameterize the structure, so different
// arguments produce different structure hashes.
func createTestSystem(id, source, product string) *tech.System {
	transfer := tech.Transfer{
		Substances: map[string]tech.Split{
			"water": {
				ToOutputs: 0.7,
				Losses:    map[string]float64{"pathway loss": 0.3},
			},
		},
	}
	src := tech.NewTechnology(source, "collection", nil, []tech.Product{{Name: product}}, tech.Transfer{})
	snk := tech.NewTechnology(source+"-sink", "disposal", []tech.Product{{Name: product}}, nil, transfer)

	sys := tech.NewSystem(src)
	sys.Stages = append(sys.Stages, []tech.Technology{snk})
	sys.Connections = []tech.Connection{
		{Product: tech.Product{Name: product}, Upstream: source, Downstream: source + "-sink"},
	}
	sys.ID = id
	sys.Complete = true
	return sys
}

// createTestResult builds a single-run summary with one substance.
func createTestResult(n int) *tech.MassflowResult {
	return &tech.MassflowResult{
		N:          n,
		MonteCarlo: false,
		Entered: map[string]tech.Stats{
			"water": {tech.StatMean: 100, tech.StatSD: 0},
		},
		Recovered: map[string]tech.Stats{
			"water": {tech.StatMean: 70, tech.StatSD: 0},
		},
		RecoveryRatio: map[string]tech.Stats{
			"water": {tech.StatMean: 0.7, tech.StatSD: 0},
		},
		Lost: map[string]map[string]tech.Stats{
			"water": {
				"pathway loss": {tech.StatMean: 30, tech.StatSD: 0},
			},
		},
		LostTotal: map[string]tech.Stats{
			"water": {tech.StatMean: 30, tech.StatSD: 0},
		},
	}
}
