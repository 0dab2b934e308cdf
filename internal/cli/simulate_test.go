package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanigraph/internal/store"
	"sanigraph/internal/tech"
)

func massesPath(t *testing.T) string {
	t.Helper()
	return filepath.Join("testdata", "masses.yaml")
}

func TestSimulateDeterministic(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", massesPath(t)})

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "✓ 2 system(s) simulated (1 run(s), deterministic)")
}

func TestSimulateJSONReport(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", massesPath(t), "-n", "10", "--montecarlo"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   SimulationReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Systems)
	assert.Equal(t, 2, resp.Data.Simulated)
	assert.Equal(t, 0, resp.Data.Failed)
	assert.Equal(t, 10, resp.Data.Runs)
	assert.True(t, resp.Data.MonteCarlo)
}

func TestSimulateParallel(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", massesPath(t), "-n", "25", "--montecarlo", "--parallel"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ 2 system(s) simulated (25 run(s), monte carlo)")
}

func TestSimulatePersistsSummaries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", massesPath(t), "-n", "5", "--montecarlo", "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	systems, err := st.ReadAllSystems(context.Background())
	require.NoError(t, err)
	require.Len(t, systems, 2)
	for _, sys := range systems {
		require.NotNil(t, sys.Result, "each stored system carries its summary")
		assert.Equal(t, 5, sys.Result.N)
		assert.True(t, sys.Result.MonteCarlo)
	}
}

func TestSimulateMassFigures(t *testing.T) {
	// Deterministic single run, read back through the store: the
	// septic-tank chain removes 30% of the water as "pathway loss",
	// the sewer chain passes everything through.
	dbPath := filepath.Join(t.TempDir(), "results.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", massesPath(t), "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	systems, err := st.ReadAllSystems(context.Background())
	require.NoError(t, err)
	require.Len(t, systems, 2)

	for _, sys := range systems {
		require.NotNil(t, sys.Result)
		assert.InDelta(t, 100, sys.Result.Entered["water"][tech.StatMean], 1e-9)
		if sys.Contains("septic tank") {
			assert.InDelta(t, 70, sys.Result.Recovered["water"][tech.StatMean], 1e-9)
			assert.InDelta(t, 30, sys.Result.Lost["water"]["pathway loss"][tech.StatMean], 1e-9)
		} else {
			assert.InDelta(t, 100, sys.Result.Recovered["water"][tech.StatMean], 1e-9)
		}
	}
}

func TestSimulateScaleMultipliesStatistics(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", massesPath(t), "--scale", "2", "--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	systems, err := st.ReadAllSystems(context.Background())
	require.NoError(t, err)
	require.Len(t, systems, 2)

	for _, sys := range systems {
		require.NotNil(t, sys.Result)
		assert.InDelta(t, 200, sys.Result.Entered["water"][tech.StatMean], 1e-9)
		if sys.Contains("septic tank") {
			assert.InDelta(t, 140, sys.Result.Recovered["water"][tech.StatMean], 1e-9)
		}
	}
}

func TestSimulateUnmatchedSourceFailsEverySystem(t *testing.T) {
	tmpDir := t.TempDir()
	masses := filepath.Join(tmpDir, "masses.yaml")
	require.NoError(t, os.WriteFile(masses, []byte("inputs:\n  latrine:\n    water: 5\n"), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", masses})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ 2 of 2 system(s) failed to simulate")
	assert.Contains(t, buf.String(), "UNMATCHED_SOURCE")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSimulateUnmatchedSourceJSON(t *testing.T) {
	tmpDir := t.TempDir()
	masses := filepath.Join(tmpDir, "masses.yaml")
	require.NoError(t, os.WriteFile(masses, []byte("inputs:\n  latrine:\n    water: 5\n"), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", masses})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   SimulationReport `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Failed)
	require.Len(t, resp.Data.Failures, 2)
	assert.Contains(t, resp.Data.Failures[0].Error, "UNMATCHED_SOURCE")
}

func TestSimulateMissingMassesFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household", "--masses", "/nonexistent/masses.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load input masses")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateRequiresMassesFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSimulateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{catalogPath(t), "--source", "household"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "masses")
}
