package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickFromDatabase(t *testing.T) {
	dbPath := seedDatabase(t, false)

	buf := &bytes.Buffer{}
	cmd := NewPickCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "-k", "1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ picked 1 of 2 system(s)")
	assert.Contains(t, buf.String(), "household")
}

func TestPickJSONReport(t *testing.T) {
	dbPath := seedDatabase(t, false)

	buf := &bytes.Buffer{}
	cmd := NewPickCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--count", "1"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   PickReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Considered)
	require.Len(t, resp.Data.Picked, 1)
	assert.Equal(t, 3, resp.Data.Picked[0].Size)
	assert.Contains(t, resp.Data.Picked[0].Technologies, "household")
	assert.NotEmpty(t, resp.Data.Picked[0].ID)
}

func TestPickCountBeyondAvailable(t *testing.T) {
	dbPath := seedDatabase(t, false)

	buf := &bytes.Buffer{}
	cmd := NewPickCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "-k", "10"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ picked 2 of 2 system(s)")
}

func TestPickFromNDJSON(t *testing.T) {
	path := seedSystemsFile(t, catalogPath(t), "household")

	buf := &bytes.Buffer{}
	cmd := NewPickCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--in", path, "-k", "2"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ picked 2 of 2 system(s)")
}

func TestPickRequiresCount(t *testing.T) {
	cmd := NewPickCommand(&RootOptions{Format: "text"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--db", "results.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
}

func TestPickRequiresExactlyOneInput(t *testing.T) {
	cmd := NewPickCommand(&RootOptions{Format: "text"})
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--db", "a.db", "--in", "b.ndjson", "-k", "1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --db and --in")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
