package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanigraph/internal/synth"
	"sanigraph/internal/tech"
)

var (
	_ synth.ResultSink     = (*SystemWriter)(nil)
	_ synth.DiagnosticSink = (*DiagnosticWriter)(nil)
)

func TestSystemWriterOneLinePerSystem(t *testing.T) {
	chain := makeChainSystem()
	diamond := makeDiamondSystem()

	var buf bytes.Buffer
	sw := NewSystemWriter(&buf)
	require.NoError(t, sw.Emit(chain))
	require.NoError(t, sw.Emit(diamond))

	var lines []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	var got tech.System
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, *chain, got)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "sys-diamond", got.ID)
	assert.True(t, got.Complete)
}

func TestSystemWriterCompactLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSystemWriter(&buf).Emit(makeChainSystem()))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"), "exactly one newline, at the end")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.NotContains(t, out, "  ", "no indentation in NDJSON lines")
}

func TestSystemWriterDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, NewSystemWriter(&a).Emit(makeChainSystem()))
	require.NoError(t, NewSystemWriter(&b).Emit(makeChainSystem()))

	assert.Equal(t, a.String(), b.String())
}

func TestSystemWriterNilSystem(t *testing.T) {
	var buf bytes.Buffer
	err := NewSystemWriter(&buf).Emit(nil)
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestDiagnosticWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	dw := NewDiagnosticWriter(&buf)

	require.NoError(t, dw.Diagnose("Compost Toilet", "no candidates from pool"))

	assert.Equal(t, "unproductive source Compost Toilet: no candidates from pool\n", buf.String())
}
