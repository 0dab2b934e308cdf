package export

import (
	"encoding/json"
	"fmt"
	"io"

	"sanigraph/internal/tech"
)

// SystemWriter streams completed systems as NDJSON: one compact JSON
// document per line. It satisfies the synthesis engine's result-sink
// contract, so systems can be written out as they are discovered.
type SystemWriter struct {
	enc *json.Encoder
}

// NewSystemWriter returns a SystemWriter emitting to w.
func NewSystemWriter(w io.Writer) *SystemWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &SystemWriter{enc: enc}
}

// Emit writes one system as a single JSON line.
func (sw *SystemWriter) Emit(sys *tech.System) error {
	if sys == nil {
		return fmt.Errorf("emit system: nil system")
	}
	return sw.enc.Encode(sys)
}

// DiagnosticWriter renders unproductive-source diagnostics as plain
// text lines. It satisfies the synthesis engine's diagnostic-sink
// contract.
type DiagnosticWriter struct {
	w io.Writer
}

// NewDiagnosticWriter returns a DiagnosticWriter emitting to w.
func NewDiagnosticWriter(w io.Writer) *DiagnosticWriter {
	return &DiagnosticWriter{w: w}
}

// Diagnose writes one line naming the unusable source.
func (d *DiagnosticWriter) Diagnose(source, reason string) error {
	_, err := fmt.Fprintf(d.w, "unproductive source %s: %s\n", source, reason)
	return err
}
