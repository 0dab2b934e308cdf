package synth

import "sanigraph/internal/tech"

// ResultSink receives every completed system as it is discovered.
// Implementations must tolerate being called once per completion in
// discovery order; they are observers, and an Emit error never aborts
// the search (it is logged by the engine).
type ResultSink interface {
	Emit(sys *tech.System) error
}

// DiagnosticSink receives unproductive-source diagnostics: a source
// technology whose first candidate set is empty. This is not an error
// condition, only a signal that the source is unusable with the pool.
type DiagnosticSink interface {
	Diagnose(source, reason string) error
}

// DiscardResults is the default ResultSink: it drops everything.
type DiscardResults struct{}

// Emit implements ResultSink.
func (DiscardResults) Emit(*tech.System) error { return nil }

// DiscardDiagnostics is the default DiagnosticSink.
type DiscardDiagnostics struct{}

// Diagnose implements DiagnosticSink.
func (DiscardDiagnostics) Diagnose(string, string) error { return nil }
