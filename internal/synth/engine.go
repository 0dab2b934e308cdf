package synth

import (
	"context"
	"fmt"
	"log/slog"

	"sanigraph/internal/tech"
)

// DefaultMaxSystems is the default cap on emitted systems per source.
// Enumeration always terminates (depth is bounded by pool size), but
// the number of complete systems can grow combinatorially with densely
// connected pools; the cap turns that into a reported error instead of
// an unbounded allocation.
const DefaultMaxSystems = 100000

// Engine enumerates complete systems from a technology pool.
//
// The pool is fixed at construction and never mutated. Enumerate may be
// called repeatedly and from multiple goroutines: all per-search state
// lives on the stack of the call.
type Engine struct {
	pool    []tech.Technology
	idGen   IDGenerator
	results ResultSink
	diags   DiagnosticSink
	logger  *slog.Logger

	maxSystems int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSystems caps the number of complete systems emitted per
// Enumerate call. Exceeding the cap aborts the search with
// MaxSystemsExceededError.
//
// Default: DefaultMaxSystems.
func WithMaxSystems(n int) Option {
	return func(e *Engine) {
		e.maxSystems = n
	}
}

// WithIDGenerator sets the generator for completed-system IDs.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.idGen = g
	}
}

// WithResultSink streams every completed system to sink as it is
// discovered. Default: discard.
func WithResultSink(sink ResultSink) Option {
	return func(e *Engine) {
		e.results = sink
	}
}

// WithDiagnosticSink receives unproductive-source diagnostics.
// Default: discard.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(e *Engine) {
		e.diags = sink
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given technology pool.
//
// The pool slice is copied to prevent external mutation from changing
// candidate order mid-search; pool order determines branching order and
// with it the (insignificant but stable) discovery order of results.
func New(pool []tech.Technology, opts ...Option) *Engine {
	var poolCopy []tech.Technology
	if pool != nil {
		poolCopy = make([]tech.Technology, len(pool))
		copy(poolCopy, pool)
	}

	e := &Engine{
		pool:       poolCopy,
		idGen:      UUIDv7Generator{},
		results:    DiscardResults{},
		diags:      DiscardDiagnostics{},
		logger:     slog.Default(),
		maxSystems: DefaultMaxSystems,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pool returns the engine's technology pool in construction order.
// Used for introspection and testing.
func (e *Engine) Pool() []tech.Technology {
	return e.pool
}

// Enumerate produces every complete system reachable from source.
//
// A node is terminal exactly when its candidate set is empty; terminal
// systems are marked complete, given an ID, streamed to the result
// sink, and collected. A source whose very first candidate set is
// empty still yields its trivial one-technology system, but is also
// reported to the diagnostics sink: it signals a source unusable with
// this pool.
//
// Sink failures are logged and do not abort the search; the returned
// collection is authoritative.
func (e *Engine) Enumerate(ctx context.Context, source tech.Technology) ([]*tech.System, error) {
	e.logger.Info("synthesis starting",
		"source", source.Name,
		"pool_size", len(e.pool),
	)

	root := tech.NewSystem(source)
	if len(Candidates(root, e.pool)) == 0 {
		reason := "no candidate consumes any output of this source"
		e.logger.Warn("unproductive source",
			"source", source.Name,
			"reason", reason,
		)
		if err := e.diags.Diagnose(source.Name, reason); err != nil {
			e.logger.Warn("diagnostic sink failed", "source", source.Name, "error", err)
		}
	}

	var results []*tech.System
	if err := e.enumerate(ctx, root, &results); err != nil {
		return results, err
	}

	e.logger.Info("synthesis finished",
		"source", source.Name,
		"systems", len(results),
	)
	return results, nil
}

// enumerate is the recursive depth-first core. results is shared down
// the recursion as the append-only discovery-order collection.
func (e *Engine) enumerate(ctx context.Context, sys *tech.System, results *[]*tech.System) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cands := Candidates(sys, e.pool)
	if len(cands) == 0 {
		return e.complete(sys, results)
	}

	for _, cand := range cands {
		if err := e.enumerate(ctx, Extend(sys, cand), results); err != nil {
			return err
		}
	}
	return nil
}

// complete marks sys terminal, assigns its ID, and emits it.
func (e *Engine) complete(sys *tech.System, results *[]*tech.System) error {
	if len(*results) >= e.maxSystems {
		return &MaxSystemsExceededError{
			Source:  sys.Stages[0][0].Name,
			Systems: len(*results),
			Limit:   e.maxSystems,
		}
	}

	sys.Complete = true
	sys.ID = e.idGen.Generate()
	*results = append(*results, sys)

	e.logger.Debug("system complete",
		"id", sys.ID,
		"technologies", sys.Size(),
		"connections", len(sys.Connections),
		"open_inputs", len(OpenInputs(sys)),
	)

	if err := e.results.Emit(sys); err != nil {
		// Log and continue: the in-memory collection is authoritative,
		// a sink is an observer.
		e.logger.Warn("result sink failed",
			"id", sys.ID,
			"error", err,
		)
	}
	return nil
}

// EnumerateAll runs Enumerate for every source in turn and returns the
// concatenated results keyed by source name. Sources yielding an error
// abort the run; unproductive sources do not.
func (e *Engine) EnumerateAll(ctx context.Context, sources []tech.Technology) (map[string][]*tech.System, error) {
	out := make(map[string][]*tech.System, len(sources))
	for _, src := range sources {
		systems, err := e.Enumerate(ctx, src)
		if err != nil {
			return out, fmt.Errorf("enumerate from %s: %w", src.Name, err)
		}
		out[src.Name] = systems
	}
	return out, nil
}
