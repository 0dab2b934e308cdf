package massflow

import (
	"math"
	"math/rand"
	"sort"

	"sanigraph/internal/tech"
)

// Inputs maps source-technology name to per-substance input mass.
// Every source technology of a simulated system must have an entry;
// entries for technologies outside the system are ignored.
type Inputs map[string]map[string]float64

// Options configures a simulation or summary call.
//
// The zero value runs a single deterministic propagation.
type Options struct {
	// MonteCarlo samples transfer fractions instead of using the
	// nominal values.
	MonteCarlo bool

	// ReliabilityScale sharpens (>1) or widens (<1) the sampling
	// distribution around the nominal fractions. Zero means 1.
	ReliabilityScale float64

	// N is the number of runs a summary reduces. Zero means 1.
	N int

	// Quantiles to report in summaries. Nil means DefaultQuantiles.
	Quantiles []float64

	// Rand is the random stream for Monte Carlo draws. Nil means a
	// fresh generator seeded for this call, which is what gives
	// repeated calls fresh randomness. Tests inject a seeded generator
	// for reproducibility.
	Rand *rand.Rand
}

// conservationTolerance bounds the acceptable absolute conservation
// defect per unit of entered mass.
const conservationTolerance = 1e-9

// Flow is the outcome of a single propagation run: per-substance
// entered, recovered, and lost-by-pathway masses. Loss pathways are
// keyed by name, aggregated across technologies.
type Flow struct {
	Entered   map[string]float64
	Recovered map[string]float64
	Lost      map[string]map[string]float64
}

// Massflow propagates input masses through a complete System once.
//
// Stages are walked in order. Stage-0 technologies send their full
// input-mass entry to their outputs; every later technology receives
// the fan-in sum over its feeding connections and partitions each
// substance's incoming mass into recovered-to-outputs and
// lost-to-named-pathways according to its transfer behavior. Mass
// routed to outputs divides equally over the declared output units;
// units consumed by a connection carry their share downstream, units
// no connection consumes are terminal and count as recovered, and all
// mass retained at a sink counts as recovered.
//
// In Monte Carlo mode the transfer fractions of each technology are
// drawn fresh for every run; see sampleFractions for the distribution.
// Conservation holds after every draw: for each substance,
// entered - recovered - sum(lost) stays within numerical tolerance.
func Massflow(sys *tech.System, inputs Inputs, opts Options) (*Flow, error) {
	rng, err := prepare(sys, inputs, &opts)
	if err != nil {
		return nil, err
	}
	return propagate(sys, inputs, opts, rng)
}

// prepare validates the (system, inputs, options) triple and resolves
// the random stream. It mutates opts only to normalize defaults.
func prepare(sys *tech.System, inputs Inputs, opts *Options) (*rand.Rand, error) {
	if sys == nil || !sys.Complete {
		return nil, NewPreconditionError(systemID(sys), "mass flow requires a complete system")
	}
	if err := sys.Validate(); err != nil {
		return nil, NewStructuralError(sys.ID, err)
	}
	if opts.ReliabilityScale < 0 {
		return nil, NewPreconditionError(sys.ID, "reliability scale must be positive")
	}
	if opts.ReliabilityScale == 0 {
		opts.ReliabilityScale = 1
	}
	if opts.N < 0 {
		return nil, NewPreconditionError(sys.ID, "run count must be positive")
	}
	if opts.N == 0 {
		opts.N = 1
	}
	for _, q := range opts.Quantiles {
		if q <= 0 || q >= 1 {
			return nil, NewPreconditionError(sys.ID, "quantiles must lie strictly between 0 and 1")
		}
	}
	for _, src := range sys.Sources() {
		if _, ok := inputs[src.Name]; !ok {
			return nil, NewUnmatchedSourceError(sys.ID, src.Name)
		}
	}
	rng := opts.Rand
	if rng == nil {
		rng = NewRand()
	}
	return rng, nil
}

// propagate runs one draw. Callers must have validated via prepare.
func propagate(sys *tech.System, inputs Inputs, opts Options, rng *rand.Rand) (*Flow, error) {
	substances := trackedSubstances(sys, inputs)

	flow := &Flow{
		Entered:   make(map[string]float64, len(substances)),
		Recovered: make(map[string]float64, len(substances)),
		Lost:      make(map[string]map[string]float64),
	}
	for _, sub := range substances {
		flow.Entered[sub] = 0
		flow.Recovered[sub] = 0
	}

	// Mass in transit, per connection. Connections always point from
	// an earlier stage to a later one, so a walk in stage order sees
	// every inflow before its consumer.
	carried := make([]map[string]float64, len(sys.Connections))
	for i := range carried {
		carried[i] = make(map[string]float64)
	}

	for stageIdx, stage := range sys.Stages {
		for _, t := range stage {
			incoming := make(map[string]float64, len(substances))
			if stageIdx == 0 {
				for sub, m := range inputs[t.Name] {
					incoming[sub] = m
					flow.Entered[sub] += m
				}
			} else {
				for i, conn := range sys.Connections {
					if conn.Downstream != t.Name {
						continue
					}
					for sub, m := range carried[i] {
						incoming[sub] += m
					}
				}
			}

			outUnits, err := outputUnits(sys, t)
			if err != nil {
				return nil, err
			}

			// Substance order is fixed so a seeded generator
			// reproduces the same draws.
			for _, sub := range substances {
				m := incoming[sub]
				if m == 0 {
					continue
				}

				outgoing := m
				// Stage-0 outgoing mass equals the input entry;
				// partition applies from stage 1 on.
				if stageIdx > 0 {
					outgoing = partition(t, sub, m, opts, rng, flow)
				}

				if len(t.Outputs) == 0 {
					// Mass retained at a sink is recovered there.
					flow.Recovered[sub] += outgoing
					continue
				}

				perUnit := outgoing / float64(len(t.Outputs))
				for _, unit := range outUnits {
					if unit.connection >= 0 {
						carried[unit.connection][sub] += perUnit
					} else {
						// Terminal open output.
						flow.Recovered[sub] += perUnit
					}
				}
			}
		}
	}

	if err := checkConservation(sys.ID, flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// partition applies t's transfer behavior to m units of sub, records
// pathway losses on flow, and returns the mass going to outputs.
func partition(t tech.Technology, sub string, m float64, opts Options, rng *rand.Rand, flow *Flow) float64 {
	split, ok := t.Transfer.Substances[sub]
	if !ok {
		// Untracked substances pass through unchanged.
		return m
	}

	pathways := sortedPathways(split)
	fractions := make([]float64, 1+len(pathways))
	fractions[0] = split.ToOutputs
	for i, pw := range pathways {
		fractions[i+1] = split.Losses[pw]
	}

	if opts.MonteCarlo {
		concentration := t.ReliabilityOrDefault() * opts.ReliabilityScale
		fractions = sampleFractions(rng, fractions, concentration)
	}

	for i, pw := range pathways {
		loss := m * fractions[i+1]
		if loss == 0 {
			continue
		}
		if flow.Lost[sub] == nil {
			flow.Lost[sub] = make(map[string]float64)
		}
		flow.Lost[sub][pw] += loss
	}
	return m * fractions[0]
}

// outputUnit maps one declared output occurrence of a technology to
// the connection consuming it, or -1 when the unit is open.
type outputUnit struct {
	product    tech.Product
	connection int
}

// outputUnits assigns each of t's declared output occurrences to at
// most one consuming connection. More connections than declared units
// for a product means the synthesis invariant is broken.
func outputUnits(sys *tech.System, t tech.Technology) ([]outputUnit, error) {
	unclaimed := make(map[tech.Product][]int)
	for i, conn := range sys.Connections {
		if conn.Upstream == t.Name {
			unclaimed[conn.Product] = append(unclaimed[conn.Product], i)
		}
	}

	units := make([]outputUnit, len(t.Outputs))
	for i, p := range t.Outputs {
		units[i] = outputUnit{product: p, connection: -1}
		if idxs := unclaimed[p]; len(idxs) > 0 {
			units[i].connection = idxs[0]
			unclaimed[p] = idxs[1:]
		}
	}

	for p, idxs := range unclaimed {
		if len(idxs) > 0 {
			return nil, &SimulationError{
				Code:       ErrCodeStructural,
				Message:    "more connections than declared output units for product " + p.Name,
				SystemID:   sys.ID,
				Technology: t.Name,
			}
		}
	}
	return units, nil
}

// trackedSubstances returns the sorted union of substances appearing
// in the input masses of the system's sources.
func trackedSubstances(sys *tech.System, inputs Inputs) []string {
	seen := map[string]bool{}
	for _, src := range sys.Sources() {
		for sub := range inputs[src.Name] {
			seen[sub] = true
		}
	}
	out := make([]string, 0, len(seen))
	for sub := range seen {
		out = append(out, sub)
	}
	sort.Strings(out)
	return out
}

func sortedPathways(split tech.Split) []string {
	out := make([]string, 0, len(split.Losses))
	for pw := range split.Losses {
		out = append(out, pw)
	}
	sort.Strings(out)
	return out
}

// checkConservation verifies entered - recovered - sum(lost) per
// substance. A violation is an internal bug: the propagation is built
// so the identity holds after every draw.
func checkConservation(systemID string, flow *Flow) error {
	for sub, entered := range flow.Entered {
		lost := 0.0
		for _, m := range flow.Lost[sub] {
			lost += m
		}
		defect := entered - flow.Recovered[sub] - lost
		tolerance := conservationTolerance * math.Max(1, math.Abs(entered))
		if math.Abs(defect) > tolerance {
			return NewConservationError(systemID, sub, entered, flow.Recovered[sub], lost)
		}
	}
	return nil
}

func systemID(sys *tech.System) string {
	if sys == nil {
		return ""
	}
	return sys.ID
}
