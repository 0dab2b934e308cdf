package massflow

import (
	"math"
	"sort"

	"sanigraph/internal/tech"
)

// DefaultQuantiles are the quantiles reported when Options.Quantiles
// is nil.
var DefaultQuantiles = []float64{0.05, 0.25, 0.5, 0.75, 0.95}

// Summary runs Options.N propagations and reduces them to
// per-substance statistics. It never mutates sys; the caller decides
// what to do with the result. All runs of one call share a single
// random stream, and separate calls get separate streams unless the
// caller injects Options.Rand.
//
// The result carries the five reporting categories with stable names:
// entered, recovered, recovery_ratio, lost (by pathway), and
// lost_total. Loss pathways that a system can produce appear even when
// every run lost nothing through them, so the result shape depends
// only on the system, never on the draw.
func Summary(sys *tech.System, inputs Inputs, opts Options) (*tech.MassflowResult, error) {
	rng, err := prepare(sys, inputs, &opts)
	if err != nil {
		return nil, err
	}
	flows := make([]*Flow, opts.N)
	for i := range flows {
		flow, err := propagate(sys, inputs, opts, rng)
		if err != nil {
			return nil, err
		}
		flows[i] = flow
	}
	return reduce(sys, inputs, flows, opts), nil
}

// SummarizeInto is Summary with the result attached to sys.Result,
// replacing any previous result. sys is untouched on error.
func SummarizeInto(sys *tech.System, inputs Inputs, opts Options) error {
	res, err := Summary(sys, inputs, opts)
	if err != nil {
		return err
	}
	sys.Result = res
	return nil
}

// reduce collapses the run-by-run flows into a MassflowResult.
func reduce(sys *tech.System, inputs Inputs, flows []*Flow, opts Options) *tech.MassflowResult {
	quantiles := opts.Quantiles
	if quantiles == nil {
		quantiles = DefaultQuantiles
	}
	substances := trackedSubstances(sys, inputs)
	pathways := lossUniverse(sys, substances)

	res := &tech.MassflowResult{
		N:             len(flows),
		MonteCarlo:    opts.MonteCarlo,
		Entered:       make(map[string]tech.Stats, len(substances)),
		Recovered:     make(map[string]tech.Stats, len(substances)),
		RecoveryRatio: make(map[string]tech.Stats, len(substances)),
		LostTotal:     make(map[string]tech.Stats, len(substances)),
		Lost:          make(map[string]map[string]tech.Stats),
	}

	entered := make([]float64, len(flows))
	recovered := make([]float64, len(flows))
	ratio := make([]float64, len(flows))
	lostTotal := make([]float64, len(flows))
	lost := make([]float64, len(flows))

	for _, sub := range substances {
		for i, f := range flows {
			entered[i] = f.Entered[sub]
			recovered[i] = f.Recovered[sub]
			lostTotal[i] = 0
			for _, m := range f.Lost[sub] {
				lostTotal[i] += m
			}
			ratio[i] = 0
			if entered[i] > 0 {
				ratio[i] = recovered[i] / entered[i]
			}
		}
		res.Entered[sub] = newStats(entered, quantiles)
		res.Recovered[sub] = newStats(recovered, quantiles)
		res.RecoveryRatio[sub] = newStats(ratio, quantiles)
		res.LostTotal[sub] = newStats(lostTotal, quantiles)

		for _, pw := range pathways[sub] {
			for i, f := range flows {
				lost[i] = f.Lost[sub][pw]
			}
			if res.Lost[sub] == nil {
				res.Lost[sub] = make(map[string]tech.Stats, len(pathways[sub]))
			}
			res.Lost[sub][pw] = newStats(lost, quantiles)
		}
	}
	return res
}

// lossUniverse returns, per substance, the sorted loss-pathway names
// any non-source technology of the system can route that substance to.
// Sources never partition, so stage 0 does not contribute.
func lossUniverse(sys *tech.System, substances []string) map[string][]string {
	out := make(map[string][]string, len(substances))
	for _, sub := range substances {
		seen := map[string]bool{}
		for si := 1; si < len(sys.Stages); si++ {
			for _, t := range sys.Stages[si] {
				split, ok := t.Transfer.Substances[sub]
				if !ok {
					continue
				}
				for pw, f := range split.Losses {
					if f > 0 {
						seen[pw] = true
					}
				}
			}
		}
		if len(seen) == 0 {
			continue
		}
		pws := make([]string, 0, len(seen))
		for pw := range seen {
			pws = append(pws, pw)
		}
		sort.Strings(pws)
		out[sub] = pws
	}
	return out
}

// newStats reduces one cell's run values to mean, sample standard
// deviation, and the requested quantiles.
func newStats(values []float64, quantiles []float64) tech.Stats {
	s := make(tech.Stats, 2+len(quantiles))

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	s[tech.StatMean] = mean

	sd := 0.0
	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			d := v - mean
			ss += d * d
		}
		sd = math.Sqrt(ss / float64(len(values)-1))
	}
	s[tech.StatSD] = sd

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	for _, q := range quantiles {
		s[tech.QuantileStat(q)] = quantile(sorted, q)
	}
	return s
}

// quantile interpolates linearly between order statistics.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
