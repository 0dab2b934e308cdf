package tech

import (
	"fmt"
	"strconv"
)

// Category names of a MassflowResult. These are a stability contract
// with external exporters and must never be renamed.
const (
	CategoryEntered       = "entered"
	CategoryRecovered     = "recovered"
	CategoryRecoveryRatio = "recovery_ratio"
	CategoryLost          = "lost"
	CategoryLostTotal     = "lost_total"
)

// Statistic names within a Stats cell. Same stability contract as the
// category names.
const (
	StatMean = "mean"
	StatSD   = "sd"
)

// QuantileStat returns the stable statistic name for a quantile,
// e.g. QuantileStat(0.05) == "q_0.05".
func QuantileStat(q float64) string {
	return "q_" + strconv.FormatFloat(q, 'g', -1, 64)
}

// Stats maps statistic names (mean, sd, q_<quantile>) to values.
type Stats map[string]float64

// Clone returns an independent copy.
func (st Stats) Clone() Stats {
	if st == nil {
		return nil
	}
	out := make(Stats, len(st))
	for k, v := range st {
		out[k] = v
	}
	return out
}

// MassflowResult is the statistical reduction of one or more mass-flow
// runs over a System. It is owned by the System it was computed for;
// recomputation replaces it.
//
// Exactly five top-level categories, keyed by substance (lost
// additionally by pathway name, aggregated across technologies):
//
//	entered        - mass fed into the system
//	recovered      - mass reaching sinks or terminal outputs
//	recovery_ratio - recovered/entered, dimensionless
//	lost           - mass removed at named loss pathways
//	lost_total     - per-substance sum of lost over pathways
type MassflowResult struct {
	// N is the number of runs reduced into the statistics.
	N int `json:"n"`
	// MonteCarlo records whether transfer fractions were sampled.
	MonteCarlo bool `json:"monte_carlo"`

	Entered       map[string]Stats            `json:"entered"`
	Recovered     map[string]Stats            `json:"recovered"`
	RecoveryRatio map[string]Stats            `json:"recovery_ratio"`
	Lost          map[string]map[string]Stats `json:"lost"`
	LostTotal     map[string]Stats            `json:"lost_total"`
}

// Clone returns a fully independent copy: mutating the clone never
// affects the original.
func (r *MassflowResult) Clone() *MassflowResult {
	if r == nil {
		return nil
	}
	c := &MassflowResult{
		N:             r.N,
		MonteCarlo:    r.MonteCarlo,
		Entered:       cloneStatsMap(r.Entered),
		Recovered:     cloneStatsMap(r.Recovered),
		RecoveryRatio: cloneStatsMap(r.RecoveryRatio),
		LostTotal:     cloneStatsMap(r.LostTotal),
	}
	if r.Lost != nil {
		c.Lost = make(map[string]map[string]Stats, len(r.Lost))
		for sub, pathways := range r.Lost {
			c.Lost[sub] = cloneStatsMap(pathways)
		}
	}
	return c
}

// Scale multiplies every statistic in place by factor, across all five
// categories. Scaling by zero zeroes everything, quantiles included.
func (r *MassflowResult) Scale(factor float64) {
	scaleStatsMap(r.Entered, factor)
	scaleStatsMap(r.Recovered, factor)
	scaleStatsMap(r.RecoveryRatio, factor)
	scaleStatsMap(r.LostTotal, factor)
	for _, pathways := range r.Lost {
		scaleStatsMap(pathways, factor)
	}
}

// Substances returns the union of substances across all categories.
func (r *MassflowResult) Substances() []string {
	seen := map[string]bool{}
	var out []string
	add := func(m map[string]Stats) {
		for sub := range m {
			if !seen[sub] {
				seen[sub] = true
				out = append(out, sub)
			}
		}
	}
	add(r.Entered)
	add(r.Recovered)
	add(r.RecoveryRatio)
	add(r.LostTotal)
	for sub := range r.Lost {
		if !seen[sub] {
			seen[sub] = true
			out = append(out, sub)
		}
	}
	return out
}

func cloneStatsMap(m map[string]Stats) map[string]Stats {
	if m == nil {
		return nil
	}
	out := make(map[string]Stats, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func scaleStatsMap(m map[string]Stats, factor float64) {
	for _, st := range m {
		for name := range st {
			st[name] *= factor
		}
	}
}

// String renders a short human-readable form for log lines.
func (r *MassflowResult) String() string {
	if r == nil {
		return "<no result>"
	}
	return fmt.Sprintf("massflow(n=%d, monte_carlo=%t, substances=%d)", r.N, r.MonteCarlo, len(r.Entered))
}
