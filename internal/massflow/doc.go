// Package massflow implements the mass-flow simulation engine:
// deterministic and Monte Carlo propagation of per-substance masses
// through a complete System, and the statistical reduction of repeated
// runs into a MassflowResult.
//
// All entry points are pure over well-formed inputs except the
// explicitly in-place variants (SummarizeInto, ScaleInto,
// SummarizeAllInto), which replace the target System's attached result.
//
// Randomness is never ambient: every Monte Carlo call either receives
// an explicit *rand.Rand or seeds a fresh one, so repeated calls with
// identical inputs produce different samples by contract and parallel
// execution is race-free by construction.
package massflow
