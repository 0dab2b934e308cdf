package massflow

import (
	"math"
	"math/rand"
)

// sampleFractions draws a random partition around the nominal one.
//
// The draw is Dirichlet with alpha_i = concentration * nominal_i, so
// the expected value of every component equals its nominal fraction
// and a larger concentration (higher reliability, or a reliability
// scale above 1) concentrates the draw around the nominal partition.
// Components with a zero nominal fraction stay exactly zero, and the
// sampled fractions always sum to 1, which is what keeps mass
// conservation exact under sampling.
func sampleFractions(rng *rand.Rand, nominal []float64, concentration float64) []float64 {
	sampled := make([]float64, len(nominal))
	total := 0.0
	for i, f := range nominal {
		if f <= 0 {
			continue
		}
		g := gammaSample(rng, concentration*f)
		sampled[i] = g
		total += g
	}
	if total == 0 {
		// Degenerate draw; fall back to the nominal partition.
		copy(sampled, nominal)
		return sampled
	}
	for i := range sampled {
		sampled[i] /= total
	}
	return sampled
}

// gammaSample draws from Gamma(shape, 1) using the Marsaglia-Tsang
// squeeze method, with the standard boost for shape < 1.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Gamma(a) = Gamma(a+1) * U^(1/a) for a < 1.
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
