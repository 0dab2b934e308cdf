package massflow

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// NewRand returns a math/rand generator with a fresh seed drawn from
// crypto/rand (falling back to wall-clock nanoseconds if the system
// entropy source fails).
//
// Generators returned here are NOT safe for concurrent use. That is
// deliberate: every worker in a parallel run holds its own generator,
// which is what makes the per-system Monte Carlo streams statistically
// independent.
func NewRand() *rand.Rand {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}
