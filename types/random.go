package types

// RandomSource produces uniformly distributed values in [0, 1).
//
// Each partition owns an independent source; no cross-partition coordination of
// random streams takes place. *math/rand/v2.Rand satisfies this interface, which
// lets tests inject a deterministic generator.
type RandomSource interface {
	// Float64 returns a pseudo-random number in the half-open interval [0.0, 1.0).
	Float64() float64
}
