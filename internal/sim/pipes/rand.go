package pipes

import "math"

// Rand is the random source the growth rules draw from. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

func chance(r Rand, p float64) bool {
	return r.Float64() < p
}

// roundedInt mirrors a rounded uniform draw in [lo, hi]; the endpoints get half weight.
func roundedInt(r Rand, lo, hi int) int {
	return lo + int(math.Round(r.Float64()*float64(hi-lo)))
}
