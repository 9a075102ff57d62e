// ABOUTME: Lower real branch of the Lambert W function
// ABOUTME: Halley iteration seeded by the branch-point series or the log asymptote

package laplace

import "math"

const (
	// branchPoint is the lower end of the real domain of W, where W = -1.
	branchPoint = -1 / math.E

	lambertTolerance     = 1e-12
	lambertMaxIterations = 64
)

// LambertWm1 evaluates W₋₁(x) for x in [-1/e, 0). The second result is false
// when x is outside the domain or the iteration failed to converge; in that
// case the first result is NaN or the last iterate.
func LambertWm1(x float64) (float64, bool) {
	switch {
	case math.IsNaN(x) || x >= 0:
		return math.NaN(), false
	case x <= branchPoint:
		// Rounding can land a hair below -1/e.
		if branchPoint-x > 1e-15 {
			return math.NaN(), false
		}
		return -1, true
	}

	w := lambertSeed(x)
	for i := 0; i < lambertMaxIterations; i++ {
		ew := math.Exp(w)
		f := w*ew - x
		if math.Abs(f) <= 1e-15*math.Abs(x) {
			return w, true
		}
		wp1 := w + 1
		denom := ew*wp1 - (w+2)*f/(2*wp1)
		if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
			return w, false
		}
		next := w - f/denom
		if math.Abs(next-w) <= lambertTolerance*math.Abs(next) {
			return next, true
		}
		w = next
	}
	return w, false
}

func lambertSeed(x float64) float64 {
	if x < -0.25 {
		p := -math.Sqrt(2 * (1 + math.E*x))
		return -1 + p - p*p/3 + 11.0/72.0*p*p*p
	}
	l1 := math.Log(-x)
	l2 := math.Log(-l1)
	return l1 - l2 + l2/l1
}
