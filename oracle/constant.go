package oracle

import "github.com/arloliu/nucleate/types"

// Func adapts a plain function to a probability law.
//
// Example:
//
//	law := oracle.Func(func(values map[int]float64, volume float64, _ types.Point, _ int) float64 {
//	    return min(1, 1e-3*volume*values[0])
//	})
type Func = types.ProbabilityFunc

// Constant returns probability P for every cell and order parameter.
type Constant struct {
	P float64
}

var _ types.ProbabilityOracle = Constant{}

// NewConstant creates a constant law.
func NewConstant(p float64) Constant {
	return Constant{P: p}
}

// Probability returns c.P.
func (c Constant) Probability(map[int]float64, float64, types.Point, int) float64 {
	return c.P
}

// Region returns P for cells whose center lies in [Lo, Hi] on every axis and
// zero elsewhere.
type Region struct {
	Lo types.Point
	Hi types.Point
	P  float64
}

var _ types.ProbabilityOracle = Region{}

// NewRegion creates a box law.
//
// Parameters:
//   - lo: Lower corner (inclusive)
//   - hi: Upper corner (inclusive)
//   - p: Probability inside the box
//
// Example:
//
//	// seed only near the left wall of a 100x100 domain
//	law := oracle.NewRegion(types.Point{0, 0}, types.Point{10, 100}, 0.05)
func NewRegion(lo, hi types.Point, p float64) Region {
	return Region{Lo: lo.Clone(), Hi: hi.Clone(), P: p}
}

// Probability returns r.P when center is inside the box.
func (r Region) Probability(_ map[int]float64, _ float64, center types.Point, _ int) float64 {
	if !r.Contains(center) {
		return 0
	}

	return r.P
}

// Contains reports whether p lies in the box. Axes beyond the box dimension
// are unconstrained.
func (r Region) Contains(p types.Point) bool {
	for i := range min(len(p), len(r.Lo), len(r.Hi)) {
		if p[i] < r.Lo[i] || p[i] > r.Hi[i] {
			return false
		}
	}

	return true
}
