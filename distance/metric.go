package distance

import (
	"math"

	"github.com/arloliu/nucleate/types"
)

// BatchWidth is the number of query points evaluated together by the batched kernel.
const BatchWidth = 8

// MaxStackDim is the largest dimension evaluated without heap scratch space.
const MaxStackDim = 3

// Lane is a fixed-width pack of values processed by one kernel invocation.
//
// A [1]float64 lane is the scalar container; a [BatchWidth]float64 lane is the
// batch container.
type Lane interface {
	[1]float64 | [BatchWidth]float64
}

// Metric holds the geometry that is shared by every nucleus of one order parameter:
// per-axis periodicity, the domain extent used for periodic wrapping, and the
// rotation into the ellipsoid principal-axis frame.
//
// The zero value is a valid non-periodic, unrotated metric.
type Metric struct {
	// Periodic marks the axes on which displacements wrap. Missing entries are non-periodic.
	Periodic []bool

	// Extent is the physical domain size per axis, used as the wrap period.
	Extent []float64

	// Rotation maps world axes onto principal axes. Empty means identity.
	Rotation types.Rotation
}

// New creates a metric.
//
// Parameters:
//   - periodic: Per-axis periodicity flags
//   - extent: Per-axis domain extent (the period on periodic axes)
//   - rotation: World-to-principal rotation (nil for identity)
//
// Returns:
//   - Metric: Metric value ready for distance queries
//
// Example:
//
//	m := distance.New([]bool{true, false}, []float64{100, 100}, nil)
//	d := m.Weighted(types.Point{0, 50}, []float64{5, 5}, types.Point{99, 50})
func New(periodic []bool, extent []float64, rotation types.Rotation) Metric {
	return Metric{Periodic: periodic, Extent: extent, Rotation: rotation}
}

// Weighted returns the weighted ellipsoidal distance from center to point.
//
// Parameters:
//   - center: Ellipsoid center
//   - semiaxes: Per-axis radii in principal-axis order
//   - point: Query point
//
// Returns:
//   - float64: Normalized distance (1.0 on the ellipsoid boundary)
func (m Metric) Weighted(center types.Point, semiaxes []float64, point types.Point) float64 {
	dim := len(center)

	var stack [MaxStackDim][1]float64
	var q [][1]float64
	if dim <= MaxStackDim {
		q = stack[:dim]
	} else {
		q = make([][1]float64, dim)
	}
	for a := range dim {
		q[a][0] = point[a]
	}

	return weighted(m, center, semiaxes, q)[0]
}

// WeightedBatch evaluates the weighted distance for many points at once.
//
// Points are processed in packs of BatchWidth. The result for each point is
// identical to Weighted for that point.
//
// Parameters:
//   - center: Ellipsoid center
//   - semiaxes: Per-axis radii in principal-axis order
//   - points: Query points
//   - dst: Optional destination slice, reused when its capacity suffices
//
// Returns:
//   - []float64: Distances, index-aligned with points
func (m Metric) WeightedBatch(center types.Point, semiaxes []float64, points []types.Point, dst []float64) []float64 {
	if cap(dst) >= len(points) {
		dst = dst[:len(points)]
	} else {
		dst = make([]float64, len(points))
	}

	dim := len(center)
	var stack [MaxStackDim][BatchWidth]float64
	var q [][BatchWidth]float64
	if dim <= MaxStackDim {
		q = stack[:dim]
	} else {
		q = make([][BatchWidth]float64, dim)
	}

	for start := 0; start < len(points); start += BatchWidth {
		n := min(BatchWidth, len(points)-start)
		for a := range dim {
			for k := range BatchWidth {
				if k < n {
					q[a][k] = points[start+k][a]
				} else {
					// pad unused lanes with the center; their results are discarded
					q[a][k] = center[a]
				}
			}
		}

		out := weighted(m, center, semiaxes, q)
		copy(dst[start:start+n], out[:n])
	}

	return dst
}

// FirstInside returns the index of the first point whose weighted distance is
// strictly below 1, or -1 when every point lies on or outside the ellipsoid.
//
// Parameters:
//   - center: Ellipsoid center
//   - semiaxes: Per-axis radii in principal-axis order
//   - points: Query points
//   - scratch: Optional scratch slice reused for the batched distances
//
// Returns:
//   - int: Index of the first inside point, -1 if none
//   - []float64: The scratch slice (possibly grown) for reuse by the caller
func (m Metric) FirstInside(center types.Point, semiaxes []float64, points []types.Point, scratch []float64) (int, []float64) {
	scratch = m.WeightedBatch(center, semiaxes, points, scratch)
	for i, d := range scratch {
		if d < 1.0 {
			return i, scratch
		}
	}

	return -1, scratch
}

func (m Metric) periodic(axis int) bool {
	return axis < len(m.Periodic) && m.Periodic[axis] && axis < len(m.Extent) && m.Extent[axis] > 0
}

// weighted is the single distance kernel shared by the scalar and batched forms.
// q[a] holds the lane values of coordinate a of the query points.
func weighted[L Lane](m Metric, center types.Point, semiaxes []float64, q []L) L {
	dim := len(center)

	var dispStack [MaxStackDim]L
	var disp []L
	if dim <= MaxStackDim {
		disp = dispStack[:dim]
	} else {
		disp = make([]L, dim)
	}

	var out L
	lanes := len(out)

	for a := range dim {
		wrap := m.periodic(a)
		for k := 0; k < lanes; k++ {
			v := q[a][k] - center[a]
			if wrap {
				period := m.Extent[a]
				v -= math.Round(v/period) * period
			}
			disp[a][k] = v
		}
	}

	rotated := len(m.Rotation) > 0
	var sum L
	for i := range dim {
		for k := 0; k < lanes; k++ {
			var r float64
			if rotated {
				row := m.Rotation[i]
				for j := range dim {
					r += row[j] * disp[j][k]
				}
			} else {
				r = disp[i][k]
			}
			r /= semiaxes[i]
			sum[k] += r * r
		}
	}

	for k := 0; k < lanes; k++ {
		out[k] = math.Sqrt(sum[k])
	}

	return out
}

// Euclidean returns the plain (unweighted, non-periodic) distance between a and b.
func Euclidean(a, b types.Point) float64 {
	var sum float64
	for i := range a {
		d := b[i] - a[i]
		sum += d * d
	}

	return math.Sqrt(sum)
}
