package types

import (
	"fmt"
	"math"
)

// Point is a location in d-dimensional space.
//
// The dimension is carried at runtime by the slice length; all points handled
// within one simulation share the same dimension.
type Point []float64

// Dim returns the spatial dimension of the point.
func (p Point) Dim() int {
	return len(p)
}

// Clone returns a deep copy of the point.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}

	return append(Point(nil), p...)
}

// String returns a compact human-readable form, e.g. "(1.5, 2)".
func (p Point) String() string {
	s := "("
	for i, v := range p {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%g", v)
	}

	return s + ")"
}

// Rotation is a d×d matrix mapping world axes onto ellipsoid principal axes.
//
// Row i of the matrix produces component i of the rotated vector. An empty
// Rotation is treated as the identity.
type Rotation [][]float64

// Identity returns the d×d identity rotation.
func Identity(dim int) Rotation {
	r := make(Rotation, dim)
	for i := range dim {
		r[i] = make([]float64, dim)
		r[i][i] = 1
	}

	return r
}

// IsIdentity reports whether r is empty or equal to the identity within tol.
func (r Rotation) IsIdentity(tol float64) bool {
	for i, row := range r {
		for j, v := range row {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(v-want) > tol {
				return false
			}
		}
	}

	return true
}

// Clone returns a deep copy of the rotation.
func (r Rotation) Clone() Rotation {
	if r == nil {
		return nil
	}
	out := make(Rotation, len(r))
	for i, row := range r {
		out[i] = append([]float64(nil), row...)
	}

	return out
}

// Nucleus is a candidate or finalized nucleation event.
//
// Before reconciliation ID is provisional: it is only meaningful as
// (existing nuclei count + position in the local candidate batch of the current
// round). After reconciliation IDs are dense, sequential and identical across all
// partitions. Finalized nuclei are immutable once appended to the world list.
type Nucleus struct {
	// ID identifies the nucleus (provisional or final, see type docs).
	ID int `json:"id"`

	// Center is the nucleus center in world coordinates.
	Center Point `json:"center"`

	// Semiaxes holds the per-axis ellipsoid radii in principal-axis order.
	Semiaxes []float64 `json:"semiaxes"`

	// Rotation maps world axes onto the ellipsoid principal axes.
	Rotation Rotation `json:"rotation,omitempty"`

	// SeededTime is the simulation time at which the nucleus was seeded.
	SeededTime float64 `json:"seededTime"`

	// HoldTime is how long the seeded region is held before it may evolve freely.
	HoldTime float64 `json:"holdTime"`

	// SeededStep is the time-step index at which the nucleus was seeded.
	SeededStep int `json:"seededStep"`

	// OrderParameter is the index of the phase channel owning this nucleus.
	OrderParameter int `json:"orderParameter"`
}

// Clone returns a deep copy of the nucleus.
func (n Nucleus) Clone() Nucleus {
	n.Center = n.Center.Clone()
	n.Semiaxes = append([]float64(nil), n.Semiaxes...)
	n.Rotation = n.Rotation.Clone()

	return n
}

// Clock identifies the simulation instant of a nucleation round.
type Clock struct {
	// Time is the current simulation time.
	Time float64

	// Increment is the current time-step index.
	Increment int
}

// CountByOrderParameter counts nuclei owned by the given order parameter.
//
// Parameters:
//   - nuclei: Nuclei to scan (typically the world list)
//   - orderParameter: Order parameter index to count
//
// Returns:
//   - int: Number of nuclei with a matching order parameter
func CountByOrderParameter(nuclei []Nucleus, orderParameter int) int {
	count := 0
	for i := range nuclei {
		if nuclei[i].OrderParameter == orderParameter {
			count++
		}
	}

	return count
}
