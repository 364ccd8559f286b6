package nucleate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/nucleate/types"
)

// rotationTolerance bounds the deviation from orthonormality accepted for a
// configured rotation.
const rotationTolerance = 1e-9

// RotationFromAngles builds the world-to-principal rotation of an ellipsoid
// whose principal axes are turned by the given angles (radians).
//
// Angle conventions:
//   - 1D: no angles
//   - 2D: one angle, counter-clockwise from the x axis
//   - 3D: three angles (z, y, x), orientation Rz(a)·Ry(b)·Rx(c)
//
// The returned matrix is the transpose of the orientation, so it maps a world
// displacement into principal-axis coordinates.
//
// Parameters:
//   - dim: Spatial dimension (1..3)
//   - angles: Rotation angles for dim
//
// Returns:
//   - types.Rotation: dim×dim rotation
//   - error: ErrInvalidConfig on a wrong angle count or dimension
//
// Example:
//
//	// ellipse whose long axis points along the diagonal
//	r, err := nucleate.RotationFromAngles(2, math.Pi/4)
func RotationFromAngles(dim int, angles ...float64) (types.Rotation, error) {
	want := map[int]int{1: 0, 2: 1, 3: 3}
	n, ok := want[dim]
	if !ok {
		return nil, fmt.Errorf("%w: rotation dimension %d", ErrInvalidConfig, dim)
	}
	if len(angles) != n {
		return nil, fmt.Errorf("%w: %d rotation angles for dimension %d, want %d", ErrInvalidConfig, len(angles), dim, n)
	}

	var orientation *mat.Dense
	switch dim {
	case 1:
		orientation = mat.NewDense(1, 1, []float64{1})
	case 2:
		orientation = planar(angles[0])
	case 3:
		orientation = mat.NewDense(3, 3, nil)
		orientation.Product(axisRotation(2, angles[0]), axisRotation(1, angles[1]), axisRotation(0, angles[2]))
	}

	return fromDense(orientation.T()), nil
}

func planar(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)

	return mat.NewDense(2, 2, []float64{
		c, -s,
		s, c,
	})
}

// axisRotation returns the 3D rotation by theta about the given axis.
func axisRotation(axis int, theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	switch axis {
	case 0:
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, c, -s,
			0, s, c,
		})
	case 1:
		return mat.NewDense(3, 3, []float64{
			c, 0, s,
			0, 1, 0,
			-s, 0, c,
		})
	default:
		return mat.NewDense(3, 3, []float64{
			c, -s, 0,
			s, c, 0,
			0, 0, 1,
		})
	}
}

func fromDense(m mat.Matrix) types.Rotation {
	r, c := m.Dims()
	out := make(types.Rotation, r)
	for i := range r {
		out[i] = make([]float64, c)
		for j := range c {
			out[i][j] = m.At(i, j)
		}
	}

	return out
}

// ValidateRotation checks that r is a proper dim×dim rotation: square,
// orthonormal and with determinant +1. An empty r is the identity and valid.
func ValidateRotation(r types.Rotation, dim int) error {
	if len(r) == 0 {
		return nil
	}
	if len(r) != dim {
		return fmt.Errorf("%w: rotation has %d rows, want %d", ErrInvalidConfig, len(r), dim)
	}

	data := make([]float64, 0, dim*dim)
	for i, row := range r {
		if len(row) != dim {
			return fmt.Errorf("%w: rotation row %d has %d columns, want %d", ErrInvalidConfig, i, len(row), dim)
		}
		data = append(data, row...)
	}
	m := mat.NewDense(dim, dim, data)

	var gram mat.Dense
	gram.Mul(m.T(), m)
	identity := mat.NewDiagDense(dim, nil)
	for i := range dim {
		identity.SetDiag(i, 1)
	}
	if !mat.EqualApprox(&gram, identity, rotationTolerance) {
		return fmt.Errorf("%w: rotation is not orthonormal", ErrInvalidConfig)
	}
	if det := mat.Det(m); math.Abs(det-1) > rotationTolerance {
		return fmt.Errorf("%w: rotation determinant %g, want 1", ErrInvalidConfig, det)
	}

	return nil
}
