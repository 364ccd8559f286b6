// Package geometry holds the per-order-parameter nucleus geometry shared by the
// candidate generator, the safety validator and the refinement driver.
package geometry

import (
	"fmt"
	"slices"

	"github.com/arloliu/nucleate/distance"
	"github.com/arloliu/nucleate/types"
)

// OrderParameter describes how nuclei of one order parameter are shaped and
// which boundaries they see.
type OrderParameter struct {
	Index           int
	Periodic        []bool
	BorderThickness float64
	Semiaxes        []float64
	FreezeSemiaxes  []float64
	Rotation        types.Rotation
	HoldTime        float64
}

// Set is an immutable lookup table of nucleating order parameters.
type Set struct {
	extent  []float64
	ops     []OrderParameter
	byIndex map[int]int
	metrics []distance.Metric
}

// NewSet builds a lookup table over the given order parameters.
//
// Parameters:
//   - extent: Physical domain size per axis
//   - ops: Nucleating order parameters (indices must be unique)
//
// Returns:
//   - *Set: Lookup table
//   - error: Duplicate order parameter index
func NewSet(extent []float64, ops []OrderParameter) (*Set, error) {
	s := &Set{
		extent:  slices.Clone(extent),
		ops:     slices.Clone(ops),
		byIndex: make(map[int]int, len(ops)),
		metrics: make([]distance.Metric, len(ops)),
	}
	for i, op := range s.ops {
		if _, dup := s.byIndex[op.Index]; dup {
			return nil, fmt.Errorf("duplicate order parameter index %d", op.Index)
		}
		s.byIndex[op.Index] = i
		s.metrics[i] = distance.New(op.Periodic, s.extent, op.Rotation)
	}

	return s, nil
}

// Extent returns the physical domain size per axis.
func (s *Set) Extent() []float64 {
	return s.extent
}

// Dim returns the spatial dimension.
func (s *Set) Dim() int {
	return len(s.extent)
}

// All returns the order parameters in configuration order.
func (s *Set) All() []OrderParameter {
	return s.ops
}

// Indices returns the nucleating order parameter indices in configuration order.
func (s *Set) Indices() []int {
	out := make([]int, len(s.ops))
	for i, op := range s.ops {
		out[i] = op.Index
	}

	return out
}

// Lookup returns the order parameter with the given index.
func (s *Set) Lookup(index int) (*OrderParameter, bool) {
	i, ok := s.byIndex[index]
	if !ok {
		return nil, false
	}

	return &s.ops[i], true
}

// Metric returns the distance metric of the order parameter with the given index.
// Unknown indices get a non-periodic, unrotated metric.
func (s *Set) Metric(index int) distance.Metric {
	i, ok := s.byIndex[index]
	if !ok {
		return distance.Metric{Extent: s.extent}
	}

	return s.metrics[i]
}

// FreezeShape returns the metric and freeze semiaxes used for overlap and
// refinement tests around a nucleus.
//
// Parameters:
//   - n: Nucleus
//
// Returns:
//   - distance.Metric: Metric of the nucleus's order parameter
//   - []float64: Freeze semiaxes (the nucleus's own semiaxes for unknown order parameters)
func (s *Set) FreezeShape(n *types.Nucleus) (distance.Metric, []float64) {
	op, ok := s.Lookup(n.OrderParameter)
	if !ok || len(op.FreezeSemiaxes) == 0 {
		return s.Metric(n.OrderParameter), n.Semiaxes
	}

	return s.metrics[s.byIndex[n.OrderParameter]], op.FreezeSemiaxes
}

// ActivitySums returns, for each sample point of the cell, the value summed over
// every nucleating order parameter.
//
// Parameters:
//   - domain: Domain providing the sample values
//   - cell: Cell to evaluate
//   - points: Number of sample points in the cell
//   - dst: Optional destination slice reused when large enough
//
// Returns:
//   - []float64: Per-point sums
//   - error: Sample accessor failure or length mismatch
func (s *Set) ActivitySums(domain types.Domain, cell types.Cell, points int, dst []float64) ([]float64, error) {
	if cap(dst) >= points {
		dst = dst[:points]
		clear(dst)
	} else {
		dst = make([]float64, points)
	}

	for _, op := range s.ops {
		values, err := domain.SampleValues(cell, op.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %d: %w", types.ErrSampleEvaluation, op.Index, err)
		}
		if len(values) != points {
			return nil, fmt.Errorf("%w: variable %d has %d values for %d sample points",
				types.ErrSampleEvaluation, op.Index, len(values), points)
		}
		for q, v := range values {
			dst[q] += v
		}
	}

	return dst, nil
}
