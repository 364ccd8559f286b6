// Package domaintest provides a scripted types.Domain for unit tests.
package domaintest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/arloliu/nucleate/types"
)

// ErrInjected is returned by accessors configured to fail.
var ErrInjected = errors.New("domaintest: injected failure")

// Cell is a fully scripted cell.
type Cell struct {
	Points  []types.Point
	Weights []float64
	Values  map[int][]float64
	Lo, Hi  types.Point
	Depth   int

	// FailValues makes SampleValues fail for this cell.
	FailValues bool
}

// Domain serves a fixed list of cells.
//
// RefineAndReinitialize increments the depth of every marked cell and reports
// Unknowns plus Growth per marked cell.
type Domain struct {
	Cells    []*Cell
	Unknowns int
	Growth   int
	// RefineErr is returned by RefineAndReinitialize when set.
	RefineErr error

	mu      sync.Mutex
	marked  map[*Cell]struct{}
	Refines int
	Marks   int
}

var _ types.Domain = (*Domain)(nil)

func (d *Domain) LocalCells() iter.Seq[types.Cell] {
	return func(yield func(types.Cell) bool) {
		for _, c := range d.Cells {
			if !yield(c) {
				return
			}
		}
	}
}

func (d *Domain) SamplePoints(c types.Cell) ([]types.Point, error) {
	return c.(*Cell).Points, nil
}

func (d *Domain) SampleWeights(c types.Cell) ([]float64, error) {
	return c.(*Cell).Weights, nil
}

func (d *Domain) SampleValues(c types.Cell, variable int) ([]float64, error) {
	dc := c.(*Cell)
	if dc.FailValues {
		return nil, ErrInjected
	}
	if v, ok := dc.Values[variable]; ok {
		return v, nil
	}

	return make([]float64, len(dc.Points)), nil
}

func (d *Domain) BoundingBox(c types.Cell) (types.Point, types.Point, error) {
	dc := c.(*Cell)

	return dc.Lo, dc.Hi, nil
}

func (d *Domain) RefinementDepth(c types.Cell) int {
	return c.(*Cell).Depth
}

func (d *Domain) MarkForRefinement(c types.Cell) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.marked == nil {
		d.marked = make(map[*Cell]struct{})
	}
	d.marked[c.(*Cell)] = struct{}{}
	d.Marks++
}

func (d *Domain) RefineAndReinitialize(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Refines++
	if d.RefineErr != nil {
		return 0, d.RefineErr
	}
	for c := range d.marked {
		c.Depth++
		d.Unknowns += d.Growth
	}
	clear(d.marked)

	return d.Unknowns, nil
}

func (d *Domain) UnknownCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.Unknowns
}

// Square returns a square cell [x0,x0+w]×[y0,y0+w] with four corner sample
// points of weight w²/4 and the given values per variable.
func Square(x0, y0, w float64, values map[int][]float64) *Cell {
	q := w * w / 4

	return &Cell{
		Points: []types.Point{
			{x0, y0}, {x0 + w, y0}, {x0, y0 + w}, {x0 + w, y0 + w},
		},
		Weights: []float64{q, q, q, q},
		Values:  values,
		Lo:      types.Point{x0, y0},
		Hi:      types.Point{x0 + w, y0 + w},
	}
}

// SequenceSource is a types.RandomSource replaying fixed values in a loop.
type SequenceSource struct {
	Values []float64
	next   int
}

// Float64 returns the next scripted value.
func (s *SequenceSource) Float64() float64 {
	v := s.Values[s.next%len(s.Values)]
	s.next++

	return v
}

// Draws returns how many values have been consumed.
func (s *SequenceSource) Draws() int {
	return s.next
}
