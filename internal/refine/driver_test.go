package refine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nucleate/grid"
	"github.com/arloliu/nucleate/internal/domaintest"
	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

type recordingMetrics struct {
	metrics.NopMetrics
	rounds, marked, unknowns int
}

func (r *recordingMetrics) RecordRefinement(rounds, marked, unknowns int) {
	r.rounds, r.marked, r.unknowns = rounds, marked, unknowns
}

func testShapes(t *testing.T, extent float64) *geometry.Set {
	t.Helper()
	set, err := geometry.NewSet([]float64{extent, extent}, []geometry.OrderParameter{
		{Index: 0, Semiaxes: []float64{2, 2}, FreezeSemiaxes: []float64{3, 3}},
	})
	require.NoError(t, err)

	return set
}

func TestNew_Validation(t *testing.T) {
	shapes := testShapes(t, 100)
	domain := &domaintest.Domain{}

	_, err := New(Config{Subdivisions: []int{10}}, shapes, domain, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(Config{Subdivisions: []int{10, 10}, MinDepth: 3, MaxDepth: 1}, shapes, domain, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(Config{Subdivisions: []int{10, 0}}, shapes, domain, nil, nil)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(Config{Subdivisions: []int{10, 10}}, shapes, nil, nil, nil)
	require.ErrorIs(t, err, types.ErrDomainRequired)
}

func TestDriver_HalfDiagonal(t *testing.T) {
	d, err := New(Config{Subdivisions: []int{25, 25}, MaxDepth: 2}, testShapes(t, 100), &domaintest.Domain{}, nil, nil)
	require.NoError(t, err)

	// coarse cell is 4x4
	require.InDelta(t, 2.8284271247461903, d.HalfDiagonal(0), 1e-12)
	require.InDelta(t, 1.4142135623730951, d.HalfDiagonal(1), 1e-12)
}

func TestDriver_ZeroNucleiFixedPoint(t *testing.T) {
	domain := &domaintest.Domain{
		Cells:    []*domaintest.Cell{domaintest.Square(0, 0, 10, nil)},
		Unknowns: 100,
		Growth:   12,
	}
	rec := &recordingMetrics{}
	d, err := New(Config{Subdivisions: []int{10, 10}, MinDepth: 0, MaxDepth: 5}, testShapes(t, 100), domain, nil, rec)
	require.NoError(t, err)

	res, err := d.Refine(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, Result{Rounds: 1, Marked: 0, Unknowns: 100}, res)
	require.Equal(t, 1, domain.Refines, "collective refine must still be called once")
	require.Equal(t, 1, rec.rounds)
}

func TestDriver_NoBudget(t *testing.T) {
	domain := &domaintest.Domain{Unknowns: 10}
	d, err := New(Config{Subdivisions: []int{10, 10}, MinDepth: 2, MaxDepth: 2}, testShapes(t, 100), domain, nil, nil)
	require.NoError(t, err)

	res, err := d.Refine(context.Background(), []types.Nucleus{{Center: types.Point{1, 1}}})
	require.NoError(t, err)
	require.Zero(t, res.Rounds)
	require.Zero(t, domain.Refines)
}

func TestDriver_MarksNearCells(t *testing.T) {
	near := domaintest.Square(48, 48, 4, nil)
	far := domaintest.Square(0, 0, 4, nil)
	deep := domaintest.Square(52, 48, 4, nil)
	deep.Depth = 3
	domain := &domaintest.Domain{Cells: []*domaintest.Cell{near, far, deep}, Unknowns: 50, Growth: 10}

	d, err := New(Config{Subdivisions: []int{25, 25}, MinDepth: 0, MaxDepth: 3}, testShapes(t, 100), domain, nil, nil)
	require.NoError(t, err)

	nuclei := []types.Nucleus{{ID: 0, OrderParameter: 0, Center: types.Point{50, 50}, Semiaxes: []float64{2, 2}}}
	res, err := d.Refine(context.Background(), nuclei)
	require.NoError(t, err)

	// near is marked every round until it reaches max depth; far and deep never
	require.Equal(t, 3, near.Depth)
	require.Zero(t, far.Depth)
	require.Equal(t, 3, deep.Depth)
	require.Equal(t, 3, res.Marked)
	require.Equal(t, 3, res.Rounds)
	require.Equal(t, 80, res.Unknowns)
}

func TestDriver_EuclideanFallback(t *testing.T) {
	// freeze ellipsoid is tiny, but the coarse cell is huge
	set, err := geometry.NewSet([]float64{100, 100}, []geometry.OrderParameter{
		{Index: 0, Semiaxes: []float64{0.1, 0.1}, FreezeSemiaxes: []float64{0.1, 0.1}},
	})
	require.NoError(t, err)

	cell := domaintest.Square(0, 0, 50, nil)
	domain := &domaintest.Domain{Cells: []*domaintest.Cell{cell}, Unknowns: 4, Growth: 12}
	d, err := New(Config{Subdivisions: []int{2, 2}, MaxDepth: 1}, set, domain, nil, nil)
	require.NoError(t, err)

	// 20 from the nearest corner, half diagonal at depth 0 is ~35.4
	res, err := d.Refine(context.Background(), []types.Nucleus{{Center: types.Point{20, 0}, Semiaxes: []float64{0.1, 0.1}}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Marked)
	require.Equal(t, 1, cell.Depth)
}

func TestDriver_CollectiveFailure(t *testing.T) {
	domain := &domaintest.Domain{
		Cells:     []*domaintest.Cell{domaintest.Square(0, 0, 10, nil)},
		RefineErr: context.DeadlineExceeded,
	}
	d, err := New(Config{Subdivisions: []int{10, 10}, MaxDepth: 2}, testShapes(t, 100), domain, nil, nil)
	require.NoError(t, err)

	_, err = d.Refine(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrRefinementFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDriver_OnGrid(t *testing.T) {
	mesh, err := grid.New(grid.Config{Size: []float64{100, 100}, Subdivisions: []int{25, 25}, PointsPerAxis: 3})
	require.NoError(t, err)
	view := mesh.View(0)

	d, err := New(Config{Subdivisions: []int{25, 25}, MinDepth: 0, MaxDepth: 2}, testShapes(t, 100), view, nil, nil)
	require.NoError(t, err)

	before := view.UnknownCount()
	res, err := d.Refine(context.Background(), []types.Nucleus{{Center: types.Point{50, 50}, Semiaxes: []float64{2, 2}}})
	require.NoError(t, err)
	require.Equal(t, 2, res.Rounds)
	require.Greater(t, res.Unknowns, before)
	require.Equal(t, 2, mesh.MaxDepth())
	require.Equal(t, view.UnknownCount(), res.Unknowns)
}
