package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nucleate/internal/domaintest"
	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

type recordingMetrics struct {
	metrics.NopMetrics
	conflicts map[string]int
}

func (r *recordingMetrics) RecordConflicts(reason string, count int) {
	r.conflicts[reason] += count
}

func testShapes(t *testing.T) *geometry.Set {
	t.Helper()
	set, err := geometry.NewSet([]float64{100, 100}, []geometry.OrderParameter{
		{Index: 0, Periodic: []bool{true, true}, Semiaxes: []float64{2, 2}, FreezeSemiaxes: []float64{3, 3}},
		{Index: 1, Semiaxes: []float64{2, 2}, FreezeSemiaxes: []float64{3, 3}},
	})
	require.NoError(t, err)

	return set
}

func nucleus(id, op int, x, y float64) types.Nucleus {
	return types.Nucleus{ID: id, OrderParameter: op, Center: types.Point{x, y}, Semiaxes: []float64{2, 2}}
}

// existingParticle returns cells around (cx, cy) where order parameter 0 is fully transformed.
func existingParticle(cx, cy float64) []*domaintest.Cell {
	active := map[int][]float64{0: {1, 1, 1, 1}}

	return []*domaintest.Cell{
		domaintest.Square(cx-2, cy-2, 2, active),
		domaintest.Square(cx, cy-2, 2, active),
		domaintest.Square(cx-2, cy, 2, active),
		domaintest.Square(cx, cy, 2, active),
	}
}

func TestSharedOrderParameter(t *testing.T) {
	tests := []struct {
		name       string
		candidates []types.Nucleus
		want       []int
	}{
		{name: "empty", candidates: nil, want: nil},
		{name: "single candidate is never flagged", candidates: []types.Nucleus{nucleus(4, 0, 0, 0)}, want: nil},
		{
			name:       "same order parameter flags both",
			candidates: []types.Nucleus{nucleus(4, 0, 10, 10), nucleus(5, 0, 80, 80)},
			want:       []int{4, 5},
		},
		{
			name:       "different order parameters flag neither",
			candidates: []types.Nucleus{nucleus(4, 0, 10, 10), nucleus(5, 1, 80, 80)},
			want:       nil,
		},
		{
			name:       "only the sharing pair is flagged",
			candidates: []types.Nucleus{nucleus(4, 0, 10, 10), nucleus(5, 1, 80, 80), nucleus(6, 0, 50, 50)},
			want:       []int{4, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SharedOrderParameter(tt.candidates))
		})
	}
}

func TestValidator_OrderParameterUniqueness(t *testing.T) {
	domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(0, 0, 10, nil)}}
	pair := []types.Nucleus{nucleus(0, 1, 20, 20), nucleus(1, 1, 70, 70)}

	t.Run("disallowed", func(t *testing.T) {
		rec := &recordingMetrics{conflicts: map[string]int{}}
		v, err := New(Config{}, testShapes(t), domain, nil, rec)
		require.NoError(t, err)

		ids, err := v.Conflicts(context.Background(), pair)
		require.NoError(t, err)
		require.ElementsMatch(t, []int{0, 1}, ids)
		require.Equal(t, 2, rec.conflicts[ReasonOrderParameter])
	})

	t.Run("allowed", func(t *testing.T) {
		v, err := New(Config{MultiplePerOrderParameter: true}, testShapes(t), domain, nil, nil)
		require.NoError(t, err)

		ids, err := v.Conflicts(context.Background(), pair)
		require.NoError(t, err)
		require.Empty(t, ids)
	})
}

func TestValidator_Overlap(t *testing.T) {
	cells := existingParticle(50, 50)
	cells = append(cells, domaintest.Square(0, 0, 10, nil), domaintest.Square(90, 90, 10, nil))
	domain := &domaintest.Domain{Cells: cells}

	t.Run("candidate on existing nucleus is flagged", func(t *testing.T) {
		rec := &recordingMetrics{conflicts: map[string]int{}}
		v, err := New(Config{MultiplePerOrderParameter: true}, testShapes(t), domain, nil, rec)
		require.NoError(t, err)

		ids, err := v.Conflicts(context.Background(), []types.Nucleus{nucleus(7, 0, 50, 50)})
		require.NoError(t, err)
		require.Equal(t, []int{7}, ids)
		require.Equal(t, 1, rec.conflicts[ReasonOverlap])
	})

	t.Run("candidate far from every nucleus is not flagged", func(t *testing.T) {
		v, err := New(Config{MultiplePerOrderParameter: true}, testShapes(t), domain, nil, nil)
		require.NoError(t, err)

		ids, err := v.Conflicts(context.Background(), []types.Nucleus{nucleus(7, 0, 20, 70), nucleus(8, 1, 5, 5)})
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("freeze shape reaches across periodic boundary", func(t *testing.T) {
		wrapped := &domaintest.Domain{Cells: []*domaintest.Cell{
			domaintest.Square(98, 50, 2, map[int][]float64{0: {1, 1, 1, 1}}),
		}}
		v, err := New(Config{MultiplePerOrderParameter: true}, testShapes(t), wrapped, nil, nil)
		require.NoError(t, err)

		// order parameter 0 is periodic, order parameter 1 is not
		ids, err := v.Conflicts(context.Background(), []types.Nucleus{nucleus(1, 0, 1, 51), nucleus(2, 1, 1, 51)})
		require.NoError(t, err)
		require.Equal(t, []int{1}, ids)
	})

	t.Run("activity at threshold does not count", func(t *testing.T) {
		weak := &domaintest.Domain{Cells: []*domaintest.Cell{
			domaintest.Square(49, 49, 2, map[int][]float64{0: {0.05, 0.05, 0.05, 0.05}, 1: {0.05, 0.05, 0.05, 0.05}}),
		}}
		v, err := New(Config{MultiplePerOrderParameter: true}, testShapes(t), weak, nil, nil)
		require.NoError(t, err)

		ids, err := v.Conflicts(context.Background(), []types.Nucleus{nucleus(0, 0, 50, 50)})
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("both screens may report the same id", func(t *testing.T) {
		v, err := New(Config{}, testShapes(t), domain, nil, nil)
		require.NoError(t, err)

		ids, err := v.Conflicts(context.Background(), []types.Nucleus{nucleus(3, 0, 50, 50), nucleus(4, 0, 10, 80)})
		require.NoError(t, err)
		require.Equal(t, []int{3, 4, 3}, ids)
	})
}

func TestValidator_Errors(t *testing.T) {
	_, err := New(Config{}, testShapes(t), nil, nil, nil)
	require.ErrorIs(t, err, types.ErrDomainRequired)

	bad := domaintest.Square(0, 0, 10, nil)
	bad.FailValues = true
	v, err := New(Config{}, testShapes(t), &domaintest.Domain{Cells: []*domaintest.Cell{bad}}, nil, nil)
	require.NoError(t, err)

	_, err = v.Conflicts(context.Background(), []types.Nucleus{nucleus(0, 0, 5, 5)})
	require.ErrorIs(t, err, types.ErrSampleEvaluation)

	ids, err := v.Conflicts(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}
