package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nucleate/types"
)

func at(op int, x, y float64) types.Nucleus {
	return types.Nucleus{OrderParameter: op, Center: types.Point{x, y}, Semiaxes: []float64{1, 1}}
}

func ids(nuclei []types.Nucleus) []int {
	out := make([]int, len(nuclei))
	for i, n := range nuclei {
		out[i] = n.ID
	}

	return out
}

func centers(nuclei []types.Nucleus) []types.Point {
	out := make([]types.Point, len(nuclei))
	for i, n := range nuclei {
		out[i] = n.Center
	}

	return out
}

func TestMerge(t *testing.T) {
	t.Run("concatenates in rank order and renumbers", func(t *testing.T) {
		batches := [][]types.Nucleus{
			{at(0, 10, 10), at(1, 90, 10)},
			{},
			{at(0, 50, 50)},
		}

		merged := Merge(batches, 5, 5, 7)
		require.Equal(t, []int{7, 8, 9}, ids(merged))
		require.Equal(t, []types.Point{{10, 10}, {90, 10}, {50, 50}}, centers(merged))
	})

	t.Run("drops candidates too close to an earlier kept one", func(t *testing.T) {
		batches := [][]types.Nucleus{
			{at(0, 10, 10)},
			{at(1, 12, 10), at(1, 40, 40)},
		}

		merged := Merge(batches, 5, 0, 0)
		require.Equal(t, []types.Point{{10, 10}, {40, 40}}, centers(merged))
		require.Equal(t, []int{0, 1}, ids(merged))
	})

	t.Run("same order parameter uses its own distance", func(t *testing.T) {
		batches := [][]types.Nucleus{
			{at(0, 10, 10)},
			{at(0, 20, 10), at(1, 20, 10)},
		}

		merged := Merge(batches, 5, 15, 0)
		require.Len(t, merged, 2)
		require.Equal(t, 1, merged[1].OrderParameter)
	})

	t.Run("only kept candidates shadow later ones", func(t *testing.T) {
		// b is dropped by a, so c (close to b only) survives
		batches := [][]types.Nucleus{{at(0, 0, 0), at(0, 4, 0), at(0, 8, 0)}}

		merged := Merge(batches, 5, 0, 0)
		require.Equal(t, []types.Point{{0, 0}, {8, 0}}, centers(merged))
	})

	t.Run("does not alias inputs", func(t *testing.T) {
		batch := []types.Nucleus{at(0, 1, 1)}
		merged := Merge([][]types.Nucleus{batch}, 0, 0, 3)
		merged[0].Center[0] = 99

		require.InDelta(t, 1.0, batch[0].Center[0], 0)
		require.Zero(t, batch[0].ID)
	})

	t.Run("empty", func(t *testing.T) {
		require.Empty(t, Merge(nil, 1, 1, 0))
	})
}

func TestRemove(t *testing.T) {
	merged := Merge([][]types.Nucleus{{at(0, 0, 0), at(1, 10, 0), at(2, 20, 0), at(3, 30, 0)}}, 0, 0, 5)
	require.Equal(t, []int{5, 6, 7, 8}, ids(merged))

	t.Run("drops ids and renumbers densely", func(t *testing.T) {
		out := Remove(merged, []int{6, 8, 6}, 5)
		require.Equal(t, []int{5, 6}, ids(out))
		require.Equal(t, []types.Point{{0, 0}, {20, 0}}, centers(out))
	})

	t.Run("unknown ids are ignored", func(t *testing.T) {
		out := Remove(merged, []int{100, -1}, 5)
		require.Equal(t, []int{5, 6, 7, 8}, ids(out))
	})

	t.Run("remove all", func(t *testing.T) {
		require.Empty(t, Remove(merged, []int{5, 6, 7, 8}, 5))
	})
}

func TestUnion(t *testing.T) {
	require.Equal(t, []int{1, 2, 5, 9}, Union([][]int{{5, 1}, nil, {9, 1, 2}}))
	require.Empty(t, Union(nil))
}

func TestLocal(t *testing.T) {
	rec := NewLocal()
	ctx := context.Background()

	merged, err := rec.Reconcile(ctx, []types.Nucleus{at(0, 10, 10), at(0, 11, 10), at(1, 50, 50)}, 5, 5, 2)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, ids(merged))

	final, err := rec.RemoveCandidates(ctx, merged, []int{2}, 2)
	require.NoError(t, err)
	require.Equal(t, []int{2}, ids(final))
	require.Equal(t, types.Point{50, 50}, final[0].Center)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = rec.Reconcile(cancelled, nil, 0, 0, 0)
	require.ErrorIs(t, err, context.Canceled)
}
