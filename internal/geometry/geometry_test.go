package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nucleate/internal/domaintest"
	"github.com/arloliu/nucleate/types"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet([]float64{100, 50}, []OrderParameter{
		{Index: 2, Periodic: []bool{true, false}, Semiaxes: []float64{3, 3}, FreezeSemiaxes: []float64{5, 5}},
		{Index: 0, Semiaxes: []float64{1, 2}},
	})
	require.NoError(t, err)

	return set
}

func TestNewSet(t *testing.T) {
	t.Run("rejects duplicate index", func(t *testing.T) {
		_, err := NewSet([]float64{1}, []OrderParameter{{Index: 1}, {Index: 1}})
		require.Error(t, err)
	})

	t.Run("lookup and indices", func(t *testing.T) {
		set := testSet(t)

		require.Equal(t, 2, set.Dim())
		require.Equal(t, []int{2, 0}, set.Indices())

		op, ok := set.Lookup(0)
		require.True(t, ok)
		require.Equal(t, []float64{1, 2}, op.Semiaxes)

		_, ok = set.Lookup(7)
		require.False(t, ok)
	})
}

func TestSet_Metric(t *testing.T) {
	set := testSet(t)

	m := set.Metric(2)
	require.Equal(t, []bool{true, false}, m.Periodic)
	require.Equal(t, []float64{100, 50}, m.Extent)

	unknown := set.Metric(9)
	require.Empty(t, unknown.Periodic)
}

func TestSet_FreezeShape(t *testing.T) {
	set := testSet(t)

	_, semi := set.FreezeShape(&types.Nucleus{OrderParameter: 2, Semiaxes: []float64{3, 3}})
	require.Equal(t, []float64{5, 5}, semi)

	// no freeze shape configured falls back to the nucleus shape
	_, semi = set.FreezeShape(&types.Nucleus{OrderParameter: 0, Semiaxes: []float64{1, 2}})
	require.Equal(t, []float64{1, 2}, semi)
}

func TestSet_ActivitySums(t *testing.T) {
	set := testSet(t)

	t.Run("sums nucleating order parameters", func(t *testing.T) {
		cell := &domaintest.Cell{Values: map[int][]float64{
			0: {0.1, 0.2, 0.3},
			2: {0.5, 0.0, 0.4},
			5: {9, 9, 9},
		}}

		sums, err := set.ActivitySums(&domaintest.Domain{}, cell, 3, nil)
		require.NoError(t, err)
		require.InDeltaSlice(t, []float64{0.6, 0.2, 0.7}, sums, 1e-12)
	})

	t.Run("reuses destination", func(t *testing.T) {
		cell := &domaintest.Cell{Values: map[int][]float64{0: {1}, 2: {1}}}
		dst := []float64{42, 42, 42}

		sums, err := set.ActivitySums(&domaintest.Domain{}, cell, 1, dst)
		require.NoError(t, err)
		require.Equal(t, []float64{2}, sums)
	})

	t.Run("length mismatch", func(t *testing.T) {
		cell := &domaintest.Cell{Values: map[int][]float64{0: {1, 2}, 2: {1}}}

		_, err := set.ActivitySums(&domaintest.Domain{}, cell, 2, nil)
		require.ErrorIs(t, err, types.ErrSampleEvaluation)
	})

	t.Run("accessor failure", func(t *testing.T) {
		cell := &domaintest.Cell{FailValues: true}

		_, err := set.ActivitySums(&domaintest.Domain{}, cell, 2, nil)
		require.ErrorIs(t, err, types.ErrSampleEvaluation)
		require.ErrorIs(t, err, domaintest.ErrInjected)
	})
}
