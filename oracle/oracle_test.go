package oracle

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nucleate/types"
)

func TestConstant(t *testing.T) {
	law := NewConstant(0.25)
	require.InDelta(t, 0.25, law.Probability(nil, 10, types.Point{1, 2}, 3), 0)
}

func TestFunc(t *testing.T) {
	var law types.ProbabilityOracle = Func(func(values map[int]float64, volume float64, _ types.Point, op int) float64 {
		return values[0] * volume * float64(op)
	})
	require.InDelta(t, 1.5, law.Probability(map[int]float64{0: 0.5}, 1.5, nil, 2), 1e-12)
}

func TestRegion(t *testing.T) {
	law := NewRegion(types.Point{0, 0}, types.Point{10, 5}, 0.5)

	tests := []struct {
		name   string
		center types.Point
		want   float64
	}{
		{"inside", types.Point{5, 2}, 0.5},
		{"lower corner", types.Point{0, 0}, 0.5},
		{"upper corner", types.Point{10, 5}, 0.5},
		{"outside x", types.Point{10.1, 2}, 0},
		{"outside y", types.Point{5, -0.1}, 0},
		{"extra axis unconstrained", types.Point{5, 2, 99}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, law.Probability(nil, 1, tt.center, 0), 0)
		})
	}
}

func TestRegion_CopiesCorners(t *testing.T) {
	lo := types.Point{0, 0}
	law := NewRegion(lo, types.Point{1, 1}, 1)
	lo[0] = 5

	require.True(t, law.Contains(types.Point{0.5, 0.5}))
}

func TestClassical(t *testing.T) {
	law := Classical{Variable: 2, Equilibrium: 0.1, K1: 2, K2: 0.3, Interval: 0.5}

	t.Run("formula", func(t *testing.T) {
		dG := 0.7 - 0.1
		j := 2 * math.Exp(-0.3/dG)
		want := 1 - math.Exp(-j*0.5*4)

		got := law.Probability(map[int]float64{2: 0.7}, 4, nil, 1)
		require.InDelta(t, want, got, 1e-12)
		require.InDelta(t, j, law.Rate(0.7), 1e-12)
	})

	t.Run("missing variable", func(t *testing.T) {
		require.Zero(t, law.Probability(map[int]float64{0: 1}, 4, nil, 1))
	})

	t.Run("below equilibrium uses the floor", func(t *testing.T) {
		p := law.Probability(map[int]float64{2: -5}, 4, nil, 1)
		require.GreaterOrEqual(t, p, 0.0)
		require.Less(t, p, 1e-12)
		require.False(t, math.IsNaN(p))
	})

	t.Run("grows with volume and driving force", func(t *testing.T) {
		small := law.Probability(map[int]float64{2: 0.5}, 1, nil, 1)
		large := law.Probability(map[int]float64{2: 0.5}, 10, nil, 1)
		strong := law.Probability(map[int]float64{2: 0.9}, 1, nil, 1)

		require.Greater(t, large, small)
		require.Greater(t, strong, small)
		require.LessOrEqual(t, large, 1.0)
	})

	t.Run("zero volume", func(t *testing.T) {
		require.Zero(t, law.Probability(map[int]float64{2: 0.9}, 0, nil, 1))
	})
}

func TestTable(t *testing.T) {
	laws := map[int]types.ProbabilityOracle{
		1: NewConstant(0.1),
		2: NewConstant(0.2),
	}
	table := NewTable(laws, NewConstant(0.9))

	require.InDelta(t, 0.1, table.Probability(nil, 1, nil, 1), 0)
	require.InDelta(t, 0.2, table.Probability(nil, 1, nil, 2), 0)
	require.InDelta(t, 0.9, table.Probability(nil, 1, nil, 7), 0)
	require.ElementsMatch(t, []int{1, 2}, table.OrderParameters())

	t.Run("input map is copied", func(t *testing.T) {
		laws[3] = NewConstant(0.3)
		require.InDelta(t, 0.9, table.Probability(nil, 1, nil, 3), 0)
	})

	t.Run("set and remove", func(t *testing.T) {
		table.Set(7, types.ProbabilityFunc(func(_ map[int]float64, volume float64, _ types.Point, _ int) float64 {
			return volume / 10
		}))
		require.InDelta(t, 0.4, table.Probability(nil, 4, nil, 7), 1e-12)

		table.Set(7, nil)
		require.InDelta(t, 0.9, table.Probability(nil, 4, nil, 7), 0)
	})

	t.Run("replace", func(t *testing.T) {
		table.Replace(map[int]types.ProbabilityOracle{5: NewConstant(0.5)})
		require.InDelta(t, 0.5, table.Probability(nil, 1, nil, 5), 0)
		require.InDelta(t, 0.9, table.Probability(nil, 1, nil, 1), 0)
	})

	t.Run("no fallback", func(t *testing.T) {
		empty := NewTable(nil, nil)
		require.Zero(t, empty.Probability(nil, 1, nil, 0))

		empty.Set(0, NewConstant(1))
		require.InDelta(t, 1.0, empty.Probability(nil, 1, nil, 0), 0)
	})
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable(nil, NewConstant(0))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				if i%2 == 0 {
					table.Set(j%4, NewConstant(0.5))
				} else {
					_ = table.Probability(nil, 1, nil, j%4)
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, table.OrderParameters(), 4)
}
