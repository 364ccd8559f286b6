package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRing(t *testing.T) {
	ring := NewRing(3, 100, 0)

	require.Equal(t, 300, ring.Size())
	require.Equal(t, 3, ring.Partitions())
}

func TestRing_Owner(t *testing.T) {
	t.Run("assigns keys consistently", func(t *testing.T) {
		ring := NewRing(4, 64, 0)
		other := NewRing(4, 64, 0)

		for i := range 50 {
			for j := range 50 {
				owner := ring.Owner(i, j)
				require.Equal(t, owner, ring.Owner(i, j))
				require.Equal(t, owner, other.Owner(i, j), "independent rings must agree")
				require.GreaterOrEqual(t, owner, 0)
				require.Less(t, owner, 4)
			}
		}
	})

	t.Run("distributes keys across partitions", func(t *testing.T) {
		ring := NewRing(3, 150, 0)

		counts := make(map[int]int)
		for i := range 40 {
			for j := range 25 {
				counts[ring.Owner(i, j)]++
			}
		}

		expected := 1000 / 3
		tolerance := expected * 30 / 100
		for rank := range 3 {
			require.GreaterOrEqual(t, counts[rank], expected-tolerance, "rank %d under-assigned", rank)
			require.LessOrEqual(t, counts[rank], expected+tolerance, "rank %d over-assigned", rank)
		}
	})

	t.Run("single partition owns everything", func(t *testing.T) {
		ring := NewRing(1, 8, 42)
		for i := range 100 {
			require.Equal(t, 0, ring.Owner(i, -i))
		}
	})

	t.Run("empty ring", func(t *testing.T) {
		ring := NewRing(0, 150, 0)
		require.Equal(t, -1, ring.Owner(1, 2))
	})
}

func TestInts(t *testing.T) {
	require.Equal(t, Ints(7, 1, 2, 3), Ints(7, 1, 2, 3))
	require.NotEqual(t, Ints(7, 1, 2), Ints(7, 2, 1))
	require.NotEqual(t, Ints(7, 1, 2), Ints(8, 1, 2))
}

func TestStreamSeed(t *testing.T) {
	a1, a2 := StreamSeed(42, "rank-0")
	b1, b2 := StreamSeed(42, "rank-0")
	c1, c2 := StreamSeed(42, "rank-1")
	d1, d2 := StreamSeed(43, "rank-0")

	require.Equal(t, a1, b1)
	require.Equal(t, a2, b2)
	require.False(t, a1 == c1 && a2 == c2)
	require.False(t, a1 == d1 && a2 == d2)
}

func BenchmarkRing_Owner(b *testing.B) {
	ring := NewRing(8, 150, 0)
	for b.Loop() {
		_ = ring.Owner(17, 42, 3)
	}
}
