// Package hash provides xxh3-based hashing helpers: deterministic random stream
// seeds and a consistent hash ring assigning mesh cells to partitions.
package hash

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/xxh3"
)

// Ring implements a consistent hash ring with virtual nodes.
//
// The ring maps integer cell keys (coarse-grid coordinates) to partition ranks.
// Every process that builds a ring with the same partition count, virtual node
// count and seed obtains the same ownership, so no coordination is needed.
type Ring struct {
	// nodes contains all virtual nodes on the ring, sorted by hash
	nodes []virtualNode

	partitions int
	seed       uint64
}

type virtualNode struct {
	hash uint64 // position on the ring
	rank int    // partition owning this virtual node
}

// NewRing creates a consistent hash ring for ranks 0..partitions-1.
//
// Parameters:
//   - partitions: Number of partitions placed on the ring
//   - virtualNodesPerPartition: Virtual nodes per partition (higher = better balance)
//   - seed: Hash seed (0 for unseeded hashing)
//
// Returns:
//   - *Ring: Initialized hash ring
//
// Example:
//
//	ring := hash.NewRing(4, 64, 0)
//	owner := ring.Owner(3, 7) // rank owning coarse cell (3, 7)
func NewRing(partitions, virtualNodesPerPartition int, seed uint64) *Ring {
	partitions = max(partitions, 0)
	ring := &Ring{
		nodes:      make([]virtualNode, 0, partitions*virtualNodesPerPartition),
		partitions: partitions,
		seed:       seed,
	}

	for rank := range partitions {
		ring.addPartition(rank, virtualNodesPerPartition)
	}

	slices.SortFunc(ring.nodes, func(a, b virtualNode) int {
		if a.hash < b.hash {
			return -1
		}
		if a.hash > b.hash {
			return 1
		}

		return a.rank - b.rank
	})

	return ring
}

// Owner returns the partition rank owning the given integer key, or -1 when
// the ring is empty.
//
// Parameters:
//   - key: Integer key components, e.g. coarse cell coordinates
//
// Returns:
//   - int: Owning partition rank
func (r *Ring) Owner(key ...int) int {
	if len(r.nodes) == 0 {
		return -1
	}

	return r.nodeByHash(Ints(r.seed, key...))
}

// Partitions returns the number of partitions placed on the ring.
func (r *Ring) Partitions() int {
	return r.partitions
}

// Size returns the total number of virtual nodes on the ring.
func (r *Ring) Size() int {
	return len(r.nodes)
}

func (r *Ring) addPartition(rank int, virtualNodes int) {
	for i := range virtualNodes {
		r.nodes = append(r.nodes, virtualNode{
			hash: Ints(r.seed^0x9e3779b97f4a7c15, rank, i),
			rank: rank,
		})
	}
}

// nodeByHash returns the rank of the first virtual node whose hash is >= target,
// wrapping around to the first node.
func (r *Ring) nodeByHash(target uint64) int {
	idx, _ := slices.BinarySearchFunc(r.nodes, target, func(node virtualNode, t uint64) int {
		if node.hash < t {
			return -1
		}
		if node.hash > t {
			return 1
		}

		return 0
	})

	if idx >= len(r.nodes) {
		idx = 0
	}

	return r.nodes[idx].rank
}

// Ints folds a sequence of integers into one xxh3 64-bit hash.
//
// Each component is hashed with the previous hash as its seed, so the result
// depends on order and needs no intermediate buffer.
func Ints(seed uint64, values ...int) uint64 {
	h := seed
	var b [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(b[:], uint64(v)) //nolint:gosec
		h = xxh3.HashSeed(b[:], h)
	}

	return h
}
