package hash

import "github.com/zeebo/xxh3"

// StreamSeed derives the seed of a partition's private random stream.
//
// The result is a pure function of the base seed and the partition id, so a
// restarted partition reproduces its stream and distinct partitions obtain
// statistically independent streams.
//
// Parameters:
//   - base: Simulation-wide base seed
//   - partitionID: Stable partition identifier (e.g. "rank-3")
//
// Returns:
//   - uint64: First PCG seed word
//   - uint64: Second PCG seed word
//
// Example:
//
//	s1, s2 := hash.StreamSeed(cfg.Seed, "rank-0")
//	rng := rand.New(rand.NewPCG(s1, s2))
func StreamSeed(base uint64, partitionID string) (uint64, uint64) {
	h := xxh3.HashString128Seed(partitionID, base)

	return h.Hi, h.Lo
}
