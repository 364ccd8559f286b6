package reconcile

import (
	"slices"

	"github.com/arloliu/nucleate/distance"
	"github.com/arloliu/nucleate/types"
)

// Merge combines per-partition candidate batches into one final list.
//
// Algorithm:
//  1. Concatenate batches in index (partition rank) order, preserving the order
//     within each batch
//  2. Keep a candidate iff its center is at least minDistance from every kept
//     candidate and at least minDistanceSameOP from every kept candidate of the
//     same order parameter
//  3. Renumber kept candidates existing, existing+1, ...
//
// Parameters:
//   - batches: Candidate batches indexed by partition rank
//   - minDistance: Minimum center distance between any two nuclei
//   - minDistanceSameOP: Minimum center distance between nuclei of one order parameter
//   - existing: Number of nuclei already in the world list
//
// Returns:
//   - []types.Nucleus: Deep-copied survivors with final IDs
//
// Example:
//
//	merged := reconcile.Merge([][]types.Nucleus{rank0, rank1}, 10, 20, len(world))
func Merge(batches [][]types.Nucleus, minDistance, minDistanceSameOP float64, existing int) []types.Nucleus {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	kept := make([]types.Nucleus, 0, total)
	for _, batch := range batches {
		for i := range batch {
			c := &batch[i]
			if tooClose(c, kept, minDistance, minDistanceSameOP) {
				continue
			}
			n := c.Clone()
			n.ID = existing + len(kept)
			kept = append(kept, n)
		}
	}

	return kept
}

func tooClose(c *types.Nucleus, kept []types.Nucleus, minDistance, minDistanceSameOP float64) bool {
	for i := range kept {
		d := distance.Euclidean(c.Center, kept[i].Center)
		if d < minDistance {
			return true
		}
		if kept[i].OrderParameter == c.OrderParameter && d < minDistanceSameOP {
			return true
		}
	}

	return false
}

// Remove drops every nucleus whose ID appears in ids and renumbers the
// survivors densely from existing.
//
// Parameters:
//   - merged: Result of Merge
//   - ids: IDs to drop (duplicates and unknown IDs are ignored)
//   - existing: Number of nuclei already in the world list
//
// Returns:
//   - []types.Nucleus: Deep-copied survivors with dense IDs
func Remove(merged []types.Nucleus, ids []int, existing int) []types.Nucleus {
	drop := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	out := make([]types.Nucleus, 0, len(merged))
	for i := range merged {
		if _, ok := drop[merged[i].ID]; ok {
			continue
		}
		n := merged[i].Clone()
		n.ID = existing + len(out)
		out = append(out, n)
	}

	return out
}

// Union concatenates per-partition ID lists into one sorted, duplicate-free list.
func Union(lists [][]int) []int {
	var out []int
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)

	return slices.Compact(out)
}
