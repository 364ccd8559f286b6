package types

import (
	"context"
	"iter"
)

// Cell is an opaque, partition-owned handle to one mesh cell.
//
// Handles are only meaningful to the Domain that produced them and only until
// the next RefineAndReinitialize call.
type Cell any

// Domain is the partition-local view of the discretized simulation domain.
//
// The mesh manager owning the discretization implements this interface. Each
// partition sees only the cells it owns, plus whatever shared boundary geometry
// it needs to answer the sample queries consistently.
//
// Sample accessors return per-sample-point slices that are index-aligned: the
// i-th weight and the i-th value belong to the i-th sample point.
type Domain interface {
	// LocalCells returns a lazy sequence over the locally owned cells.
	LocalCells() iter.Seq[Cell]

	// SamplePoints returns the world coordinates of the cell's sample points.
	SamplePoints(cell Cell) ([]Point, error)

	// SampleWeights returns the integration weight of each sample point.
	SampleWeights(cell Cell) ([]float64, error)

	// SampleValues returns the value of a field variable at each sample point.
	SampleValues(cell Cell, variable int) ([]float64, error)

	// BoundingBox returns the axis-aligned bounding box of the cell.
	BoundingBox(cell Cell) (lo, hi Point, err error)

	// RefinementDepth returns the current subdivision depth of the cell.
	RefinementDepth(cell Cell) int

	// MarkForRefinement flags the cell for subdivision by the next
	// RefineAndReinitialize call.
	MarkForRefinement(cell Cell)

	// RefineAndReinitialize applies all pending refinement marks and reinitializes
	// the discretization. It is collective across partitions.
	//
	// Returns:
	//   - int: New total discrete-unknown count
	//   - error: Collective failure (fatal for the enclosing round)
	RefineAndReinitialize(ctx context.Context) (int, error)

	// UnknownCount returns the current total discrete-unknown count.
	UnknownCount() int
}

// ProbabilityOracle is the user-supplied nucleation probability law.
//
// Implementations must be pure and side-effect free; they may be arbitrarily
// expensive. Results outside [0, 1] are clamped by the caller.
type ProbabilityOracle interface {
	// Probability returns the nucleation probability for one cell and order parameter.
	//
	// Parameters:
	//   - values: Volume-weighted cell averages keyed by variable index
	//   - volume: Cell integration volume
	//   - center: Cell center (mean of its sample points)
	//   - orderParameter: Order parameter index being considered
	//
	// Returns:
	//   - float64: Probability, expected in [0, 1]
	Probability(values map[int]float64, volume float64, center Point, orderParameter int) float64
}

// ProbabilityFunc adapts an ordinary function to the ProbabilityOracle interface.
type ProbabilityFunc func(values map[int]float64, volume float64, center Point, orderParameter int) float64

// Probability calls f.
func (f ProbabilityFunc) Probability(values map[int]float64, volume float64, center Point, orderParameter int) float64 {
	return f(values, volume, center, orderParameter)
}

// GlobalReconciler merges independently generated partition-local candidates into
// one authoritative, globally identical list.
//
// Both operations are collective: every partition must call them in the same
// order with consistent non-payload arguments. Outputs are identical across
// partitions and carry dense sequential IDs starting at existing.
type GlobalReconciler interface {
	// Reconcile gathers every partition's local candidates, removes candidates that
	// are too close to each other and assigns final IDs.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - local: This partition's provisional candidates
	//   - minDistance: Minimum center distance between any two nuclei
	//   - minDistanceSameOP: Minimum center distance between nuclei of one order parameter
	//   - existing: Number of nuclei already in the world list
	//
	// Returns:
	//   - []Nucleus: Final merged candidates
	//   - error: Collective failure (fatal for the round)
	Reconcile(ctx context.Context, local []Nucleus, minDistance, minDistanceSameOP float64, existing int) ([]Nucleus, error)

	// RemoveCandidates gathers every partition's conflict IDs and removes the union
	// from the merged list, renumbering the survivors.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline
	//   - merged: Result of the preceding Reconcile call
	//   - ids: Conflict IDs found locally (duplicates allowed)
	//   - existing: Number of nuclei already in the world list
	//
	// Returns:
	//   - []Nucleus: Filtered candidates with dense IDs from existing
	//   - error: Collective failure (fatal for the round)
	RemoveCandidates(ctx context.Context, merged []Nucleus, ids []int, existing int) ([]Nucleus, error)
}

// RoundAborter is implemented by reconcilers that can fail a round on every
// partition when one partition fails before its next collective call.
//
// AbortRound takes the place of that collective call: it consumes the same
// call slot, and every peer blocked in or later entering the slot returns
// ErrRoundAborted.
type RoundAborter interface {
	AbortRound(ctx context.Context, cause error) error
}
