package reconcile

import (
	"context"

	"github.com/arloliu/nucleate/types"
)

// Local is the GlobalReconciler of a single-partition run.
type Local struct{}

var _ types.GlobalReconciler = Local{}

// NewLocal returns a single-partition reconciler.
func NewLocal() Local {
	return Local{}
}

// Reconcile merges the local batch on its own.
func (Local) Reconcile(ctx context.Context, local []types.Nucleus, minDistance, minDistanceSameOP float64, existing int) ([]types.Nucleus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Merge([][]types.Nucleus{local}, minDistance, minDistanceSameOP, existing), nil
}

// RemoveCandidates drops the given IDs from merged.
func (Local) RemoveCandidates(ctx context.Context, merged []types.Nucleus, ids []int, existing int) ([]types.Nucleus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Remove(merged, ids, existing), nil
}
