// Package safety screens merged candidates against the locally owned field state.
package safety

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

// Conflict reasons reported to ValidatorMetrics.RecordConflicts.
const (
	ReasonOrderParameter = "order_parameter"
	ReasonOverlap        = "overlap"
)

// DefaultActivityThreshold is the summed order parameter value above which a
// sample point counts as transformed material.
const DefaultActivityThreshold = 0.1

// Config holds the validator settings.
type Config struct {
	// MultiplePerOrderParameter disables the order parameter uniqueness check.
	MultiplePerOrderParameter bool

	// ActivityThreshold overrides DefaultActivityThreshold when positive.
	ActivityThreshold float64
}

// Validator flags candidates that collide with each other or with existing
// transformed material on the local partition.
type Validator struct {
	cfg     Config
	shapes  *geometry.Set
	domain  types.Domain
	logger  types.Logger
	metrics types.ValidatorMetrics
}

// New creates a validator.
//
// Parameters:
//   - cfg: Validator settings
//   - shapes: Nucleating order parameters (freeze shapes are used)
//   - domain: Partition-local domain view
//   - logger: Logger (nil for no logging)
//   - m: Metrics sink (nil for no metrics)
//
// Returns:
//   - *Validator: Ready validator
//   - error: Missing collaborator
func New(cfg Config, shapes *geometry.Set, domain types.Domain, logger types.Logger, m types.ValidatorMetrics) (*Validator, error) {
	if shapes == nil {
		return nil, fmt.Errorf("%w: order parameter geometry is required", types.ErrInvalidConfig)
	}
	if domain == nil {
		return nil, types.ErrDomainRequired
	}
	if cfg.ActivityThreshold <= 0 {
		cfg.ActivityThreshold = DefaultActivityThreshold
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Validator{
		cfg:     cfg,
		shapes:  shapes,
		domain:  domain,
		logger:  logging.Component(logger, "validator"),
		metrics: m,
	}, nil
}

// Conflicts returns the IDs of candidates that must be discarded.
//
// Two screens run in order:
//  1. Order parameter uniqueness (only when multiple nuclei per order parameter
//     are disallowed): a candidate is flagged when a different candidate in the
//     batch has the same order parameter.
//  2. Overlap: a candidate is flagged when some locally owned sample point lies
//     strictly inside its freeze ellipsoid and the summed nucleating order
//     parameter value there exceeds the activity threshold.
//
// The result may contain duplicate IDs.
//
// Parameters:
//   - ctx: Context checked between cells
//   - candidates: Candidate batch (typically the globally merged list)
//
// Returns:
//   - []int: Conflicting candidate IDs
//   - error: ErrSampleEvaluation on a failing cell accessor, or the context error
func (v *Validator) Conflicts(ctx context.Context, candidates []types.Nucleus) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var ids []int
	if !v.cfg.MultiplePerOrderParameter {
		ids = append(ids, SharedOrderParameter(candidates)...)
		if len(ids) > 0 {
			v.logger.Info("candidates share an order parameter", "count", len(ids), "ids", ids)
			v.metrics.RecordConflicts(ReasonOrderParameter, len(ids))
		}
	}

	overlap, err := v.overlapping(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if len(overlap) > 0 {
		v.logger.Info("candidates overlap existing material", "count", len(overlap), "ids", overlap)
		v.metrics.RecordConflicts(ReasonOverlap, len(overlap))
		ids = append(ids, overlap...)
	}

	return ids, nil
}

// SharedOrderParameter returns the IDs of candidates whose order parameter is
// also used by a distinct candidate in the batch, in batch order.
func SharedOrderParameter(candidates []types.Nucleus) []int {
	counts := make(map[int]int, len(candidates))
	for i := range candidates {
		counts[candidates[i].OrderParameter]++
	}

	var ids []int
	for i := range candidates {
		if counts[candidates[i].OrderParameter] > 1 {
			ids = append(ids, candidates[i].ID)
		}
	}

	return ids
}

func (v *Validator) overlapping(ctx context.Context, candidates []types.Nucleus) ([]int, error) {
	flagged := make([]bool, len(candidates))
	remaining := len(candidates)

	var activity, dist []float64
	for cell := range v.domain.LocalCells() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		points, err := v.domain.SamplePoints(cell)
		if err != nil {
			return nil, fmt.Errorf("%w: sample points: %w", types.ErrSampleEvaluation, err)
		}
		if len(points) == 0 {
			continue
		}
		activity, err = v.shapes.ActivitySums(v.domain, cell, len(points), activity)
		if err != nil {
			return nil, err
		}
		if slices.IndexFunc(activity, func(a float64) bool { return a > v.cfg.ActivityThreshold }) < 0 {
			continue
		}

		for i := range candidates {
			if flagged[i] {
				continue
			}
			c := &candidates[i]
			metric, semiaxes := v.shapes.FreezeShape(c)
			dist = metric.WeightedBatch(c.Center, semiaxes, points, dist)
			for q, d := range dist {
				if d < 1.0 && activity[q] > v.cfg.ActivityThreshold {
					flagged[i] = true
					remaining--
					v.logger.Debug("candidate overlaps transformed material",
						"id", c.ID,
						"order_parameter", c.OrderParameter,
						"point", points[q],
						"activity", activity[q])

					break
				}
			}
		}
		if remaining == 0 {
			break
		}
	}

	var ids []int
	for i, f := range flagged {
		if f {
			ids = append(ids, candidates[i].ID)
		}
	}

	return ids, nil
}
