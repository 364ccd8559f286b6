// Package refine drives adaptive mesh refinement around newly seeded nuclei.
package refine

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/nucleate/distance"
	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

// Config holds the refinement settings.
type Config struct {
	// Subdivisions is the number of coarse cells per axis.
	Subdivisions []int

	// MinDepth and MaxDepth bound the refinement depth. MaxDepth-MinDepth is the
	// maximum number of refinement rounds per pass.
	MinDepth int
	MaxDepth int
}

// Result summarizes one refinement pass.
type Result struct {
	Rounds   int
	Marked   int
	Unknowns int
}

// Driver marks cells near nuclei and applies the marks through the domain.
type Driver struct {
	cfg     Config
	shapes  *geometry.Set
	domain  types.Domain
	logger  types.Logger
	metrics types.RefinementMetrics

	// coarseDiagonal is |extent/subdivisions|
	coarseDiagonal float64
}

// New creates a refinement driver.
//
// Parameters:
//   - cfg: Refinement settings
//   - shapes: Nucleating order parameters (freeze shapes are used)
//   - domain: Partition-local domain view
//   - logger: Logger (nil for no logging)
//   - m: Metrics sink (nil for no metrics)
//
// Returns:
//   - *Driver: Ready driver
//   - error: Invalid settings or missing collaborator
func New(cfg Config, shapes *geometry.Set, domain types.Domain, logger types.Logger, m types.RefinementMetrics) (*Driver, error) {
	if shapes == nil {
		return nil, fmt.Errorf("%w: order parameter geometry is required", types.ErrInvalidConfig)
	}
	if domain == nil {
		return nil, types.ErrDomainRequired
	}
	if len(cfg.Subdivisions) != shapes.Dim() {
		return nil, fmt.Errorf("%w: %d subdivisions for dimension %d", types.ErrInvalidConfig, len(cfg.Subdivisions), shapes.Dim())
	}
	if cfg.MaxDepth < cfg.MinDepth {
		return nil, fmt.Errorf("%w: max refinement depth %d below min %d", types.ErrInvalidConfig, cfg.MaxDepth, cfg.MinDepth)
	}
	if m == nil {
		m = metrics.NewNop()
	}

	var sum float64
	for a, l := range shapes.Extent() {
		if cfg.Subdivisions[a] <= 0 {
			return nil, fmt.Errorf("%w: non-positive subdivisions on axis %d", types.ErrInvalidConfig, a)
		}
		w := l / float64(cfg.Subdivisions[a])
		sum += w * w
	}

	return &Driver{
		cfg:            cfg,
		shapes:         shapes,
		domain:         domain,
		logger:         logging.Component(logger, "refine"),
		metrics:        m,
		coarseDiagonal: math.Sqrt(sum),
	}, nil
}

// HalfDiagonal returns half the diagonal of a cell at the given depth.
func (d *Driver) HalfDiagonal(depth int) float64 {
	return d.coarseDiagonal / (2 * math.Pow(2, float64(depth)))
}

// Refine runs up to MaxDepth-MinDepth refinement rounds around nuclei.
//
// Each round marks every locally owned cell below MaxDepth that has a sample
// point strictly inside a nucleus's freeze ellipsoid, or closer to a nucleus
// center than half the cell diagonal. The marks are applied with one collective
// RefineAndReinitialize call per round, made even when nothing was marked
// locally. The loop stops early once a round leaves the unknown count unchanged.
//
// Parameters:
//   - ctx: Context for the collective calls
//   - nuclei: Newly accepted nuclei
//
// Returns:
//   - Result: Rounds run, cells marked and final unknown count
//   - error: ErrRefinementFailed wrapping a collective failure, or ErrSampleEvaluation
func (d *Driver) Refine(ctx context.Context, nuclei []types.Nucleus) (Result, error) {
	res := Result{Unknowns: d.domain.UnknownCount()}
	budget := d.cfg.MaxDepth - d.cfg.MinDepth

	for round := 0; round < budget; round++ {
		marked, err := d.mark(ctx, nuclei)
		if err != nil {
			return res, err
		}
		res.Marked += marked

		unknowns, err := d.domain.RefineAndReinitialize(ctx)
		if err != nil {
			return res, fmt.Errorf("%w: round %d: %w", types.ErrRefinementFailed, round, err)
		}
		res.Rounds++

		d.logger.Debug("refinement round",
			"round", round,
			"marked", marked,
			"unknowns_before", res.Unknowns,
			"unknowns_after", unknowns)

		changed := unknowns != res.Unknowns
		res.Unknowns = unknowns
		if !changed {
			break
		}
	}

	d.metrics.RecordRefinement(res.Rounds, res.Marked, res.Unknowns)
	d.logger.Info("refinement complete",
		"nuclei", len(nuclei),
		"rounds", res.Rounds,
		"marked", res.Marked,
		"unknowns", res.Unknowns)

	return res, nil
}

type freezeShape struct {
	center   types.Point
	semiaxes []float64
	metric   distance.Metric
}

func (d *Driver) mark(ctx context.Context, nuclei []types.Nucleus) (int, error) {
	if len(nuclei) == 0 {
		return 0, nil
	}

	shapes := make([]freezeShape, len(nuclei))
	for i := range nuclei {
		m, semi := d.shapes.FreezeShape(&nuclei[i])
		shapes[i] = freezeShape{center: nuclei[i].Center, semiaxes: semi, metric: m}
	}

	marked := 0
	var scratch []float64
	for cell := range d.domain.LocalCells() {
		if err := ctx.Err(); err != nil {
			return marked, err
		}

		depth := d.domain.RefinementDepth(cell)
		if depth >= d.cfg.MaxDepth {
			continue
		}

		points, err := d.domain.SamplePoints(cell)
		if err != nil {
			return marked, fmt.Errorf("%w: sample points: %w", types.ErrSampleEvaluation, err)
		}

		var near bool
		near, scratch = d.near(shapes, points, d.HalfDiagonal(depth), scratch)
		if near {
			d.domain.MarkForRefinement(cell)
			marked++
		}
	}

	return marked, nil
}

func (d *Driver) near(shapes []freezeShape, points []types.Point, halfDiagonal float64, scratch []float64) (bool, []float64) {
	for i := range shapes {
		s := &shapes[i]
		var idx int
		idx, scratch = s.metric.FirstInside(s.center, s.semiaxes, points, scratch)
		if idx >= 0 {
			return true, scratch
		}
		for _, p := range points {
			if distance.Euclidean(s.center, p) < halfDiagonal {
				return true, scratch
			}
		}
	}

	return false, scratch
}
