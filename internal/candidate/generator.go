// Package candidate generates provisional nucleation candidates on the cells
// owned by the local partition.
package candidate

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

// Rejection reasons reported to GeneratorMetrics.RecordPositionRejected.
const (
	RejectBorder      = "border"
	RejectTransformed = "transformed"
)

// Config holds the generator settings.
type Config struct {
	// NeededVariables are averaged per cell and passed to the oracle.
	NeededVariables []int

	// MultiplePerOrderParameter allows more than one nucleus per order parameter.
	MultiplePerOrderParameter bool

	// OrderParameterCutoff is the summed order parameter value below which a
	// sample point counts as untransformed.
	OrderParameterCutoff float64
}

// Stats summarizes one generation pass.
type Stats struct {
	CellsScanned int
	Sites        int // (cell, order parameter) pairs with a positive probability
	Rolled       int // draws that fell at or below the probability
	Candidates   int
}

// Generator produces provisional candidates for one partition.
//
// A Generator is not safe for concurrent use: it owns the partition's random
// stream.
type Generator struct {
	cfg     Config
	shapes  *geometry.Set
	domain  types.Domain
	oracle  types.ProbabilityOracle
	rng     types.RandomSource
	logger  types.Logger
	metrics types.GeneratorMetrics

	// variables lists every field fetched per cell: needed ∪ nucleating
	variables []int

	last Stats
}

// New creates a generator.
//
// Parameters:
//   - cfg: Generator settings
//   - shapes: Nucleating order parameters and domain extent
//   - domain: Partition-local domain view
//   - oracle: Probability law
//   - rng: Partition random stream
//   - logger: Logger (nil for no logging)
//   - m: Metrics sink (nil for no metrics)
//
// Returns:
//   - *Generator: Ready generator
//   - error: Missing collaborator
func New(
	cfg Config,
	shapes *geometry.Set,
	domain types.Domain,
	oracle types.ProbabilityOracle,
	rng types.RandomSource,
	logger types.Logger,
	m types.GeneratorMetrics,
) (*Generator, error) {
	switch {
	case shapes == nil:
		return nil, fmt.Errorf("%w: order parameter geometry is required", types.ErrInvalidConfig)
	case domain == nil:
		return nil, types.ErrDomainRequired
	case oracle == nil:
		return nil, types.ErrOracleRequired
	case rng == nil:
		return nil, types.ErrRandomSourceRequired
	}
	if m == nil {
		m = metrics.NewNop()
	}

	vars := slices.Clone(cfg.NeededVariables)
	vars = append(vars, shapes.Indices()...)
	slices.Sort(vars)
	vars = slices.Compact(vars)

	return &Generator{
		cfg:       cfg,
		shapes:    shapes,
		domain:    domain,
		oracle:    oracle,
		rng:       rng,
		logger:    logging.Component(logger, "generator"),
		metrics:   m,
		variables: vars,
	}, nil
}

// LastStats returns the statistics of the most recent Generate call.
func (g *Generator) LastStats() Stats {
	return g.last
}

// cellSample holds everything read from one cell.
type cellSample struct {
	points   []types.Point
	volume   float64
	center   types.Point
	averages map[int]float64
	activity []float64 // per point, summed over nucleating order parameters
}

// Generate scans every locally owned cell and emits provisional candidates.
//
// For each cell and each nucleating order parameter one uniform draw is
// compared against the oracle probability. An accepted draw places a candidate
// uniformly inside the cell's bounding box; the candidate is kept when it clears
// the border margin on every non-periodic axis and the cell has at least one
// untransformed sample point.
//
// Parameters:
//   - ctx: Context checked between cells
//   - clock: Current simulation time and step
//   - existing: World nucleus list (read only)
//
// Returns:
//   - []types.Nucleus: Candidates with provisional IDs len(existing)+i
//   - error: ErrSampleEvaluation on a failing cell accessor, or the context error
func (g *Generator) Generate(ctx context.Context, clock types.Clock, existing []types.Nucleus) ([]types.Nucleus, error) {
	g.last = Stats{}

	ops := g.shapes.All()
	eligible := make([]bool, len(ops))
	anyEligible := false
	for i, op := range ops {
		eligible[i] = g.cfg.MultiplePerOrderParameter || types.CountByOrderParameter(existing, op.Index) == 0
		anyEligible = anyEligible || eligible[i]
	}

	var batch []types.Nucleus
	perOP := make(map[int]int, len(ops))
	var sample cellSample

	for cell := range g.domain.LocalCells() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.last.CellsScanned++
		if !anyEligible {
			continue
		}

		if err := g.readCell(cell, &sample); err != nil {
			return nil, err
		}

		for i := range ops {
			if !eligible[i] {
				continue
			}
			op := &ops[i]

			draw := g.rng.Float64()
			p := g.probability(&sample, op.Index)
			if p > 0 {
				g.last.Sites++
			}
			if draw > p {
				continue
			}
			g.last.Rolled++
			g.logger.Debug("candidate rolled",
				"order_parameter", op.Index,
				"draw", draw,
				"probability", p,
				"cell_center", sample.center)

			pos, err := g.position(cell)
			if err != nil {
				return nil, err
			}
			if !g.clearOfBorder(op, pos) {
				g.metrics.RecordPositionRejected(RejectBorder)
				continue
			}
			if !g.untransformed(&sample) {
				g.metrics.RecordPositionRejected(RejectTransformed)
				continue
			}

			n := types.Nucleus{
				ID:             len(existing) + len(batch),
				Center:         pos,
				Semiaxes:       slices.Clone(op.Semiaxes),
				Rotation:       op.Rotation.Clone(),
				SeededTime:     clock.Time,
				HoldTime:       op.HoldTime,
				SeededStep:     clock.Increment,
				OrderParameter: op.Index,
			}
			batch = append(batch, n)
			perOP[op.Index]++
			g.logger.Debug("prospective nucleus",
				"id", n.ID,
				"center", n.Center,
				"order_parameter", n.OrderParameter)
		}
	}

	g.last.Candidates = len(batch)
	g.metrics.RecordCellsScanned(g.last.CellsScanned)
	for _, op := range ops {
		if c := perOP[op.Index]; c > 0 {
			g.metrics.RecordCandidates(op.Index, c)
		}
	}
	g.logger.Info("local candidates generated",
		"increment", clock.Increment,
		"cells", g.last.CellsScanned,
		"sites", g.last.Sites,
		"rolled", g.last.Rolled,
		"candidates", g.last.Candidates)

	return batch, nil
}

func (g *Generator) readCell(cell types.Cell, s *cellSample) error {
	points, err := g.domain.SamplePoints(cell)
	if err != nil {
		return fmt.Errorf("%w: sample points: %w", types.ErrSampleEvaluation, err)
	}
	weights, err := g.domain.SampleWeights(cell)
	if err != nil {
		return fmt.Errorf("%w: sample weights: %w", types.ErrSampleEvaluation, err)
	}
	if len(weights) != len(points) {
		return fmt.Errorf("%w: %d weights for %d sample points", types.ErrSampleEvaluation, len(weights), len(points))
	}
	if len(points) == 0 {
		return fmt.Errorf("%w: cell has no sample points", types.ErrSampleEvaluation)
	}

	dim := g.shapes.Dim()
	s.points = points
	s.volume = 0
	s.center = make(types.Point, dim)
	for q, p := range points {
		s.volume += weights[q]
		for a := range dim {
			s.center[a] += p[a] / float64(len(points))
		}
	}

	s.averages = make(map[int]float64, len(g.cfg.NeededVariables))
	if cap(s.activity) >= len(points) {
		s.activity = s.activity[:len(points)]
		clear(s.activity)
	} else {
		s.activity = make([]float64, len(points))
	}

	for _, v := range g.variables {
		values, err := g.domain.SampleValues(cell, v)
		if err != nil {
			return fmt.Errorf("%w: variable %d: %w", types.ErrSampleEvaluation, v, err)
		}
		if len(values) != len(points) {
			return fmt.Errorf("%w: variable %d has %d values for %d sample points",
				types.ErrSampleEvaluation, v, len(values), len(points))
		}

		if slices.Contains(g.cfg.NeededVariables, v) {
			avg := 0.0
			if s.volume > 0 {
				for q, val := range values {
					avg += val * weights[q]
				}
				avg /= s.volume
			}
			s.averages[v] = avg
		}
		if _, ok := g.shapes.Lookup(v); ok {
			for q, val := range values {
				s.activity[q] += val
			}
		}
	}

	return nil
}

// probability queries the oracle and clamps the result to [0, 1].
func (g *Generator) probability(s *cellSample, orderParameter int) float64 {
	raw := g.oracle.Probability(s.averages, s.volume, s.center, orderParameter)
	p, clamped := Clamp(raw)
	if clamped {
		g.logger.Warn("oracle probability out of range, clamped",
			"order_parameter", orderParameter,
			"raw", raw,
			"clamped", p)
		g.metrics.RecordProbabilityClamped(orderParameter)
	}

	return p
}

// Clamp maps a probability into [0, 1]. NaN maps to 0.
//
// Returns:
//   - float64: Clamped probability
//   - bool: true if the input was outside [0, 1] or NaN
func Clamp(p float64) (float64, bool) {
	switch {
	case math.IsNaN(p):
		return 0, true
	case p < 0:
		return 0, true
	case p > 1:
		return 1, true
	}

	return p, false
}

func (g *Generator) position(cell types.Cell) (types.Point, error) {
	lo, hi, err := g.domain.BoundingBox(cell)
	if err != nil {
		return nil, fmt.Errorf("%w: bounding box: %w", types.ErrSampleEvaluation, err)
	}
	dim := g.shapes.Dim()
	if len(lo) < dim || len(hi) < dim {
		return nil, fmt.Errorf("%w: bounding box has dimension %d, want %d", types.ErrSampleEvaluation, min(len(lo), len(hi)), dim)
	}

	pos := make(types.Point, dim)
	for a := range dim {
		pos[a] = lo[a] + (hi[a]-lo[a])*g.rng.Float64()
	}

	return pos, nil
}

// clearOfBorder reports whether pos is at or beyond the exclusion margin on
// every non-periodic axis.
func (g *Generator) clearOfBorder(op *geometry.OrderParameter, pos types.Point) bool {
	return ClearOfBorder(pos, g.shapes.Extent(), op.Periodic, op.BorderThickness)
}

// ClearOfBorder reports whether pos lies in [b, L-b] on every non-periodic axis.
//
// Parameters:
//   - pos: Candidate position
//   - extent: Domain size per axis
//   - periodic: Per-axis periodicity (missing entries are non-periodic)
//   - border: Exclusion border thickness b
//
// Returns:
//   - bool: true if the position is accepted
func ClearOfBorder(pos types.Point, extent []float64, periodic []bool, border float64) bool {
	for a, x := range pos {
		if a < len(periodic) && periodic[a] {
			continue
		}
		if x < border || x > extent[a]-border {
			return false
		}
	}

	return true
}

func (g *Generator) untransformed(s *cellSample) bool {
	for _, v := range s.activity {
		if v < g.cfg.OrderParameterCutoff {
			return true
		}
	}

	return false
}
