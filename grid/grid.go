package grid

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/arloliu/nucleate/internal/hash"
	"github.com/arloliu/nucleate/types"
)

// Sentinel errors.
var (
	// ErrInvalidConfig indicates an unusable mesh configuration.
	ErrInvalidConfig = errors.New("grid: invalid configuration")

	// ErrForeignCell indicates a cell handle that was not produced by this mesh.
	ErrForeignCell = errors.New("grid: cell does not belong to this mesh")

	// ErrUnknownVariable indicates a field variable that has no registered function.
	ErrUnknownVariable = errors.New("grid: unknown field variable")
)

// Field is an analytic field evaluated at sample points.
type Field func(p types.Point) float64

// Config configures a mesh.
type Config struct {
	// Size is the physical extent per axis; the domain spans [0, Size[i]].
	Size []float64

	// Subdivisions is the number of coarse cells per axis.
	Subdivisions []int

	// PointsPerAxis is the number of Gauss–Lobatto points per axis (2 or 3, default 2).
	PointsPerAxis int

	// Partitions is the number of partitions sharing the mesh (default 1).
	Partitions int

	// VirtualNodes is the number of ring virtual nodes per partition (default 64).
	VirtualNodes int

	// Seed seeds the ownership ring hash.
	Seed uint64
}

type cell struct {
	coarse  []int
	lo, hi  types.Point
	depth   int
	owner   int
	points  []types.Point
	weights []float64
	values  map[int][]float64
}

// Mesh is a bisection-refined structured mesh shared by all partitions.
type Mesh struct {
	cfg  Config
	ring *hash.Ring
	dim  int

	// nodes and weights of the 1D rule on [-1, 1]
	nodes   []float64
	weights []float64

	mu      sync.Mutex
	cells   []*cell
	fields  map[int]Field
	marks   map[*cell]struct{}
	arrived int
	release chan struct{}
}

// New creates a mesh of coarse cells.
//
// Parameters:
//   - cfg: Mesh configuration
//
// Returns:
//   - *Mesh: Mesh with every coarse cell active at depth 0
//   - error: ErrInvalidConfig when the configuration is unusable
func New(cfg Config) (*Mesh, error) {
	if len(cfg.Size) == 0 || len(cfg.Size) != len(cfg.Subdivisions) {
		return nil, fmt.Errorf("%w: size and subdivisions must have the same non-zero length", ErrInvalidConfig)
	}
	for i := range cfg.Size {
		if cfg.Size[i] <= 0 || cfg.Subdivisions[i] <= 0 {
			return nil, fmt.Errorf("%w: axis %d has non-positive size or subdivisions", ErrInvalidConfig, i)
		}
	}
	if cfg.PointsPerAxis == 0 {
		cfg.PointsPerAxis = 2
	}
	if cfg.Partitions == 0 {
		cfg.Partitions = 1
	}
	if cfg.VirtualNodes == 0 {
		cfg.VirtualNodes = 64
	}

	m := &Mesh{
		cfg:     cfg,
		ring:    hash.NewRing(cfg.Partitions, cfg.VirtualNodes, cfg.Seed),
		dim:     len(cfg.Size),
		fields:  make(map[int]Field),
		marks:   make(map[*cell]struct{}),
		release: make(chan struct{}),
	}

	switch cfg.PointsPerAxis {
	case 2:
		m.nodes, m.weights = []float64{-1, 1}, []float64{1, 1}
	case 3:
		m.nodes, m.weights = []float64{-1, 0, 1}, []float64{1.0 / 3, 4.0 / 3, 1.0 / 3}
	default:
		return nil, fmt.Errorf("%w: points per axis must be 2 or 3, got %d", ErrInvalidConfig, cfg.PointsPerAxis)
	}

	m.buildCoarse()

	return m, nil
}

func (m *Mesh) buildCoarse() {
	idx := make([]int, m.dim)
	for {
		lo := make(types.Point, m.dim)
		hi := make(types.Point, m.dim)
		for a := range m.dim {
			w := m.cfg.Size[a] / float64(m.cfg.Subdivisions[a])
			lo[a] = float64(idx[a]) * w
			hi[a] = float64(idx[a]+1) * w
		}
		c := &cell{coarse: slices.Clone(idx), lo: lo, hi: hi}
		c.owner = m.ring.Owner(c.coarse...)
		m.initCell(c)
		m.cells = append(m.cells, c)

		// odometer over coarse indices
		a := 0
		for ; a < m.dim; a++ {
			idx[a]++
			if idx[a] < m.cfg.Subdivisions[a] {
				break
			}
			idx[a] = 0
		}
		if a == m.dim {
			return
		}
	}
}

// initCell computes sample points, weights and field values of c.
func (m *Mesh) initCell(c *cell) {
	n := len(m.nodes)
	total := 1
	for range m.dim {
		total *= n
	}

	c.points = make([]types.Point, total)
	c.weights = make([]float64, total)
	idx := make([]int, m.dim)
	for q := range total {
		rem := q
		for a := range m.dim {
			idx[a] = rem % n
			rem /= n
		}
		p := make(types.Point, m.dim)
		w := 1.0
		for a := range m.dim {
			half := (c.hi[a] - c.lo[a]) / 2
			p[a] = c.lo[a] + half + half*m.nodes[idx[a]]
			w *= half * m.weights[idx[a]]
		}
		c.points[q] = p
		c.weights[q] = w
	}

	m.evaluate(c)
}

func (m *Mesh) evaluate(c *cell) {
	c.values = make(map[int][]float64, len(m.fields))
	for v, f := range m.fields {
		vals := make([]float64, len(c.points))
		for q, p := range c.points {
			vals[q] = f(p)
		}
		c.values[v] = vals
	}
}

// SetField registers or replaces the analytic function of a field variable and
// re-evaluates it on every active cell.
//
// It must not be called while a partition is inside a nucleation round.
func (m *Mesh) SetField(variable int, f Field) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fields[variable] = f
	for _, c := range m.cells {
		vals := make([]float64, len(c.points))
		for q, p := range c.points {
			vals[q] = f(p)
		}
		c.values[variable] = vals
	}
}

// View returns the partition-local Domain of the given rank.
func (m *Mesh) View(rank int) *View {
	return &View{mesh: m, rank: rank}
}

// Partitions returns the number of partitions sharing the mesh.
func (m *Mesh) Partitions() int {
	return m.cfg.Partitions
}

// ActiveCells returns the number of active cells across all partitions.
func (m *Mesh) ActiveCells() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.cells)
}

// UnknownCount returns active cells times sample points per cell.
func (m *Mesh) UnknownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.unknownsLocked()
}

func (m *Mesh) unknownsLocked() int {
	perCell := 1
	for range m.dim {
		perCell *= len(m.nodes)
	}

	return len(m.cells) * perCell
}

// MaxDepth returns the deepest refinement level among active cells.
func (m *Mesh) MaxDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	depth := 0
	for _, c := range m.cells {
		depth = max(depth, c.depth)
	}

	return depth
}

// refineLocked replaces every marked cell by its 2^d children.
func (m *Mesh) refineLocked() {
	if len(m.marks) == 0 {
		return
	}

	next := make([]*cell, 0, len(m.cells)+len(m.marks)*((1<<m.dim)-1))
	for _, c := range m.cells {
		if _, ok := m.marks[c]; !ok {
			next = append(next, c)
			continue
		}
		for child := range 1 << m.dim {
			lo := make(types.Point, m.dim)
			hi := make(types.Point, m.dim)
			for a := range m.dim {
				mid := (c.lo[a] + c.hi[a]) / 2
				if child&(1<<a) == 0 {
					lo[a], hi[a] = c.lo[a], mid
				} else {
					lo[a], hi[a] = mid, c.hi[a]
				}
			}
			k := &cell{coarse: c.coarse, lo: lo, hi: hi, depth: c.depth + 1, owner: c.owner}
			m.initCell(k)
			next = append(next, k)
		}
	}

	m.cells = next
	clear(m.marks)
}

// View is one partition's Domain over a shared Mesh.
type View struct {
	mesh *Mesh
	rank int
}

var _ types.Domain = (*View)(nil)

// Rank returns the partition rank of the view.
func (v *View) Rank() int {
	return v.rank
}

// LocalCells yields the active cells owned by this view's partition.
func (v *View) LocalCells() iter.Seq[types.Cell] {
	v.mesh.mu.Lock()
	cells := slices.Clone(v.mesh.cells)
	v.mesh.mu.Unlock()

	return func(yield func(types.Cell) bool) {
		for _, c := range cells {
			if c.owner != v.rank {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func (v *View) cell(c types.Cell) (*cell, error) {
	gc, ok := c.(*cell)
	if !ok || gc == nil {
		return nil, fmt.Errorf("%w: %T", ErrForeignCell, c)
	}

	return gc, nil
}

// SamplePoints returns the Gauss–Lobatto points of the cell.
func (v *View) SamplePoints(c types.Cell) ([]types.Point, error) {
	gc, err := v.cell(c)
	if err != nil {
		return nil, err
	}

	return gc.points, nil
}

// SampleWeights returns the integration weights of the cell's sample points.
func (v *View) SampleWeights(c types.Cell) ([]float64, error) {
	gc, err := v.cell(c)
	if err != nil {
		return nil, err
	}

	return gc.weights, nil
}

// SampleValues returns the field values of variable at the cell's sample points.
func (v *View) SampleValues(c types.Cell, variable int) ([]float64, error) {
	gc, err := v.cell(c)
	if err != nil {
		return nil, err
	}

	v.mesh.mu.Lock()
	vals, ok := gc.values[variable]
	v.mesh.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariable, variable)
	}

	return vals, nil
}

// BoundingBox returns the cell's corners.
func (v *View) BoundingBox(c types.Cell) (types.Point, types.Point, error) {
	gc, err := v.cell(c)
	if err != nil {
		return nil, nil, err
	}

	return gc.lo, gc.hi, nil
}

// RefinementDepth returns the number of bisections applied to the coarse ancestor.
func (v *View) RefinementDepth(c types.Cell) int {
	gc, err := v.cell(c)
	if err != nil {
		return 0
	}

	return gc.depth
}

// MarkForRefinement flags the cell for bisection by the next collective refine.
func (v *View) MarkForRefinement(c types.Cell) {
	gc, err := v.cell(c)
	if err != nil {
		return
	}

	v.mesh.mu.Lock()
	v.mesh.marks[gc] = struct{}{}
	v.mesh.mu.Unlock()
}

// UnknownCount returns the mesh-wide unknown count.
func (v *View) UnknownCount() int {
	return v.mesh.UnknownCount()
}

// RefineAndReinitialize waits for every partition to arrive, applies the union
// of refinement marks once and returns the new unknown count.
//
// Parameters:
//   - ctx: Context for cancellation while waiting for other partitions
//
// Returns:
//   - int: Mesh-wide unknown count after refinement
//   - error: Context error if cancelled before every partition arrived
func (v *View) RefineAndReinitialize(ctx context.Context) (int, error) {
	m := v.mesh

	m.mu.Lock()
	m.arrived++
	if m.arrived == m.cfg.Partitions {
		m.refineLocked()
		m.arrived = 0
		close(m.release)
		m.release = make(chan struct{})
		n := m.unknownsLocked()
		m.mu.Unlock()

		return n, nil
	}
	release := m.release
	m.mu.Unlock()

	select {
	case <-release:
		return m.UnknownCount(), nil
	case <-ctx.Done():
		m.mu.Lock()
		if m.release == release {
			m.arrived--
		}
		m.mu.Unlock()

		return 0, ctx.Err()
	}
}
