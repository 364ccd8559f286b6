package oracle

import (
	"maps"
	"sync"

	"github.com/arloliu/nucleate/types"
)

// Table dispatches to one oracle per order parameter.
//
// Order parameters without an entry use the fallback, or zero when the
// fallback is nil. Table is safe for concurrent use; Set and Replace may be
// called between steps to change the law mid-run.
type Table struct {
	mu       sync.RWMutex
	laws     map[int]types.ProbabilityOracle
	fallback types.ProbabilityOracle
}

var _ types.ProbabilityOracle = (*Table)(nil)

// NewTable creates a dispatch table.
//
// Parameters:
//   - laws: Oracle per order parameter index (copied)
//   - fallback: Oracle for unlisted order parameters (nil for zero)
//
// Returns:
//   - *Table: Initialized table
//
// Example:
//
//	law := oracle.NewTable(map[int]types.ProbabilityOracle{
//	    1: oracle.Classical{Variable: 0, K1: 1e-3, K2: 0.5, Interval: 1},
//	    2: oracle.NewRegion(types.Point{0, 0}, types.Point{50, 100}, 0.01),
//	}, nil)
func NewTable(laws map[int]types.ProbabilityOracle, fallback types.ProbabilityOracle) *Table {
	return &Table{
		laws:     maps.Clone(laws),
		fallback: fallback,
	}
}

// Probability dispatches on orderParameter.
func (t *Table) Probability(values map[int]float64, volume float64, center types.Point, orderParameter int) float64 {
	t.mu.RLock()
	law, ok := t.laws[orderParameter]
	if !ok {
		law = t.fallback
	}
	t.mu.RUnlock()

	if law == nil {
		return 0
	}

	return law.Probability(values, volume, center, orderParameter)
}

// Set installs or, with a nil law, removes the oracle of one order parameter.
func (t *Table) Set(orderParameter int, law types.ProbabilityOracle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if law == nil {
		delete(t.laws, orderParameter)
		return
	}
	if t.laws == nil {
		t.laws = make(map[int]types.ProbabilityOracle)
	}
	t.laws[orderParameter] = law
}

// Replace swaps the whole table.
func (t *Table) Replace(laws map[int]types.ProbabilityOracle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.laws = maps.Clone(laws)
}

// OrderParameters returns the indices with an explicit entry.
func (t *Table) OrderParameters() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]int, 0, len(t.laws))
	for op := range t.laws {
		out = append(out, op)
	}

	return out
}
