package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

// ErrCollectiveMismatch is returned when partitions enter the same collective
// call with different operations or non-payload arguments.
var ErrCollectiveMismatch = errors.New("reconcile: partitions disagree on collective call")

// Collective operation names.
const (
	OpReconcile = "reconcile"
	OpRemove    = "remove"
	OpAbort     = "abort"
)

// DefaultRoundTimeout bounds one collective call of a Group member.
const DefaultRoundTimeout = 30 * time.Second

// Group is an in-process collective reconciler for partitions running as
// goroutines of one process.
//
// Every collective call made by a member carries a per-member sequence number.
// Members calling in the same order meet in the same barrier round, which is
// kept in a concurrent table keyed by sequence number until every member has
// read the result.
type Group struct {
	size         int
	roundTimeout time.Duration
	rounds       *xsync.Map[uint64, *round]
	logger       types.Logger
	metrics      types.ReconcileMetrics
}

type round struct {
	mu       sync.Mutex
	op       string
	params   [3]float64
	payloads []any
	arrived  int
	readers  int
	done     chan struct{}
	closed   bool
	err      error
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupLogger sets the group logger.
func WithGroupLogger(logger types.Logger) GroupOption {
	return func(g *Group) { g.logger = logging.Component(logger, "reconcile") }
}

// WithGroupMetrics sets the collective call metrics sink.
func WithGroupMetrics(m types.ReconcileMetrics) GroupOption {
	return func(g *Group) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithGroupRoundTimeout bounds each collective call. Non-positive values keep
// DefaultRoundTimeout.
func WithGroupRoundTimeout(d time.Duration) GroupOption {
	return func(g *Group) {
		if d > 0 {
			g.roundTimeout = d
		}
	}
}

// NewGroup creates a group of size partitions.
//
// Parameters:
//   - size: Number of participating partitions (at least 1)
//   - opts: Optional logger, metrics and round timeout
//
// Returns:
//   - *Group: Group whose members are obtained with Member
//
// Example:
//
//	group := reconcile.NewGroup(4)
//	for rank := range 4 {
//	    go run(rank, group.Member(rank))
//	}
func NewGroup(size int, opts ...GroupOption) *Group {
	g := &Group{
		size:         max(size, 1),
		roundTimeout: DefaultRoundTimeout,
		rounds:       xsync.NewMap[uint64, *round](),
		logger:       logging.NewNop(),
		metrics:      metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Size returns the number of partitions in the group.
func (g *Group) Size() int {
	return g.size
}

// Member returns the reconciler of the partition with the given rank.
//
// Each rank must be used by exactly one goroutine.
func (g *Group) Member(rank int) *Member {
	return &Member{group: g, rank: rank}
}

// Member is one partition's GlobalReconciler within a Group.
type Member struct {
	group *Group
	rank  int
	seq   uint64
}

var (
	_ types.GlobalReconciler = (*Member)(nil)
	_ types.RoundAborter     = (*Member)(nil)
)

// Rank returns the member's partition rank.
func (m *Member) Rank() int {
	return m.rank
}

// Reconcile gathers every member's candidates and merges them.
func (m *Member) Reconcile(ctx context.Context, local []types.Nucleus, minDistance, minDistanceSameOP float64, existing int) ([]types.Nucleus, error) {
	params := [3]float64{minDistance, minDistanceSameOP, float64(existing)}
	payloads, err := m.gather(ctx, OpReconcile, params, local)
	if err != nil {
		return nil, err
	}

	batches := make([][]types.Nucleus, len(payloads))
	for i, p := range payloads {
		batches[i] = p.([]types.Nucleus)
	}

	return Merge(batches, minDistance, minDistanceSameOP, existing), nil
}

// RemoveCandidates gathers every member's conflict IDs and removes their union.
func (m *Member) RemoveCandidates(ctx context.Context, merged []types.Nucleus, ids []int, existing int) ([]types.Nucleus, error) {
	params := [3]float64{float64(len(merged)), 0, float64(existing)}
	payloads, err := m.gather(ctx, OpRemove, params, ids)
	if err != nil {
		return nil, err
	}

	lists := make([][]int, len(payloads))
	for i, p := range payloads {
		lists[i] = p.([]int)
	}

	return Remove(merged, Union(lists), existing), nil
}

// AbortRound fails the member's next collective call on every member.
//
// Members already waiting in that call, and members entering it later, return
// types.ErrRoundAborted.
func (m *Member) AbortRound(_ context.Context, cause error) error {
	g := m.group
	if m.rank < 0 || m.rank >= g.size {
		return fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, m.rank, g.size)
	}

	seq := m.seq
	m.seq++

	r := g.join(seq)
	r.mu.Lock()
	if !r.closed {
		r.err = fmt.Errorf("%w: rank %d failed round %d: %v", types.ErrRoundAborted, m.rank, seq, cause)
		r.closed = true
		close(r.done)
	}
	r.mu.Unlock()
	g.release(seq, r)

	g.metrics.RecordCollective(OpAbort, 0, false)
	g.logger.Warn("collective round aborted", "seq", seq, "rank", m.rank, "cause", cause)

	return nil
}

func (m *Member) gather(ctx context.Context, op string, params [3]float64, payload any) ([]any, error) {
	g := m.group
	if m.rank < 0 || m.rank >= g.size {
		return nil, fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, m.rank, g.size)
	}

	seq := m.seq
	m.seq++
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, g.roundTimeout)
	defer cancel()

	r := g.join(seq)

	r.mu.Lock()
	if r.arrived == 0 {
		r.op, r.params = op, params
	} else if !r.closed && (r.op != op || r.params != params) {
		r.err = fmt.Errorf("%w: rank %d called %s %v, round %d is %s %v",
			ErrCollectiveMismatch, m.rank, op, params, seq, r.op, r.params)
	}
	r.payloads[m.rank] = payload
	r.arrived++
	if r.arrived == g.size && !r.closed {
		r.closed = true
		close(r.done)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		r.mu.Lock()
		if !r.closed {
			r.err = fmt.Errorf("%w: rank %d abandoned round %d", types.ErrPartitionUnreachable, m.rank, seq)
			r.closed = true
			close(r.done)
		}
		r.mu.Unlock()
		g.release(seq, r)
		g.metrics.RecordCollective(op, time.Since(start).Seconds(), false)

		return nil, fmt.Errorf("%w: %s round %d: %w", types.ErrRoundTimeout, op, seq, ctx.Err())
	}

	r.mu.Lock()
	err := r.err
	payloads := r.payloads
	r.mu.Unlock()
	g.release(seq, r)

	g.metrics.RecordCollective(op, time.Since(start).Seconds(), err == nil)
	if err != nil {
		g.logger.Error("collective call failed", "op", op, "seq", seq, "rank", m.rank, "error", err)

		return nil, err
	}
	g.logger.Debug("collective call complete", "op", op, "seq", seq, "rank", m.rank)

	return payloads, nil
}

// join returns round seq, creating it on first arrival.
func (g *Group) join(seq uint64) *round {
	r, _ := g.rounds.LoadOrStore(seq, &round{
		payloads: make([]any, g.size),
		done:     make(chan struct{}),
	})

	return r
}

// release drops the round once every member has left it.
func (g *Group) release(seq uint64, r *round) {
	r.mu.Lock()
	r.readers++
	last := r.readers == g.size
	r.mu.Unlock()

	if last {
		g.rounds.Delete(seq)
	}
}

// Pending returns the number of rounds still held in the barrier table.
func (g *Group) Pending() int {
	return g.rounds.Size()
}
