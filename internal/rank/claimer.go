// Package rank assigns partition ranks through TTL-leased NATS KV keys.
//
// Every partition of a distributed run needs a distinct rank in
// [0, partitions). A rank is held by creating the key {prefix}.{rank} and
// renewing it at a third of the bucket TTL; a crashed partition's rank frees
// itself once the lease expires.
package rank

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/types"
)

// Claim errors.
var (
	ErrRankTaken  = errors.New("rank already claimed by another partition")
	ErrNotClaimed = errors.New("rank not claimed")
	ErrRenewing   = errors.New("rank renewal already running")
)

// Claimer claims and renews one partition rank.
type Claimer struct {
	kv         jetstream.KeyValue
	prefix     string
	partitions int
	ttl        time.Duration
	logger     types.Logger

	mu       sync.Mutex
	rank     int
	revision uint64
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewClaimer creates a rank claimer.
//
// Parameters:
//   - kv: Bucket holding rank leases (its TTL should equal ttl)
//   - prefix: Key prefix (e.g., "rank")
//   - partitions: Number of ranks in the run
//   - ttl: Lease duration; renewal runs every ttl/3
//   - logger: Logger (nil for none)
//
// Returns:
//   - *Claimer: Claimer holding no rank
//
// Example:
//
//	claimer := rank.NewClaimer(kv, "rank", 4, 3*time.Second, logger)
//	r, err := claimer.Claim(ctx)
func NewClaimer(kv jetstream.KeyValue, prefix string, partitions int, ttl time.Duration, logger types.Logger) *Claimer {
	return &Claimer{
		kv:         kv,
		prefix:     prefix,
		partitions: partitions,
		ttl:        ttl,
		logger:     logging.Component(logger, "rank"),
		rank:       -1,
	}
}

// Claim takes the lowest free rank.
//
// Returns:
//   - int: Claimed rank
//   - error: types.ErrNoAvailableRank when every rank is held, or a KV error
func (c *Claimer) Claim(ctx context.Context) (int, error) {
	for r := range c.partitions {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		err := c.ClaimRank(ctx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrRankTaken) {
			return -1, err
		}
		c.logger.Debug("rank taken, trying next", "rank", r)
	}

	c.logger.Error("no free rank", "partitions", c.partitions)

	return -1, fmt.Errorf("%w: all %d ranks held", types.ErrNoAvailableRank, c.partitions)
}

// ClaimRank takes a specific rank.
//
// Returns:
//   - error: ErrRankTaken when another partition holds it, types.ErrInvalidRank
//     when out of range, or a KV error
func (c *Claimer) ClaimRank(ctx context.Context, r int) error {
	if r < 0 || r >= c.partitions {
		return fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, r, c.partitions)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank >= 0 {
		return fmt.Errorf("%w: already holding rank %d", ErrRankTaken, c.rank)
	}

	revision, err := c.kv.Create(ctx, c.key(r), c.stamp())
	if errors.Is(err, jetstream.ErrKeyExists) {
		return fmt.Errorf("%w: rank %d", ErrRankTaken, r)
	}
	if err != nil {
		return fmt.Errorf("failed to claim rank %d: %w", r, err)
	}

	c.rank = r
	c.revision = revision
	c.logger.Info("rank claimed", "rank", r, "revision", revision)

	return nil
}

// StartRenewal renews the lease every ttl/3 until Release.
func (c *Claimer) StartRenewal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank < 0 {
		return ErrNotClaimed
	}
	if c.stopCh != nil {
		return ErrRenewing
	}

	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.renewLoop(c.stopCh, c.doneCh)

	return nil
}

func (c *Claimer) renewLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(c.ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.ttl)
			err := c.renew(ctx)
			cancel()
			if err != nil {
				c.logger.Error("rank renewal failed", "rank", c.Rank(), "error", err)
			}
		}
	}
}

// renew updates the lease at the last known revision so a rank taken over
// after expiry is detected instead of overwritten.
func (c *Claimer) renew(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank < 0 {
		return ErrNotClaimed
	}

	revision, err := c.kv.Update(ctx, c.key(c.rank), c.stamp(), c.revision)
	if err != nil {
		return fmt.Errorf("lease for rank %d lost: %w", c.rank, err)
	}
	c.revision = revision

	return nil
}

// Release stops renewal and deletes the lease.
func (c *Claimer) Release(ctx context.Context) error {
	c.mu.Lock()
	if c.rank < 0 {
		c.mu.Unlock()
		return ErrNotClaimed
	}
	stop, done := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.rank
	c.rank = -1
	if err := c.kv.Delete(ctx, c.key(r)); err != nil {
		return fmt.Errorf("failed to release rank %d: %w", r, err)
	}
	c.logger.Info("rank released", "rank", r)

	return nil
}

// Rank returns the held rank, or -1.
func (c *Claimer) Rank() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rank
}

func (c *Claimer) key(r int) string {
	return c.prefix + "." + strconv.Itoa(r)
}

func (c *Claimer) stamp() []byte {
	return []byte(time.Now().Format(time.RFC3339Nano))
}
