package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/natsutil"
	"github.com/arloliu/nucleate/types"
)

// Publisher lifecycle errors.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
)

// Beat is the value stored under a partition's heartbeat key.
type Beat struct {
	Rank     int       `json:"rank"`
	Sequence uint64    `json:"sequence"`
	Time     time.Time `json:"time"`
}

// Publisher writes one partition's heartbeat at a fixed interval.
type Publisher struct {
	kv       jetstream.KeyValue
	prefix   string
	rank     int
	interval time.Duration
	logger   types.Logger
	sequence atomic.Uint64

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a heartbeat publisher for rank.
//
// Parameters:
//   - kv: Liveness bucket
//   - prefix: Key prefix (e.g., "alive")
//   - rank: Partition rank written into the key
//   - interval: Time between beats
//   - logger: Logger (nil for none)
//
// Returns:
//   - *Publisher: Stopped publisher
func New(kv jetstream.KeyValue, prefix string, rank int, interval time.Duration, logger types.Logger) *Publisher {
	return &Publisher{
		kv:       kv,
		prefix:   prefix,
		rank:     rank,
		interval: interval,
		logger:   logging.Component(logger, "heartbeat"),
	}
}

// SetSequence records the collective call sequence carried by later beats.
func (p *Publisher) SetSequence(seq uint64) {
	p.sequence.Store(seq)
}

// Start publishes a beat immediately and then every interval until Stop.
//
// Returns:
//   - error: ErrAlreadyStarted, or the failure of the first beat
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if err := p.publish(ctx); err != nil {
		return fmt.Errorf("failed to publish initial heartbeat: %w", err)
	}

	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(p.stopCh, p.doneCh)

	return nil
}

// Stop halts publishing and deletes the heartbeat key.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.kv.Delete(ctx, Key(p.prefix, p.rank)); err != nil {
		return fmt.Errorf("stopped but failed to delete heartbeat: %w", err)
	}

	return nil
}

// IsStarted reports whether the publisher is running.
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}

func (p *Publisher) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), max(p.interval, time.Second))
			err := p.publish(ctx)
			cancel()
			if err != nil {
				p.logger.Warn("heartbeat publish failed", "rank", p.rank, "error", err,
					"connectivity", natsutil.IsConnectivityError(err))
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	data, err := json.Marshal(Beat{Rank: p.rank, Sequence: p.sequence.Load(), Time: time.Now()})
	if err != nil {
		return err
	}

	if _, err := p.kv.Put(ctx, Key(p.prefix, p.rank), data); err != nil {
		return fmt.Errorf("failed to publish heartbeat for rank %d: %w", p.rank, err)
	}

	return nil
}

// Key returns the heartbeat key of rank.
func Key(prefix string, rank int) string {
	return prefix + "." + strconv.Itoa(rank)
}

// Read fetches the latest beat of rank.
//
// Returns:
//   - Beat: Latest beat (zero when absent)
//   - bool: false when the key is missing, deleted or expired
//   - error: KV or decoding failure
func Read(ctx context.Context, kv jetstream.KeyValue, prefix string, rank int) (Beat, bool, error) {
	entry, err := kv.Get(ctx, Key(prefix, rank))
	if natsutil.IsMissingKey(err) {
		return Beat{}, false, nil
	}
	if err != nil {
		return Beat{}, false, natsutil.Classify(err)
	}

	var beat Beat
	if err := json.Unmarshal(entry.Value(), &beat); err != nil {
		return Beat{}, false, fmt.Errorf("malformed heartbeat for rank %d: %w", rank, err)
	}

	return beat, true, nil
}
