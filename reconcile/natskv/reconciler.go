package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/nucleate/internal/heartbeat"
	"github.com/arloliu/nucleate/internal/kvutil"
	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/internal/natsutil"
	"github.com/arloliu/nucleate/internal/rank"
	"github.com/arloliu/nucleate/reconcile"
	"github.com/arloliu/nucleate/types"
)

const bucketRetries = 3

// envelope is one rank's contribution to a collective call.
type envelope struct {
	Rank   int             `json:"rank"`
	Op     string          `json:"op"`
	Params [3]float64      `json:"params"`
	Nuclei []types.Nucleus `json:"nuclei,omitempty"`
	IDs    []int           `json:"ids,omitempty"`
	Cause  string          `json:"cause,omitempty"`
}

type published struct {
	seq uint64
	key string
}

// Reconciler is one partition's collective reconciler over JetStream KV.
//
// Collective calls must be made from one goroutine, in the same order on
// every partition.
type Reconciler struct {
	cfg      Config
	rounds   jetstream.KeyValue
	liveness jetstream.KeyValue
	claimer  *rank.Claimer
	beats    *heartbeat.Publisher
	rank     int
	seq      uint64
	own      []published
	logger   types.Logger
	metrics  types.ReconcileMetrics
}

var (
	_ types.GlobalReconciler = (*Reconciler)(nil)
	_ types.RoundAborter     = (*Reconciler)(nil)
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(logger types.Logger) Option {
	return func(r *Reconciler) { r.logger = logging.Component(logger, "natskv") }
}

// WithMetrics sets the collective call metrics sink.
func WithMetrics(m types.ReconcileMetrics) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New joins a distributed run.
//
// It ensures both buckets exist, claims a rank (cfg.Rank, or the lowest free
// one when negative), starts lease renewal and starts the heartbeat.
//
// Parameters:
//   - ctx: Context bounding the setup
//   - js: JetStream context
//   - cfg: Reconciler configuration (defaults applied to zero fields)
//   - opts: Optional logger and metrics
//
// Returns:
//   - *Reconciler: Ready reconciler; call Close when the run ends
//   - error: Configuration, bucket or rank claim failure
//
// Example:
//
//	cfg := natskv.DefaultConfig(4)
//	cfg.Prefix = "run-42"
//	rec, err := natskv.New(ctx, js, cfg, natskv.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer rec.Close(context.Background())
func New(ctx context.Context, js jetstream.JetStream, cfg Config, opts ...Option) (*Reconciler, error) {
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reconciler{
		cfg:     cfg,
		rank:    -1,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	r.rounds, err = kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "nucleation round payloads",
		History:     1,
		TTL:         cfg.RoundTTL,
		Storage:     cfg.Storage,
	}, bucketRetries)
	if err != nil {
		return nil, natsutil.Classify(err)
	}

	r.liveness, err = kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.LivenessBucket,
		Description: "nucleation partition liveness",
		History:     1,
		TTL:         cfg.livenessTTL(),
		Storage:     cfg.Storage,
	}, bucketRetries)
	if err != nil {
		return nil, natsutil.Classify(err)
	}

	r.claimer = rank.NewClaimer(r.liveness, cfg.Prefix+".rank", cfg.Partitions, cfg.livenessTTL(), r.logger)
	if cfg.Rank >= 0 {
		err = r.claimer.ClaimRank(ctx, cfg.Rank)
	} else {
		_, err = r.claimer.Claim(ctx)
	}
	if err != nil {
		return nil, err
	}
	r.rank = r.claimer.Rank()

	if err := r.claimer.StartRenewal(); err != nil {
		_ = r.claimer.Release(ctx)
		return nil, err
	}

	r.beats = heartbeat.New(r.liveness, r.alivePrefix(), r.rank, cfg.HeartbeatInterval, r.logger)
	if err := r.beats.Start(ctx); err != nil {
		_ = r.claimer.Release(ctx)
		return nil, natsutil.Classify(err)
	}

	r.logger.Info("joined collective", "rank", r.rank, "partitions", cfg.Partitions, "prefix", cfg.Prefix)

	return r, nil
}

// Rank returns the partition's rank.
func (r *Reconciler) Rank() int {
	return r.rank
}

// Partitions returns the number of ranks in the run.
func (r *Reconciler) Partitions() int {
	return r.cfg.Partitions
}

// Close stops the heartbeat and releases the rank.
func (r *Reconciler) Close(ctx context.Context) error {
	var errs []error
	if err := r.beats.Stop(); err != nil && !errors.Is(err, heartbeat.ErrNotStarted) {
		errs = append(errs, err)
	}
	if err := r.claimer.Release(ctx); err != nil && !errors.Is(err, rank.ErrNotClaimed) {
		errs = append(errs, err)
	}
	r.logger.Info("left collective", "rank", r.rank)

	return errors.Join(errs...)
}

// Reconcile gathers every partition's candidates and merges them.
func (r *Reconciler) Reconcile(ctx context.Context, local []types.Nucleus, minDistance, minDistanceSameOP float64, existing int) ([]types.Nucleus, error) {
	envs, err := r.gather(ctx, envelope{
		Rank:   r.rank,
		Op:     reconcile.OpReconcile,
		Params: [3]float64{minDistance, minDistanceSameOP, float64(existing)},
		Nuclei: local,
	})
	if err != nil {
		return nil, err
	}

	batches := make([][]types.Nucleus, len(envs))
	for i := range envs {
		batches[i] = envs[i].Nuclei
	}

	return reconcile.Merge(batches, minDistance, minDistanceSameOP, existing), nil
}

// RemoveCandidates gathers every partition's conflict IDs and removes their union.
func (r *Reconciler) RemoveCandidates(ctx context.Context, merged []types.Nucleus, ids []int, existing int) ([]types.Nucleus, error) {
	envs, err := r.gather(ctx, envelope{
		Rank:   r.rank,
		Op:     reconcile.OpRemove,
		Params: [3]float64{float64(len(merged)), 0, float64(existing)},
		IDs:    ids,
	})
	if err != nil {
		return nil, err
	}

	lists := make([][]int, len(envs))
	for i := range envs {
		lists[i] = envs[i].IDs
	}

	return reconcile.Remove(merged, reconcile.Union(lists), existing), nil
}

// AbortRound publishes an abort marker in place of this partition's next
// collective payload. Peers waiting in that round return types.ErrRoundAborted.
func (r *Reconciler) AbortRound(ctx context.Context, cause error) error {
	seq := r.seq
	r.seq++
	r.beats.SetSequence(seq)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RoundTimeout)
	defer cancel()

	own := envelope{Rank: r.rank, Op: reconcile.OpAbort}
	if cause != nil {
		own.Cause = cause.Error()
	}
	err := r.publish(ctx, seq, own)
	r.metrics.RecordCollective(reconcile.OpAbort, 0, false)
	if err != nil {
		return err
	}
	r.logger.Warn("collective round aborted", "seq", seq, "rank", r.rank, "cause", own.Cause)

	return nil
}

func (r *Reconciler) gather(ctx context.Context, own envelope) ([]envelope, error) {
	seq := r.seq
	r.seq++
	r.beats.SetSequence(seq)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RoundTimeout)
	defer cancel()

	start := time.Now()
	envs, err := r.exchange(ctx, seq, own)
	r.metrics.RecordCollective(own.Op, time.Since(start).Seconds(), err == nil)
	if err != nil {
		r.logger.Error("collective call failed", "op", own.Op, "seq", seq, "rank", r.rank, "error", err)
		return nil, err
	}
	r.logger.Debug("collective call complete", "op", own.Op, "seq", seq, "rank", r.rank,
		"duration_ms", time.Since(start).Milliseconds())

	r.cleanup(ctx, seq)

	return envs, nil
}

// exchange publishes own and waits for every rank's envelope of round seq.
func (r *Reconciler) exchange(ctx context.Context, seq uint64, own envelope) ([]envelope, error) {
	// every op of the round is watched so abort markers and mismatched ops are seen
	pattern := r.roundPrefix(seq) + ".*.*"

	// watch before publishing so no peer payload can slip between the two
	watcher, err := r.rounds.Watch(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: watch %s: %w", types.ErrReconcileFailed, pattern, natsutil.Classify(err))
	}
	defer func() { _ = watcher.Stop() }()

	if err := r.publish(ctx, seq, own); err != nil {
		return nil, err
	}

	got := make([]envelope, r.cfg.Partitions)
	present := make([]bool, r.cfg.Partitions)
	count := 0

	check := time.NewTicker(r.cfg.HeartbeatInterval)
	defer check.Stop()

	for count < r.cfg.Partitions {
		select {
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil, fmt.Errorf("%w: watcher on %s closed", types.ErrReconcileFailed, pattern)
			}
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			var env envelope
			if err := json.Unmarshal(entry.Value(), &env); err != nil {
				return nil, fmt.Errorf("%w: malformed payload %s: %w", types.ErrReconcileFailed, entry.Key(), err)
			}
			if env.Rank < 0 || env.Rank >= r.cfg.Partitions {
				return nil, fmt.Errorf("%w: payload %s from rank %d", types.ErrInvalidRank, entry.Key(), env.Rank)
			}
			if env.Op == reconcile.OpAbort {
				return nil, fmt.Errorf("%w: rank %d failed round %d: %s", types.ErrRoundAborted, env.Rank, seq, env.Cause)
			}
			if env.Op != own.Op || env.Params != own.Params {
				return nil, fmt.Errorf("%w: rank %d sent %s %v, rank %d is in %s %v",
					reconcile.ErrCollectiveMismatch, env.Rank, env.Op, env.Params, r.rank, own.Op, own.Params)
			}
			if present[env.Rank] {
				continue
			}
			got[env.Rank] = env
			present[env.Rank] = true
			count++

		case <-check.C:
			if err := r.checkMissing(ctx, seq, present); err != nil {
				return nil, err
			}

		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s round %d: %w", types.ErrRoundTimeout, own.Op, seq, ctx.Err())
		}
	}

	return got, nil
}

// publish stores own as this partition's payload of round seq.
func (r *Reconciler) publish(ctx context.Context, seq uint64, own envelope) error {
	data, err := json.Marshal(own)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %w", types.ErrReconcileFailed, err)
	}

	key := r.roundPrefix(seq) + "." + own.Op + "." + strconv.Itoa(r.rank)
	if _, err := r.rounds.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: publish %s: %w", types.ErrReconcileFailed, key, natsutil.Classify(err))
	}
	r.own = append(r.own, published{seq: seq, key: key})

	return nil
}

func (r *Reconciler) roundPrefix(seq uint64) string {
	return r.cfg.Prefix + "." + strconv.FormatUint(seq, 10)
}

// checkMissing fails the round when a rank it still waits for has no beat.
func (r *Reconciler) checkMissing(ctx context.Context, seq uint64, present []bool) error {
	for peer, ok := range present {
		if ok {
			continue
		}

		beat, alive, err := heartbeat.Read(ctx, r.liveness, r.alivePrefix(), peer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("liveness check failed", "peer", peer, "seq", seq, "error", err)

			continue
		}
		if !alive {
			return fmt.Errorf("%w: rank %d has no heartbeat during round %d", types.ErrPartitionUnreachable, peer, seq)
		}
		r.logger.Debug("waiting for peer", "peer", peer, "seq", seq, "peer_seq", beat.Sequence)
	}

	return nil
}

// cleanup deletes this partition's payloads that no peer can still be waiting
// for. Completing round seq means every rank has published seq, so every rank
// has finished seq-1.
func (r *Reconciler) cleanup(ctx context.Context, seq uint64) {
	if seq == 0 {
		return
	}

	var stale []string
	keep := r.own[:0]
	for _, p := range r.own {
		if p.seq < seq {
			stale = append(stale, p.key)
		} else {
			keep = append(keep, p)
		}
	}
	r.own = keep

	if len(stale) == 0 {
		return
	}
	if _, err := kvutil.DeleteKeys(ctx, r.rounds, stale); err != nil {
		r.logger.Warn("failed to delete old round payloads", "keys", len(stale), "error", err)
	}
}

func (r *Reconciler) alivePrefix() string {
	return r.cfg.Prefix + ".alive"
}
