package nucleate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/arloliu/nucleate/internal/candidate"
	"github.com/arloliu/nucleate/internal/hash"
	"github.com/arloliu/nucleate/internal/hooks"
	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/internal/refine"
	"github.com/arloliu/nucleate/internal/safety"
)

// defaultPartitionID names the partition when neither WithPartitionID nor a
// ranked reconciler names it.
const defaultPartitionID = "0"

// ranked is implemented by reconcilers that know their partition's rank.
type ranked interface {
	Rank() int
}

// Nucleator runs stochastic nucleation rounds for one partition of a
// domain-decomposed simulation.
//
// A round is:
//   - local candidate generation from the partition's cells
//   - collective merge of every partition's candidates
//   - local safety screen of the merged list
//   - collective removal of every conflict flagged by any partition
//   - optional adaptive mesh refinement around the accepted nuclei
//
// Every partition of a run owns one Nucleator, built from the same Config, and
// must call Attempt or Step for the same clocks in the same order. The accepted
// nuclei are then identical on every partition.
//
// Thread Safety:
//   - A Nucleator is not safe for concurrent use; it owns the partition's random stream
//
// Example:
//
//	cfg := nucleate.TestConfig()
//	n, err := nucleate.NewNucleator(&cfg, domain, oracle.NewConstant(0.01), reconcile.NewLocal())
//	if err != nil {
//	    return err
//	}
//	world := &nucleate.World{}
//	for inc := 1; inc <= steps; inc++ {
//	    report, err := n.Step(ctx, nucleate.Clock{Time: float64(inc) * cfg.TimeStep, Increment: inc}, world)
//	    if err != nil {
//	        return err
//	    }
//	    _ = report
//	}
type Nucleator struct {
	cfg        Config
	domain     Domain
	reconciler GlobalReconciler

	generator *candidate.Generator
	validator *safety.Validator
	refiner   *refine.Driver // nil unless AdaptiveRefinement

	hooks   Hooks
	metrics MetricsCollector
	logger  Logger
}

// World is the globally identical, append-only list of finalized nuclei.
type World struct {
	Nuclei []Nucleus
}

// Report summarizes one Step.
type Report struct {
	// Attempted is false when the cadence gate or time window skipped the step.
	Attempted bool

	// Local generation statistics of this partition.
	CellsScanned int
	Sites        int
	Rolled       int
	Candidates   int

	// Merged is the size of the globally merged candidate list.
	Merged int

	// Conflicts is the number of conflict IDs flagged by this partition.
	Conflicts int

	// Accepted is the number of nuclei appended to the world list.
	Accepted int

	// Refinement statistics, zero when no refinement ran.
	RefineRounds int
	Marked       int
	Unknowns     int
}

// NewNucleator creates a Nucleator for one partition.
//
// Parameters:
//   - cfg: Nucleation configuration (defaults are filled in place)
//   - domain: Partition-local view of the discretized domain
//   - oracle: Nucleation probability law
//   - reconciler: Collective candidate reconciler shared by all partitions
//   - opts: Optional configuration (logger, metrics, hooks, random source, partition ID)
//
// Returns:
//   - *Nucleator: Initialized nucleator
//   - error: Validation error if configuration is invalid or a dependency is missing
//
// Example:
//
//	cfg := nucleate.TestConfig()
//	member, _ := group.Member(rank)
//	n, err := nucleate.NewNucleator(&cfg, domain, law, member,
//	    nucleate.WithPartitionID(strconv.Itoa(rank)),
//	    nucleate.WithLogger(nucleate.NewSlogLogger(nil)))
func NewNucleator(cfg *Config, domain Domain, oracle ProbabilityOracle, reconciler GlobalReconciler, opts ...Option) (*Nucleator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if domain == nil {
		return nil, ErrDomainRequired
	}
	if oracle == nil {
		return nil, ErrOracleRequired
	}
	if reconciler == nil {
		return nil, ErrReconcilerRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &nucleatorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	rng := options.rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(hash.StreamSeed(cfg.Seed, partitionID(options.partitionID, reconciler))))
	}

	shapes, err := cfg.shapes()
	if err != nil {
		return nil, err
	}

	gen, err := candidate.New(cfg.generatorConfig(), shapes, domain, oracle, rng, loggerInstance, metricsCollector)
	if err != nil {
		return nil, err
	}

	val, err := safety.New(cfg.validatorConfig(), shapes, domain, loggerInstance, metricsCollector)
	if err != nil {
		return nil, err
	}

	var ref *refine.Driver
	if cfg.AdaptiveRefinement {
		if ref, err = refine.New(cfg.refineConfig(), shapes, domain, loggerInstance, metricsCollector); err != nil {
			return nil, err
		}
	}

	return &Nucleator{
		cfg:        *cfg,
		domain:     domain,
		reconciler: reconciler,
		generator:  gen,
		validator:  val,
		refiner:    ref,
		hooks:      hooks.WithDefaults(options.hooks),
		metrics:    metricsCollector,
		logger:     logging.Component(loggerInstance, "nucleator"),
	}, nil
}

// partitionID names the partition's random stream: the explicit ID, else the
// reconciler's rank, else defaultPartitionID.
func partitionID(explicit string, reconciler GlobalReconciler) string {
	if explicit != "" {
		return explicit
	}
	if r, ok := reconciler.(ranked); ok {
		return strconv.Itoa(r.Rank())
	}

	return defaultPartitionID
}

// ShouldAttempt reports whether a nucleation round runs at the given increment.
//
// A round runs every AttemptInterval increments and on increment 1, provided
// TimeStep·increment lies inside [StartTime, EndTime].
//
// Parameters:
//   - increment: Current time-step index
//
// Returns:
//   - bool: true if Step would run a round
func (n *Nucleator) ShouldAttempt(increment int) bool {
	if increment%n.cfg.AttemptInterval != 0 && increment != 1 {
		return false
	}
	t := n.cfg.TimeStep * float64(increment)

	return t >= n.cfg.StartTime && t <= n.cfg.EndTime
}

// Attempt runs one nucleation round without the cadence gate.
//
// The call is collective: every partition must make it with the same clock and
// an identical existing list.
//
// Parameters:
//   - ctx: Context for cancellation of local work and collective calls
//   - clock: Current simulation time and step
//   - existing: World nucleus list (read only)
//
// Returns:
//   - []Nucleus: Accepted nuclei with IDs len(existing), len(existing)+1, ...
//   - error: ErrSampleEvaluation, ErrReconcileFailed or the context error; no nuclei are returned on error.
//     A local failure is signalled to peers through RoundAborter when the reconciler implements it,
//     and the peers fail with ErrReconcileFailed wrapping ErrRoundAborted
func (n *Nucleator) Attempt(ctx context.Context, clock Clock, existing []Nucleus) ([]Nucleus, error) {
	accepted, _, err := n.round(ctx, clock, existing)

	return accepted, err
}

// Step advances the nucleation state by one simulation increment.
//
// When the increment passes ShouldAttempt, Step runs a round, appends the
// accepted nuclei to world and, with AdaptiveRefinement, refines the mesh
// around them. A refinement failure leaves the accepted nuclei in world.
//
// Parameters:
//   - ctx: Context for cancellation
//   - clock: Current simulation time and step
//   - world: World nucleus list, appended in place
//
// Returns:
//   - Report: Round statistics (Attempted false when skipped)
//   - error: Round or refinement failure
func (n *Nucleator) Step(ctx context.Context, clock Clock, world *World) (Report, error) {
	if world == nil {
		return Report{}, ErrWorldRequired
	}
	if !n.ShouldAttempt(clock.Increment) {
		return Report{}, nil
	}

	accepted, report, err := n.round(ctx, clock, world.Nuclei)
	if err != nil {
		return report, err
	}
	world.Nuclei = append(world.Nuclei, accepted...)

	if n.refiner == nil || len(accepted) == 0 {
		return report, nil
	}

	start := time.Now()
	res, err := n.refiner.Refine(ctx, accepted)
	n.metrics.RecordPhaseDuration(PhaseRefine, time.Since(start).Seconds())
	report.RefineRounds = res.Rounds
	report.Marked = res.Marked
	report.Unknowns = res.Unknowns
	if err != nil {
		n.fail(ctx, clock, err)

		return report, err
	}

	return report, nil
}

func (n *Nucleator) round(ctx context.Context, clock Clock, existing []Nucleus) ([]Nucleus, Report, error) {
	report := Report{Attempted: true}
	base := len(existing)

	n.logger.Debug("nucleation round started",
		"increment", clock.Increment,
		"time", clock.Time,
		"existing", base)

	start := time.Now()
	local, err := n.generator.Generate(ctx, clock, existing)
	n.metrics.RecordPhaseDuration(PhaseGenerate, time.Since(start).Seconds())
	stats := n.generator.LastStats()
	report.CellsScanned = stats.CellsScanned
	report.Sites = stats.Sites
	report.Rolled = stats.Rolled
	report.Candidates = stats.Candidates
	if err != nil {
		n.withdraw(ctx, clock, err)

		return nil, report, n.abort(ctx, clock, err)
	}

	start = time.Now()
	merged, err := n.reconciler.Reconcile(ctx, local, n.cfg.MinDistance, n.cfg.MinDistanceSameOrderParameter, base)
	n.metrics.RecordPhaseDuration(PhaseReconcile, time.Since(start).Seconds())
	if err != nil {
		return nil, report, n.abort(ctx, clock, fmt.Errorf("%w: merge: %w", ErrReconcileFailed, err))
	}
	report.Merged = len(merged)

	// merged is identical everywhere, so every partition skips together
	if len(merged) == 0 {
		n.finish(ctx, clock, nil)

		return nil, report, nil
	}

	start = time.Now()
	conflicts, err := n.validator.Conflicts(ctx, merged)
	n.metrics.RecordPhaseDuration(PhaseValidate, time.Since(start).Seconds())
	if err != nil {
		n.withdraw(ctx, clock, err)

		return nil, report, n.abort(ctx, clock, err)
	}
	report.Conflicts = len(conflicts)

	start = time.Now()
	accepted, err := n.reconciler.RemoveCandidates(ctx, merged, conflicts, base)
	n.metrics.RecordPhaseDuration(PhaseFilter, time.Since(start).Seconds())
	if err != nil {
		return nil, report, n.abort(ctx, clock, fmt.Errorf("%w: remove: %w", ErrReconcileFailed, err))
	}
	report.Accepted = len(accepted)

	n.finish(ctx, clock, accepted)

	return accepted, report, nil
}

func (n *Nucleator) finish(ctx context.Context, clock Clock, accepted []Nucleus) {
	n.metrics.RecordRound(len(accepted), true)
	if len(accepted) == 0 {
		n.logger.Debug("nucleation round complete", "increment", clock.Increment, "accepted", 0)

		return
	}

	for _, nu := range accepted {
		n.logger.Info("nucleus seeded",
			"id", nu.ID,
			"center", nu.Center,
			"order_parameter", nu.OrderParameter,
			"increment", clock.Increment)
	}

	if err := n.hooks.OnNucleiAccepted(ctx, clock, accepted); err != nil {
		n.logger.Error("nuclei accepted hook failed", "error", err)
	}
}

// withdraw takes the place of the collective call a local failure skips, so
// peers blocked in it fail too. It runs even when ctx is done.
func (n *Nucleator) withdraw(ctx context.Context, clock Clock, err error) {
	aborter, ok := n.reconciler.(RoundAborter)
	if !ok {
		return
	}
	if abortErr := aborter.AbortRound(context.WithoutCancel(ctx), err); abortErr != nil {
		n.logger.Warn("failed to abort round on peers", "increment", clock.Increment, "error", abortErr)
	}
}

// abort records a failed round and returns err.
func (n *Nucleator) abort(ctx context.Context, clock Clock, err error) error {
	n.metrics.RecordRound(0, false)
	n.fail(ctx, clock, err)

	return err
}

func (n *Nucleator) fail(ctx context.Context, clock Clock, err error) {
	n.logger.Error("nucleation round failed", "increment", clock.Increment, "error", err)
	if hookErr := n.hooks.OnRoundFailed(ctx, clock, err); hookErr != nil {
		n.logger.Error("round failed hook failed", "error", hookErr)
	}
}
