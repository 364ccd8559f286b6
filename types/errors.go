package types

import "errors"

// Sentinel errors for the nucleate library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Nucleator, Generator, Reconciler, etc.)
//   - Use consistent messages across similar error types

// Nucleator errors - Public API errors returned by the round driver.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDomainRequired is returned when the discretized domain is nil.
	ErrDomainRequired = errors.New("discretized domain is required")

	// ErrOracleRequired is returned when the probability oracle is nil.
	ErrOracleRequired = errors.New("probability oracle is required")

	// ErrReconcilerRequired is returned when the global reconciler is nil.
	ErrReconcilerRequired = errors.New("global reconciler is required")

	// ErrRandomSourceRequired is returned when a generator is built without a random source.
	ErrRandomSourceRequired = errors.New("random source is required")

	// ErrWorldRequired is returned when Step is called without a world list.
	ErrWorldRequired = errors.New("world nucleus list is required")
)

// Round errors - Failures that abort a whole nucleation round.
var (
	// ErrSampleEvaluation is returned when a cell's sample data cannot be evaluated.
	ErrSampleEvaluation = errors.New("cell sample evaluation failed")

	// ErrReconcileFailed is returned when a collective reconciliation call fails.
	ErrReconcileFailed = errors.New("global reconciliation failed")

	// ErrRefinementFailed is returned when the collective refine-and-reinitialize fails.
	ErrRefinementFailed = errors.New("mesh refinement failed")
)

// Reconciler errors - Errors raised by the reference reconciler implementations.
var (
	// ErrPartitionUnreachable is returned when a participating partition stops responding.
	ErrPartitionUnreachable = errors.New("partition unreachable")

	// ErrRoundTimeout is returned when a collective call does not complete in time.
	ErrRoundTimeout = errors.New("collective call timed out")

	// ErrRoundAborted is returned when a peer partition failed the round locally.
	ErrRoundAborted = errors.New("round aborted by peer partition")

	// ErrInvalidRank is returned when a partition rank is outside the group.
	ErrInvalidRank = errors.New("invalid partition rank")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")

	// ErrNoAvailableRank is returned when every rank in the group is already claimed.
	ErrNoAvailableRank = errors.New("no available partition rank")
)
