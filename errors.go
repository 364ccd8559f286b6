package nucleate

import "github.com/arloliu/nucleate/types"

// Sentinel errors returned by the Nucleator and its collaborators.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrDomainRequired is returned when the domain is nil.
	ErrDomainRequired = types.ErrDomainRequired

	// ErrOracleRequired is returned when the probability oracle is nil.
	ErrOracleRequired = types.ErrOracleRequired

	// ErrReconcilerRequired is returned when the global reconciler is nil.
	ErrReconcilerRequired = types.ErrReconcilerRequired

	// ErrWorldRequired is returned when Step is called with a nil world.
	ErrWorldRequired = types.ErrWorldRequired

	// ErrSampleEvaluation is returned when a cell's sample data cannot be read.
	ErrSampleEvaluation = types.ErrSampleEvaluation

	// ErrReconcileFailed is returned when a collective reconcile call fails.
	ErrReconcileFailed = types.ErrReconcileFailed

	// ErrRefinementFailed is returned when collective refinement fails.
	ErrRefinementFailed = types.ErrRefinementFailed

	// ErrPartitionUnreachable is returned by reconcilers when a partition stops responding.
	ErrPartitionUnreachable = types.ErrPartitionUnreachable

	// ErrRoundTimeout is returned by reconcilers when a collective call does not complete in time.
	ErrRoundTimeout = types.ErrRoundTimeout

	// ErrRoundAborted is returned by reconcilers when a peer partition failed the round locally.
	ErrRoundAborted = types.ErrRoundAborted
)
