package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
//
// This interface composes smaller, component-focused interfaces so each
// component only depends on the metrics it records.
type MetricsCollector interface {
	GeneratorMetrics
	ValidatorMetrics
	RefinementMetrics
	RoundMetrics
	ReconcileMetrics
}

// GeneratorMetrics defines metrics for local candidate generation.
type GeneratorMetrics interface {
	// RecordCellsScanned records the number of locally owned cells scanned in one pass.
	RecordCellsScanned(count int)

	// RecordCandidates records the number of provisional candidates emitted for an order parameter.
	//
	// Parameters:
	//   - orderParameter: Order parameter index
	//   - count: Candidates emitted in this pass
	RecordCandidates(orderParameter int, count int)

	// RecordProbabilityClamped records an oracle value outside [0, 1] that was clamped.
	//
	// Parameters:
	//   - orderParameter: Order parameter index the oracle was queried for
	RecordProbabilityClamped(orderParameter int)

	// RecordPositionRejected records a rolled candidate rejected before emission.
	//
	// Parameters:
	//   - reason: Rejection reason ("border", "transformed")
	RecordPositionRejected(reason string)
}

// ValidatorMetrics defines metrics for the safety screen.
type ValidatorMetrics interface {
	// RecordConflicts records conflicting candidate IDs found by the safety screen.
	//
	// Parameters:
	//   - reason: Conflict reason ("order_parameter", "overlap")
	//   - count: Number of IDs flagged for this reason
	RecordConflicts(reason string, count int)
}

// RefinementMetrics defines metrics for mesh refinement near new nuclei.
type RefinementMetrics interface {
	// RecordRefinement records one refinement pass.
	//
	// Parameters:
	//   - rounds: Refinement rounds executed
	//   - marked: Total cells marked across all rounds
	//   - unknowns: Discrete-unknown count after the last round
	RecordRefinement(rounds, marked, unknowns int)
}

// RoundMetrics defines metrics for whole nucleation rounds.
type RoundMetrics interface {
	// RecordPhaseDuration records the time spent in one round phase.
	//
	// Parameters:
	//   - phase: Round phase
	//   - duration: Time taken in seconds
	RecordPhaseDuration(phase Phase, duration float64)

	// RecordRound records a completed or failed round.
	//
	// Parameters:
	//   - accepted: Nuclei finalized by the round (0 on failure)
	//   - success: true if the round completed
	RecordRound(accepted int, success bool)
}

// ReconcileMetrics defines metrics for collective reconciliation calls.
type ReconcileMetrics interface {
	// RecordCollective records one collective call.
	//
	// Parameters:
	//   - op: Collective operation ("reconcile", "remove")
	//   - duration: Time spent waiting for all partitions, in seconds
	//   - success: true if every partition contributed in time
	RecordCollective(op string, duration float64, success bool)
}
