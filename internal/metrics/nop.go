// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/nucleate/types"

// NopMetrics discards every metric.
//
// It is the default collector when none is configured.
type NopMetrics struct{}

var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	n, err := nucleate.NewNucleator(cfg, domain, oracle, rec, nucleate.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// GeneratorMetrics

// RecordCellsScanned discards the metric.
func (n *NopMetrics) RecordCellsScanned(_ /* count */ int) {}

// RecordCandidates discards the metric.
func (n *NopMetrics) RecordCandidates(_ /* orderParameter */, _ /* count */ int) {}

// RecordProbabilityClamped discards the metric.
func (n *NopMetrics) RecordProbabilityClamped(_ /* orderParameter */ int) {}

// RecordPositionRejected discards the metric.
func (n *NopMetrics) RecordPositionRejected(_ /* reason */ string) {}

// ValidatorMetrics

// RecordConflicts discards the metric.
func (n *NopMetrics) RecordConflicts(_ /* reason */ string, _ /* count */ int) {}

// RefinementMetrics

// RecordRefinement discards the metric.
func (n *NopMetrics) RecordRefinement(_ /* rounds */, _ /* marked */, _ /* unknowns */ int) {}

// RoundMetrics

// RecordPhaseDuration discards the metric.
func (n *NopMetrics) RecordPhaseDuration(_ /* phase */ types.Phase, _ /* duration */ float64) {}

// RecordRound discards the metric.
func (n *NopMetrics) RecordRound(_ /* accepted */ int, _ /* success */ bool) {}

// ReconcileMetrics

// RecordCollective discards the metric.
func (n *NopMetrics) RecordCollective(_ /* op */ string, _ /* duration */ float64, _ /* success */ bool) {}
