package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/nucleate/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector that is never used does not touch the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// generator
	cellsScanned       prometheus.Counter
	candidates         *prometheus.CounterVec
	probabilityClamped *prometheus.CounterVec
	positionRejected   *prometheus.CounterVec

	// validator
	conflicts *prometheus.CounterVec

	// refinement
	refineRounds   prometheus.Histogram
	refineMarked   prometheus.Counter
	refineUnknowns prometheus.Gauge

	// round
	phaseDuration  *prometheus.HistogramVec
	rounds         *prometheus.CounterVec
	nucleiAccepted prometheus.Counter

	// reconcile
	collectiveDuration *prometheus.HistogramVec
	collectiveResults  *prometheus.CounterVec
}

var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "nucleate" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewPrometheus(reg, "")
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "nucleate"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.cellsScanned = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "generator",
			Name:      "cells_scanned_total",
			Help:      "Total locally owned cells scanned for nucleation.",
		})
		p.candidates = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "generator",
			Name:      "candidates_total",
			Help:      "Total provisional candidates emitted by order parameter.",
		}, []string{"order_parameter"})
		p.probabilityClamped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "generator",
			Name:      "probability_clamped_total",
			Help:      "Oracle probabilities outside [0,1] that were clamped, by order parameter.",
		}, []string{"order_parameter"})
		p.positionRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "generator",
			Name:      "positions_rejected_total",
			Help:      "Rolled candidates rejected before emission by reason (border, transformed).",
		}, []string{"reason"})

		p.conflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "validator",
			Name:      "conflicts_total",
			Help:      "Candidate IDs flagged by the safety screen by reason (order_parameter, overlap).",
		}, []string{"reason"})

		p.refineRounds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "refine",
			Name:      "rounds",
			Help:      "Refinement rounds executed per refinement pass.",
			Buckets:   prometheus.LinearBuckets(0, 1, 8),
		})
		p.refineMarked = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "refine",
			Name:      "cells_marked_total",
			Help:      "Total cells marked for refinement near nuclei.",
		})
		p.refineUnknowns = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "refine",
			Name:      "unknowns",
			Help:      "Discrete-unknown count after the last refinement pass.",
		})

		p.phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "round",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each nucleation round phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		}, []string{"phase"})
		p.rounds = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "round",
			Name:      "total",
			Help:      "Nucleation rounds by result (success, failure).",
		}, []string{"result"})
		p.nucleiAccepted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "round",
			Name:      "nuclei_accepted_total",
			Help:      "Total nuclei finalized and appended to the world list.",
		})

		p.collectiveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "collective_duration_seconds",
			Help:      "Time spent in collective reconciliation calls by operation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"op"})
		p.collectiveResults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "collective_total",
			Help:      "Collective reconciliation calls by operation and result.",
		}, []string{"op", "result"})

		p.reg.MustRegister(
			p.cellsScanned,
			p.candidates,
			p.probabilityClamped,
			p.positionRejected,
			p.conflicts,
			p.refineRounds,
			p.refineMarked,
			p.refineUnknowns,
			p.phaseDuration,
			p.rounds,
			p.nucleiAccepted,
			p.collectiveDuration,
			p.collectiveResults,
		)
	})
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}

// RecordCellsScanned adds to the scanned cells counter.
func (p *PrometheusCollector) RecordCellsScanned(count int) {
	p.ensureRegistered()
	p.cellsScanned.Add(float64(count))
}

// RecordCandidates adds emitted candidates for the order parameter.
func (p *PrometheusCollector) RecordCandidates(orderParameter int, count int) {
	p.ensureRegistered()
	p.candidates.WithLabelValues(strconv.Itoa(orderParameter)).Add(float64(count))
}

// RecordProbabilityClamped increments the clamped probability counter.
func (p *PrometheusCollector) RecordProbabilityClamped(orderParameter int) {
	p.ensureRegistered()
	p.probabilityClamped.WithLabelValues(strconv.Itoa(orderParameter)).Inc()
}

// RecordPositionRejected increments the rejection counter for reason.
func (p *PrometheusCollector) RecordPositionRejected(reason string) {
	p.ensureRegistered()
	p.positionRejected.WithLabelValues(reason).Inc()
}

// RecordConflicts adds flagged IDs for reason.
func (p *PrometheusCollector) RecordConflicts(reason string, count int) {
	p.ensureRegistered()
	p.conflicts.WithLabelValues(reason).Add(float64(count))
}

// RecordRefinement observes one refinement pass.
func (p *PrometheusCollector) RecordRefinement(rounds, marked, unknowns int) {
	p.ensureRegistered()
	p.refineRounds.Observe(float64(rounds))
	p.refineMarked.Add(float64(marked))
	p.refineUnknowns.Set(float64(unknowns))
}

// RecordPhaseDuration observes the duration of a round phase.
func (p *PrometheusCollector) RecordPhaseDuration(phase types.Phase, duration float64) {
	p.ensureRegistered()
	p.phaseDuration.WithLabelValues(phase.String()).Observe(duration)
}

// RecordRound counts a round by result and adds its accepted nuclei.
func (p *PrometheusCollector) RecordRound(accepted int, success bool) {
	p.ensureRegistered()
	p.rounds.WithLabelValues(resultLabel(success)).Inc()
	if accepted > 0 {
		p.nucleiAccepted.Add(float64(accepted))
	}
}

// RecordCollective observes one collective reconciliation call.
func (p *PrometheusCollector) RecordCollective(op string, duration float64, success bool) {
	p.ensureRegistered()
	p.collectiveDuration.WithLabelValues(op).Observe(duration)
	p.collectiveResults.WithLabelValues(op, resultLabel(success)).Inc()
}
