package nucleate

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/nucleate/internal/logging"
	"github.com/arloliu/nucleate/internal/metrics"
)

// Option configures a Nucleator with optional dependencies.
type Option func(*nucleatorOptions)

type nucleatorOptions struct {
	logger      Logger
	metrics     MetricsCollector
	hooks       *Hooks
	rng         RandomSource
	partitionID string
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation
//
// Returns:
//   - Option: Functional option for NewNucleator
//
// Example:
//
//	n, err := nucleate.NewNucleator(&cfg, domain, law, rec, nucleate.WithLogger(nucleate.NewSlogLogger(nil)))
func WithLogger(logger Logger) Option {
	return func(o *nucleatorOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Example:
//
//	n, err := nucleate.NewNucleator(&cfg, domain, law, rec,
//	    nucleate.WithMetrics(nucleate.NewPrometheusMetrics(prometheus.DefaultRegisterer, "sim")))
func WithMetrics(m MetricsCollector) Option {
	return func(o *nucleatorOptions) {
		o.metrics = m
	}
}

// WithHooks sets round event hooks.
//
// Example:
//
//	hooks := &nucleate.Hooks{
//	    OnRoundFailed: func(ctx context.Context, clock nucleate.Clock, err error) error {
//	        alert(clock.Increment, err)
//	        return nil
//	    },
//	}
//	n, err := nucleate.NewNucleator(&cfg, domain, law, rec, nucleate.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *nucleatorOptions) {
		o.hooks = hooks
	}
}

// WithRandomSource replaces the partition's seeded random stream, typically
// with a scripted source in tests.
func WithRandomSource(rng RandomSource) Option {
	return func(o *nucleatorOptions) {
		o.rng = rng
	}
}

// WithPartitionID names the partition. The name selects the partition's
// random stream derived from Config.Seed, so every partition of a run must
// use a distinct ID. Without it the reconciler's rank is used when the
// reconciler reports one (reconcile.Member, natskv.Reconciler), else "0".
func WithPartitionID(id string) Option {
	return func(o *nucleatorOptions) {
		o.partitionID = id
	}
}

// NewSlogLogger adapts a *slog.Logger (nil for slog.Default) to Logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return logging.NewNop()
}

// NewPrometheusMetrics returns a MetricsCollector registering its metrics on
// reg (nil for the default registerer) under namespace (empty for "nucleate").
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

// NewNopMetrics returns a MetricsCollector that records nothing.
func NewNopMetrics() MetricsCollector {
	return metrics.NewNop()
}
