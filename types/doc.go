// Package types provides core type definitions and interfaces for the nucleate library.
//
// Internal packages depend on types rather than on the root nucleate package,
// which re-exports everything here.
//
// Key types:
//   - Nucleus: Candidate or finalized nucleation event
//   - Point, Rotation: Runtime-dimensional geometry primitives
//   - Domain: Partition-local view of the discretized domain (mesh manager)
//   - ProbabilityOracle: User-supplied nucleation probability law
//   - GlobalReconciler: Collective cross-partition candidate reconciliation
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
