package nucleate

import "github.com/arloliu/nucleate/types"

// Re-export data types from the types package.
//
// Internal packages depend on types rather than on this root package, which
// keeps the import graph acyclic while users still write nucleate.Nucleus,
// nucleate.Domain and so on.
type (
	Point    = types.Point
	Rotation = types.Rotation
	Nucleus  = types.Nucleus
	Clock    = types.Clock
	Cell     = types.Cell
	Phase    = types.Phase
)

// Re-export interfaces from the types package.
type (
	Domain            = types.Domain
	ProbabilityOracle = types.ProbabilityOracle
	ProbabilityFunc   = types.ProbabilityFunc
	GlobalReconciler  = types.GlobalReconciler
	RoundAborter      = types.RoundAborter
	RandomSource      = types.RandomSource
	Logger            = types.Logger
	MetricsCollector  = types.MetricsCollector
	Hooks             = types.Hooks
)

// Re-export round phases.
const (
	PhaseGenerate  = types.PhaseGenerate
	PhaseReconcile = types.PhaseReconcile
	PhaseValidate  = types.PhaseValidate
	PhaseFilter    = types.PhaseFilter
	PhaseRefine    = types.PhaseRefine
)
