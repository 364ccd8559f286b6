package types

// Phase identifies a stage of a nucleation round.
//
// A round progresses through the phases in order:
//
//	PhaseGenerate → PhaseReconcile → PhaseValidate → PhaseFilter → PhaseRefine
//
// PhaseRefine only runs when adaptive refinement is enabled and at least one
// nucleus was accepted.
type Phase int

const (
	// PhaseGenerate is local candidate generation.
	PhaseGenerate Phase = iota

	// PhaseReconcile is the collective merge of all partitions' candidates.
	PhaseReconcile

	// PhaseValidate is the local safety screen of the merged candidates.
	PhaseValidate

	// PhaseFilter is the collective removal of globally flagged conflicts.
	PhaseFilter

	// PhaseRefine is mesh refinement around accepted nuclei.
	PhaseRefine
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseGenerate:
		return "generate"
	case PhaseReconcile:
		return "reconcile"
	case PhaseValidate:
		return "validate"
	case PhaseFilter:
		return "filter"
	case PhaseRefine:
		return "refine"
	default:
		return "unknown"
	}
}
