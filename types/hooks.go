package types

import "context"

// Hooks defines callbacks for nucleation round events.
//
// All hooks are optional. They are invoked synchronously by the Nucleator after
// the round outcome is known, so they observe a consistent world list. Hook
// errors are logged but never fail the round.
//
// Best practices for hook implementation:
//   - Complete quickly; the simulation step is blocked while hooks run
//   - Respect context cancellation
//   - Never mutate the nuclei passed in (they are already part of the world list)
//
// Example:
//
//	hooks := &nucleate.Hooks{
//	    OnNucleiAccepted: func(ctx context.Context, clock nucleate.Clock, nuclei []nucleate.Nucleus) error {
//	        for _, n := range nuclei {
//	            log.Printf("seeded nucleus %d at %v", n.ID, n.Center)
//	        }
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnNucleiAccepted is called with the nuclei finalized by a round (never empty).
	OnNucleiAccepted func(ctx context.Context, clock Clock, nuclei []Nucleus) error

	// OnRoundFailed is called when a round aborts with an error.
	OnRoundFailed func(ctx context.Context, clock Clock, err error) error
}
