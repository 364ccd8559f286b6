// Package nucleate seeds stochastic nucleation events into a domain-decomposed
// phase-field simulation.
//
// Each partition of a parallel simulation scans the mesh cells it owns, asks a
// probability law how likely nucleation is in each cell and rolls against it.
// The candidates of all partitions are then merged into one globally identical
// list, screened for collisions and appended to the world nucleus list. With
// adaptive refinement enabled the mesh is refined around the new nuclei.
//
// # Quick Start
//
// Single partition with a constant probability:
//
//	import (
//	    "github.com/arloliu/nucleate"
//	    "github.com/arloliu/nucleate/oracle"
//	    "github.com/arloliu/nucleate/reconcile"
//	)
//
//	cfg := nucleate.TestConfig()
//	n, err := nucleate.NewNucleator(&cfg, domain, oracle.NewConstant(0.001), reconcile.NewLocal())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	world := &nucleate.World{}
//	for inc := 1; inc <= steps; inc++ {
//	    clock := nucleate.Clock{Time: float64(inc) * cfg.TimeStep, Increment: inc}
//	    if _, err := n.Step(ctx, clock, world); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Architecture
//
// A nucleation round progresses through these phases:
//
//	generate → reconcile → validate → filter → refine
//
// generate and validate are local to a partition. reconcile and filter are
// collective calls through a GlobalReconciler; refine calls the collective
// Domain.RefineAndReinitialize. Every partition must therefore run the same
// rounds in the same order.
//
// # Reconcilers
//
//   - reconcile.Local: single partition
//   - reconcile.Group: partitions running as goroutines of one process
//   - reconcile/natskv: partitions in separate processes, coordinated through NATS JetStream KV
//
// # Domains
//
// The Domain interface is implemented by the mesh manager of the simulation.
// Package grid provides a reference structured grid with bisection refinement,
// useful for examples and tests.
package nucleate
