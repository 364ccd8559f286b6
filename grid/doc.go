// Package grid provides a reference implementation of types.Domain: an
// axis-aligned structured mesh refined by bisection.
//
// The mesh is shared by every partition of one process. Each partition gets a
// View that exposes only the cells it owns; ownership is decided by a
// consistent hash ring over coarse cell coordinates, so a refined cell stays
// with the partition that owned its coarse ancestor.
//
// Each cell carries Gauss–Lobatto sample points (2 or 3 per axis) with tensor
// product weights that sum to the cell volume. Field values are produced by
// analytic functions registered with Mesh.SetField and are re-evaluated whenever
// the mesh changes.
//
// RefineAndReinitialize is collective: it blocks until every view of the mesh
// has called it, then applies the union of all refinement marks in one step.
//
// Example:
//
//	mesh, _ := grid.New(grid.Config{
//	    Size:          []float64{100, 100},
//	    Subdivisions:  []int{25, 25},
//	    PointsPerAxis: 3,
//	})
//	mesh.SetField(0, func(p types.Point) float64 { return 0 })
//	domain := mesh.View(0)
package grid
