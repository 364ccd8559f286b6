// Package distance computes weighted, anisotropic, optionally periodic distances
// from a nucleus center to query points.
//
// The weighted distance is normalized so that 1.0 marks the boundary of the
// ellipsoid described by a set of semiaxes and a rotation: points strictly
// inside the ellipsoid have a distance below 1.
//
// Algorithm, per query point:
//  1. Raw displacement d = point − center
//  2. On periodic axes with extent L, d is replaced by d − round(d/L)·L
//  3. d is rotated into the ellipsoid's principal-axis frame
//  4. Each rotated component is divided by its semiaxis
//  5. The Euclidean norm of the result is returned
//
// The scalar form (Metric.Weighted) and the batched form (Metric.WeightedBatch)
// share a single kernel that is generic over the lane container, so both produce
// bit-identical results for the same inputs.
package distance
