// Package oracle provides built-in nucleation probability laws.
//
// Every law implements types.ProbabilityOracle:
//
//   - Constant: the same probability everywhere
//   - Region: a probability inside an axis-aligned box, zero outside
//   - Classical: classical nucleation theory driven by one averaged field
//   - Table: per order parameter dispatch to other oracles, updatable at runtime
//
// Custom laws can be written as a plain function wrapped in Func.
package oracle
