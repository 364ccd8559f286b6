package oracle

import (
	"math"

	"github.com/arloliu/nucleate/types"
)

// DefaultDrivingForceFloor keeps the rate finite when the driving force is
// zero or negative.
const DefaultDrivingForceFloor = 1e-6

// Classical is the classical nucleation theory law.
//
// With the driving force dG = values[Variable] - Equilibrium, the nucleation
// rate per unit volume and time is
//
//	J = K1 * exp(-K2 / max(dG, Floor))
//
// and the probability of at least one event in a cell of volume V during one
// attempt interval is
//
//	P = 1 - exp(-J * Interval * V)
type Classical struct {
	// Variable is the field index whose cell average drives nucleation.
	Variable int
	// Equilibrium is the field value at which the driving force vanishes.
	Equilibrium float64
	// K1 is the rate prefactor.
	K1 float64
	// K2 is the barrier coefficient.
	K2 float64
	// Interval is the simulated time between nucleation attempts.
	Interval float64
	// Floor bounds the driving force from below. Zero means DefaultDrivingForceFloor.
	Floor float64
}

var _ types.ProbabilityOracle = Classical{}

// Probability evaluates the law for one cell. A missing Variable yields zero.
func (c Classical) Probability(values map[int]float64, volume float64, _ types.Point, _ int) float64 {
	v, ok := values[c.Variable]
	if !ok {
		return 0
	}

	return 1 - math.Exp(-c.Rate(v)*c.Interval*volume)
}

// Rate returns the nucleation rate J at field value v.
func (c Classical) Rate(v float64) float64 {
	floor := c.Floor
	if floor <= 0 {
		floor = DefaultDrivingForceFloor
	}

	return c.K1 * math.Exp(-c.K2/max(v-c.Equilibrium, floor))
}
