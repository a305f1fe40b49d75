package module

import (
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/topology"
)

// CoordField carries one entry per particle.
type CoordField = field.Field[[]dynamo.Coord]

// ScalarField carries a single value shared by all particles.
type ScalarField = field.Field[float64]

// NeighborField carries a neighborhood.
type NeighborField = field.Field[topology.NeighborList]

// Integrator advances particle state from accumulated force.
type Integrator interface {
	Module
	InPosition() *CoordField
	InVelocity() *CoordField
	InForceDensity() *CoordField
	InTimeStep() *ScalarField

	Begin() error
	Integrate() error
	End() error
}

// NeighborSearch builds a neighborhood from positions and a radius.
type NeighborSearch interface {
	Module
	InPosition() *CoordField
	InRadius() *ScalarField
	OutNeighborhood() *NeighborField

	Initialize() error
	Compute() error
}

// Elastoplasticity splits the constitutive update into a reversible elastic
// solve and an irreversible plastic commit.
type Elastoplasticity interface {
	Module
	InPosition() *CoordField
	InVelocity() *CoordField
	InNeighborhood() *NeighborField
	InTimeStep() *ScalarField

	SetFrictionAngle(radians float64)
	FrictionAngle() float64
	SetCohesion(c float64)
	Cohesion() float64

	SolveElasticity() error
	ApplyPlasticity() error
	ResetRestShape() error
}

// DensityConstraint corrects positions toward a target density.
type DensityConstraint interface {
	Module
	InPosition() *CoordField
	InVelocity() *CoordField
	InNeighborhood() *NeighborField
	InSmoothingLength() *ScalarField
	InTimeStep() *ScalarField

	Constrain() error
}

// Viscosity diffuses velocity among neighbors.
type Viscosity interface {
	Module
	InPosition() *CoordField
	InVelocity() *CoordField
	InNeighborhood() *NeighborField
	InSmoothingLength() *ScalarField
	InTimeStep() *ScalarField

	SetViscosity(mu float64)
	Viscosity() float64
	Constrain() error
}

// HorizonConsumer is implemented by solvers that read the body's
// interaction radius.
type HorizonConsumer interface {
	InHorizon() *ScalarField
}
