package integrators

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
	"gonum.org/v1/gonum/spatial/r3"
)

// Scheme selects the update order used by ParticleIntegrator.
type Scheme int

const (
	// SymplecticEuler updates velocity first and moves with the new velocity.
	SymplecticEuler Scheme = iota
	// ExplicitEuler moves with the old velocity, then updates it.
	ExplicitEuler
)

// ParseScheme maps a config name to a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "", "symplectic", "semi-implicit":
		return SymplecticEuler, nil
	case "euler", "explicit":
		return ExplicitEuler, nil
	default:
		return 0, fmt.Errorf("unknown integrator: %s", name)
	}
}

func (s Scheme) String() string {
	if s == ExplicitEuler {
		return "euler"
	}
	return "symplectic"
}

// ParticleIntegrator advances positions and velocities from a per-particle
// force density plus a uniform gravity.
type ParticleIntegrator struct {
	module.Base

	Scheme  Scheme
	Gravity dynamo.Coord

	position *module.CoordField
	velocity *module.CoordField
	force    *module.CoordField
	timeStep *module.ScalarField

	prevPosition []dynamo.Coord
	prevVelocity []dynamo.Coord
}

func NewParticleIntegrator(name string) *ParticleIntegrator {
	p := &ParticleIntegrator{Base: module.NewBase(name, module.CategoryIntegrator)}
	p.position = field.New[[]dynamo.Coord](p, "position", nil)
	p.velocity = field.New[[]dynamo.Coord](p, "velocity", nil)
	p.force = field.New[[]dynamo.Coord](p, "force_density", nil)
	p.timeStep = field.New[float64](p, "time_step", 0)
	return p
}

func (p *ParticleIntegrator) InPosition() *module.CoordField     { return p.position }
func (p *ParticleIntegrator) InVelocity() *module.CoordField     { return p.velocity }
func (p *ParticleIntegrator) InForceDensity() *module.CoordField { return p.force }
func (p *ParticleIntegrator) InTimeStep() *module.ScalarField    { return p.timeStep }

// SetGravity replaces the uniform acceleration added to every particle.
func (p *ParticleIntegrator) SetGravity(g dynamo.Coord) { p.Gravity = g }

// PrevPosition returns the positions captured by the last Begin.
func (p *ParticleIntegrator) PrevPosition() []dynamo.Coord { return p.prevPosition }

// PrevVelocity returns the velocities captured by the last Begin.
func (p *ParticleIntegrator) PrevVelocity() []dynamo.Coord { return p.prevVelocity }

// Begin snapshots the start-of-step state.
func (p *ParticleIntegrator) Begin() error {
	pos, vel, _, err := p.arrays()
	if err != nil {
		return err
	}
	p.prevPosition = resize(p.prevPosition, len(pos))
	p.prevVelocity = resize(p.prevVelocity, len(vel))
	copy(p.prevPosition, pos)
	copy(p.prevVelocity, vel)
	return nil
}

// Integrate advances velocity and position by one time step.
func (p *ParticleIntegrator) Integrate() error {
	pos, vel, force, err := p.arrays()
	if err != nil {
		return err
	}
	dt := p.timeStep.Value()
	if err := dynamo.CheckTimeStep(dt); err != nil {
		return err
	}

	for i := range pos {
		acc := r3.Add(force[i], p.Gravity)
		switch p.Scheme {
		case ExplicitEuler:
			pos[i] = r3.Add(pos[i], r3.Scale(dt, vel[i]))
			vel[i] = r3.Add(vel[i], r3.Scale(dt, acc))
		default:
			vel[i] = r3.Add(vel[i], r3.Scale(dt, acc))
			pos[i] = r3.Add(pos[i], r3.Scale(dt, vel[i]))
		}
	}
	return nil
}

// End clears the force accumulator; contributions applied between steps are
// consumed by exactly one Integrate.
func (p *ParticleIntegrator) End() error {
	_, _, force, err := p.arrays()
	if err != nil {
		return err
	}
	dynamo.ZeroCoords(force)
	return nil
}

func (p *ParticleIntegrator) arrays() (pos, vel, force []dynamo.Coord, err error) {
	pos, vel, force = p.position.Value(), p.velocity.Value(), p.force.Value()
	if len(vel) != len(pos) || len(force) != len(pos) {
		return nil, nil, nil, fmt.Errorf("%w: position=%d velocity=%d force=%d",
			dynamo.ErrLengthMismatch, len(pos), len(vel), len(force))
	}
	return pos, vel, force, nil
}

func resize(c []dynamo.Coord, n int) []dynamo.Coord {
	if cap(c) < n {
		return make([]dynamo.Coord, n)
	}
	return c[:n]
}
