// Package particles implements particle systems and the viscoplastic body
// that drives five solver modules through a fixed step pipeline.
package particles

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/scene"
	"github.com/san-kum/viscosim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// System is a generic particle system. It owns the canonical position,
// velocity and force fields, which are index aligned and always of equal
// length, plus the point set they are initialized from.
type System struct {
	node   *scene.Node
	points *topology.PointSet

	position *module.CoordField
	velocity *module.CoordField
	force    *module.CoordField
	timeStep *module.ScalarField

	initialized bool
}

func NewSystem(name string) *System {
	s := &System{
		node:   scene.NewNode(name),
		points: topology.NewPointSet(),
	}
	s.position = field.New[[]dynamo.Coord](s, "position", []dynamo.Coord{})
	s.velocity = field.New[[]dynamo.Coord](s, "velocity", []dynamo.Coord{})
	s.force = field.New[[]dynamo.Coord](s, "force", []dynamo.Coord{})
	s.timeStep = field.New[float64](s, "time_step", 0)
	s.node.SetTopology(s.points)
	return s
}

func (s *System) Name() string                       { return s.node.Name() }
func (s *System) Node() *scene.Node                  { return s.node }
func (s *System) PointSet() *topology.PointSet       { return s.points }
func (s *System) Initialized() bool                  { return s.initialized }
func (s *System) PositionField() *module.CoordField  { return s.position }
func (s *System) VelocityField() *module.CoordField  { return s.velocity }
func (s *System) ForceField() *module.CoordField     { return s.force }
func (s *System) TimeStepField() *module.ScalarField { return s.timeStep }

func (s *System) Positions() []dynamo.Coord  { return s.position.Value() }
func (s *System) Velocities() []dynamo.Coord { return s.velocity.Value() }
func (s *System) Forces() []dynamo.Coord     { return s.force.Value() }

// Len returns the particle count. Before Initialize it counts the loaded
// point set.
func (s *System) Len() int {
	if !s.initialized {
		return s.points.Len()
	}
	return len(s.position.Value())
}

// LoadParticles appends a lattice filling [lo, hi] to the point set.
func (s *System) LoadParticles(lo, hi dynamo.Coord, spacing float64) error {
	return s.points.LoadBox(lo, hi, spacing)
}

// Initialize publishes the point set as the particle positions with zero
// velocity and force, and initializes the topology mappings.
func (s *System) Initialize() error {
	s.initialized = false
	s.resetFields()
	if err := s.node.InitializeMappings(); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

func (s *System) resetFields() {
	n := s.points.Len()
	s.position.Set(dynamo.CloneCoords(s.points.Points()))
	s.velocity.Set(make([]dynamo.Coord, n))
	s.force.Set(make([]dynamo.Coord, n))
}

// ApplyForce adds f to the force accumulated on particle i. The integrator
// consumes the accumulated force on the next step.
func (s *System) ApplyForce(i int, f dynamo.Coord) error {
	force := s.force.Value()
	if i < 0 || i >= len(force) {
		return fmt.Errorf("%w: particle %d of %d", dynamo.ErrInvalidParameter, i, len(force))
	}
	force[i] = r3.Add(force[i], f)
	return nil
}

// SetVelocity overwrites the velocity of every particle.
func (s *System) SetVelocity(v dynamo.Coord) {
	vel := s.velocity.Value()
	for i := range vel {
		vel[i] = v
	}
}

// Translate moves the point set and the particle positions by t.
func (s *System) Translate(t dynamo.Coord) error {
	s.points.Translate(t)
	dynamo.TranslateCoords(s.position.Value(), t)
	return s.rebind()
}

// Scale scales the point set and the particle positions about the origin.
func (s *System) Scale(factor float64) error {
	if !(factor > 0) {
		return fmt.Errorf("%w: scale factor %g", dynamo.ErrInvalidParameter, factor)
	}
	s.points.Scale(factor)
	dynamo.ScaleCoords(s.position.Value(), factor)
	return s.rebind()
}

// rebind re-baselines the mappings so the transformed representations stay
// consistent with each other.
func (s *System) rebind() error {
	if !s.initialized {
		return nil
	}
	return s.node.InitializeMappings()
}

func (s *System) checkLengths() error {
	np, nv, nf := len(s.position.Value()), len(s.velocity.Value()), len(s.force.Value())
	if np != nv || np != nf {
		return fmt.Errorf("%w: position=%d velocity=%d force=%d", dynamo.ErrLengthMismatch, np, nv, nf)
	}
	return nil
}
