package particles

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/viscosim/internal/constraint"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/integrators"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/neighbor"
	"github.com/san-kum/viscosim/internal/scene"
	"github.com/san-kum/viscosim/internal/topology"
)

// Registered module names.
const (
	IntegratorName       = "integrator"
	NeighborhoodName     = "neighborhood"
	ElastoplasticityName = "elastoplasticity"
	DensityName          = "pbd"
	ViscosityName        = "viscosity"
	SurfaceNodeName      = "Mesh"
	SurfaceRenderName    = "surface_render"
)

type stage struct {
	name string
	run  func() error
}

// body holds the wiring and lifecycle shared by the particle body variants.
type body struct {
	*System

	horizon *module.ScalarField

	integrator module.Integrator
	neighbors  module.NeighborSearch
	plasticity module.Elastoplasticity
	density    module.DensityConstraint
	viscosity  module.Viscosity

	surface *scene.Node
	mesh    *topology.TriangleSet
	render  *scene.SurfaceMeshRender
	mapping *topology.PointSetToPointSet

	wiring   *field.Wiring
	stages   []stage
	log      zerolog.Logger
	observer StageObserver
}

func newBody(name string, opts []Option) (*body, error) {
	o := options{horizon: DefaultHorizon, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if !(o.horizon > 0) {
		return nil, fmt.Errorf("%s: %w: horizon %g", name, dynamo.ErrInvalidParameter, o.horizon)
	}
	if o.integrator == nil {
		o.integrator = integrators.NewParticleIntegrator(IntegratorName)
	}
	if o.neighbors == nil {
		o.neighbors = neighbor.NewQuery(NeighborhoodName)
	}
	if o.plasticity == nil {
		o.plasticity = constraint.NewElastoplasticity(ElastoplasticityName)
	}
	if o.density == nil {
		o.density = constraint.NewDensityPBD(DensityName)
	}
	if o.viscosity == nil {
		o.viscosity = constraint.NewImplicitViscosity(ViscosityName)
	}

	b := &body{
		System:     NewSystem(name),
		integrator: o.integrator,
		neighbors:  o.neighbors,
		plasticity: o.plasticity,
		density:    o.density,
		viscosity:  o.viscosity,
		wiring:     field.NewWiring(),
		log:        o.logger.With().Str("body", name).Logger(),
		observer:   o.observer,
	}
	b.horizon = field.New(b.System, "horizon", o.horizon)

	b.integrator.SetName(IntegratorName)
	b.neighbors.SetName(NeighborhoodName)
	b.plasticity.SetName(ElastoplasticityName)
	b.density.SetName(DensityName)
	b.viscosity.SetName(ViscosityName)
	for _, m := range []module.Module{b.integrator, b.neighbors, b.plasticity, b.density, b.viscosity} {
		if err := b.node.AddModule(m); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	b.wireIntegrator()
	b.wireNeighbors()
	b.wirePlasticity(b.plasticity)
	b.wireDensity()
	b.wireViscosity()
	if err := b.wiring.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	b.plasticity.SetFrictionAngle(0)
	b.plasticity.SetCohesion(0)
	b.viscosity.SetViscosity(1)

	if err := b.buildSurface(); err != nil {
		_ = b.detachAll()
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	b.log.Debug().Int("edges", len(b.wiring.Edges())).Float64("horizon", o.horizon).Msg("body wired")
	return b, nil
}

func (b *body) wireIntegrator() {
	field.Add(b.wiring, b.position, b.integrator.InPosition())
	field.Add(b.wiring, b.velocity, b.integrator.InVelocity())
	field.Add(b.wiring, b.force, b.integrator.InForceDensity())
	field.Add(b.wiring, b.timeStep, b.integrator.InTimeStep())
}

func (b *body) wireNeighbors() {
	field.Add(b.wiring, b.horizon, b.neighbors.InRadius())
	field.Add(b.wiring, b.position, b.neighbors.InPosition())
}

func (b *body) wirePlasticity(p module.Elastoplasticity) {
	field.Add(b.wiring, b.position, p.InPosition())
	field.Add(b.wiring, b.velocity, p.InVelocity())
	field.Add(b.wiring, b.neighbors.OutNeighborhood(), p.InNeighborhood())
	field.Add(b.wiring, b.timeStep, p.InTimeStep())
}

func (b *body) wireDensity() {
	field.Add(b.wiring, b.horizon, b.density.InSmoothingLength())
	field.Add(b.wiring, b.position, b.density.InPosition())
	field.Add(b.wiring, b.velocity, b.density.InVelocity())
	field.Add(b.wiring, b.neighbors.OutNeighborhood(), b.density.InNeighborhood())
	field.Add(b.wiring, b.timeStep, b.density.InTimeStep())
}

func (b *body) wireViscosity() {
	field.Add(b.wiring, b.horizon, b.viscosity.InSmoothingLength())
	field.Add(b.wiring, b.position, b.viscosity.InPosition())
	field.Add(b.wiring, b.velocity, b.viscosity.InVelocity())
	field.Add(b.wiring, b.neighbors.OutNeighborhood(), b.viscosity.InNeighborhood())
	field.Add(b.wiring, b.timeStep, b.viscosity.InTimeStep())
}

func (b *body) detachAll() error {
	var firstErr error
	for _, m := range []module.Module{b.integrator, b.neighbors, b.plasticity, b.density, b.viscosity} {
		if err := b.wiring.Detach(m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildSurface creates the hidden "Mesh" child with its render module and
// the mapping that drives it from the particle set.
func (b *body) buildSurface() error {
	b.surface = scene.NewNode(SurfaceNodeName)
	b.mesh = topology.NewTriangleSet()
	b.surface.SetTopology(b.mesh)

	b.render = scene.NewSurfaceMeshRender(SurfaceRenderName, b.mesh)
	b.render.SetColor(scene.DefaultSurfaceColor)
	if err := b.surface.AddModule(b.render); err != nil {
		return err
	}
	b.surface.SetVisible(false)
	if err := b.node.AddChild(b.surface); err != nil {
		return err
	}

	b.mapping = topology.NewPointSetToPointSet(b.points, &b.mesh.PointSet)
	b.node.AddMapping(b.mapping)
	return nil
}

// Initialize prepares the neighbor search, builds the first neighborhood so
// the first step starts from valid adjacency, then initializes the particle
// system and the modules with one-time setup. A body that failed to
// initialize must not be advanced.
func (b *body) Initialize() error {
	b.initialized = false
	b.resetFields()

	if err := b.neighbors.Initialize(); err != nil {
		b.log.Error().Err(err).Msg("neighbor search setup failed")
		return fmt.Errorf("%s: neighbor search: %w", b.Name(), err)
	}
	if err := b.neighbors.Compute(); err != nil {
		b.log.Error().Err(err).Msg("initial neighborhood failed")
		return fmt.Errorf("%s: initial neighborhood: %w", b.Name(), err)
	}
	if err := b.System.Initialize(); err != nil {
		b.log.Error().Err(err).Msg("particle system initialization failed")
		return fmt.Errorf("%s: %w", b.Name(), err)
	}
	for _, m := range []module.Module{b.integrator, b.plasticity, b.density, b.viscosity} {
		mi, ok := m.(module.Initializer)
		if !ok {
			continue
		}
		if err := mi.Initialize(); err != nil {
			b.initialized = false
			b.log.Error().Err(err).Str("module", m.Name()).Msg("module initialization failed")
			return fmt.Errorf("%s: %s: %w", b.Name(), m.Name(), err)
		}
	}

	b.log.Debug().Int("particles", b.Len()).Float64("mean_neighbors", b.Neighborhood().Mean()).Msg("body initialized")
	return nil
}

// Advance runs one step of length dt through the stage list. The first
// failing stage aborts the step; stages already run are not rolled back.
func (b *body) Advance(dt float64) error {
	if !b.initialized {
		return fmt.Errorf("%s: %w", b.Name(), dynamo.ErrNotInitialized)
	}
	if err := dynamo.CheckTimeStep(dt); err != nil {
		return fmt.Errorf("%s: %w", b.Name(), err)
	}
	b.timeStep.Set(dt)

	for i, s := range b.stages {
		start := time.Now()
		err := s.run()
		if b.observer != nil {
			b.observer.ObserveStage(b.Name(), s.name, time.Since(start), err)
		}
		if err != nil {
			b.log.Error().Err(err).Str("stage", s.name).Int("index", i).Msg("step failed")
			return &dynamo.StepError{Body: b.Name(), Stage: s.name, Index: i, Wrapped: err}
		}
	}
	return b.checkLengths()
}

// UpdateTopology copies the particle positions into the point set and
// applies every topology mapping in registration order. An uninitialized
// body has no positions to publish and fails with ErrNotInitialized.
func (b *body) UpdateTopology() error {
	if !b.initialized {
		return fmt.Errorf("%s: %w", b.Name(), dynamo.ErrNotInitialized)
	}
	b.points.CopyFrom(b.position.Value())
	return b.node.ApplyMappings()
}

// LoadSurface loads an OBJ file into the surface mesh.
func (b *body) LoadSurface(path string) error {
	if err := b.mesh.LoadOBJ(path); err != nil {
		return fmt.Errorf("%s: load surface: %w", b.Name(), err)
	}
	return b.rebind()
}

// Translate moves the surface mesh and the particles by t.
func (b *body) Translate(t dynamo.Coord) error {
	if err := b.syncTopology(); err != nil {
		return err
	}
	b.mesh.Translate(t)
	return b.System.Translate(t)
}

// Scale scales the surface mesh and the particles about the origin.
func (b *body) Scale(factor float64) error {
	if !(factor > 0) {
		return fmt.Errorf("%w: scale factor %g", dynamo.ErrInvalidParameter, factor)
	}
	if err := b.syncTopology(); err != nil {
		return err
	}
	b.mesh.Scale(factor)
	return b.System.Scale(factor)
}

// syncTopology brings the mesh up to date before a transform so both
// representations start from the same configuration.
func (b *body) syncTopology() error {
	if !b.initialized {
		return nil
	}
	return b.UpdateTopology()
}

// SetGravity forwards g to the integrator when it accepts gravity.
func (b *body) SetGravity(g dynamo.Coord) {
	if gr, ok := b.integrator.(scene.GravityReceiver); ok {
		gr.SetGravity(g)
	}
}

func (b *body) Horizon() float64                             { return b.horizon.Value() }
func (b *body) HorizonField() *module.ScalarField            { return b.horizon }
func (b *body) Integrator() module.Integrator                { return b.integrator }
func (b *body) NeighborSearch() module.NeighborSearch        { return b.neighbors }
func (b *body) Elastoplasticity() module.Elastoplasticity    { return b.plasticity }
func (b *body) DensityConstraint() module.DensityConstraint  { return b.density }
func (b *body) Viscosity() module.Viscosity                  { return b.viscosity }
func (b *body) SurfaceNode() *scene.Node                     { return b.surface }
func (b *body) Mesh() *topology.TriangleSet                  { return b.mesh }
func (b *body) SurfaceRender() *scene.SurfaceMeshRender      { return b.render }
func (b *body) SurfaceMapping() *topology.PointSetToPointSet { return b.mapping }

// SetHorizon changes the interaction radius seen by every connected module.
func (b *body) SetHorizon(h float64) error {
	if !(h > 0) {
		return fmt.Errorf("%w: horizon %g", dynamo.ErrInvalidParameter, h)
	}
	b.horizon.Set(h)
	return nil
}

// Neighborhood returns the neighborhood published by the last rebuild.
func (b *body) Neighborhood() topology.NeighborList {
	return b.neighbors.OutNeighborhood().Value()
}

// Yielded returns the plastic yield count when the solver reports one.
func (b *body) Yielded() int {
	if y, ok := b.plasticity.(interface{ Yielded() int }); ok {
		return y.Yielded()
	}
	return 0
}

// Edges lists the field connections of the body.
func (b *body) Edges() []string { return b.wiring.Edges() }

// Stages lists the step pipeline in execution order.
func (b *body) Stages() []string {
	names := make([]string, len(b.stages))
	for i, s := range b.stages {
		names[i] = s.name
	}
	return names
}

// ViscoplasticBody is a particle body for a pure viscoplastic medium:
// elastic response, frictionless cohesionless plastic yielding with a rest
// shape re-baselined every step, and implicit viscosity.
//
// The density projection module is wired like the others but is not part of
// the step pipeline.
type ViscoplasticBody struct {
	*body
}

func NewViscoplasticBody(name string, opts ...Option) (*ViscoplasticBody, error) {
	b, err := newBody(name, opts)
	if err != nil {
		return nil, err
	}
	b.stages = []stage{
		{"integrator.begin", b.integrator.Begin},
		{"integrator.integrate", b.integrator.Integrate},
		{"neighborhood.compute", b.neighbors.Compute},
		{"elastoplasticity.solve_elasticity", func() error { return b.plasticity.SolveElasticity() }},
		{"neighborhood.compute", b.neighbors.Compute},
		{"elastoplasticity.apply_plasticity", func() error { return b.plasticity.ApplyPlasticity() }},
		{"elastoplasticity.reset_rest_shape", func() error { return b.plasticity.ResetRestShape() }},
		{"viscosity.constrain", b.viscosity.Constrain},
		{"integrator.end", b.integrator.End},
	}
	return &ViscoplasticBody{body: b}, nil
}
