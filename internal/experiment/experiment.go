// Package experiment assembles a configured scene: a particle body, its
// collaborators, the scene graph stepping it and the frame runner sampling
// it.
package experiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/viscosim/internal/config"
	"github.com/san-kum/viscosim/internal/constraint"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/integrators"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/neighbor"
	"github.com/san-kum/viscosim/internal/particles"
	"github.com/san-kum/viscosim/internal/scene"
	"github.com/san-kum/viscosim/internal/sim"
	"github.com/san-kum/viscosim/internal/topology"
)

// Body is what both particle body variants expose to a scene.
type Body interface {
	scene.Animated
	sim.Source

	Name() string
	Len() int
	LoadParticles(lo, hi dynamo.Coord, spacing float64) error
	LoadSurface(path string) error
	SetVelocity(v dynamo.Coord)
	Neighborhood() topology.NeighborList
	Yielded() int
	Horizon() float64
	Elastoplasticity() module.Elastoplasticity
	Viscosity() module.Viscosity
	SurfaceNode() *scene.Node
	Mesh() *topology.TriangleSet
	SurfaceRender() *scene.SurfaceMeshRender
	Edges() []string
	Stages() []string
}

type Experiment struct {
	cfg       *config.Config
	body      Body
	graph     *scene.Graph
	simulator *sim.Simulator
	log       zerolog.Logger
}

type options struct {
	registry  *Registry
	logger    zerolog.Logger
	stages    particles.StageObserver
	observers []sim.Observer
}

type Option func(*options)

func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStageObserver reports every pipeline stage of the body.
func WithStageObserver(obs particles.StageObserver) Option {
	return func(o *options) { o.stages = obs }
}

// WithObserver is notified at every frame boundary.
func WithObserver(obs sim.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// New builds the scene described by cfg. The scene is not initialized
// until Initialize or Run.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, err := o.registry.GetVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}
	bodyOpts, err := collaborators(cfg.Body)
	if err != nil {
		return nil, err
	}
	bodyOpts = append(bodyOpts, particles.WithLogger(o.logger))
	if o.stages != nil {
		bodyOpts = append(bodyOpts, particles.WithStageObserver(o.stages))
	}

	body, err := factory(cfg.Body.Name, bodyOpts...)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}
	if err := configure(body, cfg.Body); err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}

	graph := scene.NewGraph(body)
	graph.TimeStep = cfg.Scene.Dt
	graph.FrameRate = cfg.Scene.FrameRate
	graph.TotalTime = cfg.Scene.TotalTime
	graph.Gravity = cfg.Scene.Gravity.Coord()
	graph.Lower = cfg.Scene.Lower.Coord()
	graph.Upper = cfg.Scene.Upper.Coord()

	simulator := sim.New(graph, body)
	for _, m := range o.registry.DefaultMetrics(cfg) {
		simulator.AddMetric(m)
	}
	for _, obs := range o.observers {
		simulator.AddObserver(obs)
	}

	e := &Experiment{
		cfg:       cfg,
		body:      body,
		graph:     graph,
		simulator: simulator,
		log:       o.logger.With().Str("body", cfg.Body.Name).Logger(),
	}
	e.log.Info().
		Str("variant", cfg.Variant).
		Int("particles", body.Len()).
		Float64("horizon", body.Horizon()).
		Msg("scene assembled")
	return e, nil
}

func collaborators(bc config.BodyConfig) ([]particles.Option, error) {
	scheme, err := integrators.ParseScheme(bc.Integrator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidParameter, err)
	}
	integ := integrators.NewParticleIntegrator("integrator")
	integ.Scheme = scheme

	query := neighbor.NewQuery("neighborhood")
	query.MaxNeighbors = bc.MaxNeighbors

	plasticity := constraint.NewElastoplasticity("elastoplasticity")
	plasticity.Iterations = bc.Iterations
	plasticity.Stiffness = bc.Stiffness

	return []particles.Option{
		particles.WithHorizon(bc.Horizon),
		particles.WithIntegrator(integ),
		particles.WithNeighborSearch(query),
		particles.WithElastoplasticity(plasticity),
	}, nil
}

func configure(body Body, bc config.BodyConfig) error {
	if err := body.LoadParticles(bc.Block.Lower.Coord(), bc.Block.Upper.Coord(), bc.Block.Spacing); err != nil {
		return err
	}
	if bc.Surface != "" {
		if err := body.LoadSurface(bc.Surface); err != nil {
			return err
		}
	}
	body.SurfaceNode().SetVisible(bc.ShowSurface)
	body.Elastoplasticity().SetFrictionAngle(bc.FrictionAngleRadians())
	body.Elastoplasticity().SetCohesion(bc.Cohesion)
	body.Viscosity().SetViscosity(bc.Viscosity)
	return nil
}

// Initialize initializes the scene and applies the configured launch
// velocity, which the body's own initialization would otherwise zero.
func (e *Experiment) Initialize() error {
	if e.graph.Initialized() {
		return nil
	}
	if err := e.graph.Initialize(); err != nil {
		return err
	}
	e.body.SetVelocity(e.cfg.Body.Velocity.Coord())
	return nil
}

// Run takes frames until the configured total time or maxFrames.
func (e *Experiment) Run(ctx context.Context, maxFrames int) (*sim.Result, error) {
	if err := e.Initialize(); err != nil {
		return nil, err
	}
	result, err := e.simulator.Run(ctx, sim.Config{MaxFrames: maxFrames, ValidateState: e.cfg.ValidateState})
	if err != nil {
		e.log.Warn().Err(err).Int("frames", frames(result)).Msg("run stopped early")
		return result, err
	}
	e.log.Info().Int("frames", result.FramesTaken).Float64("time", e.graph.Elapsed()).Msg("run finished")
	return result, nil
}

// Step takes a single frame. It is used by interactive front ends that
// drive the scene themselves.
func (e *Experiment) Step() error {
	if err := e.Initialize(); err != nil {
		return err
	}
	return e.graph.TakeOneFrame()
}

func (e *Experiment) Config() *config.Config    { return e.cfg }
func (e *Experiment) Body() Body                { return e.body }
func (e *Experiment) Graph() *scene.Graph       { return e.graph }
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }

func frames(r *sim.Result) int {
	if r == nil {
		return 0
	}
	return r.FramesTaken
}
