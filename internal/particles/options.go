package particles

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/viscosim/internal/module"
)

// DefaultHorizon is the interaction radius a body starts with.
const DefaultHorizon = 0.0085

// StageObserver is told about every pipeline stage a body executes.
type StageObserver interface {
	ObserveStage(body, stage string, elapsed time.Duration, err error)
}

type options struct {
	horizon    float64
	integrator module.Integrator
	neighbors  module.NeighborSearch
	plasticity module.Elastoplasticity
	density    module.DensityConstraint
	viscosity  module.Viscosity
	logger     zerolog.Logger
	observer   StageObserver
}

// Option customizes body construction.
type Option func(*options)

func WithHorizon(h float64) Option {
	return func(o *options) { o.horizon = h }
}

func WithIntegrator(m module.Integrator) Option {
	return func(o *options) { o.integrator = m }
}

func WithNeighborSearch(m module.NeighborSearch) Option {
	return func(o *options) { o.neighbors = m }
}

func WithElastoplasticity(m module.Elastoplasticity) Option {
	return func(o *options) { o.plasticity = m }
}

func WithDensityConstraint(m module.DensityConstraint) Option {
	return func(o *options) { o.density = m }
}

func WithViscosity(m module.Viscosity) Option {
	return func(o *options) { o.viscosity = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithStageObserver(obs StageObserver) Option {
	return func(o *options) { o.observer = obs }
}
