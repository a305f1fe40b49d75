package particles

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
)

// ElastoplasticBody shares the viscoplastic wiring but keeps its rest shape
// across steps: plastic updates accumulate instead of being re-baselined, so
// the medium springs back toward its last plastic configuration.
type ElastoplasticBody struct {
	*body
}

func NewElastoplasticBody(name string, opts ...Option) (*ElastoplasticBody, error) {
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
		{"viscosity.constrain", b.viscosity.Constrain},
		{"integrator.end", b.integrator.End},
	}
	return &ElastoplasticBody{body: b}, nil
}

// SetElastoplasticitySolver replaces the elastoplastic solver. The old
// solver is disconnected and unregistered; the new one takes its name, its
// friction angle and cohesion, and is wired to position, velocity,
// neighborhood and time step, plus the horizon when it is a
// module.HorizonConsumer. A solver swapped into an initialized body is
// initialized against the current state. On failure the old solver is
// restored.
func (b *ElastoplasticBody) SetElastoplasticitySolver(solver module.Elastoplasticity) error {
	if solver == nil {
		return fmt.Errorf("%s: nil elastoplasticity solver", b.Name())
	}
	old := b.plasticity
	if err := b.wiring.Detach(old); err != nil {
		return fmt.Errorf("%s: detach %s: %w", b.Name(), old.Name(), err)
	}
	if err := b.node.RemoveModule(old.Name()); err != nil {
		return fmt.Errorf("%s: %w", b.Name(), err)
	}

	solver.SetName(ElastoplasticityName)
	solver.SetFrictionAngle(old.FrictionAngle())
	solver.SetCohesion(old.Cohesion())
	b.wirePlasticity(solver)
	if hc, ok := solver.(module.HorizonConsumer); ok {
		field.Add(b.wiring, b.horizon, hc.InHorizon())
	}
	if err := b.wiring.Commit(); err != nil {
		b.restorePlasticity(old)
		return fmt.Errorf("%s: wire solver: %w", b.Name(), err)
	}
	if err := b.node.AddModule(solver); err != nil {
		_ = b.wiring.Detach(solver)
		b.restorePlasticity(old)
		return fmt.Errorf("%s: %w", b.Name(), err)
	}
	if mi, ok := solver.(module.Initializer); ok && b.initialized {
		if err := mi.Initialize(); err != nil {
			_ = b.wiring.Detach(solver)
			_ = b.node.RemoveModule(solver.Name())
			b.restorePlasticity(old)
			return fmt.Errorf("%s: initialize solver: %w", b.Name(), err)
		}
	}

	b.plasticity = solver
	b.log.Debug().Msg("elastoplasticity solver replaced")
	return nil
}

func (b *ElastoplasticBody) restorePlasticity(old module.Elastoplasticity) {
	b.wirePlasticity(old)
	if err := b.wiring.Commit(); err != nil {
		b.log.Error().Err(err).Msg("restoring elastoplasticity solver failed")
	}
	if err := b.node.AddModule(old); err != nil {
		b.log.Error().Err(err).Msg("re-registering elastoplasticity solver failed")
	}
}
