package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/viscosim/internal/config"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/metrics"
	"github.com/san-kum/viscosim/internal/particles"
	"github.com/san-kum/viscosim/internal/sim"
)

// Factory builds a body variant.
type Factory func(name string, opts ...particles.Option) (Body, error)

type Registry struct {
	variants map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{variants: make(map[string]Factory)}

	r.variants[config.VariantViscoplastic] = func(name string, opts ...particles.Option) (Body, error) {
		return particles.NewViscoplasticBody(name, opts...)
	}
	r.variants[config.VariantElastoplastic] = func(name string, opts ...particles.Option) (Body, error) {
		return particles.NewElastoplasticBody(name, opts...)
	}
	return r
}

func (r *Registry) Register(variant string, f Factory) {
	r.variants[variant] = f
}

func (r *Registry) GetVariant(name string) (Factory, error) {
	fn, ok := r.variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: variant %s", dynamo.ErrNotFound, name)
	}
	return fn, nil
}

func (r *Registry) ListVariants() []string {
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the per-frame diagnostics for a configuration.
// Particle mass assumes the lattice spacing samples the rest density.
func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	s := cfg.Body.Block.Spacing
	mass := restDensity * s * s * s
	return metrics.Diagnostics(mass, speedLimit)
}

const (
	restDensity = 1000.0
	speedLimit  = 50.0
)
