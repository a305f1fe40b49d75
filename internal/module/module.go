// Package module defines the roles a solver can play inside a body and the
// field contracts each role exposes for wiring.
package module

// Category classifies a module by the role it plays in a step.
type Category int

const (
	CategoryIntegrator Category = iota
	CategoryCompute
	CategoryConstraint
	CategoryVisual
)

func (c Category) String() string {
	switch c {
	case CategoryIntegrator:
		return "integrator"
	case CategoryCompute:
		return "compute"
	case CategoryConstraint:
		return "constraint"
	case CategoryVisual:
		return "visual"
	default:
		return "unknown"
	}
}

// Module is a named unit of computation.
type Module interface {
	Name() string
	SetName(name string)
	Category() Category
}

// Base carries the identity every module needs. Embed it by pointer or value
// in a pointer-receiver module type.
type Base struct {
	name     string
	category Category
}

func NewBase(name string, category Category) Base {
	return Base{name: name, category: category}
}

func (b *Base) Name() string        { return b.name }
func (b *Base) SetName(name string) { b.name = name }
func (b *Base) Category() Category  { return b.category }

// Initializer is implemented by modules with one-time setup that must run
// once the body's fields hold their initial values.
type Initializer interface {
	Initialize() error
}
