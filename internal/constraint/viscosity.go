package constraint

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// ImplicitViscosity diffuses velocity among neighbors with a backward-Euler
// update solved by Jacobi iteration.
type ImplicitViscosity struct {
	module.Base

	Iterations int

	viscosity float64

	position        *module.CoordField
	velocity        *module.CoordField
	neighborhood    *module.NeighborField
	smoothingLength *module.ScalarField
	timeStep        *module.ScalarField
}

func NewImplicitViscosity(name string) *ImplicitViscosity {
	v := &ImplicitViscosity{
		Base:       module.NewBase(name, module.CategoryConstraint),
		Iterations: 20,
		viscosity:  1,
	}
	v.position = field.New[[]dynamo.Coord](v, "position", nil)
	v.velocity = field.New[[]dynamo.Coord](v, "velocity", nil)
	v.neighborhood = field.New[topology.NeighborList](v, "neighborhood", nil)
	v.smoothingLength = field.New[float64](v, "smoothing_length", 0)
	v.timeStep = field.New[float64](v, "time_step", 0)
	return v
}

func (v *ImplicitViscosity) InPosition() *module.CoordField         { return v.position }
func (v *ImplicitViscosity) InVelocity() *module.CoordField         { return v.velocity }
func (v *ImplicitViscosity) InNeighborhood() *module.NeighborField  { return v.neighborhood }
func (v *ImplicitViscosity) InSmoothingLength() *module.ScalarField { return v.smoothingLength }
func (v *ImplicitViscosity) InTimeStep() *module.ScalarField        { return v.timeStep }

func (v *ImplicitViscosity) SetViscosity(mu float64) { v.viscosity = mu }
func (v *ImplicitViscosity) Viscosity() float64      { return v.viscosity }

// Constrain solves (1 + Σa_ij) v_i - Σa_ij v_j = v_i^old with
// a_ij = mu * dt * (1 - r_ij/h) / h^2.
func (v *ImplicitViscosity) Constrain() error {
	pos, vel, nbrs := v.position.Value(), v.velocity.Value(), v.neighborhood.Value()
	if len(vel) != len(pos) || nbrs.Len() != len(pos) {
		return fmt.Errorf("%w: position=%d velocity=%d neighborhood=%d",
			dynamo.ErrLengthMismatch, len(pos), len(vel), nbrs.Len())
	}
	h := v.smoothingLength.Value()
	if !(h > 0) {
		return fmt.Errorf("%w: smoothing length %g", dynamo.ErrInvalidParameter, h)
	}
	if v.viscosity < 0 {
		return fmt.Errorf("%w: viscosity %g", dynamo.ErrInvalidParameter, v.viscosity)
	}
	dt := v.timeStep.Value()
	if err := dynamo.CheckTimeStep(dt); err != nil {
		return err
	}
	if v.viscosity == 0 {
		return nil
	}

	n := len(pos)
	coef := v.viscosity * dt / (h * h)
	old := dynamo.CloneCoords(vel)
	cur := dynamo.CloneCoords(vel)
	next := make([]dynamo.Coord, n)

	for it := 0; it < v.Iterations; it++ {
		dynamo.ParallelFor(n, 256, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				num := old[i]
				den := 1.0
				for _, j := range nbrs.Of(i) {
					a := coef * linearWeight(r3.Norm(r3.Sub(pos[i], pos[j])), h)
					num = r3.Add(num, r3.Scale(a, cur[j]))
					den += a
				}
				next[i] = r3.Scale(1/den, num)
			}
		})
		cur, next = next, cur
	}
	copy(vel, cur)
	return nil
}
