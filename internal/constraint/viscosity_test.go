package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/topology"
)

func newViscosity(vel []dynamo.Coord, nbrs topology.NeighborList) *ImplicitViscosity {
	v := NewImplicitViscosity("viscosity")
	pos := make([]dynamo.Coord, len(vel))
	for i := range pos {
		pos[i] = dynamo.Coord{X: 0.1 * float64(i)}
	}
	v.InPosition().Set(pos)
	v.InVelocity().Set(vel)
	v.InNeighborhood().Set(nbrs)
	v.InSmoothingLength().Set(0.5)
	v.InTimeStep().Set(dt)
	return v
}

func TestViscosityDefault(t *testing.T) {
	if mu := NewImplicitViscosity("v").Viscosity(); mu != 1 {
		t.Errorf("expected default viscosity 1, got %g", mu)
	}
}

func TestViscosityDampsRelativeMotion(t *testing.T) {
	v := newViscosity([]dynamo.Coord{{Y: 1}, {Y: -1}}, topology.NeighborList{{1}, {0}})
	if err := v.Constrain(); err != nil {
		t.Fatal(err)
	}

	vel := v.InVelocity().Value()
	if math.Abs(vel[0].Y) >= 1 || math.Abs(vel[1].Y) >= 1 {
		t.Errorf("relative velocity should shrink, got %v", vel)
	}
	if sum := vel[0].Y + vel[1].Y; math.Abs(sum) > 1e-12 {
		t.Errorf("pair momentum should be conserved, got %g", sum)
	}
}

func TestViscosityIsolatedParticleUnchanged(t *testing.T) {
	v := newViscosity([]dynamo.Coord{{X: 2}}, topology.NeighborList{{}})
	if err := v.Constrain(); err != nil {
		t.Fatal(err)
	}
	if got := v.InVelocity().Value()[0]; got != (dynamo.Coord{X: 2}) {
		t.Errorf("isolated particle changed: %v", got)
	}
}

func TestViscosityZeroCoefficientIsNoop(t *testing.T) {
	v := newViscosity([]dynamo.Coord{{Y: 1}, {Y: -1}}, topology.NeighborList{{1}, {0}})
	v.SetViscosity(0)
	if err := v.Constrain(); err != nil {
		t.Fatal(err)
	}
	if got := v.InVelocity().Value(); got[0].Y != 1 || got[1].Y != -1 {
		t.Errorf("zero viscosity should leave velocity alone, got %v", got)
	}
}

func TestViscosityErrors(t *testing.T) {
	v := newViscosity([]dynamo.Coord{{}, {}}, topology.NeighborList{{1}})
	if err := v.Constrain(); !errors.Is(err, dynamo.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}

	v = newViscosity([]dynamo.Coord{{}}, topology.NeighborList{{}})
	v.SetViscosity(-1)
	if err := v.Constrain(); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
