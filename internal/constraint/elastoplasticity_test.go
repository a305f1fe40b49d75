package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/topology"
)

const dt = 0.01

func newPair(t *testing.T) *Elastoplasticity {
	t.Helper()
	e := NewElastoplasticity("elastoplasticity")
	e.InPosition().Set([]dynamo.Coord{{X: 0}, {X: 1}})
	e.InVelocity().Set(make([]dynamo.Coord, 2))
	e.InNeighborhood().Set(topology.NeighborList{{1}, {0}})
	e.InTimeStep().Set(dt)
	if err := e.ResetRestShape(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	return e
}

func TestElasticityAtRestIsStill(t *testing.T) {
	e := newPair(t)
	if err := e.SolveElasticity(); err != nil {
		t.Fatal(err)
	}
	for i, v := range e.InVelocity().Value() {
		if v != (dynamo.Coord{}) {
			t.Errorf("particle %d moved at rest: %v", i, v)
		}
	}
}

func TestElasticityPullsTowardRest(t *testing.T) {
	e := newPair(t)
	e.Iterations = 1
	e.InPosition().Value()[1].X = 1.5

	if err := e.SolveElasticity(); err != nil {
		t.Fatal(err)
	}

	pos := e.InPosition().Value()
	if math.Abs(pos[0].X-0.125) > 1e-12 || math.Abs(pos[1].X-1.375) > 1e-12 {
		t.Errorf("unexpected positions %v", pos)
	}
	vel := e.InVelocity().Value()
	if math.Abs(vel[0].X-0.125/dt) > 1e-9 {
		t.Errorf("expected velocity %g, got %g", 0.125/dt, vel[0].X)
	}
	if rest, _ := e.Bond(0, 1); rest != (dynamo.Coord{X: 1}) {
		t.Errorf("elastic solve changed the rest shape: %v", rest)
	}
}

func TestPlasticityZeroStrengthYieldsFully(t *testing.T) {
	e := newPair(t)
	e.InPosition().Value()[1].X = 1.5

	if err := e.ApplyPlasticity(); err != nil {
		t.Fatal(err)
	}
	rest, ok := e.Bond(0, 1)
	if !ok || math.Abs(rest.X-1.5) > 1e-12 {
		t.Errorf("expected rest 1.5, got %v", rest)
	}
	if e.Yielded() != 2 {
		t.Errorf("expected 2 yielded, got %d", e.Yielded())
	}
}

func TestPlasticityRespectsCohesion(t *testing.T) {
	e := newPair(t)
	e.SetCohesion(1)
	e.InPosition().Value()[1].X = 1.5

	if err := e.ApplyPlasticity(); err != nil {
		t.Fatal(err)
	}
	if rest, _ := e.Bond(0, 1); rest != (dynamo.Coord{X: 1}) {
		t.Errorf("strain below limit should not yield, rest=%v", rest)
	}
	if e.Yielded() != 0 {
		t.Errorf("expected 0 yielded, got %d", e.Yielded())
	}
}

func TestPlasticityPartialYield(t *testing.T) {
	e := newPair(t)
	e.SetCohesion(0.25)
	e.InPosition().Value()[1].X = 1.5

	if err := e.ApplyPlasticity(); err != nil {
		t.Fatal(err)
	}
	// strain 0.5, limit 0.25: half of the excess is committed
	rest, _ := e.Bond(0, 1)
	if math.Abs(rest.X-1.25) > 1e-12 {
		t.Errorf("expected rest 1.25, got %v", rest)
	}
}

func TestPlasticityRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name     string
		friction float64
		cohesion float64
	}{
		{"negative friction", -0.1, 0},
		{"right angle", math.Pi / 2, 0},
		{"negative cohesion", 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newPair(t)
			e.SetFrictionAngle(tt.friction)
			e.SetCohesion(tt.cohesion)
			if err := e.ApplyPlasticity(); !errors.Is(err, dynamo.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestResetRestShapeKeepsSurvivingBonds(t *testing.T) {
	e := NewElastoplasticity("elastoplasticity")
	e.InPosition().Set([]dynamo.Coord{{X: 0}, {X: 1}, {Y: 1}})
	e.InVelocity().Set(make([]dynamo.Coord, 3))
	e.InNeighborhood().Set(topology.NeighborList{{1}, {0}, {}})
	e.InTimeStep().Set(dt)
	if err := e.ResetRestShape(); err != nil {
		t.Fatal(err)
	}

	e.InPosition().Value()[1].X = 2
	e.InNeighborhood().Set(topology.NeighborList{{1, 2}, {0}, {0}})
	if err := e.ResetRestShape(); err != nil {
		t.Fatal(err)
	}

	if rest, _ := e.Bond(0, 1); rest != (dynamo.Coord{X: 1}) {
		t.Errorf("surviving bond lost its rest vector: %v", rest)
	}
	if rest, ok := e.Bond(0, 2); !ok || rest != (dynamo.Coord{Y: 1}) {
		t.Errorf("new bond should take current geometry, got %v (%v)", rest, ok)
	}

	e.InNeighborhood().Set(topology.NeighborList{{}, {}, {}})
	if err := e.ResetRestShape(); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Bond(0, 1); ok {
		t.Error("bond outside the neighborhood should be dropped")
	}
}

func TestElastoplasticityLengthMismatch(t *testing.T) {
	e := NewElastoplasticity("elastoplasticity")
	e.InPosition().Set([]dynamo.Coord{{}, {}})
	e.InVelocity().Set(make([]dynamo.Coord, 1))
	e.InNeighborhood().Set(topology.NeighborList{{}, {}})
	e.InTimeStep().Set(dt)

	if err := e.SolveElasticity(); !errors.Is(err, dynamo.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestElasticityRejectsZeroTimeStep(t *testing.T) {
	e := newPair(t)
	e.InTimeStep().Set(0)
	if err := e.SolveElasticity(); !errors.Is(err, dynamo.ErrInvalidTimeStep) {
		t.Errorf("expected ErrInvalidTimeStep, got %v", err)
	}
}
