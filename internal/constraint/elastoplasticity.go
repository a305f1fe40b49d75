package constraint

import (
	"fmt"
	"math"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

type bond struct {
	j    int
	rest dynamo.Coord
}

// Elastoplasticity is a bond-based elastoplastic solver. Each particle keeps
// the rest offsets to the neighbors it had when the rest shape was last
// reset; elastic solving pulls bonds back toward those offsets and plastic
// yielding rewrites them.
type Elastoplasticity struct {
	module.Base

	// Iterations of the Jacobi elastic solve.
	Iterations int
	// Stiffness in (0, 1] scales each elastic correction.
	Stiffness float64

	frictionAngle float64
	cohesion      float64

	position     *module.CoordField
	velocity     *module.CoordField
	neighborhood *module.NeighborField
	timeStep     *module.ScalarField

	bonds   [][]bond
	yielded int
}

func NewElastoplasticity(name string) *Elastoplasticity {
	e := &Elastoplasticity{
		Base:       module.NewBase(name, module.CategoryConstraint),
		Iterations: 3,
		Stiffness:  0.5,
	}
	e.position = field.New[[]dynamo.Coord](e, "position", nil)
	e.velocity = field.New[[]dynamo.Coord](e, "velocity", nil)
	e.neighborhood = field.New[topology.NeighborList](e, "neighborhood", nil)
	e.timeStep = field.New[float64](e, "time_step", 0)
	return e
}

func (e *Elastoplasticity) InPosition() *module.CoordField        { return e.position }
func (e *Elastoplasticity) InVelocity() *module.CoordField        { return e.velocity }
func (e *Elastoplasticity) InNeighborhood() *module.NeighborField { return e.neighborhood }
func (e *Elastoplasticity) InTimeStep() *module.ScalarField       { return e.timeStep }

func (e *Elastoplasticity) SetFrictionAngle(radians float64) { e.frictionAngle = radians }
func (e *Elastoplasticity) FrictionAngle() float64           { return e.frictionAngle }
func (e *Elastoplasticity) SetCohesion(c float64)            { e.cohesion = c }
func (e *Elastoplasticity) Cohesion() float64                { return e.cohesion }

// Yielded returns how many particles yielded in the last ApplyPlasticity.
func (e *Elastoplasticity) Yielded() int { return e.yielded }

// Initialize discards any previous rest shape and bonds every particle to
// its current neighbors in their current configuration.
func (e *Elastoplasticity) Initialize() error {
	e.bonds = nil
	e.yielded = 0
	_, _, _, err := e.state()
	return err
}

// SolveElasticity moves particles toward their rest offsets and converts the
// correction into velocity. The rest shape is not modified.
func (e *Elastoplasticity) SolveElasticity() error {
	pos, vel, nbrs, err := e.state()
	if err != nil {
		return err
	}
	dt := e.timeStep.Value()
	if err := dynamo.CheckTimeStep(dt); err != nil {
		return err
	}
	if e.Stiffness <= 0 || e.Stiffness > 1 {
		return fmt.Errorf("%w: stiffness %g", dynamo.ErrInvalidParameter, e.Stiffness)
	}

	n := len(pos)
	start := dynamo.CloneCoords(pos)
	delta := make([]dynamo.Coord, n)

	for it := 0; it < e.Iterations; it++ {
		for i := 0; i < n; i++ {
			delta[i] = dynamo.Coord{}
			active := 0
			for _, b := range e.bonds[i] {
				if !nbrs.Contains(i, b.j) {
					continue
				}
				diff := r3.Sub(r3.Sub(pos[b.j], pos[i]), b.rest)
				delta[i] = r3.Add(delta[i], diff)
				active++
			}
			if active > 0 {
				delta[i] = r3.Scale(0.5*e.Stiffness/float64(active), delta[i])
			}
		}
		for i := 0; i < n; i++ {
			pos[i] = r3.Add(pos[i], delta[i])
		}
	}

	inv := 1 / dt
	for i := 0; i < n; i++ {
		vel[i] = r3.Add(vel[i], r3.Scale(inv, r3.Sub(pos[i], start[i])))
	}
	return nil
}

// ApplyPlasticity commits the part of each particle's deviatoric strain that
// exceeds a Drucker-Prager limit into its rest offsets. Zero friction and
// zero cohesion describe a medium that yields under any strain.
func (e *Elastoplasticity) ApplyPlasticity() error {
	if e.frictionAngle < 0 || e.frictionAngle >= math.Pi/2 {
		return fmt.Errorf("%w: friction angle %g", dynamo.ErrInvalidParameter, e.frictionAngle)
	}
	if e.cohesion < 0 {
		return fmt.Errorf("%w: cohesion %g", dynamo.ErrInvalidParameter, e.cohesion)
	}
	pos, _, nbrs, err := e.state()
	if err != nil {
		return err
	}

	tanPhi := math.Tan(e.frictionAngle)
	e.yielded = 0
	for i := range pos {
		strain, compression, active := 0.0, 0.0, 0
		for _, b := range e.bonds[i] {
			if !nbrs.Contains(i, b.j) {
				continue
			}
			restLen := r3.Norm(b.rest)
			if restLen < 1e-12 {
				continue
			}
			cur := r3.Sub(pos[b.j], pos[i])
			strain += r3.Norm(r3.Sub(cur, b.rest)) / restLen
			compression += (restLen - r3.Norm(cur)) / restLen
			active++
		}
		if active == 0 {
			continue
		}
		strain /= float64(active)
		compression /= float64(active)

		limit := e.cohesion + tanPhi*math.Max(compression, 0)
		if strain <= limit {
			continue
		}
		frac := 1 - limit/strain
		for k, b := range e.bonds[i] {
			if !nbrs.Contains(i, b.j) {
				continue
			}
			cur := r3.Sub(pos[b.j], pos[i])
			e.bonds[i][k].rest = r3.Add(b.rest, r3.Scale(frac, r3.Sub(cur, b.rest)))
		}
		e.yielded++
	}
	return nil
}

// ResetRestShape rebuilds the bonds from the current neighborhood. Bonds that
// survive keep their (possibly plastically updated) rest offset; new bonds
// start unstrained.
func (e *Elastoplasticity) ResetRestShape() error {
	pos, _, nbrs, err := e.state()
	if err != nil {
		return err
	}
	e.rebuild(pos, nbrs)
	return nil
}

// Bonds returns the rest offset of the bond i -> j, if any.
func (e *Elastoplasticity) Bond(i, j int) (dynamo.Coord, bool) {
	if i < 0 || i >= len(e.bonds) {
		return dynamo.Coord{}, false
	}
	for _, b := range e.bonds[i] {
		if b.j == j {
			return b.rest, true
		}
	}
	return dynamo.Coord{}, false
}

func (e *Elastoplasticity) rebuild(pos []dynamo.Coord, nbrs topology.NeighborList) {
	old := e.bonds
	next := make([][]bond, len(pos))
	for i := range pos {
		list := nbrs.Of(i)
		next[i] = make([]bond, 0, len(list))
		for _, j := range list {
			rest := r3.Sub(pos[j], pos[i])
			if i < len(old) {
				for _, b := range old[i] {
					if b.j == j {
						rest = b.rest
						break
					}
				}
			}
			next[i] = append(next[i], bond{j: j, rest: rest})
		}
	}
	e.bonds = next
}

// state returns the wired arrays, building an unstrained rest shape the
// first time it is needed.
func (e *Elastoplasticity) state() ([]dynamo.Coord, []dynamo.Coord, topology.NeighborList, error) {
	pos, vel, nbrs := e.position.Value(), e.velocity.Value(), e.neighborhood.Value()
	if len(vel) != len(pos) {
		return nil, nil, nil, fmt.Errorf("%w: position=%d velocity=%d", dynamo.ErrLengthMismatch, len(pos), len(vel))
	}
	if nbrs.Len() != len(pos) {
		return nil, nil, nil, fmt.Errorf("%w: position=%d neighborhood=%d", dynamo.ErrLengthMismatch, len(pos), nbrs.Len())
	}
	if len(e.bonds) != len(pos) {
		e.bonds = nil
		e.rebuild(pos, nbrs)
	}
	return pos, vel, nbrs, nil
}
