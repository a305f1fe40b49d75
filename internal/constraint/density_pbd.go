package constraint

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// DensityPBD projects particle positions toward a rest density using the
// position-based fluids formulation.
type DensityPBD struct {
	module.Base

	RestDensity float64
	Iterations  int
	// Relaxation regularizes the lambda denominator.
	Relaxation float64

	position        *module.CoordField
	velocity        *module.CoordField
	neighborhood    *module.NeighborField
	smoothingLength *module.ScalarField
	timeStep        *module.ScalarField

	mass       float64
	calibrated bool
}

func NewDensityPBD(name string) *DensityPBD {
	d := &DensityPBD{
		Base:        module.NewBase(name, module.CategoryConstraint),
		RestDensity: 1000,
		Iterations:  3,
		Relaxation:  1e-6,
	}
	d.position = field.New[[]dynamo.Coord](d, "position", nil)
	d.velocity = field.New[[]dynamo.Coord](d, "velocity", nil)
	d.neighborhood = field.New[topology.NeighborList](d, "neighborhood", nil)
	d.smoothingLength = field.New[float64](d, "smoothing_length", 0)
	d.timeStep = field.New[float64](d, "time_step", 0)
	return d
}

func (d *DensityPBD) InPosition() *module.CoordField         { return d.position }
func (d *DensityPBD) InVelocity() *module.CoordField         { return d.velocity }
func (d *DensityPBD) InNeighborhood() *module.NeighborField  { return d.neighborhood }
func (d *DensityPBD) InSmoothingLength() *module.ScalarField { return d.smoothingLength }
func (d *DensityPBD) InTimeStep() *module.ScalarField        { return d.timeStep }

// Mass returns the calibrated particle mass, or 0 before calibration.
func (d *DensityPBD) Mass() float64 { return d.mass }

// Initialize calibrates the particle mass from the current configuration.
func (d *DensityPBD) Initialize() error { return d.Calibrate() }

// Calibrate picks the particle mass so that the densest particle of the
// current configuration sits exactly at RestDensity.
func (d *DensityPBD) Calibrate() error {
	pos, nbrs, h, err := d.inputs()
	if err != nil {
		return err
	}
	if d.RestDensity <= 0 {
		return fmt.Errorf("%w: rest density %g", dynamo.ErrInvalidParameter, d.RestDensity)
	}
	densest := 0.0
	for i := range pos {
		if rho := d.kernelSum(pos, nbrs, i, h); rho > densest {
			densest = rho
		}
	}
	if densest == 0 {
		densest = spiky(0, h)
	}
	d.mass = d.RestDensity / densest
	d.calibrated = true
	return nil
}

// Constrain runs the lambda iterations and writes both the corrected
// positions and the implied velocity change.
func (d *DensityPBD) Constrain() error {
	if !d.calibrated {
		if err := d.Calibrate(); err != nil {
			return err
		}
	}
	pos, nbrs, h, err := d.inputs()
	if err != nil {
		return err
	}
	vel := d.velocity.Value()
	if len(vel) != len(pos) {
		return fmt.Errorf("%w: position=%d velocity=%d", dynamo.ErrLengthMismatch, len(pos), len(vel))
	}
	dt := d.timeStep.Value()
	if err := dynamo.CheckTimeStep(dt); err != nil {
		return err
	}

	n := len(pos)
	start := dynamo.CloneCoords(pos)
	lambda := make([]float64, n)
	delta := make([]dynamo.Coord, n)
	scale := d.mass / d.RestDensity

	for it := 0; it < d.Iterations; it++ {
		for i := 0; i < n; i++ {
			c := d.mass*d.kernelSum(pos, nbrs, i, h)/d.RestDensity - 1
			if c <= 0 {
				lambda[i] = 0
				continue
			}
			var gradI dynamo.Coord
			sum := 0.0
			for _, j := range nbrs.Of(i) {
				g := r3.Scale(scale, spikyGrad(r3.Sub(pos[i], pos[j]), h))
				gradI = r3.Add(gradI, g)
				sum += r3.Norm2(g)
			}
			sum += r3.Norm2(gradI)
			lambda[i] = -c / (sum + d.Relaxation)
		}
		for i := 0; i < n; i++ {
			var dx dynamo.Coord
			for _, j := range nbrs.Of(i) {
				g := spikyGrad(r3.Sub(pos[i], pos[j]), h)
				dx = r3.Add(dx, r3.Scale(lambda[i]+lambda[j], g))
			}
			delta[i] = r3.Scale(scale, dx)
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

func (d *DensityPBD) kernelSum(pos []dynamo.Coord, nbrs topology.NeighborList, i int, h float64) float64 {
	sum := spiky(0, h)
	for _, j := range nbrs.Of(i) {
		sum += spiky(r3.Norm(r3.Sub(pos[i], pos[j])), h)
	}
	return sum
}

func (d *DensityPBD) inputs() ([]dynamo.Coord, topology.NeighborList, float64, error) {
	pos, nbrs, h := d.position.Value(), d.neighborhood.Value(), d.smoothingLength.Value()
	if !(h > 0) {
		return nil, nil, 0, fmt.Errorf("%w: smoothing length %g", dynamo.ErrInvalidParameter, h)
	}
	if nbrs.Len() != len(pos) {
		return nil, nil, 0, fmt.Errorf("%w: position=%d neighborhood=%d", dynamo.ErrLengthMismatch, len(pos), nbrs.Len())
	}
	return pos, nbrs, h, nil
}
