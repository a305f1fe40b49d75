package metrics

import (
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

// MeanNeighbors reports the average neighborhood size of the last frame.
type MeanNeighbors struct {
	name    string
	current float64
}

func NewMeanNeighbors() *MeanNeighbors {
	return &MeanNeighbors{name: "mean_neighbors"}
}

func (m *MeanNeighbors) Name() string         { return m.name }
func (m *MeanNeighbors) Observe(f *sim.Frame) { m.current = f.Neighborhood.Mean() }
func (m *MeanNeighbors) Value() float64       { return m.current }
func (m *MeanNeighbors) Reset()               { m.current = 0 }

// Extent reports the diagonal of the particle bounding box.
type Extent struct {
	name    string
	current float64
}

func NewExtent() *Extent {
	return &Extent{name: "extent"}
}

func (e *Extent) Name() string { return e.name }

func (e *Extent) Observe(f *sim.Frame) {
	if len(f.Positions) == 0 {
		e.current = 0
		return
	}
	lo, hi := dynamo.Bounds(f.Positions)
	e.current = r3.Norm(r3.Sub(hi, lo))
}

func (e *Extent) Value() float64 { return e.current }
func (e *Extent) Reset()         { e.current = 0 }

// YieldRatio reports the fraction of particles that yielded plastically in
// the last step of the frame.
type YieldRatio struct {
	name    string
	current float64
}

func NewYieldRatio() *YieldRatio {
	return &YieldRatio{name: "yield_ratio"}
}

func (y *YieldRatio) Name() string { return y.name }

func (y *YieldRatio) Observe(f *sim.Frame) {
	if len(f.Positions) == 0 {
		y.current = 0
		return
	}
	y.current = float64(f.Yielded) / float64(len(f.Positions))
}

func (y *YieldRatio) Value() float64 { return y.current }
func (y *YieldRatio) Reset()         { y.current = 0 }

// Diagnostics returns the standard per-frame metric set.
func Diagnostics(particleMass, speedLimit float64) []sim.Metric {
	return []sim.Metric{
		NewKineticEnergy(particleMass),
		NewMeanSpeed(),
		NewMeanNeighbors(),
		NewExtent(),
		NewYieldRatio(),
		NewContainment(),
		NewStability(speedLimit),
	}
}
