package metrics

import (
	"github.com/san-kum/viscosim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

// KineticEnergy reports 0.5 m Σ|v|² of the last observed frame.
type KineticEnergy struct {
	name    string
	mass    float64
	current float64
	peak    float64
}

func NewKineticEnergy(particleMass float64) *KineticEnergy {
	return &KineticEnergy{
		name: "kinetic_energy",
		mass: particleMass,
	}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(f *sim.Frame) {
	sum := 0.0
	for _, v := range f.Velocities {
		sum += r3.Norm2(v)
	}
	e.current = 0.5 * e.mass * sum
	if e.current > e.peak {
		e.peak = e.current
	}
}

func (e *KineticEnergy) Value() float64 { return e.current }

// Peak returns the largest energy seen since the last Reset.
func (e *KineticEnergy) Peak() float64 { return e.peak }

func (e *KineticEnergy) Reset() {
	e.current = 0
	e.peak = 0
}

// MeanSpeed reports the average particle speed of the last observed frame.
type MeanSpeed struct {
	name    string
	current float64
}

func NewMeanSpeed() *MeanSpeed {
	return &MeanSpeed{name: "mean_speed"}
}

func (m *MeanSpeed) Name() string { return m.name }

func (m *MeanSpeed) Observe(f *sim.Frame) {
	if len(f.Velocities) == 0 {
		m.current = 0
		return
	}
	sum := 0.0
	for _, v := range f.Velocities {
		sum += r3.Norm(v)
	}
	m.current = sum / float64(len(f.Velocities))
}

func (m *MeanSpeed) Value() float64 { return m.current }
func (m *MeanSpeed) Reset()         { m.current = 0 }
