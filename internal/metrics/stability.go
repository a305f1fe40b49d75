package metrics

import (
	"github.com/san-kum/viscosim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

// Stability is the fraction of frames in which no particle exceeded the
// speed threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(f *sim.Frame) {
	s.samples++
	limit := s.threshold * s.threshold
	for _, v := range f.Velocities {
		if r3.Norm2(v) > limit {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Containment is the fraction of particles inside the scene bounds in the
// last observed frame.
type Containment struct {
	name    string
	current float64
}

func NewContainment() *Containment {
	return &Containment{name: "containment", current: 1}
}

func (c *Containment) Name() string { return c.name }

func (c *Containment) Observe(f *sim.Frame) {
	if len(f.Positions) == 0 {
		c.current = 1
		return
	}
	inside := 0
	for _, p := range f.Positions {
		if p.X >= f.Lower.X && p.X <= f.Upper.X &&
			p.Y >= f.Lower.Y && p.Y <= f.Upper.Y &&
			p.Z >= f.Lower.Z && p.Z <= f.Upper.Z {
			inside++
		}
	}
	c.current = float64(inside) / float64(len(f.Positions))
}

func (c *Containment) Value() float64 { return c.current }
func (c *Containment) Reset()         { c.current = 1 }
