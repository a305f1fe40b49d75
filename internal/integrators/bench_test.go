package integrators

import (
	"testing"

	"github.com/san-kum/viscosim/internal/dynamo"
)

func benchStep(b *testing.B, scheme Scheme) {
	const n = 4096
	p := NewParticleIntegrator("integrator")
	p.Scheme = scheme
	p.Gravity = dynamo.Coord{Y: -9.8}
	pos := make([]dynamo.Coord, n)
	vel := make([]dynamo.Coord, n)
	force := make([]dynamo.Coord, n)
	for i := range pos {
		pos[i] = dynamo.Coord{X: float64(i % 16), Y: float64(i / 256), Z: float64((i / 16) % 16)}
	}
	wired(b, p, pos, vel, force, 0.001)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Begin()
		_ = p.Integrate()
		_ = p.End()
	}
}

func BenchmarkSymplecticEuler(b *testing.B) { benchStep(b, SymplecticEuler) }
func BenchmarkExplicitEuler(b *testing.B)   { benchStep(b, ExplicitEuler) }
