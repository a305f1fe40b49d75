package constraint

import (
	"math"

	"github.com/san-kum/viscosim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// spiky returns the spiky kernel value at distance r for support h.
func spiky(r, h float64) float64 {
	if r >= h {
		return 0
	}
	d := h - r
	return 15.0 / (math.Pi * math.Pow(h, 6)) * d * d * d
}

// spikyGrad returns the gradient of the spiky kernel with respect to xi for
// the offset x = xi - xj.
func spikyGrad(x dynamo.Coord, h float64) dynamo.Coord {
	r := r3.Norm(x)
	if r >= h || r < 1e-12 {
		return dynamo.Coord{}
	}
	d := h - r
	coef := -45.0 / (math.Pi * math.Pow(h, 6)) * d * d / r
	return r3.Scale(coef, x)
}

// linearWeight falls from 1 at r=0 to 0 at r=h.
func linearWeight(r, h float64) float64 {
	if r >= h {
		return 0
	}
	return 1 - r/h
}
