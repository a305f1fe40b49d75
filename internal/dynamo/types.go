package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Coord is a point or vector in simulation space.
type Coord = r3.Vec

// CloneCoords returns an independent copy of c.
func CloneCoords(c []Coord) []Coord {
	out := make([]Coord, len(c))
	copy(out, c)
	return out
}

// ValidCoords reports whether every component of c is finite.
func ValidCoords(c []Coord) bool {
	for _, v := range c {
		if !finite(v.X) || !finite(v.Y) || !finite(v.Z) {
			return false
		}
	}
	return true
}

// CheckTimeStep rejects non-positive and non-finite step sizes.
func CheckTimeStep(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidTimeStep, dt)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TranslateCoords shifts every entry of c by t in place.
func TranslateCoords(c []Coord, t Coord) {
	for i := range c {
		c[i] = r3.Add(c[i], t)
	}
}

// ScaleCoords scales every entry of c about the origin in place.
func ScaleCoords(c []Coord, s float64) {
	for i := range c {
		c[i] = r3.Scale(s, c[i])
	}
}

// ZeroCoords resets every entry of c to the zero vector.
func ZeroCoords(c []Coord) {
	for i := range c {
		c[i] = Coord{}
	}
}

// Bounds returns the axis-aligned bounding box of c. Both corners are zero
// for an empty slice.
func Bounds(c []Coord) (lo, hi Coord) {
	if len(c) == 0 {
		return lo, hi
	}
	lo, hi = c[0], c[0]
	for _, v := range c[1:] {
		lo.X, hi.X = math.Min(lo.X, v.X), math.Max(hi.X, v.X)
		lo.Y, hi.Y = math.Min(lo.Y, v.Y), math.Max(hi.Y, v.Y)
		lo.Z, hi.Z = math.Min(lo.Z, v.Z), math.Max(hi.Z, v.Z)
	}
	return lo, hi
}

// MaxDelta returns the largest per-entry distance between a and b.
// Slices of different length yield +Inf.
func MaxDelta(a, b []Coord) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	d := 0.0
	for i := range a {
		d = math.Max(d, r3.Norm(r3.Sub(a[i], b[i])))
	}
	return d
}
