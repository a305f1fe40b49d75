package topology

import (
	"fmt"
	"math"

	"github.com/san-kum/viscosim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// PointSet is an unconnected cloud of points.
type PointSet struct {
	points []dynamo.Coord
}

func NewPointSet() *PointSet {
	return &PointSet{}
}

// Points returns the backing slice; callers may edit entries in place.
func (p *PointSet) Points() []dynamo.Coord { return p.points }

func (p *PointSet) Len() int { return len(p.points) }

// SetPoints replaces the points with a copy of pts.
func (p *PointSet) SetPoints(pts []dynamo.Coord) {
	p.points = dynamo.CloneCoords(pts)
}

// CopyFrom overwrites the points with pts, resizing if needed.
func (p *PointSet) CopyFrom(pts []dynamo.Coord) {
	if len(p.points) != len(pts) {
		p.points = make([]dynamo.Coord, len(pts))
	}
	copy(p.points, pts)
}

func (p *PointSet) Translate(t dynamo.Coord) {
	dynamo.TranslateCoords(p.points, t)
}

// Scale scales the points uniformly about the origin.
func (p *PointSet) Scale(s float64) {
	dynamo.ScaleCoords(p.points, s)
}

// LoadBox fills the axis-aligned box [lo, hi] with a regular lattice of the
// given spacing, appending to any existing points.
func (p *PointSet) LoadBox(lo, hi dynamo.Coord, spacing float64) error {
	if spacing <= 0 || math.IsNaN(spacing) {
		return fmt.Errorf("%w: lattice spacing %g", dynamo.ErrInvalidParameter, spacing)
	}
	if hi.X < lo.X || hi.Y < lo.Y || hi.Z < lo.Z {
		return fmt.Errorf("%w: empty box %v..%v", dynamo.ErrInvalidParameter, lo, hi)
	}

	// small epsilon keeps the upper face when the extent is a multiple of spacing
	eps := spacing * 1e-6
	for x := lo.X; x <= hi.X+eps; x += spacing {
		for y := lo.Y; y <= hi.Y+eps; y += spacing {
			for z := lo.Z; z <= hi.Z+eps; z += spacing {
				p.points = append(p.points, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return nil
}
