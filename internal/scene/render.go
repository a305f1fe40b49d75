package scene

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/topology"
)

// Color is an RGB triple in [0, 1].
type Color struct {
	R, G, B float64
}

// DefaultSurfaceColor is the display color of a body's surface mesh.
var DefaultSurfaceColor = Color{R: 0.2, G: 0.6, B: 1.0}

// Hex formats c as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) int {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int(v*255 + 0.5)
}

// SurfaceMeshRender is a presentation-only module that draws a triangle mesh
// in a fixed color.
type SurfaceMeshRender struct {
	module.Base
	mesh  *topology.TriangleSet
	color Color
}

func NewSurfaceMeshRender(name string, mesh *topology.TriangleSet) *SurfaceMeshRender {
	return &SurfaceMeshRender{
		Base:  module.NewBase(name, module.CategoryVisual),
		mesh:  mesh,
		color: DefaultSurfaceColor,
	}
}

func (r *SurfaceMeshRender) Mesh() *topology.TriangleSet { return r.mesh }
func (r *SurfaceMeshRender) Color() Color                { return r.color }
func (r *SurfaceMeshRender) SetColor(c Color)            { r.color = c }
