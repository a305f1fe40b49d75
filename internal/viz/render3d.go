package viz

import (
	"math"
	"sort"

	"github.com/san-kum/viscosim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits a target and projects world points onto the canvas.
type Camera struct {
	Target     dynamo.Coord
	Distance   float64
	Extent     float64
	RotX, RotY float64
	Zoom       float64
}

func NewCamera() *Camera {
	return &Camera{Distance: 4, Extent: 1, RotX: -0.3, RotY: 0.5, Zoom: 1}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(20, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.05, c.Zoom/1.2) }

// Fit centres the camera on the box [lo, hi] and scales it to fill the view.
func (c *Camera) Fit(lo, hi dynamo.Coord) {
	c.Target = r3.Scale(0.5, r3.Add(lo, hi))
	c.Extent = math.Max(r3.Norm(r3.Sub(hi, lo))/2, 1e-9)
}

// view maps a world point into camera space, normalized so the fitted box
// spans roughly [-1, 1].
func (c *Camera) view(p dynamo.Coord) dynamo.Coord {
	p = r3.Scale(1/c.Extent, r3.Sub(p, c.Target))
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	return r3.Scale(c.Zoom, p)
}

// Project returns sub-pixel screen coordinates on a sw x sh grid, the depth
// and whether the point lands on screen.
func (c *Camera) Project(p dynamo.Coord, sw, sh int) (int, int, float64, bool) {
	v := c.view(p)
	if v.Z >= c.Distance-0.1 {
		return 0, 0, 0, false
	}
	persp := c.Distance / (c.Distance - v.Z)
	half := float64(min(sw, sh)) / 2.2
	sx := int(v.X*persp*half) + sw/2
	sy := int(-v.Y*persp*half) + sh/2
	return sx, sy, v.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End dynamo.Coord
}

// Wireframe is a set of segments; a zero-length segment is a point.
type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe                 { return &Wireframe{Edges: make([]Edge, 0)} }
func (w *Wireframe) AddEdge(s, e dynamo.Coord) { w.Edges = append(w.Edges, Edge{s, e}) }
func (w *Wireframe) AddPoint(p dynamo.Coord)   { w.Edges = append(w.Edges, Edge{p, p}) }
func (w *Wireframe) Clear()                    { w.Edges = w.Edges[:0] }

// AddPoints adds every coordinate as a point.
func (w *Wireframe) AddPoints(pts []dynamo.Coord) {
	for _, p := range pts {
		w.AddPoint(p)
	}
}

// AddBox adds the twelve edges of the axis-aligned box [lo, hi].
func (w *Wireframe) AddBox(lo, hi dynamo.Coord) {
	v := []dynamo.Coord{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: hi.Y, Z: lo.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z},
	}
	ei := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}
	for _, e := range ei {
		w.AddEdge(v[e[0]], v[e[1]])
	}
}

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
}

// Render3D draws the wireframe back to front.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	sw, sh := c.Width*2, c.Height*4
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, sw, sh)
		x2, y2, d2, v2 := cam.Project(e.End, sw, sh)
		if v1 || v2 {
			proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })
	for _, e := range proj {
		if e.x1 == e.x2 && e.y1 == e.y2 {
			c.Set(e.x1, e.y1)
		} else {
			c.DrawLine(e.x1, e.y1, e.x2, e.y2)
		}
	}
}
