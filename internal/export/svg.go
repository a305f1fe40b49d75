// Package export renders particle snapshots and diagnostic series as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/scene"
	"github.com/san-kum/viscosim/internal/topology"
	"github.com/san-kum/viscosim/internal/viz"
)

const background = "#0a0a0a"

// Plane selects the two world axes a snapshot is projected onto.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneZY
)

func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(s) {
	case "", "xy":
		return PlaneXY, nil
	case "xz":
		return PlaneXZ, nil
	case "zy":
		return PlaneZY, nil
	}
	return 0, fmt.Errorf("%w: plane %q", dynamo.ErrInvalidParameter, s)
}

func (p Plane) project(c dynamo.Coord) (float64, float64) {
	switch p {
	case PlaneXZ:
		return c.X, c.Z
	case PlaneZY:
		return c.Z, c.Y
	default:
		return c.X, c.Y
	}
}

// Snapshot describes one particle frame to draw.
type Snapshot struct {
	Positions []dynamo.Coord
	// Mesh is drawn as triangle outlines when non-nil.
	Mesh   *topology.TriangleSet
	Color  scene.Color
	Plane  Plane
	Width  int
	Height int
}

// viewport maps world coordinates into an SVG box with 10% padding and a
// uniform scale on both axes.
type viewport struct {
	minX, minY, scale float64
	w, h              float64
}

func fit(xs, ys []float64, w, h int) viewport {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	scale := math.Min(float64(w)/(rangeX*1.2), float64(h)/(rangeY*1.2))
	return viewport{minX: minX, minY: minY, scale: scale, w: float64(w), h: float64(h)}
}

func (v viewport) at(x, y float64) (float64, float64) {
	return (x - v.minX) * v.scale, v.h - (y-v.minY)*v.scale
}

func header(sb *strings.Builder, w, h int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, w, h, w, h, background)
}

// ParticlesToSVG draws particles as dots, with the optional surface mesh
// outlined in the same colour.
func ParticlesToSVG(s Snapshot) (string, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return "", fmt.Errorf("%w: image size %dx%d", dynamo.ErrInvalidParameter, s.Width, s.Height)
	}
	all := s.Positions
	if s.Mesh != nil {
		all = append(dynamo.CloneCoords(all), s.Mesh.Points()...)
	}
	xs, ys := make([]float64, len(all)), make([]float64, len(all))
	for i, p := range all {
		xs[i], ys[i] = s.Plane.project(p)
	}
	vp := fit(xs, ys, s.Width, s.Height)
	color := s.Color.Hex()

	var sb strings.Builder
	header(&sb, s.Width, s.Height)

	if s.Mesh != nil {
		fmt.Fprintf(&sb, "<g fill=\"none\" stroke=\"%s\" stroke-opacity=\"0.5\" stroke-width=\"0.75\">\n", color)
		verts := s.Mesh.Points()
		for _, t := range s.Mesh.Triangles() {
			sb.WriteString(`<polygon points="`)
			for k, idx := range t {
				x, y := s.Plane.project(verts[idx])
				px, py := vp.at(x, y)
				if k > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprintf(&sb, "%.1f,%.1f", px, py)
			}
			sb.WriteString("\"/>\n")
		}
		sb.WriteString("</g>\n")
	}

	radius := math.Max(1, math.Min(float64(s.Width), float64(s.Height))/200)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", color)
	for i := range s.Positions {
		px, py := vp.at(xs[i], ys[i])
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", px, py, radius)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String(), nil
}

// CanvasToSVG converts a braille canvas to SVG, one circle per lit dot.
func CanvasToSVG(canvas *viz.Canvas, scale float64, color scene.Color) string {
	if canvas == nil {
		return ""
	}
	w, h := int(float64(canvas.Width)*scale*2), int(float64(canvas.Height)*scale*4)

	var sb strings.Builder
	header(&sb, w, h)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", color.Hex())

	canvas.EachDot(func(x, y int) {
		cx, cy := (float64(x)+0.5)*scale, (float64(y)+0.5)*scale
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, scale*0.4)
	})
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// SeriesToSVG plots values against times as a polyline.
func SeriesToSVG(times, values []float64, width, height int, stroke string) (string, error) {
	if len(times) != len(values) {
		return "", fmt.Errorf("%w: %d times for %d values", dynamo.ErrInvalidParameter, len(times), len(values))
	}
	if len(values) < 2 {
		return "", fmt.Errorf("%w: need at least two samples", dynamo.ErrInvalidParameter)
	}

	// series use independent axis scales
	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY, maxY = math.Min(minY, v), math.Max(maxY, v)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, stroke)
	for i := range values {
		x := 0.05*float64(width) + (times[i]-minX)/rangeX*0.9*float64(width)
		y := float64(height) - (0.05*float64(height) + (values[i]-minY)/rangeY*0.9*float64(height))
		if i == 0 {
			fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n</svg>")
	return sb.String(), nil
}
