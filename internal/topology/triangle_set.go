package topology

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/viscosim/internal/dynamo"
)

// Triangle indexes three vertices of a TriangleSet.
type Triangle [3]int

// TriangleSet is a surface mesh.
type TriangleSet struct {
	PointSet
	triangles []Triangle
}

func NewTriangleSet() *TriangleSet {
	return &TriangleSet{}
}

func (t *TriangleSet) Triangles() []Triangle { return t.triangles }

// SetTriangles replaces the connectivity. Indices must address existing vertices.
func (t *TriangleSet) SetTriangles(tris []Triangle) error {
	n := t.Len()
	for i, tri := range tris {
		for _, v := range tri {
			if v < 0 || v >= n {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", dynamo.ErrInvalidParameter, i, v, n)
			}
		}
	}
	t.triangles = append(t.triangles[:0], tris...)
	return nil
}

// LoadOBJ replaces the mesh with the vertices and faces of a Wavefront OBJ
// file. Polygons are fan-triangulated; other records are ignored.
func (t *TriangleSet) LoadOBJ(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var verts []dynamo.Coord
	var tris []Triangle

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return fmt.Errorf("%s:%d: vertex needs 3 coordinates", path, line)
			}
			var c [3]float64
			for i := range c {
				c[i], err = strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return fmt.Errorf("%s:%d: %w", path, line, err)
				}
			}
			verts = append(verts, dynamo.Coord{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return fmt.Errorf("%s:%d: face needs at least 3 vertices", path, line)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				// "v", "v/vt", "v//vn", "v/vt/vn"
				ref, _, _ := strings.Cut(tok, "/")
				k, err := strconv.Atoi(ref)
				if err != nil {
					return fmt.Errorf("%s:%d: %w", path, line, err)
				}
				if k < 0 {
					k = len(verts) + k + 1
				}
				idx = append(idx, k-1)
			}
			for i := 1; i+1 < len(idx); i++ {
				tris = append(tris, Triangle{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	t.SetPoints(verts)
	t.triangles = nil
	if err := t.SetTriangles(tris); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
