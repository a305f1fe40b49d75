package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/viscosim/internal/dynamo"
)

func TestLoadBox(t *testing.T) {
	ps := NewPointSet()
	err := ps.LoadBox(dynamo.Coord{}, dynamo.Coord{X: 0.02, Y: 0.01, Z: 0}, 0.005)
	if err != nil {
		t.Fatalf("load box failed: %v", err)
	}
	// 5 x 3 x 1 lattice
	if ps.Len() != 15 {
		t.Errorf("expected 15 points, got %d", ps.Len())
	}
}

func TestLoadBoxRejectsBadInput(t *testing.T) {
	ps := NewPointSet()
	if err := ps.LoadBox(dynamo.Coord{}, dynamo.Coord{X: 1, Y: 1, Z: 1}, 0); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for zero spacing, got %v", err)
	}
	if err := ps.LoadBox(dynamo.Coord{X: 1}, dynamo.Coord{}, 0.1); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for inverted box, got %v", err)
	}
}

func TestLoadOBJ(t *testing.T) {
	obj := `# quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
f 1//1 2//1 3//1 4//1
`
	path := filepath.Join(t.TempDir(), "quad.obj")
	if err := os.WriteFile(path, []byte(obj), 0644); err != nil {
		t.Fatal(err)
	}

	mesh := NewTriangleSet()
	if err := mesh.LoadOBJ(path); err != nil {
		t.Fatalf("load obj failed: %v", err)
	}
	if mesh.Len() != 4 {
		t.Errorf("expected 4 vertices, got %d", mesh.Len())
	}
	if len(mesh.Triangles()) != 2 {
		t.Errorf("expected 2 triangles from fan, got %d", len(mesh.Triangles()))
	}
}

func TestLoadOBJBadIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.obj")
	if err := os.WriteFile(path, []byte("v 0 0 0\nf 1 2 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewTriangleSet().LoadOBJ(path); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestNeighborList(t *testing.T) {
	nl := NeighborList{{1, 2}, {0}, {0}}
	if !nl.Contains(0, 2) || nl.Contains(1, 2) {
		t.Error("contains returned wrong answer")
	}
	if nl.Of(5) != nil {
		t.Error("out of range should be nil")
	}
	if got := nl.Mean(); got < 1.33 || got > 1.34 {
		t.Errorf("expected mean 4/3, got %f", got)
	}
}

func mappedPair(t *testing.T) (*PointSet, *TriangleSet, *PointSetToPointSet) {
	t.Helper()
	src := NewPointSet()
	if err := src.LoadBox(dynamo.Coord{}, dynamo.Coord{X: 0.1, Y: 0.1, Z: 0.1}, 0.05); err != nil {
		t.Fatal(err)
	}
	mesh := NewTriangleSet()
	mesh.SetPoints([]dynamo.Coord{{X: 0.02, Y: 0.02, Z: 0.02}, {X: 0.1, Y: 0.1, Z: 0.1}, {X: 0.07, Y: 0.01, Z: 0.04}})
	if err := mesh.SetTriangles([]Triangle{{0, 1, 2}}); err != nil {
		t.Fatal(err)
	}
	m := NewPointSetToPointSet(src, &mesh.PointSet)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	return src, mesh, m
}

func TestMappingFollowsRigidMotion(t *testing.T) {
	src, mesh, m := mappedPair(t)
	before := dynamo.CloneCoords(mesh.Points())
	before0 := dynamo.CloneCoords(src.Points())

	shift := dynamo.Coord{X: 0.3, Y: -0.1, Z: 0.05}
	src.Translate(shift)
	if err := m.Apply(); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	for i, v := range mesh.Points() {
		want := dynamo.Coord{X: before[i].X + shift.X, Y: before[i].Y + shift.Y, Z: before[i].Z + shift.Z}
		if dynamo.MaxDelta([]dynamo.Coord{v}, []dynamo.Coord{want}) > 1e-12 {
			t.Errorf("vertex %d: expected %v, got %v", i, want, v)
		}
	}
	if dynamo.MaxDelta(before0, src.Points()) < 0.1 {
		t.Error("source moved unexpectedly little; translate not applied")
	}
}

func TestMappingApplyIdempotent(t *testing.T) {
	src, mesh, m := mappedPair(t)
	src.Points()[3].X += 0.01

	if err := m.Apply(); err != nil {
		t.Fatal(err)
	}
	first := dynamo.CloneCoords(mesh.Points())
	srcCopy := dynamo.CloneCoords(src.Points())
	if err := m.Apply(); err != nil {
		t.Fatal(err)
	}

	if d := dynamo.MaxDelta(first, mesh.Points()); d != 0 {
		t.Errorf("second apply changed vertices by %g", d)
	}
	if d := dynamo.MaxDelta(srcCopy, src.Points()); d != 0 {
		t.Errorf("apply mutated the source by %g", d)
	}
}

func TestMappingLengthMismatch(t *testing.T) {
	src, _, m := mappedPair(t)
	src.SetPoints(src.Points()[:2])
	if err := m.Apply(); !errors.Is(err, dynamo.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}
