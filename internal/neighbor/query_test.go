package neighbor

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"gonum.org/v1/gonum/spatial/r3"
)

type owner string

func (o owner) Name() string { return string(o) }

func connect(t *testing.T, q *Query, pos []dynamo.Coord, h float64) (*field.Field[[]dynamo.Coord], *field.Field[float64]) {
	t.Helper()
	o := owner("body")
	p := field.New(o, "position", pos)
	r := field.New(o, "horizon", h)
	if err := field.Connect(p, q.InPosition()); err != nil {
		t.Fatal(err)
	}
	if err := field.Connect(r, q.InRadius()); err != nil {
		t.Fatal(err)
	}
	return p, r
}

func bruteForce(pos []dynamo.Coord, h float64) [][]int {
	out := make([][]int, len(pos))
	for i := range pos {
		out[i] = []int{}
		for j := range pos {
			if i != j && r3.Norm(r3.Sub(pos[i], pos[j])) <= h {
				out[i] = append(out[i], j)
			}
		}
		sort.Ints(out[i])
	}
	return out
}

func TestComputeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pos := make([]dynamo.Coord, 600)
	for i := range pos {
		pos[i] = dynamo.Coord{X: rng.Float64() * 0.1, Y: rng.Float64() * 0.1, Z: rng.Float64()*0.1 - 0.05}
	}
	h := 0.0125

	q := NewQuery("neighborhood")
	connect(t, q, pos, h)
	if err := q.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := q.Compute(); err != nil {
		t.Fatal(err)
	}

	got := q.OutNeighborhood().Value()
	want := bruteForce(pos, h)
	if got.Len() != len(want) {
		t.Fatalf("expected %d lists, got %d", len(want), got.Len())
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("particle %d: expected %v, got %v", i, want[i], got[i])
		}
		for k := range want[i] {
			if got[i][k] != want[i][k] {
				t.Fatalf("particle %d: expected %v, got %v", i, want[i], got[i])
			}
		}
	}
}

func TestComputePublishesFreshList(t *testing.T) {
	pos := []dynamo.Coord{{}, {X: 0.005}}
	q := NewQuery("neighborhood")
	_, horizon := connect(t, q, pos, 0.0085)

	if err := q.Compute(); err != nil {
		t.Fatal(err)
	}
	first := q.OutNeighborhood().Value()
	if !first.Contains(0, 1) {
		t.Fatal("expected particles to be neighbors")
	}

	horizon.Set(0.001)
	if err := q.Compute(); err != nil {
		t.Fatal(err)
	}
	second := q.OutNeighborhood().Value()
	if second.Contains(0, 1) {
		t.Error("shrunken radius should separate the particles")
	}
	if !first.Contains(0, 1) {
		t.Error("earlier list must not be mutated by a later compute")
	}
	if q.Computes() != 2 {
		t.Errorf("expected 2 computes, got %d", q.Computes())
	}
}

func TestMaxNeighborsKeepsNearest(t *testing.T) {
	pos := []dynamo.Coord{{}, {X: 0.003}, {X: 0.001}, {X: 0.002}}
	q := NewQuery("neighborhood")
	q.MaxNeighbors = 2
	connect(t, q, pos, 0.01)

	if err := q.Compute(); err != nil {
		t.Fatal(err)
	}
	got := q.OutNeighborhood().Value().Of(0)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected [2 3], got %v", got)
	}
}

func TestInitializeRejectsBadRadius(t *testing.T) {
	q := NewQuery("neighborhood")
	connect(t, q, nil, 0)
	if err := q.Initialize(); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestEmptyCloud(t *testing.T) {
	q := NewQuery("neighborhood")
	connect(t, q, []dynamo.Coord{}, 0.01)
	if err := q.Compute(); err != nil {
		t.Fatal(err)
	}
	if q.OutNeighborhood().Value().Len() != 0 {
		t.Error("expected empty neighborhood")
	}
}

func TestGridDropsVacatedCells(t *testing.T) {
	pos := []dynamo.Coord{{}, {X: 0.005}, {Y: 0.02}}
	q := NewQuery("neighborhood")
	connect(t, q, pos, 0.01)

	for step := 0; step < 50; step++ {
		dynamo.TranslateCoords(pos, dynamo.Coord{X: 0.03, Z: -0.02})
		if err := q.Compute(); err != nil {
			t.Fatal(err)
		}
		if len(q.cells) > len(pos) {
			t.Fatalf("step %d: grid holds %d cells for %d particles", step, len(q.cells), len(pos))
		}
	}
	if !q.OutNeighborhood().Value().Contains(0, 1) {
		t.Error("translated particles should stay neighbors")
	}
}
