package topology

import (
	"fmt"
	"sort"

	"github.com/san-kum/viscosim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mapping pushes the state of one representation into another.
type Mapping interface {
	Initialize() error
	Apply() error
}

const defaultBindings = 4

type binding struct {
	index  int
	weight float64
}

// PointSetToPointSet drives target vertices with the displacement of nearby
// source points. The source is never written.
type PointSetToPointSet struct {
	// SearchRadius limits the source points a vertex may bind to. Zero means
	// unlimited. A vertex with no source inside the radius binds to the
	// nearest one.
	SearchRadius float64

	// MaxBindings caps the source points per vertex.
	MaxBindings int

	from, to    *PointSet
	restFrom    []dynamo.Coord
	restTo      []dynamo.Coord
	bindings    [][]binding
	initialized bool
}

func NewPointSetToPointSet(from, to *PointSet) *PointSetToPointSet {
	return &PointSetToPointSet{
		MaxBindings: defaultBindings,
		from:        from,
		to:          to,
	}
}

func (m *PointSetToPointSet) From() *PointSet { return m.from }
func (m *PointSetToPointSet) To() *PointSet   { return m.to }

// Initialize binds every target vertex to its nearest source points using the
// current configuration of both sets as the rest state.
func (m *PointSetToPointSet) Initialize() error {
	src, dst := m.from.Points(), m.to.Points()
	m.restFrom = dynamo.CloneCoords(src)
	m.restTo = dynamo.CloneCoords(dst)
	m.bindings = make([][]binding, len(dst))
	m.initialized = true

	if len(src) == 0 {
		return nil
	}

	maxBind := m.MaxBindings
	if maxBind <= 0 {
		maxBind = defaultBindings
	}

	type cand struct {
		index int
		dist  float64
	}
	cands := make([]cand, 0, len(src))

	for k, v := range dst {
		cands = cands[:0]
		for j, p := range src {
			cands = append(cands, cand{index: j, dist: r3.Norm(r3.Sub(v, p))})
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })

		n := 0
		for n < len(cands) && n < maxBind {
			if n > 0 && m.SearchRadius > 0 && cands[n].dist > m.SearchRadius {
				break
			}
			n++
		}

		binds := make([]binding, 0, n)
		if cands[0].dist < 1e-12 {
			binds = append(binds, binding{index: cands[0].index, weight: 1})
		} else {
			total := 0.0
			for _, c := range cands[:n] {
				w := 1 / c.dist
				binds = append(binds, binding{index: c.index, weight: w})
				total += w
			}
			for i := range binds {
				binds[i].weight /= total
			}
		}
		m.bindings[k] = binds
	}
	return nil
}

// Apply overwrites every target vertex with its rest position plus the
// weighted displacement of its bound source points.
func (m *PointSetToPointSet) Apply() error {
	if !m.initialized || m.to.Len() != len(m.restTo) {
		if err := m.Initialize(); err != nil {
			return err
		}
	}
	src := m.from.Points()
	if len(src) != len(m.restFrom) {
		return fmt.Errorf("%w: mapping bound %d source points, have %d", dynamo.ErrLengthMismatch, len(m.restFrom), len(src))
	}

	dst := m.to.Points()
	for k, binds := range m.bindings {
		v := m.restTo[k]
		for _, b := range binds {
			v = r3.Add(v, r3.Scale(b.weight, r3.Sub(src[b.index], m.restFrom[b.index])))
		}
		dst[k] = v
	}
	return nil
}
