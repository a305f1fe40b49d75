// Package neighbor builds per-particle neighborhoods with a uniform hash grid.
package neighbor

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/field"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// minChunk keeps small clouds on one goroutine.
const minChunk = 256

type cellKey [3]int64

// Query is a neighbor-search module. Neighbors are the particles within
// radius (inclusive) of each particle, excluding itself, sorted by index.
type Query struct {
	module.Base

	// MaxNeighbors caps each list to the nearest entries. Zero means no cap.
	MaxNeighbors int

	position     *module.CoordField
	radius       *module.ScalarField
	neighborhood *module.NeighborField

	cells       map[cellKey][]int
	initialized bool
	computes    int
}

func NewQuery(name string) *Query {
	q := &Query{Base: module.NewBase(name, module.CategoryCompute)}
	q.position = field.New[[]dynamo.Coord](q, "position", nil)
	q.radius = field.New[float64](q, "radius", 0)
	q.neighborhood = field.New[topology.NeighborList](q, "neighborhood", nil)
	return q
}

func (q *Query) InPosition() *module.CoordField         { return q.position }
func (q *Query) InRadius() *module.ScalarField          { return q.radius }
func (q *Query) OutNeighborhood() *module.NeighborField { return q.neighborhood }

// Computes returns how many times Compute has run.
func (q *Query) Computes() int { return q.computes }

// Initialize validates the radius and prepares the grid.
func (q *Query) Initialize() error {
	if err := q.checkRadius(); err != nil {
		return err
	}
	q.cells = make(map[cellKey][]int)
	q.initialized = true
	return nil
}

// Compute rebuilds the neighborhood from the current positions and publishes
// it on the output field.
func (q *Query) Compute() error {
	if !q.initialized {
		if err := q.Initialize(); err != nil {
			return err
		}
	}
	if err := q.checkRadius(); err != nil {
		return err
	}

	pos := q.position.Value()
	h := q.radius.Value()
	q.rebuildGrid(pos, h)

	out := make(topology.NeighborList, len(pos))
	dynamo.ParallelFor(len(pos), minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = q.search(pos, i, h)
		}
	})

	q.computes++
	q.neighborhood.Set(out)
	return nil
}

func (q *Query) checkRadius() error {
	h := q.radius.Value()
	if !(h > 0) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: neighbor radius %g", dynamo.ErrInvalidParameter, h)
	}
	return nil
}

func keyOf(p dynamo.Coord, h float64) cellKey {
	return cellKey{
		int64(math.Floor(p.X / h)),
		int64(math.Floor(p.Y / h)),
		int64(math.Floor(p.Z / h)),
	}
}

// rebuildGrid buckets pos into cells of size h. Cell slices are reused
// between rebuilds; cells left empty are dropped so the grid only holds
// occupied cells.
func (q *Query) rebuildGrid(pos []dynamo.Coord, h float64) {
	for k, v := range q.cells {
		q.cells[k] = v[:0]
	}
	for i, p := range pos {
		k := keyOf(p, h)
		q.cells[k] = append(q.cells[k], i)
	}
	for k, v := range q.cells {
		if len(v) == 0 {
			delete(q.cells, k)
		}
	}
}

type candidate struct {
	index  int
	distSq float64
}

func (q *Query) search(pos []dynamo.Coord, i int, h float64) []int {
	center := keyOf(pos[i], h)
	hSq := h * h

	var found []candidate
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				k := cellKey{center[0] + dx, center[1] + dy, center[2] + dz}
				for _, j := range q.cells[k] {
					if j == i {
						continue
					}
					d := r3.Norm2(r3.Sub(pos[j], pos[i]))
					if d <= hSq {
						found = append(found, candidate{index: j, distSq: d})
					}
				}
			}
		}
	}

	if q.MaxNeighbors > 0 && len(found) > q.MaxNeighbors {
		sort.Slice(found, func(a, b int) bool { return found[a].distSq < found[b].distSq })
		found = found[:q.MaxNeighbors]
	}

	list := make([]int, len(found))
	for k, c := range found {
		list[k] = c.index
	}
	sort.Ints(list)
	return list
}
