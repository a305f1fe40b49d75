// Package optim sweeps body parameters over a grid and ranks the runs by a
// diagnostic.
package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/experiment"
)

// Trial is one grid point and the metric its run produced.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type Outcome struct {
	Trials []Trial
	Best   *Trial
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64

	// Workers bounds concurrent runs. Zero uses GOMAXPROCS.
	Workers int
	// MaxFrames caps each run. Zero runs to the configured total time.
	MaxFrames int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameters for %d ranges", dynamo.ErrInvalidParameter, len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("%w: empty range for %s", dynamo.ErrInvalidParameter, params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Points enumerates the grid, last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	points := []map[string]float64{{}}
	for d, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(points)*len(g.ranges[d]))
		for _, p := range points {
			for _, v := range g.ranges[d] {
				q := make(map[string]float64, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[name] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

// Search runs one experiment per grid point and returns every trial in grid
// order. Best is the trial with the smallest metric among those that ran
// without error, or nil when none did. Experiments must be independent; each
// build call has to return a fresh scene.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (*Outcome, error) {
	points := g.Points()
	trials := make([]Trial, len(points))

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, p := range points {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, p map[string]float64) {
			defer func() { <-sem; wg.Done() }()
			trials[i] = g.trial(ctx, p, build, metricName)
		}(i, p)
	}
	wg.Wait()

	out := &Outcome{Trials: trials}
	best := math.Inf(1)
	for i := range trials {
		if trials[i].Err == nil && trials[i].Value < best {
			best = trials[i].Value
			out.Best = &trials[i]
		}
	}
	return out, ctx.Err()
}

func (g *GridSearch) trial(
	ctx context.Context,
	params map[string]float64,
	build func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
) Trial {
	t := Trial{Params: params, Value: math.NaN()}
	exp, err := build(params)
	if err != nil {
		t.Err = err
		return t
	}
	result, err := exp.Run(ctx, g.MaxFrames)
	if err != nil {
		t.Err = err
		return t
	}
	v, ok := result.Metrics[metricName]
	if !ok {
		t.Err = fmt.Errorf("%w: metric %s", dynamo.ErrNotFound, metricName)
		return t
	}
	t.Value = v
	return t
}

// Ranked returns the successful trials sorted by ascending metric.
func (o *Outcome) Ranked() []Trial {
	out := make([]Trial, 0, len(o.Trials))
	for _, t := range o.Trials {
		if t.Err == nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
