// Package sim runs a scene graph frame by frame, sampling diagnostics and
// notifying observers at every frame boundary.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/scene"
)

type Simulator struct {
	graph     *scene.Graph
	source    Source
	metrics   []Metric
	observers []Observer
}

func New(graph *scene.Graph, source Source) *Simulator {
	return &Simulator{
		graph:     graph,
		source:    source,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) Graph() *scene.Graph    { return s.graph }

// Run initializes the graph if needed and takes frames until the graph's
// total time is reached, MaxFrames frames were taken, or ctx is done. The
// partial result is returned alongside any error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.graph.Initialize(); err != nil {
		return nil, err
	}

	result := &Result{
		Samples: make([]Sample, 0, s.expectedFrames(cfg)+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	s.sample(result, s.frame())

	var runErr error
	for !s.finished(cfg, result.FramesTaken) {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		if err := s.graph.TakeOneFrame(); err != nil {
			result.Errors = append(result.Errors, err)
			runErr = err
			break
		}
		result.FramesTaken++

		f := s.frame()
		if cfg.ValidateState && !dynamo.ValidCoords(f.Positions) {
			err := fmt.Errorf("%w: frame %d at t=%.4f", dynamo.ErrInvalidState, f.Index, f.Time)
			result.Errors = append(result.Errors, err)
			runErr = err
			break
		}
		s.sample(result, f)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Final = dynamo.CloneCoords(s.source.Positions())
	return result, runErr
}

func (s *Simulator) frame() *Frame {
	f := &Frame{
		Index:      s.graph.Frame(),
		Time:       s.graph.Elapsed(),
		Cost:       s.graph.FrameCost(),
		Positions:  s.source.Positions(),
		Velocities: s.source.Velocities(),
		Lower:      s.graph.Lower,
		Upper:      s.graph.Upper,
	}
	if ns, ok := s.source.(NeighborSource); ok {
		f.Neighborhood = ns.Neighborhood()
	}
	if ys, ok := s.source.(YieldSource); ok {
		f.Yielded = ys.Yielded()
	}
	return f
}

func (s *Simulator) sample(result *Result, f *Frame) {
	values := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		m.Observe(f)
		values[m.Name()] = m.Value()
	}
	for _, obs := range s.observers {
		obs.OnFrame(f)
	}
	result.Samples = append(result.Samples, Sample{Frame: f.Index, Time: f.Time, Cost: f.Cost, Values: values})
}

func (s *Simulator) finished(cfg Config, taken int) bool {
	if cfg.MaxFrames > 0 && taken >= cfg.MaxFrames {
		return true
	}
	return s.graph.Done()
}

func (s *Simulator) expectedFrames(cfg Config) int {
	if cfg.MaxFrames > 0 {
		return cfg.MaxFrames
	}
	return int(s.graph.TotalTime*s.graph.FrameRate + 0.5)
}

func (s *Simulator) validateConfig(cfg Config) error {
	if s.graph == nil || s.source == nil {
		return errors.New("sim: graph and source are required")
	}
	if cfg.MaxFrames < 0 {
		return fmt.Errorf("%w: max frames %d", dynamo.ErrInvalidParameter, cfg.MaxFrames)
	}
	if cfg.MaxFrames == 0 && s.graph.TotalTime <= 0 {
		return fmt.Errorf("%w: run needs a total time or a frame limit", dynamo.ErrInvalidParameter)
	}
	return nil
}
