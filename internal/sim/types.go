package sim

import (
	"time"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/topology"
)

// Source exposes the particle state a frame samples.
type Source interface {
	Positions() []dynamo.Coord
	Velocities() []dynamo.Coord
}

// NeighborSource is implemented by sources that keep a neighborhood.
type NeighborSource interface {
	Neighborhood() topology.NeighborList
}

// YieldSource is implemented by sources that report plastic yielding.
type YieldSource interface {
	Yielded() int
}

// Frame is the state of a scene at a frame boundary. The slices alias the
// live particle arrays and are only valid during the callback.
type Frame struct {
	Index        int
	Time         float64
	Cost         time.Duration
	Positions    []dynamo.Coord
	Velocities   []dynamo.Coord
	Neighborhood topology.NeighborList
	Yielded      int
	Lower, Upper dynamo.Coord
}

type Metric interface {
	Name() string
	Observe(f *Frame)
	Value() float64
	Reset()
}

type Observer interface {
	OnFrame(f *Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f *Frame)

func (fn ObserverFunc) OnFrame(f *Frame) { fn(f) }

type Config struct {
	// MaxFrames stops a run early. Zero defers to the graph's total time.
	MaxFrames int
	// ValidateState stops a run on NaN or Inf positions.
	ValidateState bool
}

// Sample is one row of per-frame diagnostics.
type Sample struct {
	Frame  int
	Time   float64
	Cost   time.Duration
	Values map[string]float64
}

type Result struct {
	Samples     []Sample
	Metrics     map[string]float64
	FramesTaken int
	Final       []dynamo.Coord
	Errors      []error
}
