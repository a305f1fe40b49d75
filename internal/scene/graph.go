package scene

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/viscosim/internal/dynamo"
)

// Animated is what a graph can drive: a root that initializes once, advances
// by a time step, and refreshes its derived topology between frames.
type Animated interface {
	Initialize() error
	Advance(dt float64) error
	UpdateTopology() error
	Node() *Node
}

// GravityReceiver is implemented by roots that accept the scene gravity.
type GravityReceiver interface {
	SetGravity(g dynamo.Coord)
}

const (
	DefaultFrameRate = 25.0
	DefaultTimeStep  = 0.001
)

// Graph owns the simulation clock of a scene.
type Graph struct {
	// FrameRate is the number of frames per simulated second.
	FrameRate float64
	// TimeStep is the sub-step handed to the root's Advance.
	TimeStep float64
	// TotalTime ends a run once elapsed time reaches it. Zero runs forever.
	TotalTime float64
	Gravity   dynamo.Coord
	Lower     dynamo.Coord
	Upper     dynamo.Coord

	root        Animated
	initialized bool
	elapsed     float64
	frame       int
	frameCost   time.Duration
}

func NewGraph(root Animated) *Graph {
	return &Graph{
		FrameRate: DefaultFrameRate,
		TimeStep:  DefaultTimeStep,
		Gravity:   dynamo.Coord{Y: -9.8},
		Lower:     dynamo.Coord{X: -1, Y: -1, Z: -1},
		Upper:     dynamo.Coord{X: 1, Y: 1, Z: 1},
		root:      root,
	}
}

func (g *Graph) Root() Animated           { return g.root }
func (g *Graph) Initialized() bool        { return g.initialized }
func (g *Graph) Elapsed() float64         { return g.elapsed }
func (g *Graph) Frame() int               { return g.frame }
func (g *Graph) FrameCost() time.Duration { return g.frameCost }

// FrameInterval is the simulated time covered by one frame.
func (g *Graph) FrameInterval() float64 { return 1 / g.FrameRate }

// Done reports whether the elapsed time has reached TotalTime.
func (g *Graph) Done() bool {
	return g.TotalTime > 0 && g.elapsed >= g.TotalTime-1e-9
}

// Initialize hands gravity to the root, initializes it, and publishes the
// initial topology. Calling it again after success is a no-op.
func (g *Graph) Initialize() error {
	if g.initialized {
		return nil
	}
	if err := g.validate(); err != nil {
		return err
	}
	if gr, ok := g.root.(GravityReceiver); ok {
		gr.SetGravity(g.Gravity)
	}
	if err := g.root.Initialize(); err != nil {
		return fmt.Errorf("scene: initialize %s: %w", g.root.Node().Name(), err)
	}
	if err := g.root.UpdateTopology(); err != nil {
		return fmt.Errorf("scene: initial topology: %w", err)
	}
	g.initialized = true
	return nil
}

// TakeOneFrame advances the root by one frame interval in TimeStep sub-steps,
// the last one shortened to land exactly on the frame boundary, then updates
// the topology once.
func (g *Graph) TakeOneFrame() error {
	if !g.initialized {
		return dynamo.ErrNotInitialized
	}
	start := time.Now()

	interval := g.FrameInterval()
	t := 0.0
	for interval-t > 1e-12 {
		dt := math.Min(g.TimeStep, interval-t)
		if err := g.root.Advance(dt); err != nil {
			return fmt.Errorf("scene: frame %d at t=%.4f: %w", g.frame, g.elapsed+t, err)
		}
		t += dt
	}
	if err := g.root.UpdateTopology(); err != nil {
		return fmt.Errorf("scene: frame %d topology: %w", g.frame, err)
	}

	g.elapsed += interval
	g.frame++
	g.frameCost = time.Since(start)
	return nil
}

// InBounds reports whether p lies inside the scene box.
func (g *Graph) InBounds(p dynamo.Coord) bool {
	return p.X >= g.Lower.X && p.X <= g.Upper.X &&
		p.Y >= g.Lower.Y && p.Y <= g.Upper.Y &&
		p.Z >= g.Lower.Z && p.Z <= g.Upper.Z
}

func (g *Graph) validate() error {
	if g.root == nil {
		return fmt.Errorf("%w: scene has no root", dynamo.ErrInvalidParameter)
	}
	if !(g.FrameRate > 0) {
		return fmt.Errorf("%w: frame rate %g", dynamo.ErrInvalidParameter, g.FrameRate)
	}
	if !(g.TimeStep > 0) {
		return fmt.Errorf("%w: %g", dynamo.ErrInvalidTimeStep, g.TimeStep)
	}
	if g.TotalTime < 0 {
		return fmt.Errorf("%w: total time %g", dynamo.ErrInvalidParameter, g.TotalTime)
	}
	if g.Lower.X > g.Upper.X || g.Lower.Y > g.Upper.Y || g.Lower.Z > g.Upper.Z {
		return fmt.Errorf("%w: bounds %v > %v", dynamo.ErrInvalidParameter, g.Lower, g.Upper)
	}
	return nil
}
