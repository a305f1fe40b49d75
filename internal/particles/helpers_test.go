package particles

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/san-kum/viscosim/internal/constraint"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/integrators"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/neighbor"
	"github.com/san-kum/viscosim/internal/topology"
)

// callLog records collaborator calls in order.
type callLog struct {
	calls []string
}

func (l *callLog) add(s string) { l.calls = append(l.calls, s) }

func (l *callLog) count(s string) int {
	n := 0
	for _, c := range l.calls {
		if c == s {
			n++
		}
	}
	return n
}

func (l *callLog) index(s string) int {
	for i, c := range l.calls {
		if c == s {
			return i
		}
	}
	return -1
}

type spyIntegrator struct {
	module.Integrator
	log       *callLog
	failStage string
}

func (s *spyIntegrator) call(name string, fn func() error) error {
	s.log.add(name)
	if s.failStage == name {
		return errBoom
	}
	return fn()
}

func (s *spyIntegrator) SetGravity(g dynamo.Coord) {
	if gr, ok := s.Integrator.(interface{ SetGravity(dynamo.Coord) }); ok {
		gr.SetGravity(g)
	}
}

func (s *spyIntegrator) Begin() error     { return s.call("integrator.begin", s.Integrator.Begin) }
func (s *spyIntegrator) Integrate() error { return s.call("integrator.integrate", s.Integrator.Integrate) }
func (s *spyIntegrator) End() error       { return s.call("integrator.end", s.Integrator.End) }

type spyNeighbors struct {
	module.NeighborSearch
	log   *callLog
	lists []topology.NeighborList
}

func (s *spyNeighbors) Compute() error {
	if err := s.NeighborSearch.Compute(); err != nil {
		return err
	}
	s.log.add("neighborhood.compute")
	s.lists = append(s.lists, s.OutNeighborhood().Value())
	return nil
}

// lastStep returns the two lists published by the last Advance.
func (s *spyNeighbors) lastStep() (first, second topology.NeighborList) {
	n := len(s.lists)
	return s.lists[n-2], s.lists[n-1]
}

type spyPlasticity struct {
	module.Elastoplasticity
	log      *callLog
	solveSaw topology.NeighborList
	applySaw topology.NeighborList
	resetSaw topology.NeighborList
}

func (s *spyPlasticity) Initialize() error {
	if mi, ok := s.Elastoplasticity.(module.Initializer); ok {
		return mi.Initialize()
	}
	return nil
}

func (s *spyPlasticity) SolveElasticity() error {
	s.log.add("elastoplasticity.solve_elasticity")
	s.solveSaw = s.InNeighborhood().Value()
	return s.Elastoplasticity.SolveElasticity()
}

func (s *spyPlasticity) ApplyPlasticity() error {
	s.log.add("elastoplasticity.apply_plasticity")
	s.applySaw = s.InNeighborhood().Value()
	return s.Elastoplasticity.ApplyPlasticity()
}

func (s *spyPlasticity) ResetRestShape() error {
	s.log.add("elastoplasticity.reset_rest_shape")
	s.resetSaw = s.InNeighborhood().Value()
	return s.Elastoplasticity.ResetRestShape()
}

type spyDensity struct {
	module.DensityConstraint
	log *callLog
}

func (s *spyDensity) Initialize() error {
	if mi, ok := s.DensityConstraint.(module.Initializer); ok {
		return mi.Initialize()
	}
	return nil
}

func (s *spyDensity) Constrain() error {
	s.log.add("pbd.constrain")
	return s.DensityConstraint.Constrain()
}

// viscosityModule names the embedded solver so it does not shadow the
// Viscosity coefficient getter.
type viscosityModule = module.Viscosity

type spyViscosity struct {
	viscosityModule
	log *callLog
	saw topology.NeighborList
}

func (s *spyViscosity) Constrain() error {
	s.log.add("viscosity.constrain")
	s.saw = s.InNeighborhood().Value()
	return s.viscosityModule.Constrain()
}

var errBoom = errors.New("boom")

// sameList reports whether a and b share their backing array.
func sameList(a, b topology.NeighborList) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

type stageRecord struct {
	stage string
	err   error
}

type stageRecorder struct {
	mu      sync.Mutex
	records []stageRecord
}

func (r *stageRecorder) ObserveStage(body, stage string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, stageRecord{stage: stage, err: err})
}

func (r *stageRecorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.stage
	}
	return out
}

// lattice returns n particles spaced along x.
func lattice(n int, spacing float64) []dynamo.Coord {
	pts := make([]dynamo.Coord, n)
	for i := range pts {
		pts[i] = dynamo.Coord{X: float64(i) * spacing}
	}
	return pts
}

// spied wraps every collaborator of a body in a recording spy.
type spied struct {
	log      *callLog
	integ    *spyIntegrator
	nbrs     *spyNeighbors
	plast    *spyPlasticity
	density  *spyDensity
	visc     *spyViscosity
	recorder *stageRecorder
}

func newSpied() *spied {
	log := &callLog{}
	return &spied{
		log:      log,
		integ:    &spyIntegrator{Integrator: integrators.NewParticleIntegrator("i"), log: log},
		nbrs:     &spyNeighbors{NeighborSearch: neighbor.NewQuery("n"), log: log},
		plast:    &spyPlasticity{Elastoplasticity: constraint.NewElastoplasticity("e"), log: log},
		density:  &spyDensity{DensityConstraint: constraint.NewDensityPBD("d"), log: log},
		visc:     &spyViscosity{viscosityModule: constraint.NewImplicitViscosity("v"), log: log},
		recorder: &stageRecorder{},
	}
}

func (s *spied) options() []Option {
	return []Option{
		WithIntegrator(s.integ),
		WithNeighborSearch(s.nbrs),
		WithElastoplasticity(s.plast),
		WithDensityConstraint(s.density),
		WithViscosity(s.visc),
		WithStageObserver(s.recorder),
	}
}

// initializedBody builds a spied viscoplastic body over pts and initializes
// it, clearing the call log afterwards.
func initializedBody(pts []dynamo.Coord) (*ViscoplasticBody, *spied, error) {
	s := newSpied()
	b, err := NewViscoplasticBody("body", s.options()...)
	if err != nil {
		return nil, nil, err
	}
	b.PointSet().SetPoints(pts)
	if err := b.Initialize(); err != nil {
		return nil, nil, err
	}
	s.log.calls = nil
	return b, s, nil
}
