package experiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/san-kum/viscosim/internal/config"
	"github.com/san-kum/viscosim/internal/constraint"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/particles"
)

func smallConfig(variant string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Variant = variant
	cfg.Body.Block = config.BlockConfig{
		Lower:   config.Vec3{X: 0, Y: 0.05, Z: 0},
		Upper:   config.Vec3{X: 0.01, Y: 0.06, Z: 0.01},
		Spacing: 0.005,
	}
	cfg.Scene.TotalTime = 0.08
	return cfg
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	names := r.ListVariants()
	if len(names) != 2 || names[0] != config.VariantElastoplastic {
		t.Errorf("unexpected variants %v", names)
	}
	if _, err := r.GetVariant("fluid"); !errors.Is(err, dynamo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewAppliesConfig(t *testing.T) {
	cfg := smallConfig(config.VariantElastoplastic)
	cfg.Body.FrictionAngle = 30
	cfg.Body.Cohesion = 0.02
	cfg.Body.Viscosity = 2
	cfg.Body.Iterations = 5

	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b := e.Body()
	if b.Len() != 27 {
		t.Errorf("expected 27 particles, got %d", b.Len())
	}
	if _, ok := b.(*particles.ElastoplasticBody); !ok {
		t.Errorf("expected elastoplastic body, got %T", b)
	}
	if got := b.Elastoplasticity().FrictionAngle(); got < 0.523 || got > 0.524 {
		t.Errorf("expected 30 degrees in radians, got %f", got)
	}
	if b.Elastoplasticity().Cohesion() != 0.02 || b.Viscosity().Viscosity() != 2 {
		t.Error("material parameters not applied")
	}
	if ep, ok := b.Elastoplasticity().(*constraint.Elastoplasticity); !ok || ep.Iterations != 5 {
		t.Error("solver iterations not applied")
	}
	if e.Graph().TimeStep != cfg.Scene.Dt || e.Graph().TotalTime != cfg.Scene.TotalTime {
		t.Error("scene timing not applied")
	}
	if len(b.Stages()) != 8 {
		t.Errorf("elastoplastic body should run 8 stages, got %d", len(b.Stages()))
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig(config.VariantViscoplastic)
	cfg.Body.Horizon = 0
	if _, err := New(cfg); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestRunFallsUnderGravity(t *testing.T) {
	e, err := New(smallConfig(config.VariantViscoplastic))
	if err != nil {
		t.Fatal(err)
	}
	start := dynamo.CloneCoords(e.Body().Node().Topology().Points())

	result, err := e.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.FramesTaken != 2 {
		t.Errorf("expected 2 frames, got %d", result.FramesTaken)
	}
	if len(result.Samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(result.Samples))
	}
	for i, p := range result.Final {
		if p.Y >= start[i].Y {
			t.Fatalf("particle %d did not fall: %v -> %v", i, start[i], p)
		}
	}
	if _, ok := result.Metrics["kinetic_energy"]; !ok {
		t.Error("default metrics missing")
	}
}

func TestInitializeAppliesVelocity(t *testing.T) {
	cfg := smallConfig(config.VariantViscoplastic)
	cfg.Body.Velocity = config.Vec3{X: 1}
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	for _, v := range e.Body().Velocities() {
		if v.X != 1 {
			t.Fatalf("expected launch velocity, got %v", v)
		}
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if e.Graph().Frame() != 1 {
		t.Errorf("expected frame 1, got %d", e.Graph().Frame())
	}
}

type countingObserver struct{ stages int }

func (c *countingObserver) ObserveStage(string, string, time.Duration, error) { c.stages++ }

func TestStageObserverWired(t *testing.T) {
	obs := &countingObserver{}
	e, err := New(smallConfig(config.VariantViscoplastic), WithStageObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	// one frame at 25 fps and dt 0.001 is 40 steps of 9 stages
	if obs.stages != 40*9 {
		t.Errorf("expected %d stage reports, got %d", 40*9, obs.stages)
	}
}
