package dynamo

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
)

func TestCheckTimeStep(t *testing.T) {
	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := CheckTimeStep(dt); !errors.Is(err, ErrInvalidTimeStep) {
			t.Errorf("dt=%g: expected ErrInvalidTimeStep, got %v", dt, err)
		}
	}
	if err := CheckTimeStep(0.001); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidCoords(t *testing.T) {
	if !ValidCoords([]Coord{{X: 1}, {Y: -2}}) {
		t.Error("finite coords reported invalid")
	}
	if ValidCoords([]Coord{{X: 1}, {Z: math.NaN()}}) {
		t.Error("NaN not detected")
	}
}

func TestBoundsAndTransforms(t *testing.T) {
	c := []Coord{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 5}}
	TranslateCoords(c, Coord{X: 1})
	ScaleCoords(c, 2)

	lo, hi := Bounds(c)
	if lo != (Coord{X: 0, Y: 0, Z: 6}) || hi != (Coord{X: 4, Y: 4, Z: 10}) {
		t.Errorf("unexpected bounds %v %v", lo, hi)
	}

	clone := CloneCoords(c)
	ZeroCoords(c)
	if MaxDelta(c, clone) == 0 {
		t.Error("clone should not share storage")
	}
	if !math.IsInf(MaxDelta(c, clone[:1]), 1) {
		t.Error("length mismatch should yield +Inf")
	}
}

func TestStepErrorUnwraps(t *testing.T) {
	err := error(&StepError{Body: "body", Stage: "integrate", Index: 2, Wrapped: ErrInvalidState})
	if !errors.Is(err, ErrInvalidState) {
		t.Error("StepError should unwrap to its cause")
	}
	if got := err.Error(); got != "body: stage 3 (integrate): "+ErrInvalidState.Error() {
		t.Errorf("unexpected message %q", got)
	}
}

func TestParallelForCoversRange(t *testing.T) {
	var sum atomic.Int64
	ParallelFor(1000, 16, func(start, end int) {
		for i := start; i < end; i++ {
			sum.Add(int64(i))
		}
	})
	if sum.Load() != 999*1000/2 {
		t.Errorf("expected %d, got %d", 999*1000/2, sum.Load())
	}
}
