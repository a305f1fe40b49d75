package dynamo

import (
	"errors"
	"fmt"
)

// Wiring errors are reported while a body is being assembled.
var (
	// ErrCycle indicates a connection that would feed a field back into itself.
	ErrCycle = errors.New("dynamo: field connection would create a cycle")

	// ErrMultipleSources indicates a target field that already has an upstream source.
	ErrMultipleSources = errors.New("dynamo: field already has a source")

	// ErrSelfConnect indicates a field connected to itself.
	ErrSelfConnect = errors.New("dynamo: field connected to itself")

	// ErrNilField indicates a connection with a missing endpoint.
	ErrNilField = errors.New("dynamo: nil field in connection")

	// ErrNotConnected indicates a disconnect of an edge that does not exist.
	ErrNotConnected = errors.New("dynamo: fields are not connected")

	// ErrDuplicateModule indicates two modules registered under one name.
	ErrDuplicateModule = errors.New("dynamo: duplicate module name")

	// ErrDuplicateNode indicates two children of one node sharing a name.
	ErrDuplicateNode = errors.New("dynamo: duplicate child node name")

	// ErrNotFound indicates a lookup of a module or node that is not registered.
	ErrNotFound = errors.New("dynamo: not found")
)

// Runtime errors.
var (
	// ErrNotInitialized indicates a body advanced before a successful Initialize.
	ErrNotInitialized = errors.New("dynamo: body not initialized")

	// ErrInvalidTimeStep indicates a non-positive or non-finite time step.
	ErrInvalidTimeStep = errors.New("dynamo: time step must be positive")

	// ErrInvalidParameter indicates a configuration value outside its valid range.
	ErrInvalidParameter = errors.New("dynamo: parameter out of valid bounds")

	// ErrLengthMismatch indicates index-aligned particle arrays of different length.
	ErrLengthMismatch = errors.New("dynamo: particle array length mismatch")

	// ErrInvalidState indicates NaN or Inf in particle state.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// WiringError wraps a failed field connection with the endpoints involved.
type WiringError struct {
	Source  string
	Target  string
	Wrapped error
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("wiring %s -> %s: %v", e.Source, e.Target, e.Wrapped)
}

func (e *WiringError) Unwrap() error {
	return e.Wrapped
}

// StepError wraps a collaborator failure inside a body step.
type StepError struct {
	Body    string
	Stage   string
	Index   int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: stage %d (%s): %v", e.Body, e.Index+1, e.Stage, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
