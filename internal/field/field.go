// Package field implements named, observable data slots and the one-way
// connections that carry values between solver modules.
//
// A connection graph is a forest: every field has at most one source and any
// number of targets. Writes propagate eagerly from the root of a tree to every
// field below it, so a consumer never reads a value older than the last write
// it was connected to receive. Slice-valued fields share their backing array
// with every connected field; in-place element writes are therefore visible to
// all consumers without a Set.
package field

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
)

// Named is anything that owns fields, typically a module or a body.
type Named interface {
	Name() string
}

// Field is a typed data slot.
type Field[T any] struct {
	owner   Named
	name    string
	value   T
	version uint64
	source  *Field[T]
	targets []*Field[T]
}

// New creates an unconnected field holding initial.
func New[T any](owner Named, name string, initial T) *Field[T] {
	return &Field[T]{owner: owner, name: name, value: initial}
}

func (f *Field[T]) Name() string { return f.name }
func (f *Field[T]) Owner() Named { return f.owner }

// Path returns "owner.name", or just the name for an ownerless field.
func (f *Field[T]) Path() string {
	if f.owner == nil {
		return f.name
	}
	return f.owner.Name() + "." + f.name
}

// Value returns the current value.
func (f *Field[T]) Value() T { return f.value }

// Version counts the writes this field has received.
func (f *Field[T]) Version() uint64 { return f.version }

// Source returns the upstream field, or nil for a root.
func (f *Field[T]) Source() *Field[T] { return f.source }

// Targets returns the fields fed directly by f.
func (f *Field[T]) Targets() []*Field[T] {
	out := make([]*Field[T], len(f.targets))
	copy(out, f.targets)
	return out
}

// Set writes v at the root of f's tree and propagates it downstream.
// Writing to a connected target is therefore the same as writing to its source.
func (f *Field[T]) Set(v T) {
	root := f
	for root.source != nil {
		root = root.source
	}
	root.receive(v)
}

func (f *Field[T]) receive(v T) {
	f.value = v
	f.version++
	for _, t := range f.targets {
		t.receive(v)
	}
}

// feeds reports whether other is f or lies downstream of f.
func (f *Field[T]) feeds(other *Field[T]) bool {
	if f == other {
		return true
	}
	for _, t := range f.targets {
		if t.feeds(other) {
			return true
		}
	}
	return false
}

// Connect makes src the single source of dst. dst immediately receives the
// current value of src.
func Connect[T any](src, dst *Field[T]) error {
	if src == nil || dst == nil {
		return &dynamo.WiringError{Source: pathOf(src), Target: pathOf(dst), Wrapped: dynamo.ErrNilField}
	}
	if src == dst {
		return &dynamo.WiringError{Source: src.Path(), Target: dst.Path(), Wrapped: dynamo.ErrSelfConnect}
	}
	if dst.source != nil {
		return &dynamo.WiringError{
			Source:  src.Path(),
			Target:  dst.Path(),
			Wrapped: fmt.Errorf("%w (fed by %s)", dynamo.ErrMultipleSources, dst.source.Path()),
		}
	}
	if dst.feeds(src) {
		return &dynamo.WiringError{Source: src.Path(), Target: dst.Path(), Wrapped: dynamo.ErrCycle}
	}

	dst.source = src
	src.targets = append(src.targets, dst)
	dst.receive(src.value)
	return nil
}

// Disconnect removes the edge src -> dst. dst keeps its last received value.
func Disconnect[T any](src, dst *Field[T]) error {
	if src == nil || dst == nil {
		return &dynamo.WiringError{Source: pathOf(src), Target: pathOf(dst), Wrapped: dynamo.ErrNilField}
	}
	if dst.source != src {
		return &dynamo.WiringError{Source: src.Path(), Target: dst.Path(), Wrapped: dynamo.ErrNotConnected}
	}
	for i, t := range src.targets {
		if t == dst {
			src.targets = append(src.targets[:i], src.targets[i+1:]...)
			break
		}
	}
	dst.source = nil
	return nil
}

func pathOf[T any](f *Field[T]) string {
	if f == nil {
		return "<nil>"
	}
	return f.Path()
}
