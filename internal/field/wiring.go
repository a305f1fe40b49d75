package field

import "fmt"

type edge interface {
	connect() error
	disconnect() error
	touches(owner Named) bool
	String() string
}

type link[T any] struct {
	src, dst *Field[T]
}

func (l link[T]) connect() error    { return Connect(l.src, l.dst) }
func (l link[T]) disconnect() error { return Disconnect(l.src, l.dst) }

func (l link[T]) touches(owner Named) bool {
	return (l.src != nil && l.src.owner == owner) || (l.dst != nil && l.dst.owner == owner)
}

func (l link[T]) String() string {
	return fmt.Sprintf("%s -> %s", pathOf(l.src), pathOf(l.dst))
}

// Wiring collects connections and applies them as a unit. If any connection
// in a Commit fails, every edge applied by that Commit is removed again.
type Wiring struct {
	pending   []edge
	committed []edge
}

// NewWiring returns an empty batch.
func NewWiring() *Wiring {
	return &Wiring{}
}

// Add queues src -> dst for the next Commit.
func Add[T any](w *Wiring, src, dst *Field[T]) {
	w.pending = append(w.pending, link[T]{src: src, dst: dst})
}

// Commit applies the queued connections in order.
func (w *Wiring) Commit() error {
	pending := w.pending
	w.pending = nil

	applied := make([]edge, 0, len(pending))
	for _, e := range pending {
		if err := e.connect(); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				_ = applied[i].disconnect()
			}
			return err
		}
		applied = append(applied, e)
	}
	w.committed = append(w.committed, applied...)
	return nil
}

// Detach disconnects every committed edge with an endpoint owned by owner.
func (w *Wiring) Detach(owner Named) error {
	kept := w.committed[:0]
	var firstErr error
	for _, e := range w.committed {
		if !e.touches(owner) {
			kept = append(kept, e)
			continue
		}
		if err := e.disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.committed = kept
	return firstErr
}

// Edges lists the committed connections as "owner.field -> owner.field".
func (w *Wiring) Edges() []string {
	out := make([]string, len(w.committed))
	for i, e := range w.committed {
		out[i] = e.String()
	}
	return out
}
