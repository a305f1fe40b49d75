// Package scene holds the node tree a body lives in and the graph that
// drives it frame by frame.
package scene

import (
	"fmt"

	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/module"
	"github.com/san-kum/viscosim/internal/topology"
)

// Topology is the geometric representation a node carries.
type Topology interface {
	Points() []dynamo.Coord
}

// Node is a named element of the scene tree. A node owns its children and
// its modules; names are unique among siblings and among a node's modules.
type Node struct {
	name     string
	visible  bool
	parent   *Node
	children []*Node
	modules  []module.Module
	topology Topology
	mappings []topology.Mapping
}

func NewNode(name string) *Node {
	return &Node{name: name, visible: true}
}

func (n *Node) Name() string           { return n.name }
func (n *Node) SetName(name string)    { n.name = name }
func (n *Node) Visible() bool          { return n.visible }
func (n *Node) SetVisible(v bool)      { n.visible = v }
func (n *Node) Parent() *Node          { return n.parent }
func (n *Node) Topology() Topology     { return n.topology }
func (n *Node) SetTopology(t Topology) { n.topology = t }

// AddChild attaches child under n.
func (n *Node) AddChild(child *Node) error {
	if child == nil {
		return fmt.Errorf("%w: nil child of %s", dynamo.ErrInvalidParameter, n.name)
	}
	if child.parent != nil {
		return fmt.Errorf("%w: node %s already attached to %s", dynamo.ErrInvalidState, child.name, child.parent.name)
	}
	if n.Child(child.name) != nil {
		return fmt.Errorf("%w: %s/%s", dynamo.ErrDuplicateNode, n.name, child.name)
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// RemoveChild detaches the named child.
func (n *Node) RemoveChild(name string) error {
	for i, c := range n.children {
		if c.name == name {
			c.parent = nil
			n.children = append(n.children[:i], n.children[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: child %s of %s", dynamo.ErrNotFound, name, n.name)
}

// AddModule registers m under its own name.
func (n *Node) AddModule(m module.Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module on %s", dynamo.ErrInvalidParameter, n.name)
	}
	if _, ok := n.Module(m.Name()); ok {
		return fmt.Errorf("%w: %s on %s", dynamo.ErrDuplicateModule, m.Name(), n.name)
	}
	n.modules = append(n.modules, m)
	return nil
}

func (n *Node) Module(name string) (module.Module, bool) {
	for _, m := range n.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Modules returns the registered modules in registration order.
func (n *Node) Modules() []module.Module {
	out := make([]module.Module, len(n.modules))
	copy(out, n.modules)
	return out
}

func (n *Node) RemoveModule(name string) error {
	for i, m := range n.modules {
		if m.Name() == name {
			n.modules = append(n.modules[:i], n.modules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: module %s on %s", dynamo.ErrNotFound, name, n.name)
}

// VisualModules returns the registered modules of the visual category.
func (n *Node) VisualModules() []module.Module {
	var out []module.Module
	for _, m := range n.modules {
		if m.Category() == module.CategoryVisual {
			out = append(out, m)
		}
	}
	return out
}

// AddMapping appends a topology mapping. Mappings run in registration order.
func (n *Node) AddMapping(m topology.Mapping) {
	n.mappings = append(n.mappings, m)
}

func (n *Node) Mappings() []topology.Mapping {
	out := make([]topology.Mapping, len(n.mappings))
	copy(out, n.mappings)
	return out
}

func (n *Node) InitializeMappings() error {
	for i, m := range n.mappings {
		if err := m.Initialize(); err != nil {
			return fmt.Errorf("%s: mapping %d: %w", n.name, i, err)
		}
	}
	return nil
}

func (n *Node) ApplyMappings() error {
	for i, m := range n.mappings {
		if err := m.Apply(); err != nil {
			return fmt.Errorf("%s: mapping %d: %w", n.name, i, err)
		}
	}
	return nil
}

// Walk visits n and its descendants depth first, stopping at the first error.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
