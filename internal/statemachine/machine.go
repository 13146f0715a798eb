// Package statemachine walks the hierarchical story state machine.
//
// Transitions bubble: an event is looked up on the current state first and
// then on each ancestor up to the root. Entering a compound state descends
// to its initial child. Entering a parallel state activates every region at
// its initial leaf; regions then advance independently.
package statemachine

import (
	"fmt"
	"sort"

	"github.com/aretw0/tick/pkg/domain"
)

// Machine is an indexed, read-only view of a state tree.
type Machine struct {
	root   string
	nodes  map[string]*domain.MachineState
	parent map[string]string
	depth  map[string]int
}

// Transition is one flattened "on" entry.
type Transition struct {
	From  string
	Event string
	To    string
}

// New indexes a state tree. Ids must be unique across the whole tree.
func New(root *domain.MachineState) (*Machine, error) {
	if root == nil {
		return nil, fmt.Errorf("state machine: missing root")
	}
	m := &Machine{
		nodes:  make(map[string]*domain.MachineState),
		parent: make(map[string]string),
		depth:  make(map[string]int),
	}
	m.root = root.ID
	if m.root == "" {
		m.root = "Global"
	}
	if err := m.index(m.root, root, "", 0); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) index(id string, node *domain.MachineState, parent string, depth int) error {
	if node.ID != "" && node.ID != id {
		return fmt.Errorf("state machine: state key %q declares id %q", id, node.ID)
	}
	if _, dup := m.nodes[id]; dup {
		return fmt.Errorf("state machine: duplicate state %q", id)
	}
	m.nodes[id] = node
	m.parent[id] = parent
	m.depth[id] = depth
	for _, childID := range node.ChildIDs() {
		child := node.States[childID]
		if child == nil {
			child = &domain.MachineState{ID: childID}
		}
		if err := m.index(childID, child, id, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the root state id.
func (m *Machine) Root() string { return m.root }

// Node returns the state with the given id.
func (m *Machine) Node(id string) (*domain.MachineState, bool) {
	n, ok := m.nodes[domain.TargetID(id)]
	return n, ok
}

// Has reports whether the state exists.
func (m *Machine) Has(id string) bool {
	_, ok := m.Node(id)
	return ok
}

// Parent returns the parent id, empty for the root.
func (m *Machine) Parent(id string) string { return m.parent[id] }

// IsLeaf reports whether the state exists and has no children.
func (m *Machine) IsLeaf(id string) bool {
	n, ok := m.nodes[id]
	return ok && n.IsLeaf()
}

// IsRegion reports whether the state is a direct child of a parallel state.
func (m *Machine) IsRegion(id string) bool {
	p, ok := m.nodes[m.parent[id]]
	return ok && m.parent[id] != "" && p.IsParallel()
}

// IDs returns every state id sorted.
func (m *Machine) IDs() []string {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Leaves returns every leaf id sorted. The root is never a leaf.
func (m *Machine) Leaves() []string {
	var out []string
	for _, id := range m.IDs() {
		if id != m.root && m.nodes[id].IsLeaf() {
			out = append(out, id)
		}
	}
	return out
}

// Ancestors returns id and its ancestors up to the root, nearest first.
func (m *Machine) Ancestors(id string) []string {
	var out []string
	for cur := id; cur != ""; cur = m.parent[cur] {
		if _, ok := m.nodes[cur]; !ok {
			break
		}
		out = append(out, cur)
	}
	return out
}

// Contains reports whether id is ancestor or self of descendant.
func (m *Machine) Contains(id, descendant string) bool {
	for _, a := range m.Ancestors(descendant) {
		if a == id {
			return true
		}
	}
	return false
}

// Transitions returns every transition ordered by source then event.
func (m *Machine) Transitions() []Transition {
	var out []Transition
	for _, id := range m.IDs() {
		node := m.nodes[id]
		for _, ev := range node.Events() {
			out = append(out, Transition{From: id, Event: ev, To: domain.TargetID(node.On[ev])})
		}
	}
	return out
}

// HasEvent reports whether any state declares a transition on event.
func (m *Machine) HasEvent(event string) bool {
	for _, node := range m.nodes {
		if _, ok := node.On[event]; ok {
			return true
		}
	}
	return false
}

// Distance counts the tree edges between two states.
func (m *Machine) Distance(a, b string) int {
	if _, ok := m.nodes[a]; !ok {
		return len(m.nodes)
	}
	if _, ok := m.nodes[b]; !ok {
		return len(m.nodes)
	}
	onPath := make(map[string]bool)
	for _, x := range m.Ancestors(a) {
		onPath[x] = true
	}
	for _, y := range m.Ancestors(b) {
		if onPath[y] {
			return m.depth[a] + m.depth[b] - 2*m.depth[y]
		}
	}
	return len(m.nodes)
}

// Initial returns the leaf a fresh session starts at, descending from the
// root's initial child.
func (m *Machine) Initial() Position {
	return m.Enter(Position{}, m.root)
}
