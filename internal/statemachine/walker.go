package statemachine

import (
	"maps"
	"slices"
	"sort"

	"github.com/aretw0/tick/pkg/domain"
)

// Position is where a conversation stands in the machine.
type Position struct {
	// Current is the most recently entered leaf, or a parallel state id when
	// a parallel state was entered as a whole.
	Current string
	// Regions maps each active region to its current leaf.
	Regions map[string]string
}

// PositionOf reads the position stored in a session.
func PositionOf(s *domain.Session) Position {
	return Position{Current: s.CurrentState, Regions: maps.Clone(s.Regions)}
}

// Apply writes the position back into a session.
func (p Position) Apply(s *domain.Session) {
	s.CurrentState = p.Current
	s.Regions = maps.Clone(p.Regions)
	if s.Regions == nil {
		s.Regions = make(map[string]string)
	}
}

// Lookup finds the target of event from the position. The current state's
// chain is searched first, then the chains of the other active regions in
// region order.
func (m *Machine) Lookup(pos Position, event string) (string, bool) {
	for _, id := range m.Ancestors(pos.Current) {
		if target, ok := m.nodes[id].On[event]; ok {
			return domain.TargetID(target), true
		}
	}
	for _, region := range sortedRegions(pos.Regions) {
		for _, id := range m.Ancestors(pos.Regions[region]) {
			if target, ok := m.nodes[id].On[event]; ok {
				return domain.TargetID(target), true
			}
		}
	}
	return "", false
}

// Advance moves the position after an action completed. A transition keyed
// by the action wins; otherwise the position moves to the action's own
// state when the machine has one.
func (m *Machine) Advance(pos Position, action string) Position {
	if target, ok := m.Lookup(pos, action); ok {
		return m.Enter(pos, target)
	}
	if m.Has(action) {
		return m.Enter(pos, action)
	}
	return pos
}

// Enter moves the position into target, descending to initial leaves and
// activating or leaving parallel regions as needed. Unknown targets leave
// the position unchanged.
func (m *Machine) Enter(pos Position, target string) Position {
	id := domain.TargetID(target)
	if _, ok := m.nodes[id]; !ok {
		return pos
	}

	next := Position{Current: pos.Current, Regions: make(map[string]string, len(pos.Regions))}
	for region, leaf := range pos.Regions {
		// a region survives only while its parallel state encloses the target
		if m.Contains(m.parent[region], id) {
			next.Regions[region] = leaf
		}
	}

	// activate enclosing parallel states from the top down
	path := m.Ancestors(id)
	for i := len(path) - 1; i >= 1; i-- {
		node := m.nodes[path[i]]
		if !node.IsParallel() {
			continue
		}
		for _, region := range node.ChildIDs() {
			if _, active := next.Regions[region]; !active && region != path[i-1] {
				next.Regions[region] = m.descend(next.Regions, region)
			}
		}
	}

	leaf := m.descend(next.Regions, id)
	next.Current = leaf
	for _, a := range path {
		if m.IsRegion(a) {
			next.Regions[a] = leaf
		}
	}
	return next
}

// descend returns the leaf reached by entering id, initializing regions of
// any parallel state on the way.
func (m *Machine) descend(regions map[string]string, id string) string {
	node := m.nodes[id]
	switch {
	case node.IsParallel():
		for _, region := range node.ChildIDs() {
			regions[region] = m.descend(regions, region)
		}
		return id
	case node.IsLeaf():
		return id
	default:
		initial := domain.TargetID(node.Initial)
		if _, ok := node.States[initial]; !ok {
			initial = node.ChildIDs()[0]
		}
		return m.descend(regions, initial)
	}
}

// Reached reports whether a target state is attained. A parallel state is
// attained once it is active and settled; any other state once the position
// is inside it.
func (m *Machine) Reached(pos Position, target string) bool {
	id := domain.TargetID(target)
	node, ok := m.nodes[id]
	if !ok {
		return false
	}
	if node.IsParallel() {
		return m.active(pos, id) && m.Settled(pos, id)
	}
	if m.Contains(id, pos.Current) {
		return true
	}
	for _, leaf := range pos.Regions {
		if m.Contains(id, leaf) {
			return true
		}
	}
	return false
}

// Settled reports whether every required region of a parallel state sits on
// one of its declared targets.
func (m *Machine) Settled(pos Position, parallel string) bool {
	_, pending := m.Pending(pos, parallel)
	return !pending
}

// Pending returns the first unreached target of the first unsettled region
// of a parallel state, in region order.
func (m *Machine) Pending(pos Position, parallel string) (string, bool) {
	node, ok := m.nodes[domain.TargetID(parallel)]
	if !ok || !node.IsParallel() {
		return "", false
	}
	for _, region := range node.ChildIDs() {
		targets := m.nodes[region].Targets
		if len(targets) == 0 {
			continue
		}
		leaf, active := pos.Regions[region]
		if active && slices.ContainsFunc(targets, func(t string) bool { return m.Contains(domain.TargetID(t), leaf) }) {
			continue
		}
		return domain.TargetID(targets[0]), true
	}
	return "", false
}

func (m *Machine) active(pos Position, parallel string) bool {
	for region := range pos.Regions {
		if m.parent[region] == parallel {
			return true
		}
	}
	return pos.Current == parallel
}

func sortedRegions(regions map[string]string) []string {
	keys := make([]string, 0, len(regions))
	for k := range regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
