// Package graph implements the instruction interpreter, render-sequence
// builder, and render-sequence execution that sit between the control
// thread's instruction batches and the audio thread's per-block process
// call.
package graph

import (
	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/providers/resource"
)

// garbageEntry holds a deleted node through a grace period modeled on
// epoch-based reclamation: the control thread cannot prove the audio
// thread's in-flight block isn't still touching this node's memory, so a
// freshly deleted node is kept for at least one full quiescent period
// (one process callback) before it becomes eligible for collection.
// refs starts at 2; ageGarbage drops it to 1 once a block has elapsed,
// and collectGarbage erases entries at or below 1. A node still reached
// by a dangling edge during a later build has its grace period renewed
// via retainGarbage instead of decaying.
type garbageEntry struct {
	node node.Node
	refs int32
}

// Store is the control thread's graph-of-record: the live node table, the
// ordered edge table, a garbage table of deleted-but-still-referenced
// nodes, and the current root set. Mutated only by Interpreter, on the
// control thread.
type Store struct {
	nodes        map[node.ID]node.Node
	edges        map[node.ID][]node.ID
	garbage      map[node.ID]*garbageEntry
	currentRoots map[node.ID]struct{}

	// rootOrder tracks the insertion order of currentRoots, so traversal
	// order (and therefore buffer ownership for shared children) is
	// reproducible across rebuilds instead of following Go's randomized
	// map iteration order.
	rootOrder []node.ID
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		nodes:        make(map[node.ID]node.Node),
		edges:        make(map[node.ID][]node.ID),
		garbage:      make(map[node.ID]*garbageEntry),
		currentRoots: make(map[node.ID]struct{}),
	}
}

func (s *Store) createNode(id node.ID, n node.Node) node.ReturnCode {
	if _, exists := s.nodes[id]; exists {
		return node.NodeAlreadyExists
	}
	if _, exists := s.edges[id]; exists {
		return node.NodeAlreadyExists
	}
	s.nodes[id] = n
	s.edges[id] = nil
	return node.Ok
}

func (s *Store) deleteNode(id node.ID) node.ReturnCode {
	n, ok := s.nodes[id]
	if !ok {
		return node.NodeNotFound
	}
	delete(s.nodes, id)
	delete(s.edges, id)
	delete(s.currentRoots, id)
	s.removeFromRootOrder(id)
	s.garbage[id] = &garbageEntry{node: n, refs: 2}
	return node.Ok
}

// removeFromRootOrder drops id from rootOrder, preserving the relative
// order of everything else.
func (s *Store) removeFromRootOrder(id node.ID) {
	for i, existing := range s.rootOrder {
		if existing == id {
			s.rootOrder = append(s.rootOrder[:i], s.rootOrder[i+1:]...)
			return
		}
	}
}

func (s *Store) appendChild(parentID, childID node.ID) node.ReturnCode {
	if _, ok := s.nodes[parentID]; !ok {
		return node.NodeNotFound
	}
	if _, ok := s.nodes[childID]; !ok {
		return node.NodeNotFound
	}
	s.edges[parentID] = append(s.edges[parentID], childID)
	return node.Ok
}

func (s *Store) setProperty(id node.ID, key string, val value.Value, resources *resource.Map) node.ReturnCode {
	n, ok := s.nodes[id]
	if !ok {
		return node.NodeNotFound
	}
	return n.SetProperty(key, val, resources)
}

// activateRoots applies one ActivateRoots instruction, reporting whether
// the current-roots set changed and any failure encountered while doing
// so (a referenced id missing, or not a Root).
func (s *Store) activateRoots(ids []node.ID) (changed bool, code node.ReturnCode) {
	next := make(map[node.ID]struct{}, len(ids))
	nextOrder := make([]node.ID, 0, len(ids))
	for _, id := range ids {
		n, ok := s.nodes[id]
		if !ok {
			return false, node.NodeNotFound
		}
		root, ok := n.(node.Root)
		if !ok {
			return false, node.InvariantViolation
		}
		root.SetActive(true)
		if _, dup := next[id]; !dup {
			next[id] = struct{}{}
			nextOrder = append(nextOrder, id)
		}
	}

	// Walk the previous order, not the map, so which fading roots get
	// carried over (and in what order) is reproducible.
	for _, id := range s.rootOrder {
		if _, stillWanted := next[id]; stillWanted {
			continue
		}
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		root, ok := n.(node.Root)
		if !ok {
			continue
		}
		root.SetActive(false)
		if root.StillRunning() {
			next[id] = struct{}{}
			nextOrder = append(nextOrder, id)
		}
	}

	changed = !sameRootSet(s.currentRoots, next)
	s.currentRoots = next
	s.rootOrder = nextOrder
	return changed, node.Ok
}

func sameRootSet(a, b map[node.ID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// lookup returns a node by id, live or garbage-tabled.
func (s *Store) lookup(id node.ID) (node.Node, bool) {
	if n, ok := s.nodes[id]; ok {
		return n, true
	}
	if g, ok := s.garbage[id]; ok {
		return g.node, true
	}
	return nil, false
}

// retainGarbage renews a garbage-tabled node's grace period: a later
// build still reaches it through a dangling edge, so it is genuinely
// still in use.
func (s *Store) retainGarbage(id node.ID) {
	if g, ok := s.garbage[id]; ok {
		g.refs = 2
	}
}

// ageGarbage advances every garbage-tabled node's grace period by one
// quiescent period, modeling one elapsed audio-thread process callback.
func (s *Store) ageGarbage() {
	for _, g := range s.garbage {
		if g.refs > 1 {
			g.refs--
		}
	}
}

// collectGarbage drops every garbage-tabled node whose grace period has
// elapsed (refs has decayed to 1, the table's own reference).
func (s *Store) collectGarbage() {
	for id, g := range s.garbage {
		if g.refs <= 1 {
			delete(s.garbage, id)
		}
	}
}

// pruneSettledRoots drops any CurrentRoots entry that is both inactive and
// no longer still-running (its fade has fully settled to silence),
// reporting whether it changed anything. Called from CommitUpdates so a
// settled root doesn't linger in the set until some later, unrelated
// ActivateRoots call happens to re-evaluate it.
func (s *Store) pruneSettledRoots() bool {
	changed := false
	for _, id := range s.rootOrder {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		root, ok := n.(node.Root)
		if !ok {
			continue
		}
		if !root.Active() && !root.StillRunning() {
			delete(s.currentRoots, id)
			changed = true
		}
	}
	if changed {
		kept := s.rootOrder[:0:0]
		for _, id := range s.rootOrder {
			if _, ok := s.currentRoots[id]; ok {
				kept = append(kept, id)
			}
		}
		s.rootOrder = kept
	}
	return changed
}

// activeFirstRootOrder returns CurrentRoots ordered with currently-active
// roots first, then fading-out inactive roots — the ordering §4.3
// requires the builder to traverse in.
func (s *Store) activeFirstRootOrder() []node.ID {
	var active, fading []node.ID
	for _, id := range s.rootOrder {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		root, ok := n.(node.Root)
		if !ok {
			continue
		}
		if root.Active() {
			active = append(active, id)
		} else {
			fading = append(fading, id)
		}
	}
	return append(active, fading...)
}

// Snapshot returns a diagnostic view of every live node's properties,
// keyed by hex node id.
func (s *Store) Snapshot() map[string]map[string]value.Value {
	out := make(map[string]map[string]value.Value, len(s.nodes))
	for id, n := range s.nodes {
		type snapshotter interface {
			Snapshot() map[string]value.Value
		}
		if sn, ok := n.(snapshotter); ok {
			out[id.String()] = sn.Snapshot()
		}
	}
	return out
}
