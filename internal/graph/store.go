// Package graph holds the in-memory organization graph and guards its
// referential integrity.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Op names the kind of mutation a Change reports.
type Op string

const (
	OpNodeAdded   Op = "node.added"
	OpNodeUpdated Op = "node.updated"
	OpNodeRemoved Op = "node.removed"
	OpEdgeAdded   Op = "edge.added"
	OpEdgeUpdated Op = "edge.updated"
	OpEdgeRemoved Op = "edge.removed"
	OpReplaced    Op = "graph.replaced"
	OpPositioned  Op = "graph.positioned"
)

// Change describes one mutation. Observers receive it after the store lock
// is released; it carries ids only, never references into the store.
type Change struct {
	Op      Op       `json:"op"`
	NodeID  string   `json:"nodeId,omitempty"`
	EdgeID  string   `json:"edgeId,omitempty"`
	Removed []string `json:"removedEdges,omitempty"`
	Version uint64   `json:"version"`
}

// Observer is notified of every mutation.
type Observer func(Change)

// Store is the single source of truth for a graph being edited. Every
// mutation marks the store dirty until MarkClean is called.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]model.Node
	nodeOrder []string
	edges     map[string]model.Edge
	edgeOrder []string
	dirty     bool
	version   uint64

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:     make(map[string]model.Node),
		edges:     make(map[string]model.Edge),
		observers: make(map[int]Observer),
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.Lock()
	fns := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// touch records a mutation. Callers hold mu.
func (s *Store) touch(c Change) Change {
	s.dirty = true
	s.version++
	c.Version = s.version
	return c
}

// Dirty reports whether the graph changed since the last MarkClean.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Version returns a counter incremented by every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// MarkClean clears the dirty flag if no mutation happened after version.
func (s *Store) MarkClean(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == version {
		s.dirty = false
	}
}

// MarkDirty flags the graph as holding unsaved changes without mutating it.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// AddNode inserts a validated, normalized copy of n.
func (s *Store) AddNode(n model.Node) error {
	n = n.Clone()
	if err := model.ValidateNode(&n); err != nil {
		return err
	}
	model.NormalizeNode(&n)

	s.mu.Lock()
	if _, exists := s.nodes[n.ID]; exists {
		s.mu.Unlock()
		return model.Invalid("id", "node %q already exists", n.ID)
	}
	s.nodes[n.ID] = n
	s.nodeOrder = append(s.nodeOrder, n.ID)
	c := s.touch(Change{Op: OpNodeAdded, NodeID: n.ID})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// UpdateNode replaces the node with the same id. The node kind cannot change
// while edges reference it, because that would change their relation kinds.
func (s *Store) UpdateNode(n model.Node) error {
	n = n.Clone()
	if err := model.ValidateNode(&n); err != nil {
		return err
	}
	model.NormalizeNode(&n)

	s.mu.Lock()
	old, ok := s.nodes[n.ID]
	if !ok {
		s.mu.Unlock()
		return model.Invalid("id", "node %q does not exist", n.ID)
	}
	if old.Kind != n.Kind && len(s.edgesTouching(n.ID)) > 0 {
		s.mu.Unlock()
		return model.Invalid("kind", "cannot change kind of node %q while it has relations", n.ID)
	}
	s.nodes[n.ID] = n
	c := s.touch(Change{Op: OpNodeUpdated, NodeID: n.ID})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// RemoveNode deletes the node and every edge touching it, returning the ids
// of the removed edges.
func (s *Store) RemoveNode(id string) ([]string, error) {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return nil, model.Invalid("id", "node %q does not exist", id)
	}
	removed := s.edgesTouching(id)
	for _, eid := range removed {
		delete(s.edges, eid)
	}
	s.edgeOrder = without(s.edgeOrder, removed...)
	delete(s.nodes, id)
	s.nodeOrder = without(s.nodeOrder, id)
	c := s.touch(Change{Op: OpNodeRemoved, NodeID: id, Removed: removed})
	s.mu.Unlock()

	s.notify(c)
	return removed, nil
}

// AddEdge inserts an edge after checking that both endpoints exist and that
// the relation is allowed for their kinds.
func (s *Store) AddEdge(e model.Edge) error {
	e = e.Clone()

	s.mu.Lock()
	if err := s.checkEdge(&e); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, exists := s.edges[e.ID]; exists {
		s.mu.Unlock()
		return model.Invalid("id", "edge %q already exists", e.ID)
	}
	s.edges[e.ID] = e
	s.edgeOrder = append(s.edgeOrder, e.ID)
	c := s.touch(Change{Op: OpEdgeAdded, EdgeID: e.ID})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// UpdateEdge replaces the edge with the same id, re-validating it.
func (s *Store) UpdateEdge(e model.Edge) error {
	e = e.Clone()

	s.mu.Lock()
	old, ok := s.edges[e.ID]
	if !ok {
		s.mu.Unlock()
		return model.Invalid("id", "edge %q does not exist", e.ID)
	}
	// The template precondition guards creation only, so an edge kept on the
	// same endpoints stays editable after its template's event types are cleared.
	check := s.checkEndpoints
	if e.Source != old.Source || e.Target != old.Target {
		check = s.checkEdge
	}
	if err := check(&e); err != nil {
		s.mu.Unlock()
		return err
	}
	s.edges[e.ID] = e
	c := s.touch(Change{Op: OpEdgeUpdated, EdgeID: e.ID})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// RemoveEdge deletes an edge.
func (s *Store) RemoveEdge(id string) error {
	s.mu.Lock()
	if _, ok := s.edges[id]; !ok {
		s.mu.Unlock()
		return model.Invalid("id", "edge %q does not exist", id)
	}
	delete(s.edges, id)
	s.edgeOrder = without(s.edgeOrder, id)
	c := s.touch(Change{Op: OpEdgeRemoved, EdgeID: id})
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// checkEdge validates e against its endpoints, including the template
// precondition, then normalizes it. Callers hold mu.
func (s *Store) checkEdge(e *model.Edge) error {
	src, ok := s.nodes[e.Source]
	if !ok {
		return model.Invalid("source", "node %q does not exist", e.Source)
	}
	dst, ok := s.nodes[e.Target]
	if !ok {
		return model.Invalid("target", "node %q does not exist", e.Target)
	}
	if err := model.ValidateEdge(e, &src, &dst); err != nil {
		return err
	}
	e.Kind = model.RelationFor(src.Kind, dst.Kind)
	model.NormalizeEdge(e)
	return nil
}

// checkEndpoints validates e without the template precondition. Callers hold mu.
func (s *Store) checkEndpoints(e *model.Edge) error {
	src, ok := s.nodes[e.Source]
	if !ok {
		return model.Invalid("source", "node %q does not exist", e.Source)
	}
	dst, ok := s.nodes[e.Target]
	if !ok {
		return model.Invalid("target", "node %q does not exist", e.Target)
	}
	if err := model.ValidateEdge(e, &src, &dst); err != nil && !onlyTemplateError(err) {
		return err
	}
	e.Kind = model.RelationFor(src.Kind, dst.Kind)
	model.NormalizeEdge(e)
	return nil
}

// edgesTouching returns ids of edges with nodeID as an endpoint, in insertion
// order. Callers hold mu.
func (s *Store) edgesTouching(nodeID string) []string {
	var ids []string
	for _, eid := range s.edgeOrder {
		e := s.edges[eid]
		if e.Touches(nodeID) {
			ids = append(ids, eid)
		}
	}
	return ids
}

// Node returns a copy of the node with id.
func (s *Store) Node(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	return n.Clone(), true
}

// Edge returns a copy of the edge with id.
func (s *Store) Edge(id string) (model.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return model.Edge{}, false
	}
	return e.Clone(), true
}

// Len returns the node and edge counts.
func (s *Store) Len() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Snapshot returns a deep copy of the graph in insertion order.
func (s *Store) Snapshot() model.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SnapshotVersion returns a snapshot together with the version it reflects.
func (s *Store) SnapshotVersion() (model.Graph, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), s.version
}

func (s *Store) snapshotLocked() model.Graph {
	g := model.Graph{
		Nodes: make([]model.Node, 0, len(s.nodeOrder)),
		Edges: make([]model.Edge, 0, len(s.edgeOrder)),
	}
	for _, id := range s.nodeOrder {
		g.Nodes = append(g.Nodes, s.nodes[id].Clone())
	}
	for _, id := range s.edgeOrder {
		g.Edges = append(g.Edges, s.edges[id].Clone())
	}
	return g
}

// Replace discards the current graph and installs g. Edges with a missing
// endpoint are dropped and reported; the store is clean afterwards.
func (s *Store) Replace(g model.Graph) (dropped []string) {
	nodes := make(map[string]model.Node, len(g.Nodes))
	var nodeOrder []string
	for _, n := range g.Nodes {
		if _, dup := nodes[n.ID]; dup || n.Data == nil {
			continue
		}
		n = n.Clone()
		model.NormalizeNode(&n)
		nodes[n.ID] = n
		nodeOrder = append(nodeOrder, n.ID)
	}
	edges := make(map[string]model.Edge, len(g.Edges))
	var edgeOrder []string
	for _, e := range g.Edges {
		src, okS := nodes[e.Source]
		dst, okT := nodes[e.Target]
		if !okS || !okT {
			dropped = append(dropped, e.ID)
			continue
		}
		if _, dup := edges[e.ID]; dup {
			continue
		}
		e = e.Clone()
		e.Kind = model.RelationFor(src.Kind, dst.Kind)
		model.NormalizeEdge(&e)
		edges[e.ID] = e
		edgeOrder = append(edgeOrder, e.ID)
	}

	s.mu.Lock()
	s.nodes, s.nodeOrder = nodes, nodeOrder
	s.edges, s.edgeOrder = edges, edgeOrder
	c := s.touch(Change{Op: OpReplaced})
	s.dirty = false
	s.mu.Unlock()

	s.notify(c)
	return dropped
}

// Build validates g node by node and edge by edge, the same way interactive
// edits are checked, and returns a store holding the result. Every failure is
// collected into one *model.ValidationError with fields prefixed by the
// position of the offending item, e.g. "edges[2].target".
func Build(g model.Graph) (*Store, error) {
	s := New()
	var ve model.ValidationError
	for i, n := range g.Nodes {
		collect(&ve, fmt.Sprintf("nodes[%d]", i), s.AddNode(n))
	}
	for i, e := range g.Edges {
		collect(&ve, fmt.Sprintf("edges[%d]", i), s.AddEdge(e))
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	s.MarkClean(s.Version())
	return s, nil
}

func collect(ve *model.ValidationError, prefix string, err error) {
	if err == nil {
		return
	}
	var fe *model.ValidationError
	if !errors.As(err, &fe) {
		ve.Add(prefix, "%v", err)
		return
	}
	for _, f := range fe.Errors {
		ve.Errors = append(ve.Errors, model.FieldError{Field: prefix + "." + f.Field, Message: f.Message})
	}
}

// Merge adds nodes and edges that are not already present, skipping
// duplicates by id. It is used to fold generated hierarchies into the graph.
func (s *Store) Merge(g model.Graph) (addedNodes, addedEdges int, err error) {
	for _, n := range g.Nodes {
		if _, ok := s.Node(n.ID); ok {
			continue
		}
		if err := s.AddNode(n); err != nil {
			return addedNodes, addedEdges, err
		}
		addedNodes++
	}
	for _, e := range g.Edges {
		if _, ok := s.Edge(e.ID); ok {
			continue
		}
		if err := s.AddEdge(e); err != nil {
			return addedNodes, addedEdges, err
		}
		addedEdges++
	}
	return addedNodes, addedEdges, nil
}

// SetPositions moves nodes in a single mutation. Unknown ids are ignored;
// the number of nodes moved is returned.
func (s *Store) SetPositions(pos map[string]model.Position) int {
	s.mu.Lock()
	n := 0
	for id, p := range pos {
		node, ok := s.nodes[id]
		if !ok {
			continue
		}
		node.Position = p
		s.nodes[id] = node
		n++
	}
	if n == 0 {
		s.mu.Unlock()
		return 0
	}
	c := s.touch(Change{Op: OpPositioned})
	s.mu.Unlock()

	s.notify(c)
	return n
}

// onlyTemplateError reports whether err fails solely on the template
// event-type precondition.
func onlyTemplateError(err error) bool {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	for _, fe := range ve.Errors {
		if fe.Field != "source" {
			return false
		}
	}
	return true
}

func without(ids []string, drop ...string) []string {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
