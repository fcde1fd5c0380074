// Package memory provides an in-memory model adapter used by the CLI, the
// tests and hosts that keep the diagram in process.
package memory

import (
	"slices"
	"sync"

	"github.com/matzehuels/flowcore/pkg/model"
)

// Adapter stores a diagram in memory and notifies listeners after every
// write. It is safe for concurrent use. Reads return deep copies, so callers
// may keep them.
type Adapter struct {
	mu       sync.RWMutex
	nodes    []model.Node
	edges    []model.Edge
	metadata model.Metadata
	version  uint64

	lmu       sync.Mutex
	listeners map[int]func()
	nextID    int
}

// New creates an adapter holding a copy of state. A zero viewport scale is
// replaced by 1.
func New(state model.State) *Adapter {
	state = state.Clone()
	if state.Metadata.Viewport.Scale == 0 {
		state.Metadata.Viewport.Scale = 1
	}
	return &Adapter{
		nodes:     state.Nodes,
		edges:     state.Edges,
		metadata:  state.Metadata,
		listeners: make(map[int]func()),
	}
}

// Nodes returns a copy of the stored nodes.
func (a *Adapter) Nodes() []model.Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneNodes(a.nodes)
}

// Edges returns a copy of the stored edges.
func (a *Adapter) Edges() []model.Edge {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneEdges(a.edges)
}

// Metadata returns a copy of the stored metadata.
func (a *Adapter) Metadata() model.Metadata {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metadata.Clone()
}

// State returns a consistent snapshot of all three parts.
func (a *Adapter) State() model.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return model.State{
		Nodes:    cloneNodes(a.nodes),
		Edges:    cloneEdges(a.edges),
		Metadata: a.metadata.Clone(),
	}
}

// Version counts writes. It starts at zero.
func (a *Adapter) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// UpdateNodes replaces the stored nodes.
func (a *Adapter) UpdateNodes(nodes []model.Node) {
	a.write(func() { a.nodes = cloneNodes(nodes) })
}

// UpdateEdges replaces the stored edges.
func (a *Adapter) UpdateEdges(edges []model.Edge) {
	a.write(func() { a.edges = cloneEdges(edges) })
}

// UpdateMetadata replaces the stored metadata.
func (a *Adapter) UpdateMetadata(m model.Metadata) {
	a.write(func() { a.metadata = m.Clone() })
}

// WriteState replaces everything with one notification.
func (a *Adapter) WriteState(s model.State) {
	s = s.Clone()
	a.write(func() {
		a.nodes, a.edges, a.metadata = s.Nodes, s.Edges, s.Metadata
	})
}

func (a *Adapter) write(fn func()) {
	a.mu.Lock()
	fn()
	a.version++
	a.mu.Unlock()
	a.notify()
}

// OnChange registers fn to run after every write. Listeners run
// synchronously on the writing goroutine, in registration order.
func (a *Adapter) OnChange(fn func()) (unsubscribe func()) {
	a.lmu.Lock()
	a.nextID++
	id := a.nextID
	a.listeners[id] = fn
	a.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.lmu.Lock()
			delete(a.listeners, id)
			a.lmu.Unlock()
		})
	}
}

func (a *Adapter) notify() {
	a.lmu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), len(ids))
	for i, id := range ids {
		fns[i] = a.listeners[id]
	}
	a.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func cloneNodes(nodes []model.Node) []model.Node {
	if nodes == nil {
		return nil
	}
	out := make([]model.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneEdges(edges []model.Edge) []model.Edge {
	if edges == nil {
		return nil
	}
	out := make([]model.Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}
