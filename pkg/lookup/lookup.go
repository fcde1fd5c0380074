// Package lookup maintains derived indices over the current diagram state.
//
// A [Lookup] answers id, hierarchy and adjacency questions without scanning
// the node and edge slices on every call. Each index is built lazily on first
// use and cached until [Lookup.Desynchronize] marks every cache stale, which
// the engine does on every model change notification.
//
// Parent links are stored on the children (Node.GroupID), so hierarchy
// queries traverse a flat arena keyed by id. Every traversal tracks visited
// ids and stops on a cycle instead of looping.
package lookup

import (
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

// StateSource supplies the state the indices are built from.
type StateSource interface {
	State() model.State
}

// cache identifies one lazily built index.
type cache uint8

const (
	cacheNodes cache = 1 << iota
	cacheEdges
	cacheChildren
	cacheConnected
)

// Lookup is a set of lazily rebuilt indices. It is safe for concurrent use.
type Lookup struct {
	src    StateSource
	logger *log.Logger

	mu     sync.RWMutex
	synced cache

	nodes     map[string]model.Node
	nodeOrder []string
	edges     map[string]model.Edge
	edgeOrder []string
	children  map[string][]string // group id -> direct child ids
	connected map[string][]string // node id -> edge ids

	descMu      sync.Mutex
	descendants map[string][]string
}

// New creates a Lookup reading from src. A nil logger falls back to
// log.Default().
func New(src StateSource, logger *log.Logger) *Lookup {
	if logger == nil {
		logger = log.Default()
	}
	return &Lookup{
		src:         src,
		logger:      logger,
		descendants: make(map[string][]string),
	}
}

// Desynchronize marks every cache stale. The next accessor rebuilds what it
// needs from the source.
func (l *Lookup) Desynchronize() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.synced = 0
	l.clearDescendants()
}

func (l *Lookup) clearDescendants() {
	l.descMu.Lock()
	clear(l.descendants)
	l.descMu.Unlock()
}

// Synchronized reports whether every cache is current.
func (l *Lookup) Synchronized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.synced == cacheNodes|cacheEdges|cacheChildren|cacheConnected
}

// view runs fn under the read lock once the caches in need are current.
func (l *Lookup) view(need cache, fn func()) {
	l.mu.RLock()
	if l.synced&need == need {
		defer l.mu.RUnlock()
		fn()
		return
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if missing := need &^ l.synced; missing != 0 {
		l.rebuild(missing)
	}
	fn()
}

// rebuild refreshes the caches in which. Callers must hold the write lock.
func (l *Lookup) rebuild(which cache) {
	state := l.src.State()

	// Hierarchy and adjacency are derived from the entity maps, so rebuild
	// those first when either is stale.
	if which&(cacheChildren|cacheConnected) != 0 {
		which |= cacheNodes
	}
	if which&cacheConnected != 0 {
		which |= cacheEdges
	}

	if which&cacheNodes != 0 {
		l.nodes = make(map[string]model.Node, len(state.Nodes))
		l.nodeOrder = make([]string, 0, len(state.Nodes))
		for _, n := range state.Nodes {
			l.nodes[n.ID] = n
			l.nodeOrder = append(l.nodeOrder, n.ID)
		}
	}
	if which&cacheEdges != 0 {
		l.edges = make(map[string]model.Edge, len(state.Edges))
		l.edgeOrder = make([]string, 0, len(state.Edges))
		for _, e := range state.Edges {
			l.edges[e.ID] = e
			l.edgeOrder = append(l.edgeOrder, e.ID)
		}
	}
	if which&cacheChildren != 0 {
		l.clearDescendants()
		l.children = make(map[string][]string)
		for _, id := range l.nodeOrder {
			if parent := l.nodes[id].GroupID; parent != "" {
				l.children[parent] = append(l.children[parent], id)
			}
		}
	}
	if which&cacheConnected != 0 {
		l.connected = make(map[string][]string)
		for _, id := range l.edgeOrder {
			e := l.edges[id]
			l.connected[e.Source] = append(l.connected[e.Source], id)
			if e.Target != e.Source {
				l.connected[e.Target] = append(l.connected[e.Target], id)
			}
		}
	}
	l.synced |= which
}

// Node returns the node with the given id.
func (l *Lookup) Node(id string) (n model.Node, ok bool) {
	l.view(cacheNodes, func() { n, ok = l.nodes[id] })
	return n, ok
}

// Edge returns the edge with the given id.
func (l *Lookup) Edge(id string) (e model.Edge, ok bool) {
	l.view(cacheEdges, func() { e, ok = l.edges[id] })
	return e, ok
}

// NodesMap returns a copy of the id to node index.
func (l *Lookup) NodesMap() (m map[string]model.Node) {
	l.view(cacheNodes, func() { m = maps.Clone(l.nodes) })
	return m
}

// EdgesMap returns a copy of the id to edge index.
func (l *Lookup) EdgesMap() (m map[string]model.Edge) {
	l.view(cacheEdges, func() { m = maps.Clone(l.edges) })
	return m
}

// ConnectedEdges returns the edges that start or end at nodeID.
func (l *Lookup) ConnectedEdges(nodeID string) (out []model.Edge) {
	l.view(cacheConnected, func() {
		for _, id := range l.connected[nodeID] {
			out = append(out, l.edges[id])
		}
	})
	return out
}

// ConnectedNodes returns the distinct nodes at the other end of the edges
// connected to nodeID. Edges to missing nodes are skipped.
func (l *Lookup) ConnectedNodes(nodeID string) (out []model.Node) {
	l.view(cacheConnected, func() {
		seen := map[string]bool{nodeID: true}
		for _, id := range l.connected[nodeID] {
			e := l.edges[id]
			other := e.Target
			if other == nodeID {
				other = e.Source
			}
			if seen[other] {
				continue
			}
			seen[other] = true
			if n, ok := l.nodes[other]; ok {
				out = append(out, n)
			}
		}
	})
	return out
}

// Children returns the direct children of groupID in state order.
func (l *Lookup) Children(groupID string) (out []model.Node) {
	l.view(cacheChildren, func() {
		for _, id := range l.children[groupID] {
			out = append(out, l.nodes[id])
		}
	})
	return out
}

// HasChildren reports whether any node lists groupID as its parent.
func (l *Lookup) HasChildren(groupID string) (ok bool) {
	l.view(cacheChildren, func() { ok = len(l.children[groupID]) > 0 })
	return ok
}

// HasDescendants reports whether groupID has at least one descendant.
func (l *Lookup) HasDescendants(groupID string) bool {
	return l.HasChildren(groupID)
}

// AllDescendants returns every node below groupID in depth-first pre-order.
// Results are memoized until the next Desynchronize.
func (l *Lookup) AllDescendants(groupID string) (out []model.Node) {
	l.view(cacheChildren, func() {
		for _, id := range l.descendantIDs(groupID) {
			out = append(out, l.nodes[id])
		}
	})
	return out
}

// descendantIDs must be called with the children cache current.
func (l *Lookup) descendantIDs(groupID string) []string {
	l.descMu.Lock()
	defer l.descMu.Unlock()
	if ids, ok := l.descendants[groupID]; ok {
		return ids
	}

	var ids []string
	visited := map[string]bool{groupID: true}
	var walk func(id string)
	walk = func(id string) {
		for _, child := range l.children[id] {
			if visited[child] {
				continue
			}
			visited[child] = true
			ids = append(ids, child)
			walk(child)
		}
	}
	walk(groupID)

	l.descendants[groupID] = ids
	return ids
}

// SelectedNodes returns the selected nodes in state order.
func (l *Lookup) SelectedNodes() (out []model.Node) {
	l.view(cacheNodes, func() {
		for _, id := range l.nodeOrder {
			if n := l.nodes[id]; n.Selected {
				out = append(out, n)
			}
		}
	})
	return out
}

// SelectedEdges returns the selected edges in state order.
func (l *Lookup) SelectedEdges() (out []model.Edge) {
	l.view(cacheEdges, func() {
		for _, id := range l.edgeOrder {
			if e := l.edges[id]; e.Selected {
				out = append(out, e)
			}
		}
	})
	return out
}

// SelectedNodesWithChildren returns the selected nodes followed by the
// children of selected groups that are not themselves selected. With
// directOnly only direct children are added, otherwise all descendants.
func (l *Lookup) SelectedNodesWithChildren(directOnly bool) (out []model.Node) {
	l.view(cacheChildren, func() {
		seen := make(map[string]bool)
		var selected []string
		for _, id := range l.nodeOrder {
			if l.nodes[id].Selected {
				selected = append(selected, id)
				seen[id] = true
				out = append(out, l.nodes[id])
			}
		}
		for _, id := range selected {
			extra := l.children[id]
			if !directOnly {
				extra = l.descendantIDs(id)
			}
			for _, child := range extra {
				if !seen[child] {
					seen[child] = true
					out = append(out, l.nodes[child])
				}
			}
		}
	})
	return out
}

// ParentChain returns the ancestors of nodeID from the closest to the
// farthest. A parent that is missing, is not a group, or closes a cycle is
// logged as an integrity error and ends the chain.
func (l *Lookup) ParentChain(nodeID string) (chain []model.Node) {
	var broken *errors.IntegrityError
	l.view(cacheNodes, func() {
		chain, broken = l.parentChain(nodeID)
	})
	if broken != nil {
		l.logger.Warn("integrity error", "code", broken.Code(), "err", broken)
	}
	return chain
}

func (l *Lookup) parentChain(nodeID string) ([]model.Node, *errors.IntegrityError) {
	cur, ok := l.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	var chain []model.Node
	visited := map[string]bool{nodeID: true}
	for cur.GroupID != "" {
		parentID := cur.GroupID
		parent, ok := l.nodes[parentID]
		switch {
		case !ok:
			return chain, &errors.IntegrityError{NodeID: cur.ID, ParentID: parentID, Reason: "missing"}
		case !parent.IsGroup:
			return chain, &errors.IntegrityError{NodeID: cur.ID, ParentID: parentID, Reason: "not a group"}
		case visited[parentID]:
			return chain, &errors.IntegrityError{NodeID: cur.ID, ParentID: parentID, Reason: "cycle"}
		}
		visited[parentID] = true
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

// IsNodeDescendantOfGroup reports whether groupID appears among the
// ancestors of nodeID.
func (l *Lookup) IsNodeDescendantOfGroup(nodeID, groupID string) (ok bool) {
	l.view(cacheNodes, func() {
		visited := map[string]bool{nodeID: true}
		cur, found := l.nodes[nodeID]
		for found && cur.GroupID != "" {
			if cur.GroupID == groupID {
				ok = true
				return
			}
			if visited[cur.GroupID] {
				return
			}
			visited[cur.GroupID] = true
			cur, found = l.nodes[cur.GroupID]
		}
	})
	return ok
}

// WouldCreateCircularDependency reports whether putting nodeID into groupID
// would make the hierarchy cyclic: either the ids are equal or groupID
// already sits below nodeID.
func (l *Lookup) WouldCreateCircularDependency(nodeID, groupID string) bool {
	return nodeID == groupID || l.IsNodeDescendantOfGroup(groupID, nodeID)
}

// NodeIDs returns all node ids in state order.
func (l *Lookup) NodeIDs() (ids []string) {
	l.view(cacheNodes, func() { ids = slices.Clone(l.nodeOrder) })
	return ids
}
