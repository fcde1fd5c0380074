// Package spatial provides a grid-bucketed index over node and port
// rectangles.
//
// The index is rebuilt from scratch on every [Hash.Process] call. Each entry
// is stored in every cell its bounding box touches; queries collect the
// candidates from the cells covering the query rectangle and then filter them
// with an exact rectangle test.
//
// Ports are indexed under the compound id "nodeID:portID" with a rectangle
// derived from the node position plus the port's relative position.
package spatial

import (
	"math"
	"slices"
	"sync"

	"github.com/matzehuels/flowcore/pkg/model"
)

// DefaultCellSize is used when New is given a non-positive cell size.
const DefaultCellSize = 100

type cell struct{ x, y int }

type entry struct {
	id     string
	order  int
	bounds model.Rect
	rect   model.Rect // unrotated rect, for oriented re-checks
	angle  float64
	isPort bool
}

// Hash is a spatial hash over node and port bounding boxes. It is safe for
// concurrent use.
type Hash struct {
	mu       sync.RWMutex
	cellSize float64
	cells    map[cell][]*entry
	entries  map[string]*entry
}

// New creates an empty Hash with the given cell size.
func New(cellSize float64) *Hash {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Hash{
		cellSize: cellSize,
		cells:    make(map[cell][]*entry),
		entries:  make(map[string]*entry),
	}
}

// CellSize returns the edge length of a grid cell.
func (h *Hash) CellSize() float64 { return h.cellSize }

// PortKey returns the entry id under which a port is indexed.
func PortKey(nodeID, portID string) string { return nodeID + ":" + portID }

// Process replaces the index content with nodes and their measured ports.
func (h *Hash) Process(nodes []model.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cells = make(map[cell][]*entry, len(nodes))
	h.entries = make(map[string]*entry, len(nodes))

	order := 0
	for _, n := range nodes {
		h.insert(&entry{
			id:     n.ID,
			order:  order,
			bounds: n.Bounds(),
			rect:   n.Rect(),
			angle:  n.Angle,
		})
		order++

		for _, p := range n.MeasuredPorts {
			if p.Size == nil {
				continue
			}
			r := model.Rect{X: n.Position.X, Y: n.Position.Y, Width: p.Size.Width, Height: p.Size.Height}
			if p.Position != nil {
				r.X += p.Position.X
				r.Y += p.Position.Y
			}
			h.insert(&entry{id: PortKey(n.ID, p.ID), order: order, bounds: r, rect: r, isPort: true})
			order++
		}
	}
}

func (h *Hash) insert(e *entry) {
	h.entries[e.id] = e
	for _, c := range h.cellsFor(e.bounds) {
		h.cells[c] = append(h.cells[c], e)
	}
}

func (h *Hash) cellsFor(r model.Rect) []cell {
	x0 := int(math.Floor(r.X / h.cellSize))
	y0 := int(math.Floor(r.Y / h.cellSize))
	x1 := int(math.Floor(r.Right() / h.cellSize))
	y1 := int(math.Floor(r.Bottom() / h.cellSize))

	out := make([]cell, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, cell{x, y})
		}
	}
	return out
}

func (h *Hash) cellCount(r model.Rect) int {
	w := math.Floor(r.Right()/h.cellSize) - math.Floor(r.X/h.cellSize) + 1
	ht := math.Floor(r.Bottom()/h.cellSize) - math.Floor(r.Y/h.cellSize) + 1
	n := w * ht
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// candidates returns the distinct entries in the cells covering r, sorted by
// insertion order. Queries spanning more cells than there are entries fall
// back to a full scan. Callers must hold the read lock.
func (h *Hash) candidates(r model.Rect) []*entry {
	var out []*entry
	if h.cellCount(r) > len(h.entries) {
		for _, e := range h.entries {
			out = append(out, e)
		}
		slices.SortFunc(out, func(a, b *entry) int { return a.order - b.order })
		return out
	}

	seen := make(map[string]bool)
	for _, c := range h.cellsFor(r) {
		for _, e := range h.cells[c] {
			if seen[e.id] {
				continue
			}
			seen[e.id] = true
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *entry) int { return a.order - b.order })
	return out
}

// QueryIDs returns the ids of nodes and ports whose bounding boxes overlap r
// with positive area. Entries that merely touch r are not returned.
func (h *Hash) QueryIDs(r model.Rect) []string {
	if r.Empty() {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []string
	for _, e := range h.candidates(r) {
		if e.bounds.Intersects(r) {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// OverlappingNodes returns the ids of other nodes overlapping nodeID. Rotated
// nodes are re-checked with an exact oriented rectangle test. Ports are never
// returned and the result never contains nodeID itself.
func (h *Hash) OverlappingNodes(nodeID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	self, ok := h.entries[nodeID]
	if !ok || self.isPort {
		return nil
	}

	var ids []string
	for _, e := range h.candidates(self.bounds) {
		if e.isPort || e.id == nodeID || !e.bounds.Intersects(self.bounds) {
			continue
		}
		if model.NormalizeAngle(self.angle) != 0 || model.NormalizeAngle(e.angle) != 0 {
			if !model.OrientedIntersect(self.rect, self.angle, e.rect, e.angle) {
				continue
			}
		}
		ids = append(ids, e.id)
	}
	return ids
}

// Bounds returns the indexed bounding box of an entry.
func (h *Hash) Bounds(id string) (model.Rect, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[id]
	if !ok {
		return model.Rect{}, false
	}
	return e.bounds, true
}

// Len returns the number of indexed entries, nodes and ports together.
func (h *Hash) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear removes every entry.
func (h *Hash) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cells = make(map[cell][]*entry)
	h.entries = make(map[string]*entry)
}
