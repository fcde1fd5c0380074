package updater

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/model"
)

// portBatch holds port reports for one node.
type portBatch struct {
	added []model.Port
	rects map[string]PortRect
}

// labelBatch holds label reports for one edge.
type labelBatch struct {
	added []model.EdgeLabel
	sizes map[string]model.Size
}

// InternalUpdater turns measurements into commands once the diagram has
// started. Reports that match the stored geometry produce nothing.
type InternalUpdater struct {
	engine   Engine
	strategy BatchStrategy
	logger   *log.Logger

	mu     sync.Mutex
	ports  map[string]*portBatch
	labels map[string]*labelBatch
}

// NewInternalUpdater creates an updater that batches port and label
// reports with strategy.
func NewInternalUpdater(engine Engine, strategy BatchStrategy, logger *log.Logger) *InternalUpdater {
	if logger == nil {
		logger = log.Default()
	}
	return &InternalUpdater{
		engine:   engine,
		strategy: strategy,
		logger:   logger,
		ports:    make(map[string]*portBatch),
		labels:   make(map[string]*labelBatch),
	}
}

// Strategy returns the batch strategy.
func (u *InternalUpdater) Strategy() BatchStrategy { return u.strategy }

// ApplyNodeSize emits a measured resizeNode when the node exists, is not
// being resized by the user and its size differs.
func (u *InternalUpdater) ApplyNodeSize(ctx context.Context, nodeID string, size model.Size) error {
	n, ok := u.engine.Lookup().Node(nodeID)
	if !ok || u.engine.ActionState().IsResizing(nodeID) {
		return nil
	}
	if n.Size != nil && *n.Size == size {
		return nil
	}
	return u.engine.Emit(ctx, command.ResizeNode{ID: nodeID, Size: size, Measured: true})
}

func (u *InternalUpdater) portBatch(nodeID string) *portBatch {
	b, ok := u.ports[nodeID]
	if !ok {
		b = &portBatch{rects: make(map[string]PortRect)}
		u.ports[nodeID] = b
	}
	return b
}

func (u *InternalUpdater) labelBatch(edgeID string) *labelBatch {
	b, ok := u.labels[edgeID]
	if !ok {
		b = &labelBatch{sizes: make(map[string]model.Size)}
		u.labels[edgeID] = b
	}
	return b
}

// AddPort implements Updater.
func (u *InternalUpdater) AddPort(_ context.Context, nodeID string, port model.Port) error {
	port.NodeID = nodeID
	u.mu.Lock()
	b := u.portBatch(nodeID)
	if i := slices.IndexFunc(b.added, func(p model.Port) bool { return p.ID == port.ID }); i >= 0 {
		b.added[i] = port
	} else {
		b.added = append(b.added, port)
	}
	u.mu.Unlock()
	u.strategy.Schedule("ports:"+nodeID, func() []model.Command { return u.flushPorts(nodeID) })
	return nil
}

// ApplyPortsSizesAndPositions implements Updater.
func (u *InternalUpdater) ApplyPortsSizesAndPositions(_ context.Context, nodeID string, rects []PortRect) error {
	if len(rects) == 0 {
		return nil
	}
	u.mu.Lock()
	b := u.portBatch(nodeID)
	for _, r := range rects {
		b.rects[r.PortID] = r
	}
	u.mu.Unlock()
	u.strategy.Schedule("ports:"+nodeID, func() []model.Command { return u.flushPorts(nodeID) })
	return nil
}

// AddEdgeLabel implements Updater.
func (u *InternalUpdater) AddEdgeLabel(_ context.Context, edgeID string, label model.EdgeLabel) error {
	u.mu.Lock()
	b := u.labelBatch(edgeID)
	if i := slices.IndexFunc(b.added, func(l model.EdgeLabel) bool { return l.ID == label.ID }); i >= 0 {
		b.added[i] = label
	} else {
		b.added = append(b.added, label)
	}
	u.mu.Unlock()
	u.strategy.Schedule("labels:"+edgeID, func() []model.Command { return u.flushLabels(edgeID) })
	return nil
}

// ApplyEdgeLabelSize implements Updater.
func (u *InternalUpdater) ApplyEdgeLabelSize(_ context.Context, edgeID, labelID string, size model.Size) error {
	u.mu.Lock()
	u.labelBatch(edgeID).sizes[labelID] = size
	u.mu.Unlock()
	u.strategy.Schedule("labels:"+edgeID, func() []model.Command { return u.flushLabels(edgeID) })
	return nil
}

// flushPorts diffs the batch for nodeID against the stored ports. New ports
// produce one addPorts carrying every changed port, because addPorts
// replaces by id; otherwise changed geometry produces one updatePorts.
func (u *InternalUpdater) flushPorts(nodeID string) []model.Command {
	u.mu.Lock()
	b := u.ports[nodeID]
	delete(u.ports, nodeID)
	u.mu.Unlock()
	if b == nil {
		return nil
	}
	n, ok := u.engine.Lookup().Node(nodeID)
	if !ok {
		return nil
	}

	var full []model.Port
	var updates []command.PortUpdate
	hasNew := false
	seen := make(map[string]bool)
	for _, p := range b.added {
		seen[p.ID] = true
		if r, ok := b.rects[p.ID]; ok {
			p.Size, p.Position = model.Ptr(r.Size), model.Ptr(r.Position)
		}
		old, exists := n.Port(p.ID)
		if exists && portEqual(old, p) {
			continue
		}
		hasNew = hasNew || !exists
		full = append(full, p)
	}
	for _, p := range n.MeasuredPorts {
		r, ok := b.rects[p.ID]
		if !ok || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if equalPtr(p.Size, &r.Size) && equalPtr(p.Position, &r.Position) {
			continue
		}
		p.Size, p.Position = model.Ptr(r.Size), model.Ptr(r.Position)
		full = append(full, p)
		updates = append(updates, command.PortUpdate{ID: p.ID, Size: model.Ptr(r.Size), Position: model.Ptr(r.Position)})
	}
	for id := range b.rects {
		if !seen[id] {
			u.logger.Debug("dropping geometry for unknown port", "node", nodeID, "port", id)
		}
	}

	switch {
	case hasNew || (len(full) > 0 && len(updates) < len(full)):
		return []model.Command{command.AddPorts{NodeID: nodeID, Ports: full}}
	case len(updates) > 0:
		return []model.Command{command.UpdatePorts{NodeID: nodeID, Ports: updates}}
	}
	return nil
}

// flushLabels is flushPorts for edge labels.
func (u *InternalUpdater) flushLabels(edgeID string) []model.Command {
	u.mu.Lock()
	b := u.labels[edgeID]
	delete(u.labels, edgeID)
	u.mu.Unlock()
	if b == nil {
		return nil
	}
	e, ok := u.engine.Lookup().Edge(edgeID)
	if !ok {
		return nil
	}

	var full []model.EdgeLabel
	var updates []command.LabelUpdate
	hasNew := false
	seen := make(map[string]bool)
	for _, l := range b.added {
		seen[l.ID] = true
		if size, ok := b.sizes[l.ID]; ok {
			l.Size = model.Ptr(size)
		}
		old, exists := e.Label(l.ID)
		if exists && labelEqual(old, l) {
			continue
		}
		hasNew = hasNew || !exists
		full = append(full, l)
	}
	for _, l := range e.MeasuredLabels {
		size, ok := b.sizes[l.ID]
		if !ok || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		if equalPtr(l.Size, &size) {
			continue
		}
		l.Size = model.Ptr(size)
		full = append(full, l)
		updates = append(updates, command.LabelUpdate{ID: l.ID, Size: model.Ptr(size)})
	}
	for id := range b.sizes {
		if !seen[id] {
			u.logger.Debug("dropping size for unknown label", "edge", edgeID, "label", id)
		}
	}

	switch {
	case hasNew || (len(full) > 0 && len(updates) < len(full)):
		return []model.Command{command.AddEdgeLabels{EdgeID: edgeID, Labels: full}}
	case len(updates) > 0:
		return []model.Command{command.UpdateEdgeLabels{EdgeID: edgeID, Labels: updates}}
	}
	return nil
}

// Flush sends every pending batch now.
func (u *InternalUpdater) Flush(ctx context.Context) error { return u.strategy.Flush(ctx) }

// Stop cancels pending batches.
func (u *InternalUpdater) Stop() { u.strategy.Stop() }

func portEqual(a, b model.Port) bool {
	return a.Side == b.Side && a.Type == b.Type && equalPtr(a.Size, b.Size) && equalPtr(a.Position, b.Position)
}

func labelEqual(a, b model.EdgeLabel) bool {
	return a.PositionOnEdge == b.PositionOnEdge && equalPtr(a.Size, b.Size) && equalPtr(a.Position, b.Position)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
