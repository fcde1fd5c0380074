package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/matzehuels/flowcore/pkg/model"
)

// clipboard holds deep copies of the copied items. pastes counts pastes
// since the last copy so repeated pastes without a position cascade.
type clipboard struct {
	nodes  []model.Node
	edges  []model.Edge
	pastes int
}

func (c *clipboard) empty() bool { return len(c.nodes) == 0 }

// copySelection copies the selected nodes, their descendants and the edges
// whose endpoints are both copied.
func (b *Builtins) copySelection() {
	lk := b.env.Lookup()
	nodes := lk.SelectedNodesWithChildren(false)

	in := make(map[string]bool, len(nodes))
	cb := clipboard{nodes: make([]model.Node, 0, len(nodes))}
	for _, n := range nodes {
		in[n.ID] = true
		cb.nodes = append(cb.nodes, n.Clone())
	}
	for _, e := range b.env.State().Edges {
		if in[e.Source] && in[e.Target] {
			cb.edges = append(cb.edges, e.Clone())
		}
	}

	b.mu.Lock()
	b.clipboard = cb
	b.mu.Unlock()
	b.logger.Debug("copied selection", "nodes", len(cb.nodes), "edges", len(cb.edges))
}

func (b *Builtins) paste(ctx context.Context, c Paste) error {
	b.mu.Lock()
	if b.clipboard.empty() {
		b.mu.Unlock()
		return b.noop(NamePaste, "clipboard empty")
	}
	b.clipboard.pastes++
	cb := b.clipboard
	b.mu.Unlock()

	var delta model.Point
	if c.Position != nil {
		bounds, _ := model.BoundsOf(cb.nodes)
		delta = model.Point{X: c.Position.X - bounds.X, Y: c.Position.Y - bounds.Y}
	} else {
		off := b.env.Config().Paste
		delta = model.Point{X: off.OffsetX * float64(cb.pastes), Y: off.OffsetY * float64(cb.pastes)}
	}

	ids := make(map[string]string, len(cb.nodes))
	for _, n := range cb.nodes {
		ids[n.ID] = uuid.NewString()
	}

	var u model.StateUpdate
	for _, n := range cb.nodes {
		n = n.Clone()
		n.ID = ids[n.ID]
		n.Position = n.Position.Add(delta)
		n.Selected = true
		if g, ok := ids[n.GroupID]; ok {
			n.GroupID = g
		}
		for i := range n.MeasuredPorts {
			n.MeasuredPorts[i].NodeID = n.ID
		}
		u.NodesToAdd = append(u.NodesToAdd, n)
	}
	for _, e := range cb.edges {
		e = e.Clone()
		e.ID = uuid.NewString()
		e.Source = ids[e.Source]
		e.Target = ids[e.Target]
		e.Selected = true
		u.EdgesToAdd = append(u.EdgesToAdd, e)
	}

	lk := b.env.Lookup()
	for _, n := range lk.SelectedNodes() {
		u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: n.ID, Selected: model.Ptr(false)})
	}
	for _, e := range lk.SelectedEdges() {
		u.EdgesToUpdate = append(u.EdgesToUpdate, model.EdgeUpdate{ID: e.ID, Selected: model.Ptr(false)})
	}
	return b.apply(ctx, u, model.ActionPaste)
}
