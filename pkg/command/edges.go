package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/matzehuels/flowcore/pkg/action"
	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

func (b *Builtins) addEdges(ctx context.Context, c AddEdges) error {
	if len(c.Edges) == 0 {
		return b.noop(NameAddEdges, "no edges")
	}
	ids := make([]string, len(c.Edges))
	for i, e := range c.Edges {
		ids[i] = e.ID
	}
	if err := errors.ValidateUniqueIDs("edge", ids); err != nil {
		return err
	}

	lk := b.env.Lookup()
	routing := b.env.Config().EdgeRouting.Default
	var u model.StateUpdate
	for _, e := range c.Edges {
		_, srcOK := lk.Node(e.Source)
		_, dstOK := lk.Node(e.Target)
		if !srcOK || !dstOK {
			b.logger.Debug("skipping edge with unknown endpoint", "edge", e.ID, "source", e.Source, "target", e.Target)
			continue
		}
		if e.Routing == "" {
			e.Routing = routing
		}
		e.Temporary = false
		u.EdgesToAdd = append(u.EdgesToAdd, e)
	}
	if u.IsEmpty() {
		return b.noop(NameAddEdges, "no edge with known endpoints")
	}
	return b.apply(ctx, u, model.ActionAddEdges)
}

func (b *Builtins) updateEdges(ctx context.Context, updates []model.EdgeUpdate) error {
	lk := b.env.Lookup()
	var u model.StateUpdate
	for _, eu := range updates {
		if eu.IsEmpty() {
			continue
		}
		if _, ok := lk.Edge(eu.ID); !ok {
			continue
		}
		u.EdgesToUpdate = append(u.EdgesToUpdate, eu)
	}
	if u.IsEmpty() {
		return b.noop(NameUpdateEdges, "no known edges to update")
	}
	return b.apply(ctx, u, model.ActionUpdateEdge)
}

func (b *Builtins) deleteEdges(ctx context.Context, ids []string) error {
	lk := b.env.Lookup()
	var u model.StateUpdate
	for _, id := range ids {
		if _, ok := lk.Edge(id); ok {
			u.EdgesToRemove = append(u.EdgesToRemove, id)
		}
	}
	if u.IsEmpty() {
		return b.noop(NameDeleteEdges, "no known edges")
	}
	return b.apply(ctx, u, model.ActionDeleteEdges)
}

func (b *Builtins) startLinking(c StartLinking) error {
	n, ok := b.env.Lookup().Node(c.SourceNode)
	if !ok {
		return b.noop(NameStartLinking, "unknown source node")
	}
	if c.SourcePort != "" {
		p, ok := n.Port(c.SourcePort)
		if !ok || p.Type == model.PortTypeTarget {
			return b.noop(NameStartLinking, "port cannot start a link")
		}
	}
	b.env.ActionState().StartLinking(action.Linking{
		SourceNode: c.SourceNode,
		SourcePort: c.SourcePort,
		Target:     c.Position,
		Edge: model.Edge{
			ID:         uuid.NewString(),
			Source:     c.SourceNode,
			SourcePort: c.SourcePort,
			Routing:    b.env.Config().EdgeRouting.Default,
		},
	})
	b.env.Redraw()
	return nil
}

func (b *Builtins) moveTemporaryEdge(c MoveTemporaryEdge) error {
	if !b.env.ActionState().MoveLinking(c.Position) {
		return b.noop(NameMoveTemporaryEdge, "no link in progress")
	}
	b.env.Redraw()
	return nil
}

func (b *Builtins) finishLinking(ctx context.Context, c FinishLinking) error {
	l, ok := b.env.ActionState().EndLinking()
	if !ok {
		return b.noop(NameFinishLinking, "no link in progress")
	}
	target, found := b.env.Lookup().Node(c.TargetNode)
	if !found || c.TargetNode == l.SourceNode {
		b.env.Redraw()
		return b.noop(NameFinishLinking, "link cancelled")
	}
	if c.TargetPort != "" {
		p, ok := target.Port(c.TargetPort)
		if !ok || p.Type == model.PortTypeSource {
			b.env.Redraw()
			return b.noop(NameFinishLinking, "port cannot end a link")
		}
	}

	edge := l.Edge
	edge.Temporary = false
	edge.Target = c.TargetNode
	edge.TargetPort = c.TargetPort
	return b.apply(ctx, model.StateUpdate{EdgesToAdd: []model.Edge{edge}}, model.ActionFinishLinking)
}
