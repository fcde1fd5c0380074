package command

import (
	"context"
	"slices"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/model"
)

func (b *Builtins) addPorts(ctx context.Context, c AddPorts) error {
	n, ok := b.env.Lookup().Node(c.NodeID)
	if !ok || len(c.Ports) == 0 {
		return b.noop(NameAddPorts, "unknown node or no ports")
	}
	ports := slices.Clone(n.MeasuredPorts)
	for _, p := range c.Ports {
		if err := errors.ValidateID("port", p.ID); err != nil {
			return err
		}
		p.NodeID = c.NodeID
		if i := slices.IndexFunc(ports, func(x model.Port) bool { return x.ID == p.ID }); i >= 0 {
			ports[i] = p
			continue
		}
		ports = append(ports, p)
	}
	return b.apply(ctx, model.StateUpdate{
		NodesToUpdate: []model.NodeUpdate{{ID: c.NodeID, MeasuredPorts: ports}},
	}, model.ActionAddPorts)
}

func (b *Builtins) updatePorts(ctx context.Context, c UpdatePorts) error {
	n, ok := b.env.Lookup().Node(c.NodeID)
	if !ok {
		return b.noop(NameUpdatePorts, "unknown node")
	}
	ports := slices.Clone(n.MeasuredPorts)
	changed := false
	for _, pu := range c.Ports {
		i := slices.IndexFunc(ports, func(x model.Port) bool { return x.ID == pu.ID })
		if i < 0 {
			continue
		}
		next := applyPort(ports[i], pu)
		if !samePort(ports[i], next) {
			ports[i] = next
			changed = true
		}
	}
	if !changed {
		return b.noop(NameUpdatePorts, "ports unchanged")
	}
	return b.apply(ctx, model.StateUpdate{
		NodesToUpdate: []model.NodeUpdate{{ID: c.NodeID, MeasuredPorts: ports}},
	}, model.ActionUpdatePorts)
}

func (b *Builtins) deletePorts(ctx context.Context, c DeletePorts) error {
	lk := b.env.Lookup()
	n, ok := lk.Node(c.NodeID)
	if !ok {
		return b.noop(NameDeletePorts, "unknown node")
	}
	drop := toSet(c.PortIDs)
	ports := slices.DeleteFunc(slices.Clone(n.MeasuredPorts), func(p model.Port) bool { return drop[p.ID] })
	if len(ports) == len(n.MeasuredPorts) {
		return b.noop(NameDeletePorts, "no such ports")
	}
	if ports == nil {
		ports = []model.Port{}
	}

	u := model.StateUpdate{NodesToUpdate: []model.NodeUpdate{{ID: c.NodeID, MeasuredPorts: ports}}}
	for _, e := range lk.ConnectedEdges(c.NodeID) {
		if (e.Source == c.NodeID && drop[e.SourcePort]) || (e.Target == c.NodeID && drop[e.TargetPort]) {
			u.EdgesToRemove = append(u.EdgesToRemove, e.ID)
		}
	}
	return b.apply(ctx, u, model.ActionDeletePorts)
}

func applyPort(p model.Port, u PortUpdate) model.Port {
	if u.Side != nil {
		p.Side = *u.Side
	}
	if u.Type != nil {
		p.Type = *u.Type
	}
	if u.Size != nil {
		p.Size = model.Ptr(*u.Size)
	}
	if u.Position != nil {
		p.Position = model.Ptr(*u.Position)
	}
	return p
}

func samePort(a, b model.Port) bool {
	return a.Side == b.Side && a.Type == b.Type && equalPtr(a.Size, b.Size) && equalPtr(a.Position, b.Position)
}

func (b *Builtins) addEdgeLabels(ctx context.Context, c AddEdgeLabels) error {
	e, ok := b.env.Lookup().Edge(c.EdgeID)
	if !ok || len(c.Labels) == 0 {
		return b.noop(NameAddEdgeLabels, "unknown edge or no labels")
	}
	labels := slices.Clone(e.MeasuredLabels)
	for _, l := range c.Labels {
		if err := errors.ValidateID("label", l.ID); err != nil {
			return err
		}
		if err := errors.ValidateFraction("positionOnEdge", l.PositionOnEdge); err != nil {
			return err
		}
		if i := slices.IndexFunc(labels, func(x model.EdgeLabel) bool { return x.ID == l.ID }); i >= 0 {
			labels[i] = l
			continue
		}
		labels = append(labels, l)
	}
	return b.apply(ctx, model.StateUpdate{
		EdgesToUpdate: []model.EdgeUpdate{{ID: c.EdgeID, MeasuredLabels: labels}},
	}, model.ActionAddEdgeLabels)
}

func (b *Builtins) updateEdgeLabels(ctx context.Context, c UpdateEdgeLabels) error {
	e, ok := b.env.Lookup().Edge(c.EdgeID)
	if !ok {
		return b.noop(NameUpdateEdgeLabels, "unknown edge")
	}
	labels := slices.Clone(e.MeasuredLabels)
	changed := false
	for _, lu := range c.Labels {
		i := slices.IndexFunc(labels, func(x model.EdgeLabel) bool { return x.ID == lu.ID })
		if i < 0 {
			continue
		}
		next := labels[i]
		if lu.PositionOnEdge != nil {
			if err := errors.ValidateFraction("positionOnEdge", *lu.PositionOnEdge); err != nil {
				return err
			}
			next.PositionOnEdge = *lu.PositionOnEdge
		}
		if lu.Size != nil {
			next.Size = model.Ptr(*lu.Size)
		}
		if lu.Position != nil {
			next.Position = model.Ptr(*lu.Position)
		}
		cur := labels[i]
		if cur.PositionOnEdge != next.PositionOnEdge || !equalPtr(cur.Size, next.Size) || !equalPtr(cur.Position, next.Position) {
			labels[i] = next
			changed = true
		}
	}
	if !changed {
		return b.noop(NameUpdateEdgeLabels, "labels unchanged")
	}
	return b.apply(ctx, model.StateUpdate{
		EdgesToUpdate: []model.EdgeUpdate{{ID: c.EdgeID, MeasuredLabels: labels}},
	}, model.ActionUpdateLabels)
}

func (b *Builtins) deleteEdgeLabels(ctx context.Context, c DeleteEdgeLabels) error {
	e, ok := b.env.Lookup().Edge(c.EdgeID)
	if !ok {
		return b.noop(NameDeleteEdgeLabels, "unknown edge")
	}
	drop := toSet(c.LabelIDs)
	labels := slices.DeleteFunc(slices.Clone(e.MeasuredLabels), func(l model.EdgeLabel) bool { return drop[l.ID] })
	if len(labels) == len(e.MeasuredLabels) {
		return b.noop(NameDeleteEdgeLabels, "no such labels")
	}
	if labels == nil {
		labels = []model.EdgeLabel{}
	}
	return b.apply(ctx, model.StateUpdate{
		EdgesToUpdate: []model.EdgeUpdate{{ID: c.EdgeID, MeasuredLabels: labels}},
	}, model.ActionDeleteLabels)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
