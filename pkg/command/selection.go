package command

import (
	"context"

	"github.com/matzehuels/flowcore/pkg/model"
)

func (b *Builtins) selectItems(ctx context.Context, c Select) error {
	state := b.env.State()
	nodeSet := toSet(c.NodeIDs)
	edgeSet := toSet(c.EdgeIDs)

	var u model.StateUpdate
	for _, n := range state.Nodes {
		want := nodeSet[n.ID] || (c.PreserveSelection && n.Selected)
		if want != n.Selected {
			u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: n.ID, Selected: model.Ptr(want)})
		}
	}
	for _, e := range state.Edges {
		want := edgeSet[e.ID] || (c.PreserveSelection && e.Selected)
		if want != e.Selected {
			u.EdgesToUpdate = append(u.EdgesToUpdate, model.EdgeUpdate{ID: e.ID, Selected: model.Ptr(want)})
		}
	}
	if u.IsEmpty() {
		return b.noop(NameSelect, "selection unchanged")
	}
	return b.apply(ctx, u, model.ActionChangeSelection)
}

func (b *Builtins) deselect(ctx context.Context, c Deselect) error {
	state := b.env.State()
	nodeSet := toSet(c.NodeIDs)
	edgeSet := toSet(c.EdgeIDs)

	var u model.StateUpdate
	for _, n := range state.Nodes {
		if n.Selected && nodeSet[n.ID] {
			u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: n.ID, Selected: model.Ptr(false)})
		}
	}
	for _, e := range state.Edges {
		if e.Selected && edgeSet[e.ID] {
			u.EdgesToUpdate = append(u.EdgesToUpdate, model.EdgeUpdate{ID: e.ID, Selected: model.Ptr(false)})
		}
	}
	if u.IsEmpty() {
		return b.noop(NameDeselect, "nothing selected")
	}
	return b.apply(ctx, u, model.ActionChangeSelection)
}

func (b *Builtins) setAllSelected(ctx context.Context, selected bool) error {
	state := b.env.State()
	var u model.StateUpdate
	for _, n := range state.Nodes {
		if n.Selected != selected {
			u.NodesToUpdate = append(u.NodesToUpdate, model.NodeUpdate{ID: n.ID, Selected: model.Ptr(selected)})
		}
	}
	for _, e := range state.Edges {
		if e.Selected != selected {
			u.EdgesToUpdate = append(u.EdgesToUpdate, model.EdgeUpdate{ID: e.ID, Selected: model.Ptr(selected)})
		}
	}
	if u.IsEmpty() {
		return b.noop("selectAll", "selection unchanged")
	}
	return b.apply(ctx, u, model.ActionChangeSelection)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
