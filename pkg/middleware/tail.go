package middleware

import (
	"context"
	"slices"

	"github.com/matzehuels/flowcore/pkg/events"
	"github.com/matzehuels/flowcore/pkg/measure"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Bounds recomputes MeasuredBounds for sized nodes that are new or whose
// position, size or angle changed.
func Bounds() Middleware {
	return Func(BoundsName, func(_ context.Context, mc *Context) (model.State, bool) {
		before := indexNodes(mc.InitialState.Nodes)
		state := mc.State
		cloned := false
		for i, n := range state.Nodes {
			if n.Size == nil {
				continue
			}
			old, existed := before[n.ID]
			if existed && n.MeasuredBounds != nil && !geometryChanged(old, n) {
				continue
			}
			b := model.RotatedBounds(n.Rect(), n.Angle)
			if n.MeasuredBounds != nil && *n.MeasuredBounds == b {
				continue
			}
			if !cloned {
				state.Nodes = slices.Clone(state.Nodes)
				cloned = true
			}
			state.Nodes[i].MeasuredBounds = &b
		}
		return state, true
	})
}

func geometryChanged(a, b model.Node) bool {
	if a.Position != b.Position || a.Angle != b.Angle {
		return true
	}
	if (a.Size == nil) != (b.Size == nil) {
		return true
	}
	return a.Size != nil && *a.Size != *b.Size
}

// Logging logs the update at debug level.
func Logging() Middleware {
	return Func(LoggingName, func(_ context.Context, mc *Context) (model.State, bool) {
		if mc.Logger != nil {
			u := mc.Update
			mc.Logger.Debug("apply update",
				"actions", mc.ActionTypes,
				"nodes+", len(u.NodesToAdd), "nodes~", len(u.NodesToUpdate), "nodes-", len(u.NodesToRemove),
				"edges+", len(u.EdgesToAdd), "edges~", len(u.EdgesToUpdate), "edges-", len(u.EdgesToRemove),
				"metadata", u.MetadataUpdate != nil,
			)
		}
		return mc.State, true
	})
}

// MeasurementTracking registers with t the nodes that need a measured size
// (added without one, or resized) and the edges that gained labels.
func MeasurementTracking(t *measure.Tracker) Middleware {
	return Func(MeasurementName, func(_ context.Context, mc *Context) (model.State, bool) {
		var ids []string
		for _, n := range mc.Update.NodesToAdd {
			if n.Size == nil {
				ids = append(ids, n.ID)
			}
		}
		for _, u := range mc.Update.NodesToUpdate {
			if u.Size != nil {
				ids = append(ids, u.ID)
			}
		}
		for _, e := range mc.Update.EdgesToAdd {
			if len(e.MeasuredLabels) > 0 {
				ids = append(ids, e.ID)
			}
		}
		if mc.ActionIs(model.ActionAddEdgeLabels) {
			for _, u := range mc.Update.EdgesToUpdate {
				ids = append(ids, u.ID)
			}
		}
		t.Track(ids...)
		return mc.State, true
	})
}

// EventEmission diffs the initial and final state and defers the resulting
// events into em.
func EventEmission(em *events.Manager) Middleware {
	return Func(EventsName, func(_ context.Context, mc *Context) (model.State, bool) {
		em.Defer(Diff(mc.InitialState, mc.State, mc.ActionTypes)...)
		return mc.State, true
	})
}

// Diff derives the semantic events between two states.
func Diff(before, after model.State, actions []model.ActionType) []events.Event {
	var action model.ActionType
	if len(actions) > 0 {
		action = actions[0]
	}

	oldNodes := indexNodes(before.Nodes)
	newNodes := indexNodes(after.Nodes)
	oldEdges := indexEdges(before.Edges)
	newEdges := indexEdges(after.Edges)

	var added, removed, moved, resized, rotated, regrouped, selNodes []string
	for _, n := range after.Nodes {
		old, ok := oldNodes[n.ID]
		if !ok {
			added = append(added, n.ID)
			continue
		}
		if old.Position != n.Position {
			moved = append(moved, n.ID)
		}
		if !sameSize(old.Size, n.Size) {
			resized = append(resized, n.ID)
		}
		if old.Angle != n.Angle {
			rotated = append(rotated, n.ID)
		}
		if old.GroupID != n.GroupID {
			regrouped = append(regrouped, n.ID)
		}
		if old.Selected != n.Selected {
			selNodes = append(selNodes, n.ID)
		}
	}
	for _, n := range before.Nodes {
		if _, ok := newNodes[n.ID]; !ok {
			removed = append(removed, n.ID)
		}
	}

	var edgesAdded, edgesRemoved, selEdges []string
	for _, e := range after.Edges {
		old, ok := oldEdges[e.ID]
		if !ok {
			edgesAdded = append(edgesAdded, e.ID)
			continue
		}
		if old.Selected != e.Selected {
			selEdges = append(selEdges, e.ID)
		}
	}
	for _, e := range before.Edges {
		if _, ok := newEdges[e.ID]; !ok {
			edgesRemoved = append(edgesRemoved, e.ID)
		}
	}

	var out []events.Event
	emit := func(t events.Type, nodes, edges []string) {
		if len(nodes) == 0 && len(edges) == 0 {
			return
		}
		out = append(out, events.Event{Type: t, NodeIDs: nodes, EdgeIDs: edges, Action: action})
	}
	emit(events.NodesAdded, added, nil)
	emit(events.EdgesAdded, nil, edgesAdded)
	emit(events.NodesMoved, moved, nil)
	for _, id := range resized {
		emit(events.NodeResized, []string{id}, nil)
	}
	emit(events.NodeRotated, rotated, nil)
	emit(events.GroupMembershipChanged, regrouped, nil)
	emit(events.SelectionChanged, selNodes, selEdges)
	emit(events.EdgesRemoved, nil, edgesRemoved)
	emit(events.NodesRemoved, removed, nil)

	if before.Metadata.Viewport != after.Metadata.Viewport {
		vp := after.Metadata.Viewport
		out = append(out, events.Event{Type: events.ViewportChanged, Viewport: &vp, Action: action})
	}
	if slices.Contains(actions, model.ActionInit) {
		out = append(out, events.Event{Type: events.DiagramInit, Action: action})
	}
	return out
}

func sameSize(a, b *model.Size) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func indexNodes(nodes []model.Node) map[string]model.Node {
	m := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

func indexEdges(edges []model.Edge) map[string]model.Edge {
	m := make(map[string]model.Edge, len(edges))
	for _, e := range edges {
		m[e.ID] = e
	}
	return m
}
