package middleware

import (
	"context"
	"slices"

	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Names of the policy middlewares installed by the engine.
const (
	SnappingName = "snapping"
	ZIndexName   = "zIndex"
)

// ConfigSource returns the current engine configuration.
type ConfigSource func() config.Config

// Snapping rounds the positions of added and moved nodes to the grid when
// snapping is enabled.
func Snapping(cfg ConfigSource) Middleware {
	return Func(SnappingName, func(_ context.Context, mc *Context) (model.State, bool) {
		c := cfg()
		if !c.Snapping.Enabled {
			return mc.State, true
		}

		ids := make(map[string]bool)
		for _, n := range mc.Update.NodesToAdd {
			ids[n.ID] = true
		}
		for _, u := range mc.Update.NodesToUpdate {
			if u.Position != nil {
				ids[u.ID] = true
			}
		}
		if len(ids) == 0 {
			return mc.State, true
		}

		out := mc.State
		out.Nodes = slices.Clone(mc.State.Nodes)
		for i, n := range out.Nodes {
			if !ids[n.ID] {
				continue
			}
			out.Nodes[i].Position = model.Point{X: c.SnapToGrid(n.Position.X), Y: c.SnapToGrid(n.Position.Y)}
		}
		return out, true
	})
}

// ZIndex raises newly selected nodes above every other node when
// SelectedOnTop is set. With ElevateEdges, edges that became selected or
// touch a raised node are raised above every other edge.
func ZIndex(cfg ConfigSource) Middleware {
	return Func(ZIndexName, func(_ context.Context, mc *Context) (model.State, bool) {
		c := cfg()
		if !c.ZIndex.SelectedOnTop || !mc.ActionIs(model.ActionChangeSelection, model.ActionPaste) {
			return mc.State, true
		}

		before := indexNodes(mc.InitialState.Nodes)
		raised := make(map[string]bool)
		for _, n := range mc.State.Nodes {
			if n.Selected && !before[n.ID].Selected {
				raised[n.ID] = true
			}
		}

		out := mc.State
		if len(raised) > 0 {
			top := maxZ(mc.State.Nodes, func(n model.Node) int { return n.ZOrder })
			out.Nodes = slices.Clone(mc.State.Nodes)
			for i, n := range out.Nodes {
				if raised[n.ID] {
					top++
					out.Nodes[i].ZOrder = top
				}
			}
		}

		if !c.ZIndex.ElevateEdges {
			return out, true
		}
		edgesBefore := indexEdges(mc.InitialState.Edges)
		top := maxZ(mc.State.Edges, func(e model.Edge) int { return e.ZOrder })
		var edges []model.Edge
		for i, e := range mc.State.Edges {
			newly := e.Selected && !edgesBefore[e.ID].Selected
			if !newly && !raised[e.Source] && !raised[e.Target] {
				continue
			}
			if edges == nil {
				edges = slices.Clone(mc.State.Edges)
			}
			top++
			edges[i].ZOrder = top
		}
		if edges != nil {
			out.Edges = edges
		}
		return out, true
	})
}

func maxZ[T any](items []T, z func(T) int) int {
	top := 0
	for _, it := range items {
		top = max(top, z(it))
	}
	return top
}
