package flowcore

import "github.com/matzehuels/flowcore/pkg/model"

// OverlappingNodes returns the nodes whose shape overlaps nodeID. Touching
// edges do not overlap.
func (f *FlowCore) OverlappingNodes(nodeID string) []model.Node {
	return f.nodes(f.Spatial().OverlappingNodes(nodeID))
}

// NodesInRange returns the nodes whose bounds intersect r.
func (f *FlowCore) NodesInRange(r model.Rect) []model.Node {
	return f.nodes(f.Spatial().QueryIDs(r))
}

// nodes resolves ids through the lookup, skipping port entries and ids that
// vanished since the index was built.
func (f *FlowCore) nodes(ids []string) []model.Node {
	var out []model.Node
	for _, id := range ids {
		if n, ok := f.lookup.Node(id); ok {
			out = append(out, n)
		}
	}
	return out
}

// ClientToFlowPosition converts a point on the drawing surface to diagram
// coordinates.
func (f *FlowCore) ClientToFlowPosition(p model.Point) model.Point {
	vp := f.adapter.Metadata().Viewport
	scale := vp.Scale
	if scale == 0 {
		scale = 1
	}
	return model.Point{X: (p.X - vp.X) / scale, Y: (p.Y - vp.Y) / scale}
}

// FlowToClientPosition converts diagram coordinates to a point on the
// drawing surface.
func (f *FlowCore) FlowToClientPosition(p model.Point) model.Point {
	vp := f.adapter.Metadata().Viewport
	scale := vp.Scale
	if scale == 0 {
		scale = 1
	}
	return model.Point{X: p.X*scale + vp.X, Y: p.Y*scale + vp.Y}
}
