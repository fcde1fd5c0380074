// Package dot renders diagram state as Graphviz graphs.
//
// # Overview
//
// The package turns a committed diagram into DOT source and renders it to
// SVG in process. It is a debugging aid: the layout comes from Graphviz, not
// from the node positions, unless [Options.Pinned] is set.
//
// # Usage
//
//	src := dot.ToDOT(state.Nodes, state.Edges, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(src)
//
// [Renderer] keeps the DOT source of the last frame it was asked to draw, so
// it can be plugged into the engine and inspected later:
//
//	r := dot.NewRenderer(dot.Options{})
//	core, _ := flowcore.New(adapter, r)
//	svg, err := r.SVG()
//
// # DOT Format
//
// Group nodes become clusters containing their children; nested groups nest
// clusters. Each group also gets an invisible anchor node carrying its id so
// edges can end on a group. Selected nodes and edges are drawn in blue, the
// temporary edge of an active link is dashed.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package dot
