// Package render defines how committed diagram state reaches a renderer.
//
// The engine calls [Renderer.Draw] after every model change with the
// committed nodes, the committed edges plus the temporary edge of an active
// link, and the viewport. Renderers must not retain the slices.
//
// Package [dot] provides a Graphviz renderer for debugging and the CLI.
//
// [dot]: github.com/matzehuels/flowcore/pkg/render/dot
package render

import "github.com/matzehuels/flowcore/pkg/model"

// Renderer consumes committed state.
type Renderer interface {
	Draw(nodes []model.Node, edges []model.Edge, viewport model.Viewport)
}

// Func adapts a function to Renderer.
type Func func(nodes []model.Node, edges []model.Edge, viewport model.Viewport)

// Draw implements Renderer.
func (f Func) Draw(nodes []model.Node, edges []model.Edge, viewport model.Viewport) {
	f(nodes, edges, viewport)
}

// Nop discards every frame.
type Nop struct{}

func (Nop) Draw([]model.Node, []model.Edge, model.Viewport) {}

// Multi draws every frame on each renderer in order.
func Multi(renderers ...Renderer) Renderer {
	return Func(func(nodes []model.Node, edges []model.Edge, vp model.Viewport) {
		for _, r := range renderers {
			r.Draw(nodes, edges, vp)
		}
	})
}
