package dot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matzehuels/flowcore/pkg/model"
)

func fixture() ([]model.Node, []model.Edge) {
	nodes := []model.Node{
		{ID: "g", IsGroup: true, Size: &model.Size{Width: 300, Height: 200}},
		{ID: "inner", IsGroup: true, GroupID: "g", Size: &model.Size{Width: 100, Height: 100}},
		{ID: "a", GroupID: "inner", Size: &model.Size{Width: 40, Height: 20}, Selected: true},
		{ID: "b", Position: model.Point{X: 400}, Size: &model.Size{Width: 40, Height: 20}},
		{ID: "c"},
	}
	edges := []model.Edge{
		{ID: "e1", Source: "a", Target: "b"},
		{ID: "e2", Source: "b", Target: "g", Selected: true},
		{ID: "tmp", Source: "b", Temporary: true},
	}
	return nodes, edges
}

func TestToDOTNestsClusters(t *testing.T) {
	nodes, edges := fixture()
	src := ToDOT(nodes, edges, Options{})

	g := strings.Index(src, `subgraph "cluster_g"`)
	inner := strings.Index(src, `subgraph "cluster_inner"`)
	a := strings.Index(src, `"a" [`)
	assert.True(t, g >= 0 && inner > g && a > inner, "clusters should nest:\n%s", src)
	assert.Contains(t, src, `"g" [shape=point, style=invis]`)
	assert.Contains(t, src, "splines=spline;")
}

func TestToDOTStyles(t *testing.T) {
	nodes, edges := fixture()
	src := ToDOT(nodes, edges, Options{Routing: "orthogonal"})

	assert.Contains(t, src, `"a" [label="a", color=blue, penwidth=2]`)
	assert.Contains(t, src, `"c" [label="c", style="rounded,filled,dashed", fillcolor=lightgrey]`)
	assert.Contains(t, src, `"b" -> "g" [color=blue, penwidth=2]`)
	assert.Contains(t, src, `"b" -> "" [style=dashed]`)
	assert.Contains(t, src, "splines=ortho;")
}

func TestToDOTDetailedAndPinned(t *testing.T) {
	nodes := []model.Node{{ID: "a", Position: model.Point{X: 72, Y: 144}, Size: &model.Size{Width: 0, Height: 0}, Data: map[string]any{"kind": "task"}}}
	src := ToDOT(nodes, nil, Options{Detailed: true, Pinned: true})

	assert.Contains(t, src, "layout=neato;")
	assert.Contains(t, src, `pos="1.00,-2.00!"`)
	assert.Contains(t, src, `kind: task`)
}

func TestToDOTSurvivesGroupCycle(t *testing.T) {
	nodes := []model.Node{
		{ID: "x", IsGroup: true, GroupID: "y"},
		{ID: "y", IsGroup: true, GroupID: "x"},
	}
	src := ToDOT(nodes, nil, Options{})
	assert.Contains(t, src, `"x"`)
	assert.Contains(t, src, `"y"`)
}

func TestRendererKeepsLastFrame(t *testing.T) {
	r := NewRenderer(Options{})
	assert.Empty(t, r.DOT())
	_, err := r.SVG()
	assert.Error(t, err)

	nodes, edges := fixture()
	r.Draw(nodes, edges, model.Viewport{Scale: 1})
	r.Draw(nodes[:1], nil, model.Viewport{Scale: 1})

	assert.Equal(t, 2, r.Frames())
	assert.NotContains(t, r.DOT(), `"b"`)
}
