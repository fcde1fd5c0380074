package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/model"
)

func cfgWith(fn func(*config.Config)) ConfigSource {
	c := config.Default()
	fn(&c)
	return func() config.Config { return c }
}

func TestSnapping(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    model.Point
	}{
		{"disabled keeps position", false, model.Point{X: 13, Y: 27}},
		{"enabled rounds to grid", true, model.Point{X: 10, Y: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil)
			require.NoError(t, m.Register(Snapping(cfgWith(func(c *config.Config) { c.Snapping.Enabled = tt.enabled }))))

			u := model.StateUpdate{NodesToUpdate: []model.NodeUpdate{{ID: "a", Position: &model.Point{X: 13, Y: 27}}}}
			got, ok := m.Execute(context.Background(), baseState(), u, model.ActionMoveNodes)
			require.True(t, ok)

			n, _ := got.Node("a")
			assert.Equal(t, tt.want, n.Position)
			b, _ := got.Node("b")
			assert.Equal(t, model.Point{X: 50}, b.Position)
		})
	}
}

func TestSnappingDoesNotMutateInput(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(Snapping(cfgWith(func(c *config.Config) { c.Snapping.Enabled = true }))))

	base := baseState()
	u := model.StateUpdate{NodesToAdd: []model.Node{{ID: "c", Position: model.Point{X: 4, Y: 6}}}}
	got, ok := m.Execute(context.Background(), base, u, model.ActionAddNodes)
	require.True(t, ok)

	c, _ := got.Node("c")
	assert.Equal(t, model.Point{X: 0, Y: 10}, c.Position)
	assert.Len(t, base.Nodes, 2)
}

func TestZIndexRaisesSelected(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(ZIndex(cfgWith(func(c *config.Config) { c.ZIndex.ElevateEdges = true }))))

	base := baseState()
	base.Nodes[1].ZOrder = 4
	u := model.StateUpdate{NodesToUpdate: []model.NodeUpdate{{ID: "a", Selected: model.Ptr(true)}}}
	got, ok := m.Execute(context.Background(), base, u, model.ActionChangeSelection)
	require.True(t, ok)

	a, _ := got.Node("a")
	assert.Equal(t, 5, a.ZOrder)
	e, _ := got.Edge("e1")
	assert.Equal(t, 1, e.ZOrder)
	assert.Zero(t, base.Nodes[0].ZOrder)
}

func TestZIndexIgnoresOtherActions(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(ZIndex(cfgWith(func(*config.Config) {}))))

	u := model.StateUpdate{NodesToUpdate: []model.NodeUpdate{{ID: "a", Selected: model.Ptr(true)}}}
	got, ok := m.Execute(context.Background(), baseState(), u, model.ActionUpdateNode)
	require.True(t, ok)

	a, _ := got.Node("a")
	assert.Zero(t, a.ZOrder)
}
