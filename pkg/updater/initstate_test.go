package updater

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/model"
)

func TestInitStateMeasurements(t *testing.T) {
	state := model.State{
		Nodes: []model.Node{
			{ID: "a", Size: &model.Size{Width: 10, Height: 10}},
			{ID: "b", MeasuredPorts: []model.Port{{ID: "p"}}},
		},
		Edges: []model.Edge{{ID: "e", Source: "a", Target: "b"}},
	}
	s := NewInitState()
	s.CollectAlreadyMeasuredItems(state)
	assert.False(t, s.AllEntitiesHaveMeasurements(2))

	s.AddNodeSize("b", model.Size{Width: 20, Height: 20})
	assert.False(t, s.AllEntitiesHaveMeasurements(2), "port p is not measured")

	s.AddPortRects("b", []PortRect{{PortID: "p", Size: model.Size{Width: 4, Height: 4}, Position: model.Point{X: 1}}})
	assert.True(t, s.AllEntitiesHaveMeasurements(2))

	s.AddLabel("e", model.EdgeLabel{ID: "l", PositionOnEdge: 0.5})
	assert.False(t, s.AllEntitiesHaveMeasurements(2))
	s.AddLabelSize("e", "l", model.Size{Width: 30, Height: 10})
	assert.True(t, s.AllEntitiesHaveMeasurements(2))

	next, changed := s.ApplyToDiagramState(state)
	require.True(t, changed)
	assert.Nil(t, state.Nodes[1].Size, "input is not modified")

	b := next.Nodes[1]
	assert.Equal(t, model.Size{Width: 20, Height: 20}, *b.Size)
	p, ok := b.Port("p")
	require.True(t, ok)
	assert.Equal(t, model.Size{Width: 4, Height: 4}, *p.Size)
	assert.Equal(t, "b", p.NodeID)

	l, ok := next.Edges[0].Label("l")
	require.True(t, ok)
	assert.Equal(t, model.Size{Width: 30, Height: 10}, *l.Size)
}

func TestInitStateIgnoresUntrackedNodes(t *testing.T) {
	s := NewInitState()
	s.CollectAlreadyMeasuredItems(model.State{Nodes: []model.Node{{ID: "a"}, {ID: "b"}}})

	s.AddNodeSize("a", model.Size{Width: 10, Height: 10})
	s.AddNodeSize("ghost", model.Size{Width: 10, Height: 10})
	assert.False(t, s.NodesMeasured(2), "a size for a node outside the diagram measures nothing")
	assert.False(t, s.AllEntitiesHaveMeasurements(2))

	s.AddNodeSize("b", model.Size{Width: 0, Height: 10})
	assert.False(t, s.AllEntitiesHaveMeasurements(2), "zero width is not a measurement")

	s.AddNodeSize("b", model.Size{Width: 20, Height: 10})
	assert.True(t, s.AllEntitiesHaveMeasurements(2))
	assert.False(t, s.AllEntitiesHaveMeasurements(3), "only two nodes are tracked")
}

func TestInitStateRelease(t *testing.T) {
	state := model.State{Nodes: []model.Node{{ID: "a", Size: &model.Size{Width: 5, Height: 5}}}}
	s := NewInitState()
	s.CollectAlreadyMeasuredItems(state)
	s.AddNodeSize("a", model.Size{Width: 10, Height: 10})
	s.AddPort(model.Port{ID: "p", NodeID: "a"})
	rect := PortRect{PortID: "p", Size: model.Size{Width: 2, Height: 2}, Position: model.Point{X: 1}}
	s.AddPortRects("a", []PortRect{rect})

	assert.Nil(t, s.Release(Arrival{Kind: KindNodeSize, OwnerID: "a"}))
	handed := s.Release(Arrival{Kind: KindPort, OwnerID: "a", Port: model.Port{ID: "p"}})
	assert.Equal(t, []Arrival{{Kind: KindPortRect, OwnerID: "a", Rects: []PortRect{rect}}}, handed)

	_, changed := s.ApplyToDiagramState(state)
	assert.False(t, changed, "released entities are left alone")
	assert.True(t, s.PortsMeasured())
}

func TestInitStateAddedPortWins(t *testing.T) {
	state := model.State{Nodes: []model.Node{
		{ID: "a", MeasuredPorts: []model.Port{{ID: "p", Side: model.PortSideLeft}, {ID: "q"}}},
	}}
	s := NewInitState()
	s.AddPort(model.Port{ID: "p", NodeID: "a", Side: model.PortSideRight})
	s.AddPort(model.Port{ID: "r", NodeID: "a"})

	next, changed := s.ApplyToDiagramState(state)
	require.True(t, changed)
	ports := next.Nodes[0].MeasuredPorts
	require.Len(t, ports, 3)
	assert.Equal(t, model.PortSideRight, ports[0].Side)
	assert.Equal(t, "q", ports[1].ID)
	assert.Equal(t, "r", ports[2].ID)

	_, changed = NewInitState().ApplyToDiagramState(state)
	assert.False(t, changed)
}

func TestLateArrivalQueue(t *testing.T) {
	var q LateArrivalQueue
	assert.False(t, q.Enqueue(Arrival{Kind: KindNodeSize, OwnerID: "x"}))

	q.StartFinishing()
	assert.True(t, q.Enqueue(Arrival{Kind: KindNodeSize, OwnerID: "a"}))
	assert.True(t, q.Enqueue(Arrival{Kind: KindPort, OwnerID: "a", Port: model.Port{ID: "p"}}))
	assert.True(t, q.Enqueue(Arrival{Kind: KindLabelSize, OwnerID: "e", LabelID: "l"}))
	assert.Equal(t, 3, q.Len())

	rec := &recorder{}
	require.NoError(t, q.ProcessAll(context.Background(), rec))
	calls := rec.all()
	require.Len(t, calls, 3)
	assert.Equal(t, []Kind{KindNodeSize, KindPort, KindLabelSize}, []Kind{calls[0].Kind, calls[1].Kind, calls[2].Kind})
	assert.False(t, q.Finishing())
	assert.Zero(t, q.Len())

	// Repeated processing is a no-op.
	require.NoError(t, q.ProcessAll(context.Background(), rec))
	assert.Len(t, rec.all(), 3)
	assert.False(t, q.Enqueue(Arrival{}))
}
