package updater

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/model"
)

func portState() model.State {
	return model.State{
		Nodes: []model.Node{
			{ID: "a", Size: &model.Size{Width: 10, Height: 10}, MeasuredPorts: []model.Port{
				{ID: "p", NodeID: "a", Size: &model.Size{Width: 1, Height: 1}, Position: &model.Point{}},
			}},
			{ID: "b"},
		},
		Edges: []model.Edge{{ID: "e", Source: "a", Target: "b", MeasuredLabels: []model.EdgeLabel{
			{ID: "l", PositionOnEdge: 0.5, Size: &model.Size{Width: 5, Height: 5}},
		}}},
	}
}

func TestInternalApplyNodeSize(t *testing.T) {
	e := newEngine(portState())
	u := NewInternalUpdater(e, NewDirectStrategy(e, delay, clockwork.NewFakeClock(), nil), nil)
	ctx := context.Background()

	require.NoError(t, u.ApplyNodeSize(ctx, "a", model.Size{Width: 10, Height: 10}))
	require.NoError(t, u.ApplyNodeSize(ctx, "missing", model.Size{Width: 1, Height: 1}))
	e.act.StartResize("b")
	require.NoError(t, u.ApplyNodeSize(ctx, "b", model.Size{Width: 1, Height: 1}))
	assert.Empty(t, e.commands())

	e.act.EndResize("b")
	require.NoError(t, u.ApplyNodeSize(ctx, "b", model.Size{Width: 1, Height: 1}))
	assert.Equal(t, []model.Command{
		command.ResizeNode{ID: "b", Size: model.Size{Width: 1, Height: 1}, Measured: true},
	}, e.commands())
}

func TestInternalPortsDiff(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, u *InternalUpdater)
		want []model.Command
	}{
		{
			name: "UnchangedGeometry",
			run: func(ctx context.Context, u *InternalUpdater) {
				_ = u.ApplyPortsSizesAndPositions(ctx, "a", []PortRect{{PortID: "p", Size: model.Size{Width: 1, Height: 1}}})
			},
		},
		{
			name: "ChangedGeometry",
			run: func(ctx context.Context, u *InternalUpdater) {
				_ = u.ApplyPortsSizesAndPositions(ctx, "a", []PortRect{{PortID: "p", Size: model.Size{Width: 3, Height: 3}}})
			},
			want: []model.Command{command.UpdatePorts{NodeID: "a", Ports: []command.PortUpdate{
				{ID: "p", Size: &model.Size{Width: 3, Height: 3}, Position: &model.Point{}},
			}}},
		},
		{
			name: "NewPortWithGeometry",
			run: func(ctx context.Context, u *InternalUpdater) {
				_ = u.AddPort(ctx, "a", model.Port{ID: "q", Side: model.PortSideTop})
				_ = u.ApplyPortsSizesAndPositions(ctx, "a", []PortRect{{PortID: "q", Size: model.Size{Width: 2, Height: 2}, Position: model.Point{X: 4}}})
			},
			want: []model.Command{command.AddPorts{NodeID: "a", Ports: []model.Port{
				{ID: "q", NodeID: "a", Side: model.PortSideTop, Size: &model.Size{Width: 2, Height: 2}, Position: &model.Point{X: 4}},
			}}},
		},
		{
			name: "UnknownNode",
			run: func(ctx context.Context, u *InternalUpdater) {
				_ = u.AddPort(ctx, "zzz", model.Port{ID: "q"})
			},
		},
		{
			name: "NewLabel",
			run: func(ctx context.Context, u *InternalUpdater) {
				_ = u.AddEdgeLabel(ctx, "e", model.EdgeLabel{ID: "m", PositionOnEdge: 0.2})
				_ = u.ApplyEdgeLabelSize(ctx, "e", "m", model.Size{Width: 8, Height: 4})
			},
			want: []model.Command{command.AddEdgeLabels{EdgeID: "e", Labels: []model.EdgeLabel{
				{ID: "m", PositionOnEdge: 0.2, Size: &model.Size{Width: 8, Height: 4}},
			}}},
		},
		{
			name: "ResizedLabel",
			run: func(ctx context.Context, u *InternalUpdater) {
				_ = u.ApplyEdgeLabelSize(ctx, "e", "l", model.Size{Width: 6, Height: 5})
			},
			want: []model.Command{command.UpdateEdgeLabels{EdgeID: "e", Labels: []command.LabelUpdate{
				{ID: "l", Size: &model.Size{Width: 6, Height: 5}},
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(portState())
			u := NewInternalUpdater(e, NewDirectStrategy(e, delay, clockwork.NewFakeClock(), nil), nil)
			ctx := context.Background()
			tt.run(ctx, u)
			require.NoError(t, u.Flush(ctx))
			if tt.want == nil {
				assert.Empty(t, e.commands())
				return
			}
			assert.Equal(t, tt.want, e.commands())
		})
	}
}

func TestDirectStrategyDebounces(t *testing.T) {
	e := newEngine(portState())
	clock := clockwork.NewFakeClock()
	u := NewInternalUpdater(e, NewDirectStrategy(e, delay, clock, nil), nil)
	ctx := context.Background()

	require.NoError(t, u.AddPort(ctx, "a", model.Port{ID: "q"}))
	clock.Advance(delay / 2)
	require.NoError(t, u.AddPort(ctx, "a", model.Port{ID: "r"}))
	clock.Advance(delay / 2)
	assert.Empty(t, e.commands())

	clock.Advance(delay)
	require.Eventually(t, func() bool { return len(e.commands()) == 1 }, time.Second, time.Millisecond)
	add, ok := e.commands()[0].(command.AddPorts)
	require.True(t, ok)
	assert.Len(t, add.Ports, 2)
}

func TestVirtualizedStrategyOneTransaction(t *testing.T) {
	e := newEngine(portState())
	clock := clockwork.NewFakeClock()
	u := NewInternalUpdater(e, NewVirtualizedStrategy(e, delay, clock, nil), nil)
	ctx := context.Background()

	require.NoError(t, u.AddPort(ctx, "a", model.Port{ID: "q"}))
	require.NoError(t, u.AddPort(ctx, "b", model.Port{ID: "q"}))
	require.NoError(t, u.ApplyEdgeLabelSize(ctx, "e", "l", model.Size{Width: 9, Height: 9}))

	clock.Advance(delay)
	require.Eventually(t, func() bool { return len(e.commands()) == 3 }, time.Second, time.Millisecond)
	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Equal(t, []string{"virtualizedMeasurements"}, e.txNames)
}

func TestStrategyStopDropsPending(t *testing.T) {
	e := newEngine(portState())
	clock := clockwork.NewFakeClock()
	u := NewInternalUpdater(e, NewDirectStrategy(e, delay, clock, nil), nil)

	require.NoError(t, u.AddPort(context.Background(), "a", model.Port{ID: "q"}))
	u.Stop()
	clock.Advance(delay)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, e.commands())
}
