package flowcore

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/adapter/memory"
	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/events"
	"github.com/matzehuels/flowcore/pkg/middleware"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/observability"
	"github.com/matzehuels/flowcore/pkg/render"
	"github.com/matzehuels/flowcore/pkg/transaction"
	"github.com/matzehuels/flowcore/pkg/updater"
)

var _ ModelAdapter = (*memory.Adapter)(nil)

func sized(id string, x, y, w, h float64) model.Node {
	return model.Node{ID: id, Position: model.Point{X: x, Y: y}, Size: &model.Size{Width: w, Height: h}}
}

func twoNodes() model.State {
	return model.State{
		Nodes:    []model.Node{sized("node1", 0, 0, 50, 50), sized("node2", 100, 0, 50, 50)},
		Metadata: model.Metadata{Viewport: model.Viewport{Scale: 1, Width: 1000, Height: 800}},
	}
}

func newCore(t *testing.T, state model.State, opts ...Option) (*FlowCore, *memory.Adapter) {
	t.Helper()
	a := memory.New(state)
	f, err := New(a, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, a
}

func TestSelectThroughEngine(t *testing.T) {
	f, a := newCore(t, twoNodes())
	ctx := context.Background()

	require.NoError(t, f.Emit(ctx, command.Select{NodeIDs: []string{"node1"}}))
	n, _ := f.Lookup().Node("node1")
	assert.True(t, n.Selected)
	v := a.Version()

	require.NoError(t, f.Emit(ctx, command.Select{NodeIDs: []string{"node1"}}))
	assert.Equal(t, v, a.Version(), "unchanged selection must not write")
}

func TestCenterOnNodeThroughEngine(t *testing.T) {
	state := twoNodes()
	state.Nodes[0].Position = model.Point{X: 100, Y: 100}
	f, _ := newCore(t, state)

	require.NoError(t, f.Emit(context.Background(), command.CenterOnNode{ID: "node1"}))
	assert.Equal(t, model.Viewport{X: 375, Y: 275, Scale: 1, Width: 1000, Height: 800}, f.State().Metadata.Viewport)
}

func TestThrowingRootTransactionNeverApplies(t *testing.T) {
	f, a := newCore(t, twoNodes())
	v := a.Version()
	boom := stderrors.New("boom")

	_, err := f.Transaction(context.Background(), "add", func(ctx context.Context, tx *transaction.Context) error {
		require.NoError(t, tx.Emit(command.AddNodes{Nodes: []model.Node{{ID: "n3"}}}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, v, a.Version())
	_, ok := f.Lookup().Node("n3")
	assert.False(t, ok)
	assert.Zero(t, f.Transactions().Depth())
}

func TestNestedAbortContributesNothing(t *testing.T) {
	f, a := newCore(t, twoNodes())
	v := a.Version()

	var applied []model.ActionType
	require.NoError(t, f.Middlewares().Register(middleware.Func("spy", func(_ context.Context, mc *middleware.Context) (model.State, bool) {
		applied = append(applied, mc.ActionTypes...)
		return mc.State, true
	})))

	res, err := f.Transaction(context.Background(), "build", func(ctx context.Context, tx *transaction.Context) error {
		if err := tx.Emit(command.AddNodes{Nodes: []model.Node{{ID: "n3"}}}); err != nil {
			return err
		}
		if _, err := f.Transaction(ctx, "link", func(_ context.Context, inner *transaction.Context) error {
			if err := inner.Emit(command.AddEdges{Edges: []model.Edge{{ID: "e", Source: "node1", Target: "node2"}}}); err != nil {
				return err
			}
			inner.Abort()
			return nil
		}); err != nil {
			return err
		}
		return tx.Emit(command.AddNodes{Nodes: []model.Node{{ID: "n4"}}})
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.CommandsCount)
	assert.Equal(t, []model.ActionType{"build", model.ActionAddNodes}, applied)
	assert.Equal(t, v+1, a.Version(), "one write for the whole transaction")

	s := f.State()
	assert.Len(t, s.Nodes, 4)
	assert.Empty(t, s.Edges)
	assert.Equal(t, "n3", s.Nodes[2].ID)
	assert.Equal(t, "n4", s.Nodes[3].ID)
}

func TestSequentialUpdatesDoNotInterleave(t *testing.T) {
	f, a := newCore(t, twoNodes())
	ctx := context.Background()
	v := a.Version()

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := sized(fmt.Sprintf("w%d", i), float64(i), 0, 1, 1)
			assert.NoError(t, f.ApplyUpdate(ctx, model.StateUpdate{NodesToAdd: []model.Node{n}}, model.ActionAddNodes))
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.State().Nodes, workers+2, "every update must see the previous commit")
	assert.Equal(t, v+workers, a.Version())
}

func TestApplyUpdateHonoursContext(t *testing.T) {
	f, _ := newCore(t, twoNodes())
	require.NoError(t, f.sem.Acquire(context.Background(), 1))
	defer f.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := f.ApplyUpdate(ctx, model.StateUpdate{NodesToRemove: []string{"node1"}}, model.ActionDeleteNodes)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDroppedUpdateDiscardsEvents(t *testing.T) {
	f, a := newCore(t, twoNodes())
	var got []events.Type
	f.Events().On(events.NodesMoved, func(e events.Event) { got = append(got, e.Type) })

	drop := true
	require.NoError(t, f.Middlewares().Register(middleware.Func("gate", func(_ context.Context, mc *middleware.Context) (model.State, bool) {
		return mc.State, !drop
	})))

	v := a.Version()
	require.NoError(t, f.Emit(context.Background(), command.MoveNodesBy{NodeIDs: []string{"node1"}, Delta: model.Point{X: 5}}))
	assert.Equal(t, v, a.Version())
	assert.Empty(t, got)

	drop = false
	require.NoError(t, f.Emit(context.Background(), command.MoveNodesBy{NodeIDs: []string{"node1"}, Delta: model.Point{X: 5}}))
	assert.Equal(t, []events.Type{events.NodesMoved}, got)
}

func TestEventHandlerMayEmit(t *testing.T) {
	f, _ := newCore(t, twoNodes())
	ctx := context.Background()
	f.Events().On(events.NodesMoved, func(events.Event) {
		assert.NoError(t, f.Emit(ctx, command.Select{NodeIDs: []string{"node2"}}))
	})

	require.NoError(t, f.Emit(ctx, command.MoveNodesBy{NodeIDs: []string{"node1"}, Delta: model.Point{Y: 1}}))
	n, _ := f.Lookup().Node("node2")
	assert.True(t, n.Selected)
}

func TestPanickingMiddlewareIsRecovered(t *testing.T) {
	f, a := newCore(t, twoNodes(), WithMiddlewares(middleware.Func("explode", func(context.Context, *middleware.Context) (model.State, bool) {
		panic("kaboom")
	})))
	v := a.Version()

	err := f.Emit(context.Background(), command.SelectAll{})
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))
	assert.Equal(t, v, a.Version())

	// The update lock was released.
	require.NoError(t, f.Middlewares().Unregister("explode"))
	require.NoError(t, f.Emit(context.Background(), command.SelectAll{}))
}

func TestDuplicateMiddlewareFailsNew(t *testing.T) {
	noop := func(_ context.Context, mc *middleware.Context) (model.State, bool) { return mc.State, true }
	_, err := New(memory.New(model.State{}), nil, WithMiddlewares(middleware.Func(middleware.SnappingName, noop)))
	assert.True(t, errors.Is(err, errors.ErrCodeDuplicateMiddleware))
}

func TestRendererSeesTemporaryEdge(t *testing.T) {
	var mu sync.Mutex
	var lastEdges []model.Edge
	r := render.Func(func(_ []model.Node, edges []model.Edge, _ model.Viewport) {
		mu.Lock()
		lastEdges = edges
		mu.Unlock()
	})
	state := twoNodes()
	f, err := New(memory.New(state), r)
	require.NoError(t, err)
	defer f.Close()

	ctx := context.Background()
	require.NoError(t, f.Emit(ctx, command.StartLinking{SourceNode: "node1"}))
	mu.Lock()
	require.Len(t, lastEdges, 1)
	assert.True(t, lastEdges[0].Temporary)
	mu.Unlock()

	require.NoError(t, f.Emit(ctx, command.FinishLinking{TargetNode: "node2"}))
	mu.Lock()
	require.Len(t, lastEdges, 1)
	assert.False(t, lastEdges[0].Temporary)
	assert.Equal(t, "node2", lastEdges[0].Target)
	mu.Unlock()
}

func TestStartCommitsMeasurements(t *testing.T) {
	clock := clockwork.NewFakeClock()
	state := model.State{Nodes: []model.Node{{ID: "a"}}}
	f, a := newCore(t, state, WithClock(clock))
	ctx := context.Background()

	var inits atomic.Int32
	f.Events().On(events.DiagramInit, func(events.Event) { inits.Add(1) })

	require.NoError(t, f.Start(ctx))
	require.NoError(t, f.Updater().ApplyNodeSize(ctx, "a", model.Size{Width: 30, Height: 10}))
	clock.Advance(config.DefaultStabilityDelay)

	select {
	case <-f.Ready():
	case <-time.After(time.Second):
		t.Fatal("engine never became ready")
	}
	n, _ := f.Lookup().Node("a")
	require.NotNil(t, n.Size)
	assert.Equal(t, model.Size{Width: 30, Height: 10}, *n.Size)
	assert.Equal(t, int32(1), inits.Load())
	require.Eventually(t, func() bool { return f.Debug().Info().InitPhase == "initialized" }, time.Second, time.Millisecond)
	assert.Positive(t, a.Version())
}

// readHook runs a callback once, on the next full state read.
type readHook struct {
	*memory.Adapter

	mu   sync.Mutex
	once func()
}

func (h *readHook) arm(fn func()) {
	h.mu.Lock()
	h.once = fn
	h.mu.Unlock()
}

func (h *readHook) State() model.State {
	h.mu.Lock()
	fn := h.once
	h.once = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.Adapter.State()
}

func TestStartKeepsConcurrentCommits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	state := twoNodes()
	state.Nodes[0].Size = nil
	h := &readHook{Adapter: memory.New(state)}
	f, err := New(h, nil, WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	ctx := context.Background()

	require.NoError(t, f.Start(ctx))
	clock.Advance(config.DefaultStabilityDelay)
	startup := f.InitUpdater()
	require.Eventually(t, func() bool {
		return startup.IsFinished(updater.KindPort) && startup.IsFinished(updater.KindLabel)
	}, time.Second, time.Millisecond)

	// node1 is selected while the initial commit reads the state.
	selected := make(chan error, 1)
	h.arm(func() {
		go func() { selected <- f.Emit(ctx, command.Select{NodeIDs: []string{"node1"}}) }()
		select {
		case err := <-selected:
			selected <- err
		case <-time.After(50 * time.Millisecond):
		}
	})
	require.NoError(t, f.Updater().ApplyNodeSize(ctx, "node1", model.Size{Width: 40, Height: 40}))
	require.NoError(t, <-selected)

	n, _ := f.Lookup().Node("node1")
	assert.True(t, n.Selected, "the selection survives the initial commit")
	require.NotNil(t, n.Size)
	assert.Equal(t, model.Size{Width: 40, Height: 40}, *n.Size)
}

func TestSteadyStateMeasurementEmitsResize(t *testing.T) {
	state := model.State{Nodes: []model.Node{sized("a", 0, 0, 10, 10)}}
	f, _ := newCore(t, state, WithConfig(func() config.Config {
		c := config.Default()
		c.Resize.MinWidth, c.Resize.MinHeight = 50, 50
		return c
	}()))
	ctx := context.Background()
	require.NoError(t, f.Start(ctx))
	<-f.Ready()

	want := model.Size{Width: 12, Height: 8}
	require.NoError(t, f.Updater().ApplyNodeSize(ctx, "a", want))
	require.Eventually(t, func() bool {
		n, _ := f.Lookup().Node("a")
		return n.Size != nil && *n.Size == want
	}, time.Second, time.Millisecond, "measured sizes ignore resize minimums")
}

func TestWaitForMeasurements(t *testing.T) {
	f, _ := newCore(t, twoNodes())
	ctx := context.Background()
	require.NoError(t, f.Start(ctx))
	<-f.Ready()

	done := make(chan error, 1)
	go func() {
		_, err := f.Transaction(ctx, "add", func(_ context.Context, tx *transaction.Context) error {
			return tx.Emit(command.AddNodes{Nodes: []model.Node{{ID: "fresh"}}})
		}, transaction.WaitForMeasurements())
		done <- err
	}()

	require.Eventually(t, func() bool { return len(f.Debug().Info().PendingMeasurements) == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("transaction returned before the measurement arrived")
	default:
	}

	require.NoError(t, f.Updater().ApplyNodeSize(ctx, "fresh", model.Size{Width: 5, Height: 5}))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("transaction did not resolve")
	}
}

func TestQueries(t *testing.T) {
	state := twoNodes()
	state.Nodes = append(state.Nodes, sized("over", 40, 40, 20, 20))
	state.Metadata.Viewport = model.Viewport{X: 10, Y: 20, Scale: 2}
	f, _ := newCore(t, state)

	ids := func(nodes []model.Node) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.ID
		}
		return out
	}
	assert.ElementsMatch(t, []string{"over"}, ids(f.OverlappingNodes("node1")))
	assert.ElementsMatch(t, []string{"node2"}, ids(f.NodesInRange(model.Rect{X: 90, Y: 0, Width: 20, Height: 20})))

	p := model.Point{X: 7, Y: -3}
	client := f.FlowToClientPosition(p)
	assert.Equal(t, model.Point{X: 24, Y: 14}, client)
	assert.Equal(t, p, f.ClientToFlowPosition(client))
}

func TestUpdateConfig(t *testing.T) {
	f, _ := newCore(t, twoNodes())
	old := f.Spatial()

	require.NoError(t, f.UpdateConfig("[snapping]\nenabled = true\n[spatial]\ncell_size = 25"))
	assert.True(t, f.Config().Snapping.Enabled)
	assert.NotSame(t, old, f.Spatial())
	assert.Equal(t, 25.0, f.Spatial().CellSize())
	assert.Equal(t, 2, f.Spatial().Len())

	require.NoError(t, f.Emit(context.Background(), command.MoveNodes{Positions: []command.NodePosition{{ID: "node1", Position: model.Point{X: 14, Y: 16}}}}))
	n, _ := f.Lookup().Node("node1")
	assert.Equal(t, model.Point{X: 10, Y: 20}, n.Position)

	assert.True(t, errors.Is(f.UpdateConfig("[zoom]\nmin = -1"), errors.ErrCodeInvalidConfig))
}

func TestCloseIsIdempotent(t *testing.T) {
	f, a := newCore(t, twoNodes())
	frames := 0
	f.renderer = render.Func(func([]model.Node, []model.Edge, model.Viewport) { frames++ })

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	a.UpdateNodes(nil)
	assert.Zero(t, frames, "closed engine must not redraw")
	assert.Empty(t, f.Commands().Names())
}

type spyHooks struct {
	observability.NoopEngineHooks
	mu       sync.Mutex
	applied  []string
	txs      []string
	commands []string
}

func (h *spyHooks) OnApplyUpdate(_ context.Context, action string, _ time.Duration, committed bool, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if committed {
		h.applied = append(h.applied, action)
	}
}

func (h *spyHooks) OnTransaction(_ context.Context, name string, _ int, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txs = append(h.txs, name)
}

func (h *spyHooks) OnCommand(_ context.Context, name string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, name)
}

func TestWithHooks(t *testing.T) {
	spy := &spyHooks{}
	f, _ := newCore(t, twoNodes(), WithHooks(spy, spy))
	ctx := context.Background()

	require.NoError(t, f.Emit(ctx, command.SelectAll{}))
	_, err := f.Transaction(ctx, "batch", func(_ context.Context, tx *transaction.Context) error {
		return tx.Emit(command.DeselectAll{})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{string(model.ActionChangeSelection), "batch"}, spy.applied)
	assert.Equal(t, []string{"batch"}, spy.txs)
	assert.Equal(t, []string{command.NameSelectAll}, spy.commands, "commands emitted inside a transaction go through the context")
}

func TestDebugInfo(t *testing.T) {
	state := twoNodes()
	state.Nodes[0].Selected = true
	state.Edges = []model.Edge{{ID: "e", Source: "node1", Target: "node2"}}
	f, _ := newCore(t, state)

	info := f.Debug().Info()
	assert.Equal(t, 2, info.Nodes)
	assert.Equal(t, 1, info.Edges)
	assert.Equal(t, 1, info.SelectedNodes)
	assert.Equal(t, "collecting", info.InitPhase)
	assert.Equal(t, 2, info.SpatialEntries)
	assert.Contains(t, info.Middlewares, middleware.SnappingName)
	assert.Contains(t, info.Commands, command.NameSelect)
	assert.False(t, info.Linking)

	d := f.Debug()
	edges := d.ConnectedEdges("node1")
	require.Len(t, edges, 1)
	assert.Equal(t, "e", edges[0].ID)
	_, ok := d.Node("missing")
	assert.False(t, ok)
}
