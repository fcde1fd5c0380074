package updater

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/observability"
)

type phase int

const (
	phaseCollecting phase = iota
	phaseFinishing
	phaseInitialized
)

func (p phase) String() string {
	switch p {
	case phaseCollecting:
		return "collecting"
	case phaseFinishing:
		return "finishing"
	}
	return "initialized"
}

// InitOptions configures an InitUpdater.
type InitOptions struct {
	// StabilityDelay is the quiet period after the last port or label
	// addition before additions are considered complete.
	StabilityDelay time.Duration
	// Timeout force-finishes startup when measurements never complete.
	// Zero disables it.
	Timeout time.Duration
	Clock   clockwork.Clock
	Logger  *log.Logger
}

// InitUpdater collects startup measurements and commits them with a single
// state write. Each Kind finishes on its own: port and label additions once
// they settled, measurements once every tracked entity of that kind has
// valid geometry. Calls of a finished kind are declined.
type InitUpdater struct {
	engine   Engine
	internal Updater
	opts     InitOptions
	logger   *log.Logger

	late *LateArrivalQueue

	mu         sync.Mutex
	state      *InitState
	phase      phase
	started    bool
	nodeCount  int
	finished   map[Kind]bool
	onComplete func(context.Context)
	ctx        context.Context
	cancel     context.CancelFunc
	timeout    clockwork.Timer
	startedAt  time.Time

	portDetector  *StabilityDetector
	labelDetector *StabilityDetector
	portInit      *BatchInitializer[entityKey, model.Port]
	labelInit     *BatchInitializer[entityKey, model.EdgeLabel]

	finishOnce sync.Once
}

// NewInitUpdater creates an updater that replays late arrivals on internal.
func NewInitUpdater(engine Engine, internal Updater, opts InitOptions) *InitUpdater {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &InitUpdater{
		engine:   engine,
		internal: internal,
		opts:     opts,
		logger:   opts.Logger,
		late:     &LateArrivalQueue{},
		state:    NewInitState(),
		finished: make(map[Kind]bool, len(Kinds)),
	}
}

// Start seeds the collected state from the engine and begins waiting for
// port and label additions to settle. onComplete runs once the initial
// measurements are committed. Start does not block.
func (u *InitUpdater) Start(ctx context.Context, onComplete func(context.Context)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.phase == phaseInitialized {
		return ErrAlreadyInitialized
	}
	if u.started {
		return ErrAlreadyStarted
	}
	u.started = true
	u.startedAt = u.opts.Clock.Now()
	u.onComplete = onComplete
	u.ctx, u.cancel = context.WithCancel(context.WithoutCancel(ctx))

	state := u.engine.State()
	u.state.CollectAlreadyMeasuredItems(state)
	u.nodeCount = len(state.Nodes)
	u.settle()

	// An empty diagram has nothing to wait for.
	shouldWait := len(state.Nodes) > 0 || len(state.Edges) > 0
	u.portDetector = NewStabilityDetector(shouldWait, u.opts.StabilityDelay, u.opts.Clock)
	u.labelDetector = NewStabilityDetector(shouldWait, u.opts.StabilityDelay, u.opts.Clock)
	u.portInit = NewBatchInitializer(u.portDetector, func(ports map[entityKey]model.Port) {
		u.mu.Lock()
		defer u.mu.Unlock()
		for _, p := range ports {
			u.state.AddPort(p)
		}
		u.finished[KindPort] = true
		u.settle()
	})
	u.labelInit = NewBatchInitializer(u.labelDetector, func(labels map[entityKey]model.EdgeLabel) {
		u.mu.Lock()
		defer u.mu.Unlock()
		for k, l := range labels {
			u.state.AddLabel(k.owner, l)
		}
		u.finished[KindLabel] = true
		u.settle()
	})

	if u.opts.Timeout > 0 {
		u.timeout = u.opts.Clock.AfterFunc(u.opts.Timeout, func() {
			u.logger.Warn("measurements did not complete in time, forcing init", "timeout", u.opts.Timeout)
			u.forceFinish()
		})
	}

	u.logger.Debug("init updater started", "nodes", len(state.Nodes), "edges", len(state.Edges), "wait", shouldWait)
	go u.awaitStability(u.ctx)
	return nil
}

func (u *InitUpdater) awaitStability(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { return u.portInit.WaitForFinish(ctx) })
	g.Go(func() error { return u.labelInit.WaitForFinish(ctx) })
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil || !u.collecting() {
			return
		}
		u.logger.Warn("measurement stabilization failed, forcing init", "err", err)
		u.forceFinish()
		return
	}
	u.tryFinish()
}

func (u *InitUpdater) collecting() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.phase == phaseCollecting
}

// IsFinished reports whether calls of kind are no longer handled here.
func (u *InitUpdater) IsFinished(kind Kind) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.finished[kind]
}

// Initialized reports whether the initial state has been committed.
func (u *InitUpdater) Initialized() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.phase == phaseInitialized
}

// Phase returns "collecting", "finishing" or "initialized".
func (u *InitUpdater) Phase() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.phase.String()
}

// settle marks the measurement kinds whose tracked entities all have valid
// geometry. Port and label geometry only settles after the additions did.
// Flags never go back to false. Callers hold mu.
func (u *InitUpdater) settle() {
	if !u.started {
		return
	}
	if u.state.NodesMeasured(u.nodeCount) {
		u.finished[KindNodeSize] = true
	}
	if u.finished[KindPort] && u.state.PortsMeasured() {
		u.finished[KindPortRect] = true
	}
	if u.finished[KindLabel] && u.state.LabelsMeasured() {
		u.finished[KindLabelSize] = true
	}
}

// release drops what was collected for the entity of a, which is now
// handled by another updater, and returns the geometry that goes with it.
func (u *InitUpdater) release(a Arrival) []Arrival {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.phase == phaseInitialized {
		return nil
	}
	return u.state.Release(a)
}

// record runs fn against the collected state while collecting, and buffers
// a while finishing.
func (u *InitUpdater) record(a Arrival, fn func()) error {
	u.mu.Lock()
	switch u.phase {
	case phaseInitialized:
		u.mu.Unlock()
		return ErrAlreadyInitialized
	case phaseFinishing:
		u.mu.Unlock()
		if u.late.Enqueue(a) {
			return nil
		}
		return ErrAlreadyInitialized
	}
	if u.finished[a.Kind] {
		u.mu.Unlock()
		return fmt.Errorf("%s: %w", a.Kind, ErrAlreadyInitialized)
	}
	fn()
	u.settle()
	u.mu.Unlock()
	u.tryFinish()
	return nil
}

// ApplyNodeSize implements Updater.
func (u *InitUpdater) ApplyNodeSize(_ context.Context, nodeID string, size model.Size) error {
	return u.record(Arrival{Kind: KindNodeSize, OwnerID: nodeID, Size: size}, func() {
		u.state.AddNodeSize(nodeID, size)
	})
}

// AddPort implements Updater. Before Start the port is recorded directly.
func (u *InitUpdater) AddPort(_ context.Context, nodeID string, port model.Port) error {
	port.NodeID = nodeID
	return u.record(Arrival{Kind: KindPort, OwnerID: nodeID, Port: port}, func() {
		if u.portInit == nil || !u.portInit.BatchChange(entityKey{nodeID, port.ID}, port) {
			u.state.AddPort(port)
		}
	})
}

// ApplyPortsSizesAndPositions implements Updater.
func (u *InitUpdater) ApplyPortsSizesAndPositions(_ context.Context, nodeID string, rects []PortRect) error {
	return u.record(Arrival{Kind: KindPortRect, OwnerID: nodeID, Rects: rects}, func() {
		u.state.AddPortRects(nodeID, rects)
	})
}

// AddEdgeLabel implements Updater.
func (u *InitUpdater) AddEdgeLabel(_ context.Context, edgeID string, label model.EdgeLabel) error {
	return u.record(Arrival{Kind: KindLabel, OwnerID: edgeID, Label: label}, func() {
		if u.labelInit == nil || !u.labelInit.BatchChange(entityKey{edgeID, label.ID}, label) {
			u.state.AddLabel(edgeID, label)
		}
	})
}

// ApplyEdgeLabelSize implements Updater.
func (u *InitUpdater) ApplyEdgeLabelSize(_ context.Context, edgeID, labelID string, size model.Size) error {
	return u.record(Arrival{Kind: KindLabelSize, OwnerID: edgeID, LabelID: labelID, Size: size}, func() {
		u.state.AddLabelSize(edgeID, labelID, size)
	})
}

// tryFinish finishes once additions have settled and every known entity
// has been measured.
func (u *InitUpdater) tryFinish() {
	u.mu.Lock()
	ready := u.started && u.phase == phaseCollecting &&
		u.finished[KindPort] && u.finished[KindLabel] &&
		u.state.AllEntitiesHaveMeasurements(u.nodeCount)
	u.mu.Unlock()
	if ready {
		u.finish()
	}
}

func (u *InitUpdater) forceFinish() {
	u.mu.Lock()
	started := u.started
	u.mu.Unlock()
	if started {
		u.finish()
	}
}

// finish commits the collected measurements. It runs at most once. The
// collected state is merged into the committed state inside the engine's
// update lock, so commits made meanwhile are kept.
func (u *InitUpdater) finish() {
	u.finishOnce.Do(func() {
		u.mu.Lock()
		u.phase = phaseFinishing
		u.late.StartFinishing()
		ctx, onComplete, startedAt := u.ctx, u.onComplete, u.startedAt
		if u.timeout != nil {
			u.timeout.Stop()
		}
		u.mu.Unlock()

		u.portDetector.Stop()
		u.labelDetector.Stop()

		var changed bool
		err := u.engine.UpdateState(ctx, func(s model.State) model.State {
			u.mu.Lock()
			defer u.mu.Unlock()
			var next model.State
			next, changed = u.state.ApplyToDiagramState(s)
			return next
		})
		if err != nil {
			u.logger.Error("failed to write initial measurements", "err", err)
		}
		u.logger.Debug("initial measurements committed", "changed", changed)
		observability.Measurement().OnInitComplete(ctx, u.opts.Clock.Since(startedAt))
		if onComplete != nil {
			onComplete(ctx)
		}

		u.mu.Lock()
		u.phase = phaseInitialized
		for _, k := range Kinds {
			u.finished[k] = true
		}
		u.mu.Unlock()

		if n := u.late.Len(); n > 0 {
			u.logger.Debug("replaying late measurements", "count", n)
		}
		if err := u.late.ProcessAll(ctx, u.internal); err != nil {
			u.logger.Warn("late measurement replay failed", "err", err)
		}
	})
}

// Stop cancels pending timers. A stopped updater that never finished stays
// in the collecting phase.
func (u *InitUpdater) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		u.cancel()
	}
	if u.timeout != nil {
		u.timeout.Stop()
	}
	if u.portDetector != nil {
		u.portDetector.Stop()
		u.labelDetector.Stop()
	}
}
