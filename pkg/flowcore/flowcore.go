// Package flowcore is the diagram state engine.
//
// A [FlowCore] owns the committed diagram state through a [ModelAdapter] and
// mediates every mutation. Commands are emitted through [FlowCore.Emit]; the
// built-in command callbacks compute a sparse [model.StateUpdate] and hand
// it to [FlowCore.ApplyUpdate], which runs it through the middleware chain
// and writes the result back through the adapter.
//
// # Serialization
//
// Updates outside a transaction are serialized by a single-slot semaphore:
// a second update reads state only after the first was committed or
// discarded. Inside a transaction (carried by the context) updates are
// queued and the root transaction commits them as one update.
//
// # Measurements
//
// Hosts report measured geometry through [FlowCore.Updater]. Until
// [FlowCore.Start] has committed the initial measurements they are
// collected; afterwards they are diffed and turned into commands.
//
// # Usage
//
//	adapter := memory.New(state)
//	core, err := flowcore.New(adapter, render.Nop{}, flowcore.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer core.Close()
//	if err := core.Start(ctx); err != nil {
//	    return err
//	}
//	err = core.Emit(ctx, command.Select{NodeIDs: []string{"a"}})
package flowcore

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/flowcore/pkg/action"
	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/config"
	"github.com/matzehuels/flowcore/pkg/events"
	"github.com/matzehuels/flowcore/pkg/lookup"
	"github.com/matzehuels/flowcore/pkg/measure"
	"github.com/matzehuels/flowcore/pkg/middleware"
	"github.com/matzehuels/flowcore/pkg/model"
	"github.com/matzehuels/flowcore/pkg/observability"
	"github.com/matzehuels/flowcore/pkg/render"
	"github.com/matzehuels/flowcore/pkg/spatial"
	"github.com/matzehuels/flowcore/pkg/transaction"
	"github.com/matzehuels/flowcore/pkg/updater"
)

// FlowCore wires the engine components together. It is safe for concurrent
// use.
type FlowCore struct {
	adapter  ModelAdapter
	renderer render.Renderer
	logger   *log.Logger
	clock    clockwork.Clock

	engineHooks observability.EngineHooks
	cmdHooks    observability.CommandHooks

	cfgMu sync.RWMutex
	cfg   config.Config

	sem *semaphore.Weighted

	spatialMu sync.RWMutex
	spatial   *spatial.Hash

	lookup      *lookup.Lookup
	events      *events.Manager
	tracker     *measure.Tracker
	middlewares *middleware.Manager
	txm         *transaction.Manager
	commands    *command.Handler
	builtins    *command.Builtins
	action      action.State

	init      *updater.InitUpdater
	internal  *updater.InternalUpdater
	composite *updater.CompositeUpdater
	updater   updater.Updater

	ready       chan struct{}
	readyOnce   sync.Once
	unsubscribe func()
	unregister  func()
	closeOnce   sync.Once
}

var (
	_ command.Env    = (*FlowCore)(nil)
	_ updater.Engine = (*FlowCore)(nil)
)

// New wires an engine over adapter. A nil renderer discards frames. The
// state is indexed and drawn once before New returns.
func New(adapter ModelAdapter, renderer render.Renderer, opts ...Option) (*FlowCore, error) {
	o := options{cfg: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if renderer == nil {
		renderer = render.Nop{}
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	f := &FlowCore{
		adapter:     adapter,
		renderer:    renderer,
		logger:      o.logger,
		clock:       o.clock,
		engineHooks: o.engineHooks,
		cmdHooks:    o.cmdHooks,
		cfg:         o.cfg,
		sem:         semaphore.NewWeighted(1),
		spatial:     spatial.New(o.cfg.Spatial.CellSize),
		events:      events.NewManager(o.logger),
		tracker:     measure.NewTracker(o.clock),
		ready:       make(chan struct{}),
	}
	f.lookup = lookup.New(f, o.logger)
	f.middlewares = middleware.NewManager(o.logger,
		middleware.WithEvents(f.events),
		middleware.WithTracker(f.tracker),
		middleware.WithLookup(f.lookup),
	)
	for _, mw := range append([]middleware.Middleware{middleware.Snapping(f.Config), middleware.ZIndex(f.Config)}, o.middlewares...) {
		if err := f.middlewares.Register(mw); err != nil {
			return nil, err
		}
	}

	f.commands = command.NewHandler(o.logger)
	f.txm = transaction.NewManager(f.commands, o.logger)
	f.builtins = command.NewBuiltins(f, o.logger)
	f.unregister = command.RegisterBuiltins(f.commands, f.builtins)

	strategy := o.strategy
	if strategy == nil {
		virtualize := o.cfg.Virtualization.Enabled
		if o.virtualize != nil {
			virtualize = *o.virtualize
		}
		delay := o.cfg.Virtualization.FlushDelay
		strategy = func(e updater.Engine) updater.BatchStrategy {
			if virtualize {
				return updater.NewVirtualizedStrategy(e, delay, o.clock, o.logger)
			}
			return updater.NewDirectStrategy(e, delay, o.clock, o.logger)
		}
	}
	f.internal = updater.NewInternalUpdater(f, strategy(f), o.logger)
	f.init = updater.NewInitUpdater(f, f.internal, updater.InitOptions{
		StabilityDelay: o.cfg.Init.StabilityDelay,
		Timeout:        o.cfg.Init.Timeout,
		Clock:          o.clock,
		Logger:         o.logger,
	})
	f.composite = updater.NewCompositeUpdater(f.init, f.internal, o.logger)
	f.updater = signalling{next: f.composite, tracker: f.tracker}

	f.unsubscribe = adapter.OnChange(f.onModelChange)
	f.onModelChange()
	return f, nil
}

// Start begins the startup measurement phase. It returns immediately; once
// the initial measurements are committed the init command is emitted and
// Ready is closed.
func (f *FlowCore) Start(ctx context.Context) error {
	return f.init.Start(ctx, func(ctx context.Context) {
		if err := f.Emit(ctx, command.Init{}); err != nil {
			f.logger.Warn("init command failed", "err", err)
		}
		f.readyOnce.Do(func() { close(f.ready) })
	})
}

// Ready is closed once Start has committed the initial measurements.
func (f *FlowCore) Ready() <-chan struct{} { return f.ready }

// Close stops every timer, unsubscribes from the adapter and unregisters
// the built-in commands. It is safe to call more than once.
func (f *FlowCore) Close() error {
	f.closeOnce.Do(func() {
		f.init.Stop()
		f.internal.Stop()
		f.unsubscribe()
		f.unregister()
	})
	return nil
}

// onModelChange reindexes after an adapter write and redraws.
func (f *FlowCore) onModelChange() {
	state := f.State()
	f.Spatial().Process(state.Nodes)
	f.lookup.Desynchronize()
	f.draw(state)
}

func (f *FlowCore) draw(state model.State) {
	f.renderer.Draw(state.Nodes, f.action.WithTemporaryEdge(state.Edges), state.Metadata.Viewport)
}

// Redraw draws the committed state again, e.g. after the temporary edge
// moved.
func (f *FlowCore) Redraw() { f.draw(f.State()) }

// State returns the committed state as the adapter currently holds it.
func (f *FlowCore) State() model.State {
	if r, ok := f.adapter.(StateReader); ok {
		return r.State()
	}
	return model.State{
		Nodes:    f.adapter.Nodes(),
		Edges:    f.adapter.Edges(),
		Metadata: f.adapter.Metadata(),
	}
}

// Lookup returns the indices over the committed state.
func (f *FlowCore) Lookup() *lookup.Lookup { return f.lookup }

// Spatial returns the spatial index over the committed nodes.
func (f *FlowCore) Spatial() *spatial.Hash {
	f.spatialMu.RLock()
	defer f.spatialMu.RUnlock()
	return f.spatial
}

// Commands returns the command handler, e.g. to register custom commands.
func (f *FlowCore) Commands() *command.Handler { return f.commands }

// Middlewares returns the middleware manager.
func (f *FlowCore) Middlewares() *middleware.Manager { return f.middlewares }

// Events returns the event manager. Subscribing enables event collection.
func (f *FlowCore) Events() *events.Manager { return f.events }

// Transactions returns the transaction manager for inspection.
func (f *FlowCore) Transactions() *transaction.Manager { return f.txm }

// Updater returns the entry point for measurement producers.
func (f *FlowCore) Updater() updater.Updater { return f.updater }

// InitUpdater returns the startup measurement collector.
func (f *FlowCore) InitUpdater() *updater.InitUpdater { return f.init }

// ActionState returns the transient interaction state.
func (f *FlowCore) ActionState() *action.State { return &f.action }

// Config returns a copy of the current configuration.
func (f *FlowCore) Config() config.Config {
	f.cfgMu.RLock()
	defer f.cfgMu.RUnlock()
	return f.cfg
}

// UpdateConfig applies a partial TOML document on top of the current
// configuration. A changed spatial cell size rebuilds the spatial index.
// Startup and virtualization settings only take effect in a new engine.
func (f *FlowCore) UpdateConfig(partial string) error {
	f.cfgMu.Lock()
	next, err := f.cfg.Merge(partial)
	if err != nil {
		f.cfgMu.Unlock()
		return err
	}
	rebuild := next.Spatial.CellSize != f.cfg.Spatial.CellSize
	f.cfg = next
	f.cfgMu.Unlock()

	if rebuild {
		h := spatial.New(next.Spatial.CellSize)
		h.Process(f.State().Nodes)
		f.spatialMu.Lock()
		f.spatial = h
		f.spatialMu.Unlock()
	}
	f.logger.Debug("config updated", "cellSizeChanged", rebuild)
	return nil
}

func (f *FlowCore) hooks() observability.EngineHooks {
	if f.engineHooks != nil {
		return f.engineHooks
	}
	return observability.Engine()
}

func (f *FlowCore) commandHooks() observability.CommandHooks {
	if f.cmdHooks != nil {
		return f.cmdHooks
	}
	return observability.Command()
}
