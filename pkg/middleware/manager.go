package middleware

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/events"
	"github.com/matzehuels/flowcore/pkg/lookup"
	"github.com/matzehuels/flowcore/pkg/measure"
	"github.com/matzehuels/flowcore/pkg/model"
)

// Names of the fixed tail stages.
const (
	BoundsName      = "bounds"
	LoggingName     = "logging"
	MeasurementName = "measurementTracking"
	EventsName      = "eventEmission"
)

// Manager owns the user middlewares and the fixed tail.
type Manager struct {
	logger   *log.Logger
	lookup   *lookup.Lookup
	events   *events.Manager
	tracker  *measure.Tracker
	executor Executor

	mu  sync.RWMutex
	mws []Middleware
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEvents enables the event-emission tail stage.
func WithEvents(em *events.Manager) ManagerOption {
	return func(m *Manager) { m.events = em }
}

// WithTracker enables the measurement-tracking tail stage.
func WithTracker(t *measure.Tracker) ManagerOption {
	return func(m *Manager) { m.tracker = t }
}

// WithLookup sets the indices handed to middlewares.
func WithLookup(l *lookup.Lookup) ManagerOption {
	return func(m *Manager) { m.lookup = l }
}

// NewManager creates a manager with no user middlewares.
func NewManager(logger *log.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register appends mw to the chain. Names must be unique, including the
// names of the tail stages.
func (m *Manager) Register(mw Middleware) error {
	name := mw.Name()
	if name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "middleware name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if isTail(name) || slices.ContainsFunc(m.mws, func(x Middleware) bool { return x.Name() == name }) {
		return errors.New(errors.ErrCodeDuplicateMiddleware, "middleware %q already registered", name)
	}
	m.mws = append(m.mws, mw)
	return nil
}

// Unregister removes the middleware called name.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.mws, func(x Middleware) bool { return x.Name() == name })
	if i < 0 {
		return errors.New(errors.ErrCodeNotFound, "middleware %q not registered", name)
	}
	m.mws = slices.Delete(m.mws, i, i+1)
	return nil
}

// Names returns the user middleware names in execution order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.mws))
	for i, mw := range m.mws {
		names[i] = mw.Name()
	}
	return names
}

// UpdateConfig returns the update that stores cfg as the config of the
// middleware called name. Config lives in diagram metadata so it travels
// with the state.
func (m *Manager) UpdateConfig(name string, cfg any) (model.StateUpdate, error) {
	m.mu.RLock()
	known := isTail(name) || slices.ContainsFunc(m.mws, func(x Middleware) bool { return x.Name() == name })
	m.mu.RUnlock()
	if !known {
		return model.StateUpdate{}, errors.New(errors.ErrCodeNotFound, "middleware %q not registered", name)
	}
	return model.StateUpdate{
		MetadataUpdate: &model.MetadataUpdate{Middlewares: map[string]any{name: cfg}},
	}, nil
}

// Chain returns the effective chain for the next run: user middlewares
// followed by the tail stages that are currently enabled.
func (m *Manager) Chain() []Middleware {
	m.mu.RLock()
	chain := slices.Clone(m.mws)
	m.mu.RUnlock()

	chain = append(chain, Bounds(), Logging())
	if m.tracker != nil && m.tracker.Active() {
		chain = append(chain, MeasurementTracking(m.tracker))
	}
	if m.events != nil && m.events.Enabled() {
		chain = append(chain, EventEmission(m.events))
	}
	return chain
}

// Execute runs update against state through the effective chain. It
// returns false when a stage dropped the update.
func (m *Manager) Execute(ctx context.Context, state model.State, update model.StateUpdate, actionTypes ...model.ActionType) (model.State, bool) {
	mc := &Context{
		InitialState: state,
		Update:       update,
		ActionTypes:  actionTypes,
		Lookup:       m.lookup,
		Logger:       m.logger,
	}
	return m.executor.Run(ctx, m.Chain(), mc)
}

func isTail(name string) bool {
	switch name {
	case BoundsName, LoggingName, MeasurementName, EventsName:
		return true
	}
	return false
}
