// Package events collects semantic diagram events during an update and
// delivers them once the update has been committed.
//
// The event-emission middleware defers events while the pipeline runs. The
// engine calls [Manager.Flush] after the new state has been written back and
// [Manager.Clear] when the pipeline produced no new state, so listeners never
// observe events for discarded updates.
package events

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/model"
)

// Type names a semantic event.
type Type string

const (
	SelectionChanged       Type = "selectionChanged"
	NodesMoved             Type = "nodesMoved"
	NodeResized            Type = "nodeResized"
	NodeRotated            Type = "nodeRotated"
	ViewportChanged        Type = "viewportChanged"
	NodesAdded             Type = "nodesAdded"
	NodesRemoved           Type = "nodesRemoved"
	EdgesAdded             Type = "edgesAdded"
	EdgesRemoved           Type = "edgesRemoved"
	GroupMembershipChanged Type = "groupMembershipChanged"
	DiagramInit            Type = "diagramInit"
)

// AllTypes lists every event type emitted by the engine.
var AllTypes = []Type{
	SelectionChanged, NodesMoved, NodeResized, NodeRotated, ViewportChanged,
	NodesAdded, NodesRemoved, EdgesAdded, EdgesRemoved,
	GroupMembershipChanged, DiagramInit,
}

// Event is one committed change.
type Event struct {
	Type     Type             `json:"type"`
	NodeIDs  []string         `json:"nodeIds,omitempty"`
	EdgeIDs  []string         `json:"edgeIds,omitempty"`
	Viewport *model.Viewport  `json:"viewport,omitempty"`
	Action   model.ActionType `json:"action,omitempty"`
}

// Handler receives a flushed event.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Manager buffers deferred events and dispatches them to subscribers.
type Manager struct {
	logger *log.Logger

	mu       sync.Mutex
	handlers map[Type][]subscription
	nextID   int
	forced   bool
	deferred []Event
}

// NewManager creates an empty manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{logger: logger, handlers: make(map[Type][]subscription)}
}

// On subscribes fn to events of type t. The returned function unsubscribes
// and may be called more than once.
func (m *Manager) On(t Type, fn Handler) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.handlers[t] = append(m.handlers[t], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.handlers[t] = slices.DeleteFunc(m.handlers[t], func(s subscription) bool { return s.id == id })
			if len(m.handlers[t]) == 0 {
				delete(m.handlers, t)
			}
		})
	}
}

// Enabled reports whether events are worth collecting: either someone is
// subscribed or collection was switched on explicitly.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forced || len(m.handlers) > 0
}

// SetEnabled forces collection on or off regardless of subscribers.
func (m *Manager) SetEnabled(on bool) {
	m.mu.Lock()
	m.forced = on
	m.mu.Unlock()
}

// Defer queues events for the next Flush.
func (m *Manager) Defer(events ...Event) {
	m.mu.Lock()
	m.deferred = append(m.deferred, events...)
	m.mu.Unlock()
}

// Pending returns a copy of the queued events.
func (m *Manager) Pending() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deferred)
}

// Clear drops the queued events.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.deferred = nil
	m.mu.Unlock()
}

// Flush delivers the queued events in order and clears the queue. Handlers
// run on the calling goroutine; a panicking handler is logged and skipped.
func (m *Manager) Flush() {
	m.Dispatch(m.Take()...)
}

// Take removes and returns the queued events. The engine takes the events of
// a committed update while it still holds the update lock and dispatches
// them after releasing it, so handlers may emit commands.
func (m *Manager) Take() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	queued := m.deferred
	m.deferred = nil
	return queued
}

// Dispatch delivers events to their subscribers in order.
func (m *Manager) Dispatch(events ...Event) {
	if len(events) == 0 {
		return
	}
	type delivery struct {
		evt Event
		fns []Handler
	}
	m.mu.Lock()
	deliveries := make([]delivery, 0, len(events))
	for _, evt := range events {
		subs := m.handlers[evt.Type]
		fns := make([]Handler, len(subs))
		for i, s := range subs {
			fns[i] = s.fn
		}
		deliveries = append(deliveries, delivery{evt: evt, fns: fns})
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		for _, fn := range d.fns {
			m.call(fn, d.evt)
		}
	}
}

func (m *Manager) call(fn Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked", "event", evt.Type, "panic", r)
		}
	}()
	fn(evt)
}
