package events

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestFlushDeliversInOrder(t *testing.T) {
	m := NewManager(nil)
	var got []Type
	m.On(NodesMoved, func(e Event) { got = append(got, e.Type) })
	m.On(SelectionChanged, func(e Event) { got = append(got, e.Type) })

	m.Defer(Event{Type: SelectionChanged}, Event{Type: NodesMoved}, Event{Type: EdgesAdded})
	assert.Len(t, m.Pending(), 3)
	assert.Empty(t, got)

	m.Flush()
	assert.Equal(t, []Type{SelectionChanged, NodesMoved}, got)
	assert.Empty(t, m.Pending())

	m.Flush()
	assert.Len(t, got, 2)
}

func TestClearDropsEvents(t *testing.T) {
	m := NewManager(nil)
	calls := 0
	m.On(NodesAdded, func(Event) { calls++ })

	m.Defer(Event{Type: NodesAdded})
	m.Clear()
	m.Flush()
	assert.Zero(t, calls)
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager(nil)
	assert.False(t, m.Enabled())

	calls := 0
	off := m.On(NodesAdded, func(Event) { calls++ })
	assert.True(t, m.Enabled())

	off()
	off()
	assert.False(t, m.Enabled())

	m.Defer(Event{Type: NodesAdded})
	m.Flush()
	assert.Zero(t, calls)

	m.SetEnabled(true)
	assert.True(t, m.Enabled())
}

func TestPanickingHandlerIsRecovered(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(log.New(&buf))

	reached := false
	m.On(DiagramInit, func(Event) { panic("boom") })
	m.On(DiagramInit, func(Event) { reached = true })

	m.Defer(Event{Type: DiagramInit})
	assert.NotPanics(t, m.Flush)
	assert.True(t, reached)
	assert.Contains(t, buf.String(), "event handler panicked")
}

func TestTakeThenDispatch(t *testing.T) {
	m := NewManager(nil)
	var got []Type
	m.On(NodesAdded, func(e Event) { got = append(got, e.Type) })

	m.Defer(Event{Type: NodesAdded})
	taken := m.Take()
	m.Clear()
	assert.Empty(t, got)

	m.Dispatch(taken...)
	assert.Equal(t, []Type{NodesAdded}, got)
}
