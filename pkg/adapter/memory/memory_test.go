package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/flowcore/pkg/model"
)

func TestNewDefaultsScale(t *testing.T) {
	a := New(model.State{})
	assert.Equal(t, 1.0, a.Metadata().Viewport.Scale)
	assert.Empty(t, a.Nodes())
	assert.Zero(t, a.Version())
}

func TestReadsAreCopies(t *testing.T) {
	a := New(model.State{Nodes: []model.Node{{ID: "a", Size: &model.Size{Width: 10, Height: 10}}}})

	nodes := a.Nodes()
	nodes[0].ID = "changed"
	nodes[0].Size.Width = 99

	got := a.Nodes()
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 10.0, got[0].Size.Width)
}

func TestWritesNotify(t *testing.T) {
	a := New(model.State{})
	var calls []string
	off := a.OnChange(func() { calls = append(calls, "first") })
	a.OnChange(func() { calls = append(calls, "second") })

	a.UpdateNodes([]model.Node{{ID: "a"}})
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, uint64(1), a.Version())

	off()
	off()
	calls = nil
	a.UpdateEdges([]model.Edge{{ID: "e", Source: "a", Target: "a"}})
	assert.Equal(t, []string{"second"}, calls)
	require.Len(t, a.Edges(), 1)
}

func TestWriteStateNotifiesOnce(t *testing.T) {
	a := New(model.State{})
	n := 0
	a.OnChange(func() { n++ })

	a.WriteState(model.State{
		Nodes:    []model.Node{{ID: "a"}},
		Edges:    []model.Edge{{ID: "e", Source: "a", Target: "a"}},
		Metadata: model.Metadata{Viewport: model.Viewport{Scale: 2}},
	})

	assert.Equal(t, 1, n)
	s := a.State()
	assert.Len(t, s.Nodes, 1)
	assert.Len(t, s.Edges, 1)
	assert.Equal(t, 2.0, s.Metadata.Viewport.Scale)
}

func TestListenerMayRead(t *testing.T) {
	a := New(model.State{})
	var seen int
	a.OnChange(func() { seen = len(a.Nodes()) })
	a.UpdateNodes([]model.Node{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, 2, seen)
}

func TestConcurrentWrites(t *testing.T) {
	a := New(model.State{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.UpdateMetadata(model.DefaultMetadata())
			_ = a.State()
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(20), a.Version())
}
