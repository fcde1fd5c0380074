package lookup

import (
	"bytes"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowcore/pkg/model"
)

type source struct {
	mu    sync.Mutex
	state model.State
	reads int
}

func (s *source) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.state
}

func (s *source) set(st model.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// hierarchy:
//
//	g1
//	├── a
//	└── g2
//	    └── b
//	c
func fixture() model.State {
	return model.State{
		Nodes: []model.Node{
			{ID: "g1", IsGroup: true},
			{ID: "a", GroupID: "g1", Selected: true},
			{ID: "g2", IsGroup: true, GroupID: "g1"},
			{ID: "b", GroupID: "g2"},
			{ID: "c"},
		},
		Edges: []model.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "c", Target: "a", Selected: true},
			{ID: "e3", Source: "a", Target: "b"},
		},
	}
}

func newLookup(t *testing.T) (*Lookup, *source) {
	t.Helper()
	src := &source{state: fixture()}
	return New(src, log.New(&bytes.Buffer{})), src
}

func ids[T interface{ model.Node | model.Edge }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case model.Node:
			out = append(out, v.ID)
		case model.Edge:
			out = append(out, v.ID)
		}
	}
	return out
}

func checkIDs(t *testing.T, call string, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("%s = %v, want %v", call, got, want)
	}
}

func TestEntityAccess(t *testing.T) {
	l, _ := newLookup(t)

	n, ok := l.Node("a")
	if !ok {
		t.Fatal("Node(a) not found")
	}
	if n.GroupID != "g1" {
		t.Errorf("Node(a).GroupID = %q, want g1", n.GroupID)
	}
	if _, ok := l.Node("missing"); ok {
		t.Error("Node(missing) found")
	}

	e, ok := l.Edge("e2")
	if !ok {
		t.Fatal("Edge(e2) not found")
	}
	if e.Source != "c" {
		t.Errorf("Edge(e2).Source = %q, want c", e.Source)
	}

	if len(l.NodesMap()) != 5 || len(l.EdgesMap()) != 3 {
		t.Errorf("maps hold %d nodes, %d edges, want 5, 3", len(l.NodesMap()), len(l.EdgesMap()))
	}
	checkIDs(t, "NodeIDs()", l.NodeIDs(), []string{"g1", "a", "g2", "b", "c"})
}

func TestAdjacency(t *testing.T) {
	l, _ := newLookup(t)

	checkIDs(t, "ConnectedEdges(a)", ids(l.ConnectedEdges("a")), []string{"e1", "e2", "e3"})
	checkIDs(t, "ConnectedNodes(a)", ids(l.ConnectedNodes("a")), []string{"b", "c"})
	checkIDs(t, "ConnectedEdges(g1)", ids(l.ConnectedEdges("g1")), nil)
}

func TestHierarchy(t *testing.T) {
	l, _ := newLookup(t)

	checkIDs(t, "Children(g1)", ids(l.Children("g1")), []string{"a", "g2"})
	checkIDs(t, "AllDescendants(g1)", ids(l.AllDescendants("g1")), []string{"a", "g2", "b"})
	checkIDs(t, "ParentChain(b)", ids(l.ParentChain("b")), []string{"g2", "g1"})
	checkIDs(t, "ParentChain(c)", ids(l.ParentChain("c")), nil)
	if !l.HasChildren("g2") {
		t.Error("HasChildren(g2) = false, want true")
	}
	if l.HasDescendants("c") {
		t.Error("HasDescendants(c) = true, want false")
	}
	if !l.IsNodeDescendantOfGroup("b", "g1") {
		t.Error("IsNodeDescendantOfGroup(b, g1) = false, want true")
	}
	if l.IsNodeDescendantOfGroup("g1", "b") {
		t.Error("IsNodeDescendantOfGroup(g1, b) = true, want false")
	}

	tests := []struct {
		node, group string
		want        bool
	}{
		{"g1", "g1", true},
		{"g1", "g2", true}, // g2 already sits below g1
		{"g1", "b", true},
		{"c", "g2", false},
		{"g2", "g1", false},
	}
	for _, tt := range tests {
		if got := l.WouldCreateCircularDependency(tt.node, tt.group); got != tt.want {
			t.Errorf("WouldCreateCircularDependency(%q, %q) = %v, want %v", tt.node, tt.group, got, tt.want)
		}
	}
}

func TestSelection(t *testing.T) {
	l, src := newLookup(t)

	checkIDs(t, "SelectedNodes()", ids(l.SelectedNodes()), []string{"a"})
	checkIDs(t, "SelectedEdges()", ids(l.SelectedEdges()), []string{"e2"})

	st := fixture()
	st.Nodes[0].Selected = true // g1
	st.Nodes[1].Selected = false
	src.set(st)
	l.Desynchronize()

	checkIDs(t, "SelectedNodesWithChildren(true)", ids(l.SelectedNodesWithChildren(true)), []string{"g1", "a", "g2"})
	checkIDs(t, "SelectedNodesWithChildren(false)", ids(l.SelectedNodesWithChildren(false)), []string{"g1", "a", "g2", "b"})
}

func TestDesynchronize(t *testing.T) {
	l, src := newLookup(t)

	if len(l.NodesMap()) != 5 || !l.HasChildren("g1") {
		t.Fatal("fixture not indexed")
	}
	reads := src.reads

	// No rebuild while synchronized.
	l.NodesMap()
	l.Children("g1")
	if src.reads != reads {
		t.Errorf("source read %d times while synchronized", src.reads-reads)
	}

	st := fixture()
	st.Nodes = append(st.Nodes, model.Node{ID: "d", GroupID: "g2"})
	src.set(st)

	// Stale until desynchronized.
	if got := len(l.NodesMap()); got != 5 {
		t.Errorf("len(NodesMap()) before Desynchronize = %d, want 5", got)
	}

	l.Desynchronize()
	if l.Synchronized() {
		t.Error("Synchronized() = true after Desynchronize")
	}
	if got := len(l.NodesMap()); got != 6 {
		t.Errorf("len(NodesMap()) = %d, want 6", got)
	}
	checkIDs(t, "AllDescendants(g1)", ids(l.AllDescendants("g1")), []string{"a", "g2", "b", "d"})
}

func TestCycleSafety(t *testing.T) {
	var buf bytes.Buffer
	src := &source{state: model.State{Nodes: []model.Node{
		{ID: "x", IsGroup: true, GroupID: "y"},
		{ID: "y", IsGroup: true, GroupID: "x"},
		{ID: "z", GroupID: "ghost"},
		{ID: "w", GroupID: "z"},
	}}}
	l := New(src, log.New(&buf))

	tests := []struct {
		node    string
		want    []string
		logText string
	}{
		{"x", []string{"y"}, "cycle"},
		{"z", nil, "missing"},
		{"w", nil, "not a group"},
	}
	for _, tt := range tests {
		buf.Reset()
		checkIDs(t, "ParentChain("+tt.node+")", ids(l.ParentChain(tt.node)), tt.want)
		if !strings.Contains(buf.String(), tt.logText) {
			t.Errorf("ParentChain(%q) logged %q, want it to mention %q", tt.node, buf.String(), tt.logText)
		}
	}

	checkIDs(t, "AllDescendants(x)", ids(l.AllDescendants("x")), []string{"y"})
	if l.IsNodeDescendantOfGroup("x", "q") {
		t.Error("IsNodeDescendantOfGroup(x, q) = true, want false")
	}
}

func TestConcurrentReaders(t *testing.T) {
	l, _ := newLookup(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				l.Desynchronize()
			}
			l.AllDescendants("g1")
			l.ConnectedEdges("a")
			l.SelectedNodes()
		}(i)
	}
	wg.Wait()
	if got := len(l.AllDescendants("g1")); got != 3 {
		t.Errorf("len(AllDescendants(g1)) = %d, want 3", got)
	}
}
