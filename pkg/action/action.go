// Package action holds transient interaction state that is not part of the
// committed diagram: the node being resized and the edge being drawn.
package action

import (
	"sync"

	"github.com/matzehuels/flowcore/pkg/model"
)

// Linking describes an edge that is being drawn.
type Linking struct {
	SourceNode string
	SourcePort string
	Edge       model.Edge // Temporary is always true
	Target     model.Point
}

// State is safe for concurrent use. The zero value is ready to use.
type State struct {
	mu       sync.RWMutex
	resizing map[string]bool
	linking  *Linking
}

// StartResize marks nodeID as being resized by the user.
func (s *State) StartResize(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resizing == nil {
		s.resizing = make(map[string]bool)
	}
	s.resizing[nodeID] = true
}

// EndResize clears the resize mark of nodeID.
func (s *State) EndResize(nodeID string) {
	s.mu.Lock()
	delete(s.resizing, nodeID)
	s.mu.Unlock()
}

// IsResizing reports whether nodeID is being resized.
func (s *State) IsResizing(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resizing[nodeID]
}

// StartLinking records a new temporary edge.
func (s *State) StartLinking(l Linking) {
	l.Edge.Temporary = true
	s.mu.Lock()
	s.linking = &l
	s.mu.Unlock()
}

// MoveLinking moves the loose end of the temporary edge. It reports false
// when no link is in progress.
func (s *State) MoveLinking(to model.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linking == nil {
		return false
	}
	s.linking.Target = to
	return true
}

// Linking returns a copy of the link in progress.
func (s *State) Linking() (Linking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.linking == nil {
		return Linking{}, false
	}
	return *s.linking, true
}

// EndLinking clears and returns the link in progress.
func (s *State) EndLinking() (Linking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linking == nil {
		return Linking{}, false
	}
	l := *s.linking
	s.linking = nil
	return l, true
}

// TemporaryEdge returns the edge to draw for the link in progress.
func (s *State) TemporaryEdge() (model.Edge, bool) {
	l, ok := s.Linking()
	return l.Edge, ok
}

// WithTemporaryEdge returns edges plus the temporary edge, if any. The input
// slice is not modified.
func (s *State) WithTemporaryEdge(edges []model.Edge) []model.Edge {
	tmp, ok := s.TemporaryEdge()
	if !ok {
		return edges
	}
	out := make([]model.Edge, 0, len(edges)+1)
	out = append(out, edges...)
	return append(out, tmp)
}
