package updater

import (
	"context"
	"sync"

	"github.com/matzehuels/flowcore/pkg/model"
)

// Arrival is one buffered Updater call.
type Arrival struct {
	Kind    Kind
	OwnerID string // node id, or edge id for labels
	LabelID string
	Size    model.Size
	Port    model.Port
	Rects   []PortRect
	Label   model.EdgeLabel
}

// Replay performs the call on u.
func (a Arrival) Replay(ctx context.Context, u Updater) error {
	switch a.Kind {
	case KindNodeSize:
		return u.ApplyNodeSize(ctx, a.OwnerID, a.Size)
	case KindPort:
		return u.AddPort(ctx, a.OwnerID, a.Port)
	case KindPortRect:
		return u.ApplyPortsSizesAndPositions(ctx, a.OwnerID, a.Rects)
	case KindLabel:
		return u.AddEdgeLabel(ctx, a.OwnerID, a.Label)
	case KindLabelSize:
		return u.ApplyEdgeLabelSize(ctx, a.OwnerID, a.LabelID, a.Size)
	}
	return nil
}

// LateArrivalQueue buffers measurements that arrive while the initial state
// is being written.
type LateArrivalQueue struct {
	mu        sync.Mutex
	finishing bool
	items     []Arrival
}

// StartFinishing opens the buffering window.
func (q *LateArrivalQueue) StartFinishing() {
	q.mu.Lock()
	q.finishing = true
	q.mu.Unlock()
}

// Finishing reports whether the buffering window is open.
func (q *LateArrivalQueue) Finishing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finishing
}

// Enqueue buffers a. It reports false when the window is closed.
func (q *LateArrivalQueue) Enqueue(a Arrival) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.finishing {
		return false
	}
	q.items = append(q.items, a)
	return true
}

// Len returns the number of buffered arrivals.
func (q *LateArrivalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ProcessAll replays buffered arrivals on target in arrival order, including
// those enqueued while replaying, then closes the window. Replay errors do
// not stop the queue; the first one is returned.
func (q *LateArrivalQueue) ProcessAll(ctx context.Context, target Updater) error {
	var first error
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		if len(items) == 0 {
			q.finishing = false
			q.mu.Unlock()
			return first
		}
		q.mu.Unlock()

		for _, a := range items {
			if err := a.Replay(ctx, target); err != nil && first == nil {
				first = err
			}
		}
	}
}
