// Package measure tracks entities whose geometry must be (re)measured by an
// external producer before an operation can be considered settled.
//
// Tracking only happens while a caller is waiting: [Tracker.Begin] opens a
// waiting window, the measurement-tracking middleware registers ids with
// [Tracker.Track] while the window is open, measurement producers report
// through [Tracker.Signal], and [Tracker.Wait] blocks until every tracked id
// has been reported or the timeout elapses.
package measure

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Tracker is safe for concurrent use.
type Tracker struct {
	clock clockwork.Clock

	mu      sync.Mutex
	waiters int
	pending map[string]bool
	changed chan struct{}
}

// NewTracker creates a tracker using clock for timeouts. A nil clock uses the
// real clock.
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		clock:   clock,
		pending: make(map[string]bool),
		changed: make(chan struct{}),
	}
}

// Begin opens a waiting window. The returned release closes it; when the
// last window closes, ids still pending are dropped.
func (t *Tracker) Begin() (release func()) {
	t.mu.Lock()
	t.waiters++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.waiters--
			if t.waiters == 0 && len(t.pending) > 0 {
				clear(t.pending)
				t.notify()
			}
		})
	}
}

// Active reports whether at least one waiting window is open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waiters > 0
}

// Track registers ids that must be signalled. It is a no-op when no window
// is open.
func (t *Tracker) Track(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.waiters == 0 {
		return
	}
	for _, id := range ids {
		t.pending[id] = true
	}
}

// Signal marks id as measured.
func (t *Tracker) Signal(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending[id] {
		return
	}
	delete(t.pending, id)
	t.notify()
}

// notify wakes waiters. Callers must hold mu.
func (t *Tracker) notify() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// Pending returns the tracked ids not yet signalled, sorted.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Wait blocks until nothing is pending, ctx is done or timeout elapses. It
// reports whether every tracked id was signalled. A non-positive timeout
// waits for ctx only.
func (t *Tracker) Wait(ctx context.Context, timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := t.clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}

	for {
		t.mu.Lock()
		if len(t.pending) == 0 {
			t.mu.Unlock()
			return true
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-expired:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
