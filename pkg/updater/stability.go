package updater

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// StabilityDetector reports when a stream of notifications has gone quiet
// for a given delay. It is a one-shot debouncer: once stable it stays
// stable.
type StabilityDetector struct {
	clock clockwork.Clock
	delay time.Duration

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     int
	stable  bool
	stopped bool
	done    chan struct{}
	cancel  chan struct{}
}

// NewStabilityDetector starts the quiet-period timer. Without shouldWait
// the detector is stable from the start. A nil clock uses the real clock.
func NewStabilityDetector(shouldWait bool, delay time.Duration, clock clockwork.Clock) *StabilityDetector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	d := &StabilityDetector{
		clock:  clock,
		delay:  delay,
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}
	if !shouldWait {
		d.stable = true
		close(d.done)
		return d
	}
	d.mu.Lock()
	d.schedule()
	d.mu.Unlock()
	return d
}

// schedule (re)starts the timer. Callers hold d.mu.
func (d *StabilityDetector) schedule() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if gen != d.gen || d.stable || d.stopped {
			return
		}
		d.stable = true
		close(d.done)
	})
}

// Notify restarts the quiet period. It has no effect once stable or stopped.
func (d *StabilityDetector) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stable || d.stopped {
		return
	}
	d.schedule()
}

// Stable reports whether the quiet period has elapsed.
func (d *StabilityDetector) Stable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stable
}

// Wait blocks until the detector is stable. It returns ErrStabilityCancelled
// after Stop and ctx.Err() when ctx ends first.
func (d *StabilityDetector) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	default:
	}
	select {
	case <-d.done:
		return nil
	case <-d.cancel:
		return ErrStabilityCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the timer. Pending and future waiters fail unless the
// detector was already stable.
func (d *StabilityDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.cancel)
}
