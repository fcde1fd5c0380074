package measure

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestTrackOnlyWhileActive(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("a")
	assert.Empty(t, tr.Pending())
	assert.False(t, tr.Active())

	release := tr.Begin()
	assert.True(t, tr.Active())
	tr.Track("b", "a")
	assert.Equal(t, []string{"a", "b"}, tr.Pending())

	release()
	release()
	assert.False(t, tr.Active())
	assert.Empty(t, tr.Pending())
}

func TestWaitResolvesOnSignals(t *testing.T) {
	tr := NewTracker(nil)
	release := tr.Begin()
	defer release()
	tr.Track("a", "b")

	done := make(chan bool)
	go func() { done <- tr.Wait(context.Background(), 0) }()

	tr.Signal("a")
	tr.Signal("unknown")
	tr.Signal("b")

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestWaitTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock)
	release := tr.Begin()
	defer release()
	tr.Track("a")

	done := make(chan bool)
	go func() { done <- tr.Wait(context.Background(), 50*time.Millisecond) }()

	assert.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(50 * time.Millisecond)

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Wait did not time out")
	}
	assert.Equal(t, []string{"a"}, tr.Pending())
}

func TestWaitContextCancel(t *testing.T) {
	tr := NewTracker(nil)
	release := tr.Begin()
	defer release()
	tr.Track("a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, tr.Wait(ctx, 0))
}

func TestWaitNothingPending(t *testing.T) {
	tr := NewTracker(nil)
	assert.True(t, tr.Wait(context.Background(), time.Second))
}
