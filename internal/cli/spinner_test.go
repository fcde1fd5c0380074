package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerDrawsFrames(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "serving")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "serving") {
		t.Errorf("spinner output %q should contain the message", buf.String())
	}
	if !s.Cancelled() {
		t.Error("Stop cancels the spinner's own context")
	}
}

func TestSpinnerFollowsParentContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	s := newSpinner(ctx, &buf, "waiting")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after the parent timed out")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "stopping")
	s.Start()
	s.Stop()
	s.Stop()
}
