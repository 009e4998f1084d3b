package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinnerLifecycle_StopWithSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Connecting")
	s.start()
	time.Sleep(50 * time.Millisecond)
	s.stopWithSuccess("done")

	if !strings.HasSuffix(buf.String(), "done\n") {
		t.Errorf("expected success line at the end, got %q", buf.String())
	}
}

func TestSpinnerLifecycle_StopWithError(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Connecting")
	s.start()
	time.Sleep(30 * time.Millisecond)
	s.stopWithError()
	// Stopping twice must not panic
	s.stopOnce()

	if !strings.HasSuffix(buf.String(), "\033[?25h") {
		t.Errorf("cursor should be restored, got %q", buf.String())
	}
}

func TestStartProgress_SilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := startProgress(&buf, "Working")
	p.update("still working")
	p.success("done")
	p.fail()

	if buf.Len() != 0 {
		t.Errorf("non-terminal progress should write nothing, got %q", buf.String())
	}
}
