package pipeline

import (
	"testing"
	"time"
)

func TestStreamCoalescerEmitsImmediatelyOnTerminator(t *testing.T) {
	emitted := make(chan string, 1)
	c := NewStreamCoalescer(200, 1000, func(kind CoalesceKind, segmentID, text string) {
		emitted <- text
	})

	c.Update(CoalesceSource, "seg-1", "This is final.")

	select {
	case text := <-emitted:
		if text != "This is final." {
			t.Errorf("unexpected emitted text: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for immediate emit")
	}
}

func TestStreamCoalescerDebouncesIncrement(t *testing.T) {
	emitted := make(chan string, 4)
	c := NewStreamCoalescer(50, 1000, func(kind CoalesceKind, segmentID, text string) {
		emitted <- text
	})

	c.Update(CoalesceSource, "seg-1", "partial")
	c.Update(CoalesceSource, "seg-1", "partial text")

	select {
	case text := <-emitted:
		if text != "partial text" {
			t.Errorf("expected coalesced final increment, got %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced emit")
	}

	select {
	case extra := <-emitted:
		t.Fatalf("expected exactly one emit, got extra: %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStreamCoalescerForceCommitsAfterMaxHold(t *testing.T) {
	emitted := make(chan string, 1)
	c := NewStreamCoalescer(5000, 80, func(kind CoalesceKind, segmentID, text string) {
		emitted <- text
	})

	c.Update(CoalesceSource, "seg-1", "still talking")

	select {
	case text := <-emitted:
		if text != "still talking" {
			t.Errorf("unexpected force-commit text: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for force-commit emit")
	}
}

func TestStreamCoalescerForceFinal(t *testing.T) {
	emitted := make(chan string, 1)
	c := NewStreamCoalescer(5000, 5000, func(kind CoalesceKind, segmentID, text string) {
		emitted <- text
	})

	c.Update(CoalesceTarget, "seg-1", "partial translation")
	c.ForceFinal(CoalesceTarget, "seg-1", "final translation")

	select {
	case text := <-emitted:
		if text != "final translation" {
			t.Errorf("expected ForceFinal text, got %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ForceFinal emit")
	}
}

func TestEndsWithTerminatorTrimsTrailingQuotes(t *testing.T) {
	if !endsWithTerminator(`He said "stop."`) {
		t.Error("expected terminator detection through trailing quote")
	}
	if endsWithTerminator("still going") {
		t.Error("expected no terminator on plain text")
	}
}
