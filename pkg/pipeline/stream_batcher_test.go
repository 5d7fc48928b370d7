package pipeline

import (
	"testing"
	"time"
)

func TestStreamBatcherFlushesFirstUpdateImmediately(t *testing.T) {
	emitted := make(chan string, 1)
	b := NewStreamBatcher(100, 200, 2, func(segmentID, text string) {
		emitted <- text
	})

	b.Update("seg-1", "he")

	select {
	case text := <-emitted:
		if text != "he" {
			t.Errorf("unexpected emitted text: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first-update emit")
	}
}

func TestStreamBatcherWithholdsUntilMinIntervalAndMinChars(t *testing.T) {
	emitted := make(chan string, 4)
	b := NewStreamBatcher(500, 5000, 10, func(segmentID, text string) {
		emitted <- text
	})

	b.Update("seg-1", "he") // flushes immediately (first update)
	<-emitted

	b.Update("seg-1", "hell") // only +2 chars, below min_chars(10) and before min_interval(500ms)

	select {
	case extra := <-emitted:
		t.Fatalf("expected no emit before thresholds are met, got %q", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStreamBatcherForceFlushesAfterMaxWait(t *testing.T) {
	emitted := make(chan string, 4)
	b := NewStreamBatcher(5000, 80, 1000, func(segmentID, text string) {
		emitted <- text
	})

	b.Update("seg-1", "he") // flushes immediately (first update)
	<-emitted

	b.Update("seg-1", "hello there") // below min_chars, but max_wait should force it through

	select {
	case text := <-emitted:
		if text != "hello there" {
			t.Errorf("unexpected force-flush text: %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for max_wait force-flush")
	}
}

func TestStreamBatcherFinalEmitsAndCancelsPendingTimer(t *testing.T) {
	emitted := make(chan string, 4)
	b := NewStreamBatcher(5000, 5000, 1000, func(segmentID, text string) {
		emitted <- text
	})

	b.Update("seg-1", "partial") // flushes immediately (first update)
	<-emitted

	b.Update("seg-1", "partial translation") // buffered, below thresholds
	b.Final("seg-1", "final translation")

	select {
	case text := <-emitted:
		if text != "final translation" {
			t.Errorf("expected Final text, got %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Final emit")
	}

	select {
	case extra := <-emitted:
		t.Fatalf("expected no further emit after Final, got %q", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStreamBatcherDropSuppressesPendingEmit(t *testing.T) {
	emitted := make(chan string, 4)
	b := NewStreamBatcher(5000, 80, 1000, func(segmentID, text string) {
		emitted <- text
	})

	b.Update("seg-1", "he") // flushes immediately (first update)
	<-emitted

	b.Update("seg-1", "hello there") // would max_wait force-flush in 80ms
	b.Drop("seg-1")

	select {
	case extra := <-emitted:
		t.Fatalf("expected Drop to suppress the pending flush, got %q", extra)
	case <-time.After(200 * time.Millisecond):
	}
}
