package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTranslationFailedForTest = errors.New("simulated translation failure")

func newTestQueueConfig(maxConcurrency int) Config {
	cfg := DefaultConfig()
	cfg.Translation.MaxConcurrency = maxConcurrency
	cfg.Translation.MaxQueueSize = 16
	cfg.Translation.MaxRetries = 2
	cfg.Translation.RequestTimeoutMs = 1000
	return cfg
}

func TestTranslationQueueManagerEnqueueIsIdempotentPerSegment(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	handler := func(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return TranslationResult{SegmentID: req.SegmentID, IsFinal: true}, nil
	}

	q := NewTranslationQueueManager(newTestQueueConfig(1), handler, nil, nil, nil)

	req := TranslationRequest{SegmentID: "seg-1", SourceText: "hi", Priority: PriorityNormal}
	if err := q.Enqueue(req); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(req); err != nil {
		t.Fatalf("duplicate enqueue should be a no-op, got error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected handler invoked exactly once for duplicate segmentID, got %d", calls)
	}
}

func TestTranslationQueueManagerPriorityOrdering(t *testing.T) {
	block := make(chan struct{})
	var mu sync.Mutex
	var order []string

	handler := func(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
		<-block
		mu.Lock()
		order = append(order, req.SegmentID)
		mu.Unlock()
		return TranslationResult{SegmentID: req.SegmentID, IsFinal: true}, nil
	}

	q := NewTranslationQueueManager(newTestQueueConfig(1), handler, nil, nil, nil)

	// First request occupies the single concurrency slot so the rest queue up.
	q.Enqueue(TranslationRequest{SegmentID: "first", Priority: PriorityNormal})
	time.Sleep(20 * time.Millisecond)

	q.Enqueue(TranslationRequest{SegmentID: "low", Priority: PriorityLow})
	q.Enqueue(TranslationRequest{SegmentID: "high", Priority: PriorityHigh})
	q.Enqueue(TranslationRequest{SegmentID: "normal", Priority: PriorityNormal})

	close(block)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "high", "normal", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected %d completions, got %d: %v", len(want), len(order), order)
	}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("position %d: got %q, want %q (full order %v)", i, order[i], id, order)
		}
	}
}

func TestTranslationQueueManagerRetryThenExhausted(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	handler := func(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return TranslationResult{}, errTranslationFailedForTest
	}

	var errMu sync.Mutex
	var errReq *TranslationRequest
	errorHandler := func(req TranslationRequest, err error) {
		errMu.Lock()
		r := req
		errReq = &r
		errMu.Unlock()
	}

	cfg := newTestQueueConfig(1)
	cfg.Translation.MaxRetries = 2
	q := NewTranslationQueueManager(cfg, handler, errorHandler, nil, nil)

	q.Enqueue(TranslationRequest{SegmentID: "seg-1", Priority: PriorityNormal})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		errMu.Lock()
		done := errReq != nil
		errMu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	gotAttempts := attempts
	mu.Unlock()
	if gotAttempts != cfg.Translation.MaxRetries+1 {
		t.Errorf("expected %d attempts (initial + retries), got %d", cfg.Translation.MaxRetries+1, gotAttempts)
	}

	errMu.Lock()
	defer errMu.Unlock()
	if errReq == nil {
		t.Fatal("expected errorHandler invoked after retries exhausted")
	}
	if errReq.SegmentID != "seg-1" {
		t.Errorf("unexpected segmentID in error callback: %q", errReq.SegmentID)
	}

	if status := q.GetSegmentStatus("seg-1"); status != SegmentNotFound {
		t.Errorf("expected segment cleared from state after exhaustion, got %v", status)
	}
}

func TestTranslationQueueManagerConcurrencyBound(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0
	release := make(chan struct{})

	handler := func(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		<-release

		mu.Lock()
		active--
		mu.Unlock()
		return TranslationResult{SegmentID: req.SegmentID, IsFinal: true}, nil
	}

	q := NewTranslationQueueManager(newTestQueueConfig(2), handler, nil, nil, nil)
	for i := 0; i < 5; i++ {
		q.Enqueue(TranslationRequest{SegmentID: string(rune('a' + i)), Priority: PriorityNormal})
	}

	time.Sleep(100 * time.Millisecond)
	close(release)

	mu.Lock()
	defer mu.Unlock()
	if maxActive > 2 {
		t.Errorf("expected at most 2 concurrently active translations, observed %d", maxActive)
	}
}

func TestTranslationQueueManagerGetStatusAndClear(t *testing.T) {
	block := make(chan struct{})
	handler := func(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
		<-block
		return TranslationResult{SegmentID: req.SegmentID, IsFinal: true}, nil
	}

	q := NewTranslationQueueManager(newTestQueueConfig(1), handler, nil, nil, nil)
	q.Enqueue(TranslationRequest{SegmentID: "active-1", Priority: PriorityNormal})
	time.Sleep(20 * time.Millisecond)
	q.Enqueue(TranslationRequest{SegmentID: "queued-1", Priority: PriorityNormal})
	q.Enqueue(TranslationRequest{SegmentID: "queued-2", Priority: PriorityLow})

	status := q.GetStatus()
	if status.Active != 1 {
		t.Errorf("expected 1 active, got %d", status.Active)
	}
	if status.Queued != 2 {
		t.Errorf("expected 2 queued, got %d", status.Queued)
	}

	if s := q.GetSegmentStatus("active-1"); s != SegmentActive {
		t.Errorf("expected active-1 active, got %v", s)
	}
	if s := q.GetSegmentStatus("queued-1"); s != SegmentQueued {
		t.Errorf("expected queued-1 queued, got %v", s)
	}
	if s := q.GetSegmentStatus("unknown"); s != SegmentNotFound {
		t.Errorf("expected unknown segment not-found, got %v", s)
	}

	q.Clear()
	if s := q.GetSegmentStatus("queued-1"); s != SegmentNotFound {
		t.Errorf("expected queued-1 cleared, got %v", s)
	}
	close(block)
}
