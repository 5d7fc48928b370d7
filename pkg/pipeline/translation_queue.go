package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// SegmentStatus is the result of TranslationQueueManager.GetSegmentStatus.
type SegmentStatus string

const (
	SegmentActive   SegmentStatus = "active"
	SegmentQueued   SegmentStatus = "queued"
	SegmentNotFound SegmentStatus = "not-found"
)

// QueueStatus is the snapshot returned by GetStatus.
type QueueStatus struct {
	Active         int
	Queued         int
	Completed      int
	Errors         int
	AvgProcessingMs float64
}

// TranslationHandler performs the actual translation call (normally a
// thin wrapper around an LlmAdapter). Returning an error counts as a
// retry-eligible failure.
type TranslationHandler func(ctx context.Context, req TranslationRequest) (TranslationResult, error)

// ErrorHandler is invoked once retries are exhausted for a request.
type ErrorHandler func(req TranslationRequest, err error)

// TranslationQueueManager is the C6 bounded-concurrency priority queue.
// Concurrency is bounded with golang.org/x/sync/semaphore (contributed by
// MrWong99-glyphoxa's dependency set) rather than a hand-rolled counting
// channel. Priority buckets are plain slices — the insertion rule in
// spec §4.6 never needs a heap.
type TranslationQueueManager struct {
	mu sync.Mutex

	maxQueueSize int
	maxRetries   int
	requestTimeout time.Duration

	high, normal, low []TranslationRequest
	segmentState      map[string]SegmentStatus // "active" | "queued"

	sem *semaphore.Weighted

	handler      TranslationHandler
	errorHandler ErrorHandler

	completed         int
	errorsCount       int
	totalProcessingMs int64

	logger  Logger
	metrics *Metrics
}

// NewTranslationQueueManager wires capacity/concurrency/timeout/retries
// from Config. handler is required; errorHandler may be nil.
func NewTranslationQueueManager(cfg Config, handler TranslationHandler, errorHandler ErrorHandler, logger Logger, metrics *Metrics) *TranslationQueueManager {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	maxConcurrency := cfg.Translation.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &TranslationQueueManager{
		maxQueueSize:   cfg.Translation.MaxQueueSize,
		maxRetries:     cfg.Translation.MaxRetries,
		requestTimeout: time.Duration(cfg.Translation.RequestTimeoutMs) * time.Millisecond,
		segmentState:   make(map[string]SegmentStatus),
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
		handler:        handler,
		errorHandler:   errorHandler,
		logger:         logger,
		metrics:        metrics,
	}
}

// Enqueue is idempotent on SegmentID: if the segment is already active or
// queued, the call is a no-op (a warning is logged).
func (q *TranslationQueueManager) Enqueue(req TranslationRequest) error {
	q.mu.Lock()

	if _, exists := q.segmentState[req.SegmentID]; exists {
		q.logger.Warn("duplicate translation enqueue ignored", "segmentID", req.SegmentID)
		q.mu.Unlock()
		return nil
	}

	if q.queuedCountLocked() >= q.maxQueueSize {
		q.mu.Unlock()
		return ErrQueueFull
	}

	q.insertLocked(req)
	q.segmentState[req.SegmentID] = SegmentQueued
	q.mu.Unlock()

	q.metrics.incQueueDepth(context.Background(), 1)
	q.scheduleNext()
	return nil
}

func (q *TranslationQueueManager) queuedCountLocked() int {
	return len(q.high) + len(q.normal) + len(q.low)
}

// insertLocked applies the priority insertion rule from spec §4.6:
// high goes to the front (after other highs), normal after the last
// high, low at the tail. Caller must hold q.mu.
func (q *TranslationQueueManager) insertLocked(req TranslationRequest) {
	switch req.Priority {
	case PriorityHigh:
		q.high = append(q.high, req)
	case PriorityLow:
		q.low = append(q.low, req)
	default:
		q.normal = append(q.normal, req)
	}
}

// insertFrontLocked is used for retries: re-insert at the head of the
// request's own priority bucket. Caller must hold q.mu.
func (q *TranslationQueueManager) insertFrontLocked(req TranslationRequest) {
	switch req.Priority {
	case PriorityHigh:
		q.high = append([]TranslationRequest{req}, q.high...)
	case PriorityLow:
		q.low = append([]TranslationRequest{req}, q.low...)
	default:
		q.normal = append([]TranslationRequest{req}, q.normal...)
	}
}

// popNextLocked removes and returns the next request in priority order
// (high, then normal, then low), or ok=false if empty. Caller must hold
// q.mu.
func (q *TranslationQueueManager) popNextLocked() (TranslationRequest, bool) {
	if len(q.high) > 0 {
		req := q.high[0]
		q.high = q.high[1:]
		return req, true
	}
	if len(q.normal) > 0 {
		req := q.normal[0]
		q.normal = q.normal[1:]
		return req, true
	}
	if len(q.low) > 0 {
		req := q.low[0]
		q.low = q.low[1:]
		return req, true
	}
	return TranslationRequest{}, false
}

// scheduleNext starts as many queued requests as available concurrency
// slots allow. Called after every enqueue and after every terminal
// outcome (spec §4.6: "after every terminal outcome, the next item is
// scheduled asynchronously").
func (q *TranslationQueueManager) scheduleNext() {
	for {
		if !q.sem.TryAcquire(1) {
			return
		}

		q.mu.Lock()
		req, ok := q.popNextLocked()
		if !ok {
			q.mu.Unlock()
			q.sem.Release(1)
			return
		}
		q.segmentState[req.SegmentID] = SegmentActive
		q.mu.Unlock()

		q.metrics.incQueueDepth(context.Background(), -1)
		q.metrics.incQueueActive(context.Background(), 1)

		go q.runOne(req)
	}
}

func (q *TranslationQueueManager) runOne(req TranslationRequest) {
	defer func() {
		q.sem.Release(1)
		q.metrics.incQueueActive(context.Background(), -1)
		q.scheduleNext()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.requestTimeout)
	defer cancel()

	start := time.Now()
	_, err := q.handler(ctx, req)
	elapsed := time.Since(start)

	if err == nil {
		q.mu.Lock()
		delete(q.segmentState, req.SegmentID)
		q.completed++
		q.totalProcessingMs += elapsed.Milliseconds()
		q.mu.Unlock()
		q.metrics.incCompleted(context.Background())
		return
	}

	if req.Attempts < q.maxRetries {
		req.Attempts++
		q.mu.Lock()
		q.insertFrontLocked(req)
		q.segmentState[req.SegmentID] = SegmentQueued
		q.mu.Unlock()
		q.metrics.incQueueDepth(context.Background(), 1)
		q.logger.Warn("translation attempt failed, retrying", "segmentID", req.SegmentID, "attempts", req.Attempts, "error", err)
		return
	}

	q.mu.Lock()
	delete(q.segmentState, req.SegmentID)
	q.errorsCount++
	q.mu.Unlock()
	q.metrics.incErrors(context.Background())
	q.logger.Error("translation failed after retries exhausted", "segmentID", req.SegmentID, "error", err)
	if q.errorHandler != nil {
		q.errorHandler(req, err)
	}
}

// GetStatus returns a snapshot of queue/active/completed/error counts.
func (q *TranslationQueueManager) GetStatus() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	active := 0
	for _, s := range q.segmentState {
		if s == SegmentActive {
			active++
		}
	}

	avg := 0.0
	if q.completed > 0 {
		avg = float64(q.totalProcessingMs) / float64(q.completed)
	}

	return QueueStatus{
		Active:          active,
		Queued:          q.queuedCountLocked(),
		Completed:       q.completed,
		Errors:          q.errorsCount,
		AvgProcessingMs: avg,
	}
}

// GetSegmentStatus reports whether segmentID is active, queued, or
// unknown to the queue.
func (q *TranslationQueueManager) GetSegmentStatus(segmentID string) SegmentStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.segmentState[segmentID]; ok {
		return s
	}
	return SegmentNotFound
}

// Clear drops all queued (not yet active) items; in-flight actives are
// left to finish.
func (q *TranslationQueueManager) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, req := range q.high {
		delete(q.segmentState, req.SegmentID)
	}
	for _, req := range q.normal {
		delete(q.segmentState, req.SegmentID)
	}
	for _, req := range q.low {
		delete(q.segmentState, req.SegmentID)
	}
	q.high = nil
	q.normal = nil
	q.low = nil
}
