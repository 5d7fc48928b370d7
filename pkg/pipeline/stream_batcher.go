package pipeline

import (
	"sync"
	"time"
)

// streamBatch tracks one segment's pending target-text batch.
type streamBatch struct {
	text          string
	lastFlushText string
	lastFlushAt   time.Time
	maxWaitTimer  *time.Timer
}

// StreamBatcher is the target-text half of C4 (spec §4.4): distinct from
// StreamCoalescer's source-side debounce/force-commit, it reduces UI
// update frequency for streaming translation output by withholding a
// partial until min_interval_ms has elapsed since the last flush AND at
// least min_chars new characters have accumulated, force-flushing
// regardless after max_wait_ms. Grounded on StreamCoalescer's per-key
// timer idiom, applied to a different threshold rule.
type StreamBatcher struct {
	mu          sync.Mutex
	minInterval time.Duration
	maxWait     time.Duration
	minChars    int
	pending     map[string]*streamBatch
	emit        func(segmentID, text string)
}

// NewStreamBatcher builds a batcher. emit is called exactly once per
// flush, never concurrently with another flush for the same segmentID.
func NewStreamBatcher(minIntervalMs, maxWaitMs, minChars int, emit func(segmentID, text string)) *StreamBatcher {
	return &StreamBatcher{
		minInterval: time.Duration(minIntervalMs) * time.Millisecond,
		maxWait:     time.Duration(maxWaitMs) * time.Millisecond,
		minChars:    minChars,
		pending:     make(map[string]*streamBatch),
		emit:        emit,
	}
}

// Update feeds one partial target-text update for segmentID. The first
// update for a segment always flushes immediately (there is nothing to
// batch yet); later updates flush once both thresholds are met, and are
// otherwise buffered behind a max_wait timer that guarantees eventual
// delivery.
func (b *StreamBatcher) Update(segmentID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sb, ok := b.pending[segmentID]
	if !ok {
		sb = &streamBatch{}
		b.pending[segmentID] = sb
	}
	sb.text = text

	ready := sb.lastFlushAt.IsZero() ||
		(time.Since(sb.lastFlushAt) >= b.minInterval && len(text)-len(sb.lastFlushText) >= b.minChars)

	if ready {
		b.flushLocked(segmentID, sb)
		return
	}

	if sb.maxWaitTimer == nil {
		sb.maxWaitTimer = time.AfterFunc(b.maxWait, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			cur, ok := b.pending[segmentID]
			if !ok {
				return
			}
			b.flushLocked(segmentID, cur)
		})
	}
}

// flushLocked emits the batch's current text and resets the interval
// window. Caller must hold b.mu; it is released for the duration of the
// emit callback so emit may safely call back into the batcher.
func (b *StreamBatcher) flushLocked(segmentID string, sb *streamBatch) {
	if sb.maxWaitTimer != nil {
		sb.maxWaitTimer.Stop()
		sb.maxWaitTimer = nil
	}
	text := sb.text
	sb.lastFlushText = text
	sb.lastFlushAt = time.Now()
	b.mu.Unlock()
	b.emit(segmentID, text)
	b.mu.Lock()
}

// Final cancels any pending timer for segmentID, drops its bookkeeping,
// and emits text immediately. Used once the translation is complete.
func (b *StreamBatcher) Final(segmentID, text string) {
	b.Drop(segmentID)
	b.emit(segmentID, text)
}

// Drop cancels any pending timer for segmentID and clears its
// bookkeeping without emitting. Used when the caller will publish the
// final text itself and just needs to silence a pending batch.
func (b *StreamBatcher) Drop(segmentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sb, ok := b.pending[segmentID]; ok {
		if sb.maxWaitTimer != nil {
			sb.maxWaitTimer.Stop()
		}
		delete(b.pending, segmentID)
	}
}
