package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
)

// CoalesceKind distinguishes which channel a coalescer update belongs to.
type CoalesceKind string

const (
	CoalesceSource CoalesceKind = "source"
	CoalesceTarget CoalesceKind = "target"
)

// terminators are the strong sentence-terminating marks that force an
// immediate emit regardless of debounce (spec §4.4, shared with C5's
// rule 1 terminator set).
var terminators = []string{".", "!", "?", "。", "．", "！", "？"}

func endsWithTerminator(s string) bool {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’' || r == '」' || r == '』'
	})
	for _, t := range terminators {
		if strings.HasSuffix(s, t) {
			return true
		}
	}
	return false
}

// resetSimilarityThreshold: a non-prefix update that is shorter than the
// previous text is always an explicit reset (emit immediately). A
// non-prefix update that is not shorter is a reset only when its
// Jaro-Winkler similarity to the previous text is below this value;
// otherwise it is treated as ASR jitter and debounced as usual.
const resetSimilarityThreshold = 0.55

type pendingUpdate struct {
	segmentID string
	text      string
	timer     *time.Timer
	firstSeen time.Time
}

// StreamCoalescer (C4) debounces a high-frequency stream of partial
// updates into a low-frequency stable stream, per segment_id and per
// kind (source/target). Grounded structurally on the teacher's
// timer-based "wait, maybe more arrives, else commit" idiom in
// managed_stream.go's VADSpeechEnd handling (speechEndHold).
type StreamCoalescer struct {
	mu       sync.Mutex
	debounce time.Duration
	forceMax time.Duration
	pending  map[string]*pendingUpdate // key: kind+segmentID
	emit     func(kind CoalesceKind, segmentID, text string)
}

// NewStreamCoalescer builds a coalescer. emit is called exactly once per
// flush, never concurrently with another flush for the same key.
func NewStreamCoalescer(debounceMs, forceCommitMs int, emit func(kind CoalesceKind, segmentID, text string)) *StreamCoalescer {
	return &StreamCoalescer{
		debounce: time.Duration(debounceMs) * time.Millisecond,
		forceMax: time.Duration(forceCommitMs) * time.Millisecond,
		pending:  make(map[string]*pendingUpdate),
		emit:     emit,
	}
}

func key(kind CoalesceKind, segmentID string) string {
	return string(kind) + "|" + segmentID
}

// Update feeds one partial/final text update. Strong-terminator text and
// non-increment updates (shorter, or dissimilar enough to be a reset) are
// emitted immediately; otherwise the update is debounced and force-
// committed after the configured maximum hold.
func (c *StreamCoalescer) Update(kind CoalesceKind, segmentID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(kind, segmentID)
	prev, exists := c.pending[k]

	if endsWithTerminator(text) {
		c.flushLocked(k, kind, segmentID, text)
		return
	}

	if exists {
		isIncrement := strings.HasPrefix(text, prev.text)
		if !isIncrement {
			similarity := matchr.JaroWinkler(text, prev.text, true)
			if len(text) < len(prev.text) || similarity < resetSimilarityThreshold {
				c.flushLocked(k, kind, segmentID, text)
				return
			}
		}
		prev.text = text
		return
	}

	timer := time.AfterFunc(c.forceMax, func() {
		c.mu.Lock()
		p, ok := c.pending[k]
		if !ok {
			c.mu.Unlock()
			return
		}
		delete(c.pending, k)
		t := p.text
		c.mu.Unlock()
		c.emit(kind, segmentID, t)
	})

	c.pending[k] = &pendingUpdate{segmentID: segmentID, text: text, timer: timer, firstSeen: time.Now()}

	// Schedule the debounce emit too; whichever fires first wins because
	// flush always deletes the map entry before calling emit.
	time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		p, ok := c.pending[k]
		if !ok {
			c.mu.Unlock()
			return
		}
		delete(c.pending, k)
		p.timer.Stop()
		t := p.text
		c.mu.Unlock()
		c.emit(kind, segmentID, t)
	})
}

// flushLocked emits immediately and clears any pending timers for key k.
// Caller must hold c.mu; c.mu is released for the duration of the emit
// callback so emit may safely call back into the coalescer.
func (c *StreamCoalescer) flushLocked(k string, kind CoalesceKind, segmentID, text string) {
	if p, ok := c.pending[k]; ok {
		p.timer.Stop()
		delete(c.pending, k)
	}
	c.mu.Unlock()
	c.emit(kind, segmentID, text)
	c.mu.Lock()
}

// ForceFinal cancels any pending timer for segmentID/kind and emits text
// immediately. Used when the orchestrator needs a synchronous final
// emission (e.g. realtime translation terminal -> target channel).
func (c *StreamCoalescer) ForceFinal(kind CoalesceKind, segmentID, text string) {
	c.mu.Lock()
	k := key(kind, segmentID)
	if p, ok := c.pending[k]; ok {
		p.timer.Stop()
		delete(c.pending, k)
	}
	c.mu.Unlock()
	c.emit(kind, segmentID, text)
}
