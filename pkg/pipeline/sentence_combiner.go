package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// incompleteEndSuffixes are trailing tokens that mark a segment as
// grammatically incomplete (spec §4.5). None of them is a strong
// terminator, so a segment matching one never triggers rule 1.
var incompleteEndSuffixes = []string{
	",", "、", " and", " or", " but",
	"は", "が", "を", "に", "で", "と", "の",
}

func looksIncomplete(s string) bool {
	trimmed := strings.TrimRight(s, " \t")
	for _, suf := range incompleteEndSuffixes {
		if strings.HasSuffix(trimmed, suf) {
			return true
		}
	}
	return false
}

// SentenceCombiner groups final ASR segments into sentence-bounded units
// (C5). Buffer ownership and the "clear after flush" discipline are
// grounded on the teacher's ms.audioBuf handling in managed_stream.go
// (Write/runBatchPipeline own a buffer, flush on a trigger, then reset).
type SentenceCombiner struct {
	mu          sync.Mutex
	maxSegments int
	timeout     time.Duration
	minSegments int

	pending []TranscriptSegment
	timer   *time.Timer
	paused  bool

	onSentence func(CombinedSentence)
}

// NewSentenceCombiner wires the trigger thresholds from Config.
func NewSentenceCombiner(cfg Config, onSentence func(CombinedSentence)) *SentenceCombiner {
	return &SentenceCombiner{
		maxSegments: cfg.SentenceCombiner.MaxSegments,
		timeout:     time.Duration(cfg.SentenceCombiner.TimeoutMs) * time.Millisecond,
		minSegments: cfg.SentenceCombiner.MinSegments,
		onSentence:  onSentence,
	}
}

// AddSegment ingests one final TranscriptSegment. Trigger priority is
// strong terminator > size bound > silence timeout; rule 1 is suppressed
// when the accumulated text looks grammatically incomplete.
func (sc *SentenceCombiner) AddSegment(seg TranscriptSegment) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.pending = append(sc.pending, seg)
	sc.resetTimerLocked()

	if endsWithTerminator(seg.Text) && !looksIncomplete(seg.Text) {
		sc.flushLocked()
		return
	}

	if len(sc.pending) < sc.minSegments {
		return
	}

	if len(sc.pending) >= sc.maxSegments {
		sc.flushLocked()
		return
	}
}

// Pause suspends the silence-timeout timer (e.g. while the pipeline is
// paused). Resume restarts it if segments are still pending.
func (sc *SentenceCombiner) Pause() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.paused = true
	if sc.timer != nil {
		sc.timer.Stop()
	}
}

func (sc *SentenceCombiner) Resume() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.paused = false
	sc.resetTimerLocked()
}

// Flush force-emits any pending sentence (used by Stop()).
func (sc *SentenceCombiner) Flush() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if len(sc.pending) == 0 {
		return
	}
	sc.flushLocked()
}

func (sc *SentenceCombiner) resetTimerLocked() {
	if sc.timer != nil {
		sc.timer.Stop()
	}
	if sc.paused || len(sc.pending) == 0 {
		return
	}
	sc.timer = time.AfterFunc(sc.timeout, func() {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if len(sc.pending) == 0 {
			return
		}
		sc.flushLocked()
	})
}

// flushLocked emits the CombinedSentence and clears the buffer. Caller
// must hold sc.mu.
func (sc *SentenceCombiner) flushLocked() {
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}

	segs := sc.pending
	sc.pending = nil

	texts := make([]string, 0, len(segs))
	ids := make([]string, 0, len(segs))
	var confSum float64
	for _, s := range segs {
		texts = append(texts, strings.TrimSpace(s.Text))
		ids = append(ids, s.ID)
		confSum += s.Confidence
	}

	sourceText := strings.TrimSpace(strings.Join(texts, " "))
	lang := LanguageEn
	if len(segs) > 0 {
		lang = segs[0].Language
	}

	cs := CombinedSentence{
		ID:             uuid.NewString(),
		SegmentIDs:     ids,
		SourceText:     sourceText,
		SourceLanguage: lang,
		SegmentCount:   len(segs),
		WordCount:      countWords(sourceText, lang),
	}
	if len(segs) > 0 {
		cs.StartMs = segs[0].TimestampMs
		cs.EndMs = segs[len(segs)-1].TimestampMs
		cs.AvgConfidence = confSum / float64(len(segs))
	}

	if sc.onSentence != nil {
		sc.onSentence(cs)
	}
}
