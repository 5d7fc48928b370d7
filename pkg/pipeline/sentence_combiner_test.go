package pipeline

import (
	"sync"
	"testing"
	"time"
)

func newTestCombinerConfig() Config {
	cfg := DefaultConfig()
	cfg.SentenceCombiner.MaxSegments = 3
	cfg.SentenceCombiner.TimeoutMs = 50
	cfg.SentenceCombiner.MinSegments = 1
	return cfg
}

func TestSentenceCombinerFlushesOnTerminator(t *testing.T) {
	var mu sync.Mutex
	var got []CombinedSentence
	sc := NewSentenceCombiner(newTestCombinerConfig(), func(cs CombinedSentence) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cs)
	})

	sc.AddSegment(TranscriptSegment{ID: "1", Text: "Hello there.", TimestampMs: 0, Language: LanguageEn})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(got))
	}
	if got[0].SourceText != "Hello there." {
		t.Errorf("unexpected source text: %q", got[0].SourceText)
	}
}

func TestLooksIncompleteDetectsTrailingConjunction(t *testing.T) {
	if !looksIncomplete("I wanted to say, and") {
		t.Error("expected trailing conjunction to look incomplete")
	}
	if looksIncomplete("a complete clause") {
		t.Error("expected plain clause to not look incomplete")
	}
}

func TestSentenceCombinerFlushesOnMaxSegments(t *testing.T) {
	var mu sync.Mutex
	var got []CombinedSentence
	cfg := newTestCombinerConfig()
	sc := NewSentenceCombiner(cfg, func(cs CombinedSentence) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cs)
	})

	for i := 0; i < cfg.SentenceCombiner.MaxSegments; i++ {
		sc.AddSegment(TranscriptSegment{ID: "seg", Text: "partial fragment", TimestampMs: int64(i), Language: LanguageEn})
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected flush at max segments, got %d", len(got))
	}
	if got[0].SegmentCount != cfg.SentenceCombiner.MaxSegments {
		t.Errorf("expected %d segments combined, got %d", cfg.SentenceCombiner.MaxSegments, got[0].SegmentCount)
	}
}

func TestSentenceCombinerFlushesOnSilenceTimeout(t *testing.T) {
	flushed := make(chan CombinedSentence, 1)
	cfg := newTestCombinerConfig()
	sc := NewSentenceCombiner(cfg, func(cs CombinedSentence) {
		flushed <- cs
	})

	sc.AddSegment(TranscriptSegment{ID: "1", Text: "a lingering fragment", TimestampMs: 0, Language: LanguageEn})

	select {
	case cs := <-flushed:
		if cs.SourceText != "a lingering fragment" {
			t.Errorf("unexpected flushed text: %q", cs.SourceText)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for silence-timeout flush")
	}
}

func TestSentenceCombinerPauseSuppressesTimeout(t *testing.T) {
	flushed := make(chan CombinedSentence, 1)
	cfg := newTestCombinerConfig()
	sc := NewSentenceCombiner(cfg, func(cs CombinedSentence) {
		flushed <- cs
	})

	sc.Pause()
	sc.AddSegment(TranscriptSegment{ID: "1", Text: "paused fragment", TimestampMs: 0, Language: LanguageEn})

	select {
	case <-flushed:
		t.Fatal("expected no flush while paused")
	case <-time.After(150 * time.Millisecond):
	}

	sc.Resume()
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush after resume")
	}
}
