package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ParagraphBuilder groups completed sentences into 20-60s paragraphs
// (C9). The periodic silence-gap check is driven externally (by the
// orchestrator's ticker or by CheckSilence called on each new sentence),
// per spec §5 ("event-driven by the latest sentence arrival" or a
// ≤500ms tick).
type ParagraphBuilder struct {
	mu sync.Mutex

	minMs        int64
	targetMinMs  int64
	targetMaxMs  int64
	hardCapMs    int64
	silenceGapMs int64

	sentences    []CombinedSentence
	startedAt    time.Time
	lastSentence time.Time

	onParagraph func(Paragraph)
}

// NewParagraphBuilder wires duration thresholds from Config.
func NewParagraphBuilder(cfg Config, onParagraph func(Paragraph)) *ParagraphBuilder {
	return &ParagraphBuilder{
		minMs:        cfg.Paragraph.MinMs,
		targetMinMs:  cfg.Paragraph.TargetMinMs,
		targetMaxMs:  cfg.Paragraph.TargetMaxMs,
		hardCapMs:    cfg.Paragraph.HardCapMs,
		silenceGapMs: cfg.Paragraph.SilenceGapMs,
		onParagraph:  onParagraph,
	}
}

// AddSentence ingests one completed CombinedSentence and applies the
// duration-target / hard-cap trigger rules.
func (pb *ParagraphBuilder) AddSentence(cs CombinedSentence) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if len(pb.sentences) == 0 {
		pb.startedAt = time.Now()
	}
	pb.sentences = append(pb.sentences, cs)
	pb.lastSentence = time.Now()

	elapsed := time.Since(pb.startedAt)
	elapsedMs := elapsed.Milliseconds()

	hasTerminator := endsWithTerminator(cs.SourceText)

	switch {
	case elapsedMs >= pb.hardCapMs:
		pb.flushLocked()
	case elapsedMs >= pb.targetMinMs && elapsedMs <= pb.targetMaxMs && hasTerminator:
		pb.flushLocked()
	}
}

// CheckSilence should be called periodically (≤500ms tick per spec §5)
// or whenever a new sentence arrives elsewhere in the pipeline; it
// applies the silence-gap trigger rule.
func (pb *ParagraphBuilder) CheckSilence() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if len(pb.sentences) == 0 {
		return
	}

	elapsedMs := time.Since(pb.startedAt).Milliseconds()
	sinceLastMs := time.Since(pb.lastSentence).Milliseconds()

	if elapsedMs >= pb.minMs && sinceLastMs >= pb.silenceGapMs {
		pb.flushLocked()
	}
}

// Flush force-emits any partial paragraph at or above the configured
// minimum duration (used by Stop()). Below the minimum, the partial
// paragraph is discarded rather than emitted as an undersized paragraph.
func (pb *ParagraphBuilder) Flush() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if len(pb.sentences) == 0 {
		return
	}
	if time.Since(pb.startedAt).Milliseconds() < pb.minMs {
		pb.sentences = nil
		return
	}
	pb.flushLocked()
}

// flushLocked builds and emits the Paragraph, clearing the buffer.
// Caller must hold pb.mu.
func (pb *ParagraphBuilder) flushLocked() {
	sentences := pb.sentences
	pb.sentences = nil

	ids := make([]string, 0, len(sentences))
	texts := make([]string, 0, len(sentences))
	var wordCount int
	for _, s := range sentences {
		ids = append(ids, s.ID)
		texts = append(texts, s.SourceText)
		wordCount += s.WordCount
	}

	raw := strings.Join(texts, " ")
	cleaned := cleanParagraphText(raw)

	startMs := int64(0)
	endMs := int64(0)
	if len(sentences) > 0 {
		startMs = sentences[0].StartMs
		endMs = sentences[len(sentences)-1].EndMs
	}

	p := Paragraph{
		ID:          uuid.NewString(),
		SentenceIDs: ids,
		RawText:     raw,
		CleanedText: cleaned,
		StartMs:     startMs,
		EndMs:       endMs,
		DurationMs:  endMs - startMs,
		WordCount:   wordCount,
	}

	if pb.onParagraph != nil {
		pb.onParagraph(p)
	}
}

// cleanParagraphText collapses doubled punctuation and trims, per the
// spec's description of cleaned_text (§4.9).
func cleanParagraphText(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		"..", ".", ",,", ",", "??", "?", "!!", "!",
		" .", ".", " ,", ",", " ?", "?", " !", "!",
	)
	prev := ""
	for prev != s {
		prev = s
		s = replacer.Replace(s)
	}
	return s
}
