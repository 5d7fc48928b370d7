package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// summaryJob is one unit of work for the single summarizer worker.
type summaryJob struct {
	newText        string
	sourceLanguage Language
	targetLanguage Language
	threshold      int
	startMs        int64
	endMs          int64
	wordCount      int
}

// ProgressiveSummarizer accumulates sentence text and, once the
// cumulative word count crosses the next threshold in Config, generates
// a new cumulative summary (C11). Work is processed by a single
// goroutine so summaries stay strictly ordered and never run
// concurrently with each other, with at least a 1s pause between jobs
// per spec §4.11's rate-limiting note. Grounded on the teacher's single
// consumer goroutine draining a buffered channel in managed_stream.go.
type ProgressiveSummarizer struct {
	mu sync.Mutex

	thresholds       []int
	charMultiplier   int
	maxTokens        int
	minJobGap        time.Duration

	cumulativeWords  int
	nextThresholdIdx int
	pendingText      []string
	pendingStartMs   int64
	pendingEndMs     int64

	lastCumulativeSummary string

	llm            LlmAdapter
	sourceLanguage Language
	targetLanguage Language

	onSummary func(Summary)
	onError   func(err error)

	jobs   chan summaryJob
	logger Logger

	metrics *Metrics

	closeOnce sync.Once
	done      chan struct{}
}

// NewProgressiveSummarizer wires thresholds from Config and starts the
// single background worker. Stop must be called to release it.
func NewProgressiveSummarizer(cfg Config, llm LlmAdapter, onSummary func(Summary), onError func(error), logger Logger, metrics *Metrics) *ProgressiveSummarizer {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	thresholds := cfg.Summary.Thresholds
	if len(thresholds) == 0 {
		thresholds = []int{400, 800, 1600, 2400}
	}
	s := &ProgressiveSummarizer{
		thresholds:     thresholds,
		charMultiplier: cfg.Summary.CharLanguageMultiplier,
		maxTokens:      cfg.Summary.SummaryMaxTokens,
		minJobGap:      time.Second,
		llm:            llm,
		sourceLanguage: cfg.SourceLanguage,
		targetLanguage: cfg.TargetLanguage,
		onSummary:      onSummary,
		onError:        onError,
		logger:         logger,
		metrics:        metrics,
		jobs:           make(chan summaryJob, 64),
		done:           make(chan struct{}),
	}
	go s.worker()
	return s
}

// effectiveThreshold applies the character-language multiplier (spec
// §4.11: CJK thresholds scale up since codepoint counts run higher per
// spoken word than space-delimited languages).
func (s *ProgressiveSummarizer) effectiveThreshold(raw int) int {
	if s.sourceLanguage.IsCharacterBased() && s.charMultiplier > 0 {
		return raw * s.charMultiplier
	}
	return raw
}

// AddSentence folds a completed sentence's pre-translation text into the
// running cumulative buffer and fires a summarization job if the next
// threshold is crossed. Fed directly from C5, independent of C9 (spec
// §4.11/§4.12): summaries must not lag behind a full paragraph cycle, nor
// be skipped when a short trailing paragraph never reaches its minimum
// duration and is discarded by ParagraphBuilder.Flush.
func (s *ProgressiveSummarizer) AddSentence(cs CombinedSentence) {
	s.mu.Lock()

	if len(s.pendingText) == 0 {
		s.pendingStartMs = cs.StartMs
	}
	s.pendingText = append(s.pendingText, cs.SourceText)
	s.pendingEndMs = cs.EndMs
	s.cumulativeWords += cs.WordCount

	var jobs []summaryJob
	for s.nextThresholdIdx < len(s.thresholds) {
		threshold := s.effectiveThreshold(s.thresholds[s.nextThresholdIdx])
		if s.cumulativeWords < threshold {
			break
		}

		jobs = append(jobs, summaryJob{
			newText:        strings.Join(s.pendingText, " "),
			sourceLanguage: s.sourceLanguage,
			targetLanguage: s.targetLanguage,
			threshold:      threshold,
			startMs:        s.pendingStartMs,
			endMs:          s.pendingEndMs,
			wordCount:      s.cumulativeWords,
		})
		s.pendingText = nil
		s.nextThresholdIdx++
	}
	s.mu.Unlock()

	for _, job := range jobs {
		select {
		case s.jobs <- job:
		case <-s.done:
			return
		}
	}
}

// worker drains jobs strictly in order, sleeping at least minJobGap
// between them.
func (s *ProgressiveSummarizer) worker() {
	var lastRun time.Time
	for {
		select {
		case <-s.done:
			return
		case job := <-s.jobs:
			if !lastRun.IsZero() {
				if wait := s.minJobGap - time.Since(lastRun); wait > 0 {
					time.Sleep(wait)
				}
			}
			s.process(job)
			lastRun = time.Now()
		}
	}
}

func (s *ProgressiveSummarizer) process(job summaryJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.mu.Lock()
	previous := s.lastCumulativeSummary
	s.mu.Unlock()

	prompt := buildCumulativeSummaryPrompt(previous, job.newText, job.sourceLanguage)
	summaryText, err := s.llm.Complete(ctx, prompt, CompleteOptions{MaxOutputTokens: s.maxTokens, Effort: EffortLow})
	if err != nil {
		s.logger.Error("progressive summary generation failed", "error", err, "threshold", job.threshold)
		if s.onError != nil {
			s.onError(fmt.Errorf("%s: %w", ErrCodeSummaryGeneration, err))
		}
		return
	}

	translated := summaryText
	if job.targetLanguage != job.sourceLanguage {
		translationPrompt := buildSummaryTranslationPrompt(summaryText, job.sourceLanguage, job.targetLanguage)
		if t, terr := s.llm.Complete(ctx, translationPrompt, CompleteOptions{MaxOutputTokens: s.maxTokens, Effort: EffortLow}); terr == nil {
			translated = t
		} else {
			s.logger.Warn("progressive summary translation failed, keeping source text", "error", terr)
		}
	}

	s.mu.Lock()
	s.lastCumulativeSummary = summaryText
	s.mu.Unlock()

	s.metrics.incSummaryEmitted(ctx)

	if s.onSummary != nil {
		s.onSummary(Summary{
			ID:             uuid.NewString(),
			SourceText:     summaryText,
			TargetText:     translated,
			SourceLanguage: job.sourceLanguage,
			TargetLanguage: job.targetLanguage,
			WordCount:      job.wordCount,
			Threshold:      job.threshold,
			StartMs:        job.startMs,
			EndMs:          job.endMs,
			TimestampMs:    time.Now().UnixMilli(),
		})
	}
}

// buildCumulativeSummaryPrompt per spec §4.11: the model is given the
// prior cumulative summary (if any) plus the newly accumulated text and
// asked to produce a single updated cumulative summary, not a delta.
func buildCumulativeSummaryPrompt(previousSummary, newText string, lang Language) string {
	var b strings.Builder
	b.WriteString("You are maintaining a running summary of a live lecture transcript.\n")
	if previousSummary != "" {
		b.WriteString("Existing summary so far:\n")
		b.WriteString(previousSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("New transcript material to fold in:\n")
	b.WriteString(newText)
	b.WriteString("\n\nWrite one updated cumulative summary covering everything above, in ")
	b.WriteString(string(lang))
	b.WriteString(". Do not describe the changes, just the summary itself.")
	return b.String()
}

func buildSummaryTranslationPrompt(summaryText string, source, target Language) string {
	return fmt.Sprintf("Translate the following summary from %s to %s. Return only the translation.\n\n%s", source, target, summaryText)
}

// GenerateFinalReport produces a one-shot end-of-session report from the
// last cumulative summary (spec §6 generateFinalReport{}), using a
// larger token budget than the rolling summaries.
func (s *ProgressiveSummarizer) GenerateFinalReport(ctx context.Context, maxTokens int) (string, error) {
	s.mu.Lock()
	summary := s.lastCumulativeSummary
	s.mu.Unlock()

	if summary == "" {
		return "", nil
	}
	prompt := fmt.Sprintf("Using the following cumulative lecture summary, write a structured final report with headings and key takeaways:\n\n%s", summary)
	return s.llm.Complete(ctx, prompt, CompleteOptions{MaxOutputTokens: maxTokens, Effort: EffortHigh})
}

// vocabularyPrompt asks the model for strict JSON so GenerateVocabulary
// can parse it without a second LLM round-trip for reformatting.
func vocabularyPrompt(sourceText string, lang Language) string {
	return fmt.Sprintf(
		"From the following %s lecture summary, extract up to 15 key technical "+
			"terms a student should know. Respond with ONLY a JSON array, no "+
			"commentary, where each element is {\"term\":...,\"definition\":...,"+
			"\"context\":...}.\n\n%s", lang, sourceText)
}

// GenerateVocabulary services "generateVocabulary{}" (§6): a one-shot
// Complete call over the last cumulative summary, parsed as a JSON array
// of term/definition/context triples. Uses EffortLow like the other
// summary-family calls (spec §4.11).
func (s *ProgressiveSummarizer) GenerateVocabulary(ctx context.Context, maxTokens int) (VocabularyData, error) {
	s.mu.Lock()
	summary := s.lastCumulativeSummary
	lang := s.sourceLanguage
	s.mu.Unlock()

	if summary == "" {
		return VocabularyData{}, nil
	}

	raw, err := s.llm.Complete(ctx, vocabularyPrompt(summary, lang), CompleteOptions{MaxOutputTokens: maxTokens, Effort: EffortLow})
	if err != nil {
		return VocabularyData{}, fmt.Errorf("%s: %w", ErrCodeSummaryGeneration, err)
	}

	items, err := parseVocabularyItems(raw)
	if err != nil {
		return VocabularyData{}, fmt.Errorf("%s: parsing vocabulary response: %w", ErrCodeSummaryGeneration, err)
	}
	return VocabularyData{Items: items, TotalTerms: len(items)}, nil
}

// parseVocabularyItems tolerates a model wrapping the JSON array in a
// code fence or a leading sentence, the way buildCumulativeSummaryPrompt's
// siblings sometimes do despite being asked not to.
func parseVocabularyItems(raw string) ([]VocabularyItem, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var items []VocabularyItem
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Stop releases the background worker goroutine.
func (s *ProgressiveSummarizer) Stop() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
