package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// correlationEntry tracks an issued correlation ID for the GC sweep
// (spec §6: "expired correlations (> 30s) are GC'd").
type correlationEntry struct {
	issuedAt time.Time
}

// PipelineOrchestrator wires C1-C11 into the single pipeline described
// by spec §4.12. It owns the ASR and LLM adapters and is the only
// component external callers (transport, MCP server, cmd) talk to.
// Grounded on the teacher's top-level Orchestrator in
// pkg/orchestrator/orchestrator.go, which plays the identical
// wire-everything-together role for the voice-assistant pipeline.
type PipelineOrchestrator struct {
	cfg Config

	bus   *EventBus
	state *PipelineStateManager

	coalescer  *StreamCoalescer
	combiner   *SentenceCombiner
	queue      *TranslationQueueManager
	timeouts   *TranslationTimeoutManager
	paragraphs *ParagraphBuilder
	history    *HistoryGrouper
	summarizer *ProgressiveSummarizer

	asr AsrAdapter
	llm LlmAdapter

	logger  Logger
	metrics *Metrics

	mu              sync.Mutex
	correlations    map[string]correlationEntry
	silenceTicker   *time.Ticker
	gcTicker        *time.Ticker
	stopSweep       chan struct{}
	consecAsrErrors int
}

// NewPipelineOrchestrator builds the full pipeline. asr/llm must be
// non-nil; Start returns ErrNilProvider otherwise.
func NewPipelineOrchestrator(cfg Config, asr AsrAdapter, llm LlmAdapter, logger Logger, metrics *Metrics) *PipelineOrchestrator {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	o := &PipelineOrchestrator{
		cfg:          cfg,
		bus:          NewEventBus(logger),
		state:        NewPipelineStateManager(),
		timeouts:     NewTranslationTimeoutManager(cfg),
		history:      NewHistoryGrouper(cfg.AllowRealtimeDowngrade),
		asr:          asr,
		llm:          llm,
		logger:       logger,
		metrics:      metrics,
		correlations: make(map[string]correlationEntry),
	}

	o.coalescer = NewStreamCoalescer(cfg.Coalescer.DebounceMs, cfg.Coalescer.ForceCommitMs, o.onCoalesced)
	o.combiner = NewSentenceCombiner(cfg, o.onCombinedSentence)
	o.queue = NewTranslationQueueManager(cfg, o.handleTranslation, o.handleTranslationError, logger, metrics)
	o.paragraphs = NewParagraphBuilder(cfg, o.onParagraph)
	o.summarizer = NewProgressiveSummarizer(cfg, llm, o.onSummary, o.onSummaryError, logger, metrics)

	return o
}

// Events exposes the C1 bus to external consumers (transport, persistence).
func (o *PipelineOrchestrator) Events() (<-chan PipelineEvent, func()) {
	return o.bus.Subscribe()
}

// Start transitions idle -> starting -> listening and opens the ASR
// stream. Returns ErrAlreadyRunning if not idle, ErrNilProvider if a
// port is missing.
func (o *PipelineOrchestrator) Start(ctx context.Context) error {
	if o.asr == nil || o.llm == nil {
		return ErrNilProvider
	}
	if o.state.GetState() != StateIdle {
		return ErrAlreadyRunning
	}

	correlationID := uuid.NewString()
	if err := o.state.SetState(StateStarting, correlationID, "start requested"); err != nil {
		return err
	}
	o.trackCorrelation(correlationID)
	o.publishStatus(correlationID)

	callbacks := AsrCallbacks{
		OnTranscript:   o.onTranscript,
		OnError:        o.onAsrError,
		OnConnected:    func() { o.logger.Info("asr connected", "provider", o.asr.Name()) },
		OnDisconnected: func() { o.logger.Info("asr disconnected", "provider", o.asr.Name()) },
	}

	if err := o.asr.Connect(ctx, o.cfg.SourceLanguage, callbacks); err != nil {
		_ = o.state.SetState(StateError, correlationID, "asr connect failed")
		o.publishError(correlationID, ErrCodeAsrConnection, err.Error(), true)
		return fmt.Errorf("asr connect: %w", err)
	}

	if err := o.state.SetState(StateListening, correlationID, "asr connected"); err != nil {
		return err
	}
	o.publishStatus(correlationID)
	o.startSweeps()
	return nil
}

// Stop flushes every in-flight buffer in dependency order (combiner ->
// paragraph builder) and tears down the ASR connection, per spec
// §4.12's shutdown sequencing. Calling Stop while already idle is a
// no-op that returns success (spec §8: "calling stop twice is
// idempotent; the second is a no-op returning success").
func (o *PipelineOrchestrator) Stop(ctx context.Context) error {
	state := o.state.GetState()
	if state == StateIdle {
		return nil
	}
	correlationID := o.state.CorrelationID()

	if err := o.state.SetState(StateStopping, correlationID, "stop requested"); err != nil {
		return err
	}
	o.publishStatus(correlationID)

	o.combiner.Flush()
	o.paragraphs.Flush()
	o.timeouts.ClearAll()
	o.queue.Clear()
	o.stopSweeps()

	if o.asr != nil {
		if err := o.asr.Close(); err != nil {
			o.logger.Warn("asr close error", "error", err)
		}
	}

	if err := o.state.SetState(StateIdle, correlationID, "stopped"); err != nil {
		return err
	}
	o.publishStatus("")
	return nil
}

// Pause suspends segment ingestion without tearing down the ASR stream.
func (o *PipelineOrchestrator) Pause() error {
	if err := o.state.Pause("pause requested"); err != nil {
		return err
	}
	o.combiner.Pause()
	o.publishStatus(o.state.CorrelationID())
	return nil
}

// Resume reverses Pause.
func (o *PipelineOrchestrator) Resume() error {
	if err := o.state.Resume("resume requested"); err != nil {
		return err
	}
	o.combiner.Resume()
	o.publishStatus(o.state.CorrelationID())
	return nil
}

// UpdateLanguages changes source/target languages. Only valid while
// idle, per spec §6 ("language changes take effect on next Start").
func (o *PipelineOrchestrator) UpdateLanguages(source, target Language) error {
	if o.state.GetState() != StateIdle {
		return ErrUpdateWhileRunning
	}
	o.mu.Lock()
	o.cfg.SourceLanguage = source
	o.cfg.TargetLanguage = target
	o.mu.Unlock()
	o.summarizer.mu.Lock()
	o.summarizer.sourceLanguage = source
	o.summarizer.targetLanguage = target
	o.summarizer.mu.Unlock()
	return nil
}

// TranslateUserText services the "translateUserInput" UI command (spec
// §6 `translate_user_text(text, from, to)`): an ad hoc translation via
// C7, bypassing C5/C9/C11 and the C6 queue entirely, returning the
// terminal translation string directly to the caller.
func (o *PipelineOrchestrator) TranslateUserText(ctx context.Context, text string, from, to Language) (string, error) {
	if from == "" {
		from = o.cfg.SourceLanguage
	}
	if to == "" {
		to = o.cfg.TargetLanguage
	}
	translated, err := o.llm.TranslateStream(ctx, text, from, to, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrCodeTranslationProvider, err)
	}
	return translated, nil
}

// GetHistory services "getHistory{limit?, offset?}".
func (o *PipelineOrchestrator) GetHistory(limit, offset int) []HistoryBlock {
	return o.history.Snapshot(limit, offset)
}

// ClearHistory services "clearHistory{}".
func (o *PipelineOrchestrator) ClearHistory() {
	o.history.Clear()
}

// GenerateFinalReport services "generateFinalReport{}".
func (o *PipelineOrchestrator) GenerateFinalReport(ctx context.Context) (string, error) {
	report, err := o.summarizer.GenerateFinalReport(ctx, o.cfg.Summary.FinalReportMaxTokens)
	if err != nil {
		o.publishError(o.state.CorrelationID(), ErrCodePersistence, err.Error(), true)
		return "", err
	}
	o.bus.Publish(PipelineEvent{
		Type:          EventFinalReport,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: o.state.CorrelationID(),
		Data:          map[string]string{"report": report},
	})
	return report, nil
}

// GenerateVocabulary services "generateVocabulary{}".
func (o *PipelineOrchestrator) GenerateVocabulary(ctx context.Context) (VocabularyData, error) {
	data, err := o.summarizer.GenerateVocabulary(ctx, o.cfg.Summary.SummaryMaxTokens)
	if err != nil {
		o.publishError(o.state.CorrelationID(), ErrCodeSummaryGeneration, err.Error(), true)
		return VocabularyData{}, err
	}
	o.bus.Publish(PipelineEvent{
		Type:          EventVocabulary,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: o.state.CorrelationID(),
		Data:          data,
	})
	return data, nil
}

// GetStatus services "getStatus{}".
func (o *PipelineOrchestrator) GetStatus() StatusData {
	return StatusData{State: o.state.GetState()}
}

// GetSegmentStatus services "getSegmentStatus{segmentId}".
func (o *PipelineOrchestrator) GetSegmentStatus(segmentID string) SegmentStatus {
	return o.queue.GetSegmentStatus(segmentID)
}

// SendAudio forwards one PCM16 frame to the ASR adapter.
func (o *PipelineOrchestrator) SendAudio(frame []byte) error {
	if o.asr == nil {
		return ErrNilProvider
	}
	return o.asr.SendAudio(frame)
}

// --- internal wiring ---

// onTranscript is AsrCallbacks.OnTranscript. Partial segments feed the
// source-side coalescer; final segments feed C5 directly, per spec
// §4.12's wiring rule.
func (o *PipelineOrchestrator) onTranscript(seg TranscriptSegment) {
	o.mu.Lock()
	o.consecAsrErrors = 0
	o.mu.Unlock()

	o.state.UpdateActivity()
	o.bus.Publish(PipelineEvent{
		Type:          EventASR,
		TimestampMs:   seg.TimestampMs,
		CorrelationID: o.state.CorrelationID(),
		Data:          seg,
	})

	if !seg.IsFinal {
		o.coalescer.Update(CoalesceSource, seg.ID, seg.Text)
		return
	}
	o.coalescer.ForceFinal(CoalesceSource, seg.ID, seg.Text)
	o.combiner.AddSegment(seg)
}

// onAsrError is AsrCallbacks.OnError. Spec §7: repeated AsrStreamError
// beyond a configurable threshold is fatal for the session — the
// orchestrator transitions to error and then back to idle rather than
// letting the caller spin on a dead stream.
func (o *PipelineOrchestrator) onAsrError(e AsrError) {
	correlationID := o.state.CorrelationID()
	o.publishError(correlationID, ErrCodeAsrStream, e.Message, e.Recoverable)

	threshold := o.cfg.AsrStreamErrorThreshold
	if threshold <= 0 {
		threshold = 3
	}

	o.mu.Lock()
	o.consecAsrErrors++
	tripped := o.consecAsrErrors >= threshold
	if tripped {
		o.consecAsrErrors = 0
	}
	o.mu.Unlock()

	if !tripped {
		return
	}

	if err := o.state.SetState(StateError, correlationID, "asr_stream_error_threshold_exceeded"); err != nil {
		return
	}
	o.publishStatus(correlationID)

	if err := o.state.SetState(StateIdle, correlationID, "asr_stream_error_recovered"); err != nil {
		return
	}
	o.publishStatus(correlationID)
}

// onCoalesced is the StreamCoalescer's emit callback; it re-publishes
// the stabilized text as another asr event so the UI's stable stream
// replaces its own debounced rendering.
func (o *PipelineOrchestrator) onCoalesced(kind CoalesceKind, segmentID, text string) {
	if kind != CoalesceSource {
		return
	}
	o.bus.Publish(PipelineEvent{
		Type:          EventASR,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: o.state.CorrelationID(),
		Data:          TranscriptSegment{ID: segmentID, Text: text, IsFinal: true},
	})
}

// onCombinedSentence is C5's emit callback: publish the sentence, seed
// C10's placeholder entry, enqueue its realtime translation, feed C9,
// and arm the C8 timeout.
func (o *PipelineOrchestrator) onCombinedSentence(cs CombinedSentence) {
	correlationID := o.state.CorrelationID()

	o.bus.Publish(PipelineEvent{
		Type:          EventCombinedSentence,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Data:          cs,
	})

	if o.cfg.HistoryPrimary == HistoryPrimarySentence {
		o.history.AddSentence(cs)
	}

	o.paragraphs.AddSentence(cs)
	o.paragraphs.CheckSilence()
	o.summarizer.AddSentence(cs)

	req := TranslationRequest{
		SegmentID:      cs.ID,
		SourceText:     cs.SourceText,
		SourceLanguage: cs.SourceLanguage,
		TargetLanguage: o.cfg.TargetLanguage,
		TimestampMs:    time.Now().UnixMilli(),
		Priority:       PriorityNormal,
		Kind:           KindRealtime,
	}
	if err := o.queue.Enqueue(req); err != nil {
		o.publishError(correlationID, ErrCodeQueueFull, err.Error(), true)
		return
	}

	o.timeouts.StartTimeout(cs.ID, cs.SourceText, o.onTranslationTimeout)
}

// handleTranslation is the TranslationHandler run by the queue worker.
// Streaming partials are batched on the target channel (C4's
// StreamBatcher, spec §4.4) before being re-published, so the UI sees at
// most one update per min_interval_ms/min_chars rather than every raw
// provider token; the terminal result clears the C8 timeout and applies
// the one-shot history upgrade.
func (o *PipelineOrchestrator) handleTranslation(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	start := time.Now()

	batcher := NewStreamBatcher(o.cfg.StreamBatcher.MinIntervalMs, o.cfg.StreamBatcher.MaxWaitMs, o.cfg.StreamBatcher.MinChars,
		func(_ string, text string) { o.publishTranslation(req, text, false) })

	targetText, err := o.llm.TranslateStream(ctx, req.SourceText, req.SourceLanguage, req.TargetLanguage, func(partial string) error {
		batcher.Update(req.SegmentID, partial)
		return nil
	})
	if err != nil {
		return TranslationResult{}, fmt.Errorf("%s: %w", ErrCodeTranslationProvider, err)
	}

	batcher.Drop(req.SegmentID)
	o.timeouts.ClearTimeout(req.SegmentID)

	switch req.Kind {
	case KindParagraph:
		o.history.UpdateParagraphTranslation(req.SegmentID, targetText)
	default:
		o.history.UpdateSentenceTranslation(req.SegmentID, targetText, req.Kind)
	}

	result := TranslationResult{
		SegmentID:    req.SegmentID,
		SourceText:   req.SourceText,
		TargetText:   targetText,
		CompleteMs:   time.Since(start).Milliseconds(),
		IsFinal:      true,
	}
	o.publishTranslation(req, targetText, true)
	return result, nil
}

func (o *PipelineOrchestrator) publishTranslation(req TranslationRequest, text string, isFinal bool) {
	o.bus.Publish(PipelineEvent{
		Type:          EventTranslation,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: o.state.CorrelationID(),
		Data: TranslationResult{
			SegmentID:  req.SegmentID,
			SourceText: req.SourceText,
			TargetText: text,
			IsFinal:    isFinal,
		},
	})
}

// handleTranslationError is the queue's ErrorHandler, invoked once
// retries are exhausted. The history entry is upgraded to the timeout
// marker so the UI shows something deterministic instead of spinning.
func (o *PipelineOrchestrator) handleTranslationError(req TranslationRequest, err error) {
	o.timeouts.ClearTimeout(req.SegmentID)
	o.history.UpdateSentenceTranslation(req.SegmentID, TranslationTimeoutMarker, req.Kind)
	o.publishError(o.state.CorrelationID(), ErrCodeTranslationProvider, err.Error(), true)
}

// onTranslationTimeout is C8's callback: the translation took too long,
// so history is upgraded to the timeout marker (a real result arriving
// later can still upgrade past it, since tierTimeout < tierRealtime).
func (o *PipelineOrchestrator) onTranslationTimeout(segmentID string) {
	o.history.UpdateSentenceTranslation(segmentID, TranslationTimeoutMarker, KindRealtime)
	o.publishError(o.state.CorrelationID(), ErrCodeTranslationTimeout, "translation timed out for segment "+segmentID, true)
}

// onParagraph is C9's emit callback: publish, promote the covered
// sentences' history block, and enqueue the paragraph-quality
// retranslation. C11 is fed directly from C5 (onCombinedSentence), not
// from here.
func (o *PipelineOrchestrator) onParagraph(p Paragraph) {
	correlationID := o.state.CorrelationID()

	o.bus.Publish(PipelineEvent{
		Type:          EventParagraphComplete,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Data:          p,
	})

	if o.cfg.HistoryPrimary == HistoryPrimaryParagraph {
		o.history.AddParagraph(p)
	} else if len(p.SentenceIDs) > 0 {
		o.history.PromoteToParagraph(p.SentenceIDs[0], p.ID)
	}

	req := TranslationRequest{
		SegmentID:      p.ID,
		SourceText:     p.CleanedText,
		SourceLanguage: o.cfg.SourceLanguage,
		TargetLanguage: o.cfg.TargetLanguage,
		TimestampMs:    time.Now().UnixMilli(),
		Priority:       PriorityLow,
		Kind:           KindParagraph,
	}
	if err := o.queue.Enqueue(req); err != nil {
		o.publishError(correlationID, ErrCodeQueueFull, err.Error(), true)
	}
}

func (o *PipelineOrchestrator) onSummary(s Summary) {
	o.bus.Publish(PipelineEvent{
		Type:          EventProgressiveSummary,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: o.state.CorrelationID(),
		Data:          s,
	})
}

func (o *PipelineOrchestrator) onSummaryError(err error) {
	o.publishError(o.state.CorrelationID(), ErrCodeSummaryGeneration, err.Error(), true)
}

func (o *PipelineOrchestrator) publishError(correlationID string, code ErrorCode, message string, recoverable bool) {
	o.bus.Publish(PipelineEvent{
		Type:          EventError,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Data: ErrorData{
			Code:        code,
			Message:     message,
			Recoverable: recoverable,
		},
	})
}

func (o *PipelineOrchestrator) publishStatus(correlationID string) {
	o.bus.Publish(PipelineEvent{
		Type:          EventStatus,
		TimestampMs:   time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Data:          StatusData{State: o.state.GetState()},
	})
}

// --- correlation GC + silence tick sweeps ---

func (o *PipelineOrchestrator) trackCorrelation(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.correlations[id] = correlationEntry{issuedAt: time.Now()}
}

// startSweeps launches the paragraph-silence tick (≤500ms per spec §5)
// and the correlation GC sweep (spec §6: correlations older than
// CorrelationTTLSeconds are discarded).
func (o *PipelineOrchestrator) startSweeps() {
	o.mu.Lock()
	o.silenceTicker = time.NewTicker(500 * time.Millisecond)
	o.gcTicker = time.NewTicker(5 * time.Second)
	o.stopSweep = make(chan struct{})
	silence := o.silenceTicker
	gc := o.gcTicker
	stop := o.stopSweep
	o.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-silence.C:
				o.paragraphs.CheckSilence()
			case <-gc.C:
				o.sweepCorrelations()
			}
		}
	}()
}

func (o *PipelineOrchestrator) stopSweeps() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.silenceTicker != nil {
		o.silenceTicker.Stop()
	}
	if o.gcTicker != nil {
		o.gcTicker.Stop()
	}
	if o.stopSweep != nil {
		close(o.stopSweep)
		o.stopSweep = nil
	}
}

func (o *PipelineOrchestrator) sweepCorrelations() {
	ttl := time.Duration(o.cfg.CorrelationTTLSeconds) * time.Second
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, entry := range o.correlations {
		if time.Since(entry.issuedAt) > ttl {
			delete(o.correlations, id)
		}
	}
}
