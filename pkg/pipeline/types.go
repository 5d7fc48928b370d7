package pipeline

import "time"

// Language is an ISO-639-1 source/target language tag.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
	LanguageKo Language = "ko"
)

// IsCharacterBased reports whether word counting for lang should count
// codepoints instead of whitespace-delimited tokens. Aligned per the
// spec's recommendation: {ja, zh, ko} everywhere, both for word counting
// and for the progressive-summary threshold multiplier.
func (l Language) IsCharacterBased() bool {
	switch l {
	case LanguageJa, LanguageZh, LanguageKo:
		return true
	default:
		return false
	}
}

// Priority orders translation requests within the queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// RequestKind distinguishes the three translation call sites.
type RequestKind string

const (
	KindRealtime  RequestKind = "realtime"
	KindHistory   RequestKind = "history"
	KindParagraph RequestKind = "paragraph"
)

// State is a PipelineStateManager state (C2).
type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateListening  State = "listening"
	StatePaused     State = "paused"
	StateProcessing State = "processing"
	StateStopping   State = "stopping"
	StateError      State = "error"
)

// TranscriptSegment is one ASR-emitted transcript chunk (C3 output).
type TranscriptSegment struct {
	ID         string
	Text       string
	TimestampMs int64
	Confidence float64
	IsFinal    bool
	Language   Language
}

// CombinedSentence is the sentence-combiner's output (C5).
type CombinedSentence struct {
	ID             string
	SegmentIDs     []string
	SourceText     string
	SourceLanguage Language
	StartMs        int64
	EndMs          int64
	SegmentCount   int
	AvgConfidence  float64
	WordCount      int
}

// TranslationRequest is enqueued into the translation queue (C6).
type TranslationRequest struct {
	SegmentID      string
	SourceText     string
	SourceLanguage Language
	TargetLanguage Language
	TimestampMs    int64
	Priority       Priority
	Kind           RequestKind
	Attempts       int
}

// TranslationResult is produced by a TranslationHandler. Intermediate
// (streaming) results share SegmentID and have IsFinal=false; the
// terminal result has IsFinal=true and the full TargetText.
type TranslationResult struct {
	SegmentID   string
	SourceText  string
	TargetText  string
	FirstPaintMs int64
	CompleteMs   int64
	IsFinal      bool
}

// Paragraph is the paragraph-builder's output (C9).
type Paragraph struct {
	ID          string
	SentenceIDs []string
	RawText     string
	CleanedText string
	StartMs     int64
	EndMs       int64
	DurationMs  int64
	WordCount   int
}

// translationTier orders history upgrades so a better translation never
// downgrades a history entry (spec §4.10, testable property in §8).
type translationTier int

const (
	tierEmpty translationTier = iota
	tierPlaceholder
	tierTimeout
	tierRealtime
	tierParagraph
)

// HistorySentence is one sentence inside a HistoryBlock.
type HistorySentence struct {
	ID          string
	SourceText  string
	TargetText  string
	TimestampMs int64
	tier        translationTier
}

// HistoryBlock is a mutable (append-in-place-only) UI history unit (C10).
type HistoryBlock struct {
	ID          string
	Sentences   []HistorySentence
	CreatedAt   time.Time
	IsParagraph bool
	ParagraphID string
	TotalHeight int
	tier        translationTier // only meaningful when IsParagraph
}

// Summary is a progressive-summary record (C11).
type Summary struct {
	ID             string
	SourceText     string
	TargetText     string
	SourceLanguage Language
	TargetLanguage Language
	WordCount      int
	Threshold      int
	StartMs        int64
	EndMs          int64
	TimestampMs    int64
}

// EventType discriminates a PipelineEvent.
type EventType string

const (
	EventASR               EventType = "asr"
	EventTranslation       EventType = "translation"
	EventCombinedSentence  EventType = "combinedSentence"
	EventParagraphComplete EventType = "paragraphComplete"
	EventProgressiveSummary EventType = "progressiveSummary"
	EventVocabulary        EventType = "vocabulary"
	EventFinalReport       EventType = "finalReport"
	EventStatus            EventType = "status"
	EventError             EventType = "error"
)

// PipelineEvent is the discriminated union published on the EventBus (C1).
type PipelineEvent struct {
	Type          EventType   `json:"type"`
	TimestampMs   int64       `json:"timestamp_ms"`
	CorrelationID string      `json:"correlation_id"`
	Data          interface{} `json:"data,omitempty"`
}

// ErrorCode enumerates §7's error kinds.
type ErrorCode string

const (
	ErrCodeCommandValidation    ErrorCode = "COMMAND_VALIDATION_ERROR"
	ErrCodeEventValidation      ErrorCode = "EVENT_VALIDATION_ERROR"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeAsrConnection        ErrorCode = "ASR_CONNECTION_ERROR"
	ErrCodeAsrStream            ErrorCode = "ASR_STREAM_ERROR"
	ErrCodeTranslationTimeout   ErrorCode = "TRANSLATION_TIMEOUT_ERROR"
	ErrCodeTranslationProvider  ErrorCode = "TRANSLATION_PROVIDER_ERROR"
	ErrCodeQueueFull            ErrorCode = "QUEUE_FULL"
	ErrCodeSummaryGeneration    ErrorCode = "PROGRESSIVE_SUMMARY_GENERATION_FAILED"
	ErrCodePersistence          ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeUnknownCommand       ErrorCode = "UNKNOWN_COMMAND"
	ErrCodeUnknown              ErrorCode = "UNKNOWN"
)

// ErrorData is the payload of an `error` PipelineEvent.
type ErrorData struct {
	Code        ErrorCode   `json:"code"`
	Message     string      `json:"message"`
	Recoverable bool        `json:"recoverable"`
	Details     interface{} `json:"details,omitempty"`
}

// StatusData is the payload of a `status` PipelineEvent.
type StatusData struct {
	State State `json:"state"`
}

// VocabularyItem is one extracted term in a `vocabulary` PipelineEvent.
type VocabularyItem struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Context    string `json:"context,omitempty"`
}

// VocabularyData is the payload of a `vocabulary` PipelineEvent (§6
// generateVocabulary{correlation_id}).
type VocabularyData struct {
	Items      []VocabularyItem `json:"items"`
	TotalTerms int              `json:"total_terms"`
}

// TranslationTimeoutMarker is the text shown in place of a hung translation.
const TranslationTimeoutMarker = "[translation timeout]"

// HistoryPlaceholder is the text shown before a sentence's realtime
// translation resolves.
const HistoryPlaceholder = "translating…"

// HistoryPrimary selects which path populates the UI history (§9 open
// question 2).
type HistoryPrimary string

const (
	HistoryPrimarySentence  HistoryPrimary = "sentence"
	HistoryPrimaryParagraph HistoryPrimary = "paragraph"
)
