package pipeline

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config enumerates every tunable named in spec §6.
type Config struct {
	SourceLanguage Language `yaml:"source_language"`
	TargetLanguage Language `yaml:"target_language"`

	Translation struct {
		MaxConcurrency   int `yaml:"max_concurrency"`
		MaxQueueSize     int `yaml:"max_queue_size"`
		RequestTimeoutMs int `yaml:"request_timeout_ms"`
		MaxRetries       int `yaml:"max_retries"`
	} `yaml:"translation"`

	TranslationTimeout struct {
		DefaultMs int  `yaml:"default_ms"`
		MaxMs     int  `yaml:"max_ms"`
		Dynamic   bool `yaml:"dynamic"`
	} `yaml:"translation_timeout"`

	SentenceCombiner struct {
		MaxSegments int `yaml:"max_segments"`
		TimeoutMs   int `yaml:"timeout_ms"`
		MinSegments int `yaml:"min_segments"`
	} `yaml:"sentence_combiner"`

	Paragraph struct {
		MinMs      int64 `yaml:"min_ms"`
		TargetMinMs int64 `yaml:"target_min_ms"`
		TargetMaxMs int64 `yaml:"target_max_ms"`
		HardCapMs  int64 `yaml:"hard_cap_ms"`
		SilenceGapMs int64 `yaml:"silence_gap_ms"`
	} `yaml:"paragraph"`

	Summary struct {
		Thresholds            []int `yaml:"thresholds"`
		CharLanguageMultiplier int  `yaml:"char_language_multiplier"`
		SummaryMaxTokens      int   `yaml:"summary_max_tokens"`
		FinalReportMaxTokens  int   `yaml:"final_report_max_tokens"`
	} `yaml:"summary"`

	Coalescer struct {
		DebounceMs   int `yaml:"debounce_ms"`
		ForceCommitMs int `yaml:"force_commit_ms"`
	} `yaml:"coalescer"`

	StreamBatcher struct {
		MinIntervalMs int `yaml:"min_interval_ms"`
		MaxWaitMs     int `yaml:"max_wait_ms"`
		MinChars      int `yaml:"min_chars"`
	} `yaml:"stream_batcher"`

	// HistoryPrimary selects which path (sentence-level or paragraph-level)
	// drives the UI history, per spec §9 open question 2.
	HistoryPrimary HistoryPrimary `yaml:"history_primary"`

	// AllowRealtimeDowngrade, when true, lets a later non-paragraph
	// translation replace an existing realtime (non-placeholder,
	// non-timeout) history upgrade. Defaults to false (spec §8).
	AllowRealtimeDowngrade bool `yaml:"allow_realtime_downgrade"`

	// MinWordsToInterrupt is unused by the core pipeline (it is a
	// voice-barge-in concept from the teacher) but kept as a documented
	// zero-value no-op for adapters that embed VAD-style upstream input.
	MinWordsToInterrupt int `yaml:"-"`

	// CorrelationTTLSeconds bounds how long an issued correlation may sit
	// unused before the orchestrator's GC sweep clears it (§6: "expired
	// correlations (> 30 s) are GC'd").
	CorrelationTTLSeconds int `yaml:"correlation_ttl_seconds"`

	// AsrStreamErrorThreshold bounds how many consecutive AsrStreamError
	// callbacks the orchestrator tolerates before treating the session as
	// fatal (spec §7: "repeated AsrStreamError beyond a threshold causes
	// the orchestrator to transition to error and then idle"). Any
	// successfully delivered transcript resets the counter.
	AsrStreamErrorThreshold int `yaml:"asr_stream_error_threshold"`
}

// DefaultConfig mirrors every default named in spec §6.
func DefaultConfig() Config {
	var c Config
	c.SourceLanguage = LanguageEn
	c.TargetLanguage = LanguageJa

	c.Translation.MaxConcurrency = 3
	c.Translation.MaxQueueSize = 100
	c.Translation.RequestTimeoutMs = 30000
	c.Translation.MaxRetries = 1

	c.TranslationTimeout.DefaultMs = 7000
	c.TranslationTimeout.MaxMs = 10000
	c.TranslationTimeout.Dynamic = true

	c.SentenceCombiner.MaxSegments = 10
	c.SentenceCombiner.TimeoutMs = 2000
	c.SentenceCombiner.MinSegments = 1

	c.Paragraph.MinMs = 10000
	c.Paragraph.TargetMinMs = 20000
	c.Paragraph.TargetMaxMs = 60000
	c.Paragraph.HardCapMs = 60000
	c.Paragraph.SilenceGapMs = 2000

	c.Summary.Thresholds = []int{400, 800, 1600, 2400}
	c.Summary.CharLanguageMultiplier = 4
	c.Summary.SummaryMaxTokens = 1500
	c.Summary.FinalReportMaxTokens = 8192

	c.Coalescer.DebounceMs = 160
	c.Coalescer.ForceCommitMs = 1100

	c.StreamBatcher.MinIntervalMs = 100
	c.StreamBatcher.MaxWaitMs = 200
	c.StreamBatcher.MinChars = 2

	c.HistoryPrimary = HistoryPrimarySentence
	c.AllowRealtimeDowngrade = false
	c.CorrelationTTLSeconds = 30
	c.AsrStreamErrorThreshold = 3

	return c
}

// LoadConfig reads a YAML config file over DefaultConfig. An empty path or
// a missing file yields DefaultConfig unchanged. It does not read .env;
// LoadEnv loads that into the process environment separately.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv loads a .env file (if present) into the process environment.
// Mirrors the teacher's cmd/agent/main.go godotenv.Load() call.
func LoadEnv(path string) error {
	if path == "" {
		return godotenv.Load()
	}
	return godotenv.Load(path)
}
