package pipeline

import (
	"sync"
	"time"
)

// TranslationTimeoutManager is the C8 per-request dynamic timeout.
// Grounded on the teacher's time.Timer usage in managed_stream.go
// (speechEndHold grace timer with defer t.Stop() cleanup).
type TranslationTimeoutManager struct {
	mu        sync.Mutex
	defaultMs int
	maxMs     int
	timers    map[string]*time.Timer
}

// NewTranslationTimeoutManager wires default/max from Config.
func NewTranslationTimeoutManager(cfg Config) *TranslationTimeoutManager {
	return &TranslationTimeoutManager{
		defaultMs: cfg.TranslationTimeout.DefaultMs,
		maxMs:     cfg.TranslationTimeout.MaxMs,
		timers:    make(map[string]*time.Timer),
	}
}

// computeTimeout implements spec §4.8: base + 1000ms per 50 characters
// of sourceText, capped at maxMs.
func (m *TranslationTimeoutManager) computeTimeout(sourceText string) time.Duration {
	ms := m.defaultMs + (len(sourceText)/50)*1000
	if ms > m.maxMs {
		ms = m.maxMs
	}
	return time.Duration(ms) * time.Millisecond
}

// StartTimeout arms a timer keyed by segmentID. onTimeout fires at most
// once; a prior timer for the same segmentID is replaced.
func (m *TranslationTimeoutManager) StartTimeout(segmentID, sourceText string, onTimeout func(segmentID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.timers[segmentID]; ok {
		existing.Stop()
	}

	timeout := m.computeTimeout(sourceText)
	m.timers[segmentID] = time.AfterFunc(timeout, func() {
		m.mu.Lock()
		delete(m.timers, segmentID)
		m.mu.Unlock()
		onTimeout(segmentID)
	})
}

// ClearTimeout cancels a pending timer, if any. A later-arriving
// translation may still replace history's timeout marker via its
// one-shot upgrade rule even if ClearTimeout was never called (e.g. the
// timeout already fired before the real result arrived).
func (m *TranslationTimeoutManager) ClearTimeout(segmentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[segmentID]; ok {
		t.Stop()
		delete(m.timers, segmentID)
	}
}

// ClearAll cancels every pending timer (used by Stop()).
func (m *TranslationTimeoutManager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
