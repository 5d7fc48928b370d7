package pipeline

import (
	"context"
	"testing"
	"time"
)

// mockAsrAdapter is a bare stub; tests that need transcript delivery
// reach into the stored callbacks directly, matching the teacher's
// mock-provider test style (no real network I/O).
type mockAsrAdapter struct {
	connected bool
	closed    bool
	callbacks AsrCallbacks
}

func (m *mockAsrAdapter) Connect(_ context.Context, _ Language, callbacks AsrCallbacks) error {
	m.connected = true
	m.callbacks = callbacks
	return nil
}
func (m *mockAsrAdapter) SendAudio([]byte) error { return nil }
func (m *mockAsrAdapter) Close() error           { m.closed = true; return nil }
func (m *mockAsrAdapter) Name() string           { return "mock-asr" }

type mockLlmAdapter struct{}

func (mockLlmAdapter) TranslateStream(_ context.Context, sourceText string, _, _ Language, onPartial func(string) error) (string, error) {
	_ = onPartial(sourceText)
	return sourceText, nil
}
func (mockLlmAdapter) Complete(context.Context, string, CompleteOptions) (string, error) {
	return "", nil
}
func (mockLlmAdapter) Name() string { return "mock-llm" }

func newTestOrchestrator() (*PipelineOrchestrator, *mockAsrAdapter) {
	asr := &mockAsrAdapter{}
	o := NewPipelineOrchestrator(DefaultConfig(), asr, mockLlmAdapter{}, nil, nil)
	return o, asr
}

func TestStartTransitionsIdleToListening(t *testing.T) {
	o, asr := newTestOrchestrator()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !asr.connected {
		t.Error("expected ASR Connect to be called")
	}
	if o.GetStatus().State != StateListening {
		t.Errorf("expected StateListening, got %v", o.GetStatus().State)
	}
}

func TestStopIsIdempotentWhenAlreadyIdle(t *testing.T) {
	o, _ := newTestOrchestrator()

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("expected Stop on an idle pipeline to be a no-op success, got %v", err)
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop returned error: %v", err)
	}
	if o.GetStatus().State != StateIdle {
		t.Fatalf("expected StateIdle after Stop, got %v", o.GetStatus().State)
	}

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop must be a no-op returning success, got %v", err)
	}
}

func TestCombinedSentenceFeedsSummarizerIndependentlyOfParagraphs(t *testing.T) {
	o, asr := newTestOrchestrator()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	summaryCh := make(chan Summary, 1)
	o.summarizer.onSummary = func(s Summary) { summaryCh <- s }
	o.summarizer.thresholds = []int{3}

	asr.callbacks.OnTranscript(TranscriptSegment{ID: "seg-1", Text: "one two three.", IsFinal: true})

	select {
	case s := <-summaryCh:
		if s.WordCount < 3 {
			t.Errorf("expected summary word count >= 3, got %d", s.WordCount)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a summary job to be fired directly off the combined sentence, independent of any paragraph emit")
	}
}
