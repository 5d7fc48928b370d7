package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// TestGoogleLLMName exercises construction and the Name() identity
// without a network round trip: google.golang.org/genai's client
// doesn't expose the same trivial base-URL swap the teacher's raw HTTP
// GoogleLLM did, so the full request/response path is left to a live
// integration run rather than a unit test against httptest.
func TestGoogleLLMName(t *testing.T) {
	l, err := NewGoogleLLM(context.Background(), "test-key", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Name() != "google-llm" {
		t.Errorf("expected google-llm, got %s", l.Name())
	}
	if l.model != "gemini-1.5-flash" {
		t.Errorf("expected default model gemini-1.5-flash, got %s", l.model)
	}
}

func TestTranslationPromptContainsLanguages(t *testing.T) {
	p := translationPrompt("konnichiwa", pipeline.LanguageJa, pipeline.LanguageEn)
	if p == "" {
		t.Fatal("expected non-empty prompt")
	}
	if !strings.Contains(p, "from ja to en") {
		t.Errorf("expected prompt to name source and target languages, got %q", p)
	}
}
