package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

func TestOpenAILLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": "hello from openai"}}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &OpenAILLM{
		client: openai.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(server.URL)),
		model:  "gpt-4o",
	}

	resp, err := l.Complete(context.Background(), "hi", pipeline.CompleteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello from openai" {
		t.Errorf("expected 'hello from openai', got %q", resp)
	}
	if l.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", l.Name())
	}
}

func TestTranslationPrompt(t *testing.T) {
	p := translationPrompt("hello", pipeline.LanguageEn, pipeline.LanguageJa)
	if p == "" {
		t.Fatal("expected non-empty prompt")
	}
}
