package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

func TestAnthropicLLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{
			"id":      "msg_1",
			"type":    "message",
			"role":    "assistant",
			"content": []map[string]string{{"type": "text", "text": "hello from anthropic"}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &AnthropicLLM{
		client: anthropic.NewClient(option.WithAPIKey("test-key"), option.WithBaseURL(server.URL)),
		model:  anthropic.Model("claude-3-5-sonnet-latest"),
	}

	resp, err := l.Complete(context.Background(), "hi", pipeline.CompleteOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello from anthropic" {
		t.Errorf("expected 'hello from anthropic', got %q", resp)
	}
	if l.Name() != "anthropic-llm" {
		t.Errorf("expected anthropic-llm, got %s", l.Name())
	}
}
