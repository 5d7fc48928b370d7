package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// GoogleLLM implements pipeline.LlmAdapter over the real
// google.golang.org/genai client, replacing the teacher's hand-rolled
// generateContent HTTP call.
type GoogleLLM struct {
	client *genai.Client
	model  string
}

// NewGoogleLLM builds an adapter. model defaults to gemini-1.5-flash.
// ctx is used only to construct the client; it is not retained.
func NewGoogleLLM(ctx context.Context, apiKey string, model string) (*GoogleLLM, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GoogleLLM{client: client, model: model}, nil
}

func (l *GoogleLLM) Name() string { return "google-llm" }

// TranslateStream streams text deltas via onPartial and returns the
// assembled final translation.
func (l *GoogleLLM) TranslateStream(ctx context.Context, sourceText string, sourceLanguage, targetLanguage pipeline.Language, onPartial func(string) error) (string, error) {
	prompt := translationPrompt(sourceText, sourceLanguage, targetLanguage)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var b strings.Builder
	for chunk, err := range l.client.Models.GenerateContentStream(ctx, l.model, contents, nil) {
		if err != nil {
			return "", fmt.Errorf("genai stream: %w", err)
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		b.WriteString(text)
		if onPartial != nil {
			if err := onPartial(b.String()); err != nil {
				return "", err
			}
		}
	}
	return b.String(), nil
}

// Complete performs a non-streaming generateContent call.
func (l *GoogleLLM) Complete(ctx context.Context, prompt string, opts pipeline.CompleteOptions) (string, error) {
	model := l.model
	if opts.Model != "" {
		model = opts.Model
	}
	var cfg *genai.GenerateContentConfig
	if opts.MaxOutputTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(opts.MaxOutputTokens)}
	}

	resp, err := l.client.Models.GenerateContent(ctx, model, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("genai complete: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no response from google llm")
	}
	return text, nil
}
