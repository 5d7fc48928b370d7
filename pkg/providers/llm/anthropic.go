package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// AnthropicLLM implements pipeline.LlmAdapter over the real
// anthropic-sdk-go client, replacing the teacher's hand-rolled
// /v1/messages HTTP call.
type AnthropicLLM struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicLLM builds an adapter. model defaults to Claude 3.5 Sonnet.
func NewAnthropicLLM(apiKey string, model string) *AnthropicLLM {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.Model("claude-3-5-sonnet-latest")
	}
	return &AnthropicLLM{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

func (l *AnthropicLLM) Name() string { return "anthropic-llm" }

// TranslateStream streams text deltas via onPartial and returns the
// assembled final translation.
func (l *AnthropicLLM) TranslateStream(ctx context.Context, sourceText string, sourceLanguage, targetLanguage pipeline.Language, onPartial func(string) error) (string, error) {
	prompt := translationPrompt(sourceText, sourceLanguage, targetLanguage)

	stream := l.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     l.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: "You are a professional live-lecture translator. Output only the translation."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	var message anthropic.Message
	var b strings.Builder
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("anthropic accumulate: %w", err)
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text := delta.Delta.Text; text != "" {
				b.WriteString(text)
				if onPartial != nil {
					if err := onPartial(b.String()); err != nil {
						return "", err
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic stream: %w", err)
	}
	return b.String(), nil
}

// Complete performs a non-streaming message call.
func (l *AnthropicLLM) Complete(ctx context.Context, prompt string, opts pipeline.CompleteOptions) (string, error) {
	maxTokens := int64(1024)
	if opts.MaxOutputTokens > 0 {
		maxTokens = int64(opts.MaxOutputTokens)
	}
	model := l.model
	if opts.Model != "" {
		model = anthropic.Model(opts.Model)
	}

	resp, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no content returned from anthropic")
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String(), nil
}
