package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// OpenAILLM implements pipeline.LlmAdapter over the real openai-go SDK.
// The teacher's OpenAILLM hand-rolled the chat-completions REST call;
// here the SDK owns request construction, retries, and SSE decoding.
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM builds an adapter. model defaults to gpt-4o.
func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (l *OpenAILLM) Name() string { return "openai-llm" }

// TranslateStream streams the translation a chunk at a time via
// onPartial, returning the assembled final text.
func (l *OpenAILLM) TranslateStream(ctx context.Context, sourceText string, sourceLanguage, targetLanguage pipeline.Language, onPartial func(string) error) (string, error) {
	prompt := translationPrompt(sourceText, sourceLanguage, targetLanguage)

	stream := l.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a professional live-lecture translator. Output only the translation."),
			openai.UserMessage(prompt),
		},
	})
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if onPartial != nil {
			if err := onPartial(b.String()); err != nil {
				return "", err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai stream: %w", err)
	}
	return b.String(), nil
}

// Complete performs a non-streaming chat completion (used by the
// progressive summarizer).
func (l *OpenAILLM) Complete(ctx context.Context, prompt string, opts pipeline.CompleteOptions) (string, error) {
	model := l.model
	if opts.Model != "" {
		model = opts.Model
	}
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxOutputTokens))
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// translationPrompt is shared phrasing across the three LLM providers so
// a swapped-in provider produces comparable output.
func translationPrompt(sourceText string, source, target pipeline.Language) string {
	return fmt.Sprintf("Translate the following lecture transcript fragment from %s to %s. Preserve meaning and register; output only the translation, no commentary.\n\n%s", source, target, sourceText)
}
