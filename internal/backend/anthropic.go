package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend speaks the native Messages API rather than the OpenAI
// chat-completions shape, so it translates request and stream events
// itself instead of reusing OpenAICompatible.
type AnthropicBackend struct {
	name   string
	client anthropic.Client
}

// NewAnthropic builds a backend bound to Anthropic's API (or a
// compatible endpoint at baseURL, when set).
func NewAnthropic(name, apiKey, baseURL string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, errors.New("backend " + name + ": api_key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicBackend{name: name, client: anthropic.NewClient(opts...)}, nil
}

func (b *AnthropicBackend) Name() string { return b.name }

// SupportsModel matches Anthropic's "claude" model family prefix.
func (b *AnthropicBackend) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude")
}

func (b *AnthropicBackend) toMessages(req ChatRequest) (system string, msgs []anthropic.MessageParam) {
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, msgs
}

func (b *AnthropicBackend) buildParams(req ChatRequest) anthropic.MessageNewParams {
	system, msgs := b.toMessages(req)
	maxTokens := int64(1024)
	if v, ok := req.Params["max_tokens"].(float64); ok && v > 0 {
		maxTokens = int64(v)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (b *AnthropicBackend) Forward(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	msg, err := b.client.Messages.New(ctx, b.buildParams(req))
	if err != nil {
		return ChatResponse{}, b.wrapError(err)
	}
	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return ChatResponse{
		Content:          content.String(),
		Model:            string(msg.Model),
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (b *AnthropicBackend) ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	stream := b.client.Messages.NewStreaming(ctx, b.buildParams(req))

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					select {
					case out <- StreamChunk{Data: delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			case "message_stop":
				out <- StreamChunk{Done: true}
				return
			case "error":
				out <- StreamChunk{Done: true, Err: b.wrapError(errors.New("anthropic stream error"))}
				return
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Done: true, Err: b.wrapError(err)}
			return
		}
		out <- StreamChunk{Done: true}
	}()
	return out, nil
}

func (b *AnthropicBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
		MaxTokens: 1,
	})
	if err != nil {
		return b.wrapError(err)
	}
	return nil
}

// ListModels has no cheap Anthropic endpoint to enumerate from; BeigeBox
// relies on config-declared routes for Anthropic models instead.
func (b *AnthropicBackend) ListModels(context.Context) ([]string, error) {
	return nil, nil
}

func (b *AnthropicBackend) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(b.name, apiErr.StatusCode, err)
	}
	return classifyStatus(b.name, 0, err)
}
