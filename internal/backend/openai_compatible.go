package backend

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// costSentinel matches the metered backend's embedded cost marker, e.g.
// "__bb_cost__:0.00231", stripped from the visible text before it reaches
// the client.
var costSentinel = regexp.MustCompile(`__bb_cost__:([0-9]*\.?[0-9]+)`)

// AuthMode distinguishes the three OpenAI-compatible flavors the dispatcher
// supports: a local no-auth backend (Ollama and similar), a generic backend
// with an optional bearer token, and a metered backend that requires one
// and reports cost via costSentinel.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthOptionalBearer
	AuthRequiredBearer
)

// OpenAICompatible backs any provider speaking the OpenAI chat-completions
// wire format: local runtimes, OpenRouter, and similar proxies.
type OpenAICompatible struct {
	name     string
	client   *openai.Client
	auth     AuthMode
	metered  bool
	priority int
}

// NewOpenAICompatible builds an OpenAI-compatible backend pointed at
// baseURL. apiKey may be empty under AuthNone or AuthOptionalBearer.
func NewOpenAICompatible(name, baseURL, apiKey string, auth AuthMode, metered bool) (*OpenAICompatible, error) {
	if auth == AuthRequiredBearer && apiKey == "" {
		return nil, errors.New("backend " + name + ": api_key required for this backend kind")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatible{
		name:    name,
		client:  openai.NewClientWithConfig(cfg),
		auth:    auth,
		metered: metered,
	}, nil
}

func (b *OpenAICompatible) Name() string { return b.name }

// SupportsModel always returns true: OpenAI-compatible backends have no
// fixed model family, so candidacy is decided by dispatch priority order
// alone.
func (b *OpenAICompatible) SupportsModel(string) bool { return true }

func toOpenAIMessages(req ChatRequest) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	return out
}

func applyParams(r *openai.ChatCompletionRequest, params map[string]any) {
	if v, ok := params["temperature"].(float64); ok {
		r.Temperature = float32(v)
	}
	if v, ok := params["top_p"].(float64); ok {
		r.TopP = float32(v)
	}
	if v, ok := params["max_tokens"].(float64); ok {
		r.MaxTokens = int(v)
	}
	if v, ok := params["presence_penalty"].(float64); ok {
		r.PresencePenalty = float32(v)
	}
	if v, ok := params["frequency_penalty"].(float64); ok {
		r.FrequencyPenalty = float32(v)
	}
}

func (b *OpenAICompatible) Forward(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	creq := openai.ChatCompletionRequest{Model: req.Model, Messages: toOpenAIMessages(req)}
	applyParams(&creq, req.Params)

	resp, err := b.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return ChatResponse{}, b.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, &PermanentEmptyChoicesError{Backend: b.name}
	}
	content := resp.Choices[0].Message.Content
	var cost *float64
	if b.metered {
		content, cost = extractCostSentinel(content)
	}
	return ChatResponse{
		Content:          content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		CostUSD:          cost,
	}, nil
}

func (b *OpenAICompatible) ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	creq := openai.ChatCompletionRequest{Model: req.Model, Messages: toOpenAIMessages(req), Stream: true}
	applyParams(&creq, req.Params)

	stream, err := b.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, b.wrapError(err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- StreamChunk{Done: true}
				return
			}
			if err != nil {
				out <- StreamChunk{Done: true, Err: b.wrapError(err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			chunk := StreamChunk{Data: delta}
			if b.metered {
				chunk.Data, chunk.Cost = extractCostSentinel(delta)
			}
			if chunk.Data == "" && chunk.Cost == nil {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *OpenAICompatible) HealthCheck(ctx context.Context) error {
	_, err := b.client.ListModels(ctx)
	if err != nil {
		return b.wrapError(err)
	}
	return nil
}

func (b *OpenAICompatible) ListModels(ctx context.Context) ([]string, error) {
	resp, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, b.wrapError(err)
	}
	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// wrapError classifies a go-openai error into the berrors transient/
// permanent split by HTTP status, falling back to treating unrecognized
// errors (timeouts, connection refused) as transient.
func (b *OpenAICompatible) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(b.name, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(b.name, reqErr.HTTPStatusCode, err)
	}
	return classifyStatus(b.name, 0, err)
}

// extractCostSentinel strips a costSentinel match from text and returns
// the parsed cost, if any was present.
func extractCostSentinel(text string) (string, *float64) {
	loc := costSentinel.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, nil
	}
	value, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
	cleaned := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	if err != nil {
		return cleaned, nil
	}
	return cleaned, &value
}

// PermanentEmptyChoicesError signals a 200 response with no choices, which
// the dispatcher treats as unretryable: repeating the same request against
// the same backend would produce the same empty result.
type PermanentEmptyChoicesError struct {
	Backend string
}

func (e *PermanentEmptyChoicesError) Error() string {
	return "backend " + e.Backend + ": response contained no choices"
}
