package backend

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend speaks Google's genai client shape, translating BeigeBox's
// flat chat message list into genai.Content turns.
type GeminiBackend struct {
	name   string
	client *genai.Client
}

// NewGemini builds a backend bound to the Gemini API.
func NewGemini(ctx context.Context, name, apiKey string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, errors.New("backend " + name + ": api_key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{name: name, client: client}, nil
}

func (b *GeminiBackend) Name() string { return b.name }

// SupportsModel matches Gemini's "gemini" model family prefix.
func (b *GeminiBackend) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "gemini")
}

func (b *GeminiBackend) buildContents(req ChatRequest) (system *genai.Content, contents []*genai.Content) {
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case "assistant":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return system, contents
}

func (b *GeminiBackend) buildConfig(req ChatRequest) *genai.GenerateContentConfig {
	system, _ := b.buildContents(req)
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if v, ok := req.Params["max_tokens"].(float64); ok && v > 0 {
		cfg.MaxOutputTokens = int32(v)
	}
	return cfg
}

func (b *GeminiBackend) Forward(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	_, contents := b.buildContents(req)
	resp, err := b.client.Models.GenerateContent(ctx, req.Model, contents, b.buildConfig(req))
	if err != nil {
		return ChatResponse{}, classifyStatus(b.name, 0, err)
	}
	var text strings.Builder
	var promptTokens, completionTokens int
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				text.WriteString(part.Text)
			}
		}
	}
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return ChatResponse{Content: text.String(), Model: req.Model, PromptTokens: promptTokens, CompletionTokens: completionTokens}, nil
}

func (b *GeminiBackend) ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	_, contents := b.buildContents(req)
	streamIter := b.client.Models.GenerateContentStream(ctx, req.Model, contents, b.buildConfig(req))

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range streamIter {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				out <- StreamChunk{Done: true, Err: classifyStatus(b.name, 0, err)}
				return
			}
			if resp == nil {
				continue
			}
			for _, cand := range resp.Candidates {
				if cand == nil || cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part == nil || part.Text == "" {
						continue
					}
					select {
					case out <- StreamChunk{Data: part.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		out <- StreamChunk{Done: true}
	}()
	return out, nil
}

// HealthCheck issues a minimal generation call: Gemini has no separate
// lightweight liveness endpoint in the client used here.
func (b *GeminiBackend) HealthCheck(ctx context.Context) error {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: "ping"}}}}
	_, err := b.client.Models.GenerateContent(ctx, "gemini-1.5-flash", contents, &genai.GenerateContentConfig{MaxOutputTokens: 1})
	if err != nil {
		return classifyStatus(b.name, 0, err)
	}
	return nil
}

// ListModels has no enumeration wired up; BeigeBox relies on config-declared
// routes for Gemini models instead.
func (b *GeminiBackend) ListModels(context.Context) ([]string, error) {
	return nil, nil
}
