// Package backend implements BeigeBox's backend dispatcher: a priority-
// ordered list of LLM backends behind one uniform contract, each wrapped in
// a shared retry policy.
package backend

import (
	"context"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// ChatRequest is the backend-agnostic shape every Backend consumes. Params
// carries generation overlay values (temperature, top_p, ...) verbatim;
// backends translate the keys they recognize and ignore the rest.
type ChatRequest struct {
	Model    string
	Messages []bbtypes.ChatMessage
	Params   map[string]any
}

// ChatResponse is a completed non-streaming turn.
type ChatResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          *float64
}

// StreamChunk is one textual event line from a streaming turn. Data holds
// the chunk's text delta; a metered backend that detects a cost sentinel in
// its own stream clears it from Data and returns it via Cost instead. Err,
// when set, is the stream's terminal error and Done is true; a clean stream
// end also sets Done with Err nil.
type StreamChunk struct {
	Data string
	Cost *float64
	Done bool
	Err  error
}

// Backend is the uniform contract every concrete provider satisfies. It
// deliberately exposes only what the dispatcher needs: two ways to run a
// turn, a cheap health probe, and enough model introspection to pick a
// backend for a requested model.
type Backend interface {
	// Name identifies the backend for logging, wire events, and dispatch
	// exhaustion reports.
	Name() string

	// Forward runs req to completion and returns the full response.
	Forward(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// ForwardStream runs req and returns a channel of textual event chunks.
	// The channel is always closed after a final chunk with Done true.
	ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck reports whether the backend currently looks reachable.
	HealthCheck(ctx context.Context) error

	// ListModels returns the backend's advertised model ids, best-effort.
	ListModels(ctx context.Context) ([]string, error)

	// SupportsModel reports whether this backend should be tried for model.
	// Backends with a fixed model family (Anthropic, Gemini, Bedrock) match
	// on id prefix; OpenAI-compatible backends with no fixed family match
	// everything, letting dispatch priority decide.
	SupportsModel(model string) bool
}
