package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/beigebox/beigebox/internal/berrors"
	"github.com/beigebox/beigebox/internal/jsonrecover"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Caller is the minimal contract the arbitrator stage needs from the
// backend dispatcher: a single non-streaming turn.
type Caller interface {
	Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error)
}

// Arbitrator is stage 5: a small fast model that returns a routing
// decision as JSON when the centroid classifier can't decide confidently.
type Arbitrator struct {
	caller       Caller
	model        string
	defaultModel string
	routes       map[string]string // route name -> model, for prompt listing
	tools        []string
}

// NewArbitrator builds an Arbitrator that prompts model with the given
// route and tool names, falling back to defaultModel on any failure.
func NewArbitrator(caller Caller, model, defaultModel string, routes map[string]string, tools []string) *Arbitrator {
	return &Arbitrator{caller: caller, model: model, defaultModel: defaultModel, routes: routes, tools: tools}
}

type arbitratorResponse struct {
	Model       string   `json:"model"`
	NeedsSearch bool     `json:"needs_search"`
	NeedsRAG    bool     `json:"needs_rag"`
	Tools       []string `json:"tools"`
	Reasoning   string   `json:"reasoning"`
}

func (a *Arbitrator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a routing arbitrator. Pick the best model and tools for the user's message.\n")
	b.WriteString("Available routes:\n")
	for route, model := range a.routes {
		fmt.Fprintf(&b, "- %s -> %s\n", route, model)
	}
	if len(a.tools) > 0 {
		b.WriteString("Available tools: " + strings.Join(a.tools, ", ") + "\n")
	}
	b.WriteString(`Respond with exactly one JSON object: {"model":"...","needs_search":bool,"needs_rag":bool,"tools":["..."],"reasoning":"..."}`)
	return b.String()
}

// Decide calls the arbitrator model and returns a Decision. Any parse
// failure, timeout, or call error yields a fallback Decision that leaves
// the model unchanged, per the routing core's arbitrator contract; the
// returned error is a *berrors.ClassifierFallbackError for the caller to
// log, never to surface to the client.
func (a *Arbitrator) Decide(ctx context.Context, userMessage string) (bbtypes.Decision, error) {
	if a.caller == nil || a.model == "" {
		return a.fallback(), &berrors.ClassifierFallbackError{Reason: "arbitrator not configured"}
	}

	raw, err := a.caller.Forward(ctx, a.model, []bbtypes.ChatMessage{
		{Role: "system", Content: a.systemPrompt()},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return a.fallback(), &berrors.ClassifierFallbackError{Reason: "arbitrator call failed", Err: err}
	}

	var parsed arbitratorResponse
	if _, err := jsonrecover.Parse(raw, &parsed); err != nil {
		return a.fallback(), &berrors.ClassifierFallbackError{Reason: "arbitrator response unparseable", Err: err}
	}

	model := a.resolveModel(parsed.Model)
	decision := bbtypes.Decision{
		Model:       model,
		NeedsSearch: parsed.NeedsSearch,
		NeedsRAG:    parsed.NeedsRAG,
		Tools:       parsed.Tools,
		Reasoning:   parsed.Reasoning,
		Confidence:  1,
	}
	return decision, nil
}

// resolveModel applies the "unknown route containing a colon or slash is a
// literal model string, otherwise fall back to the default model" edge
// case rule.
func (a *Arbitrator) resolveModel(name string) string {
	if name == "" {
		return a.defaultModel
	}
	if model, ok := a.routes[name]; ok {
		return model
	}
	if strings.ContainsAny(name, ":/") {
		return name
	}
	return a.defaultModel
}

func (a *Arbitrator) fallback() bbtypes.Decision {
	return bbtypes.Decision{Fallback: true}
}
