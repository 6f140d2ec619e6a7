package proxy

import (
	"context"
	"fmt"

	"github.com/beigebox/beigebox/internal/backend"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// toChatMessages converts the generic map-based message shape used by
// internal/context and internal/summarizer into the typed shape the
// backend dispatcher and routing core consume.
func toChatMessages(messages []map[string]any) []bbtypes.ChatMessage {
	out := make([]bbtypes.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role, _ := m["role"].(string)
		name, _ := m["name"].(string)
		out = append(out, bbtypes.ChatMessage{Role: role, Content: contentOf(m), Name: name})
	}
	return out
}

// toMapMessages is the inverse of toChatMessages.
func toMapMessages(messages []bbtypes.ChatMessage) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if m.Name != "" {
			entry["name"] = m.Name
		}
		out = append(out, entry)
	}
	return out
}

func contentOf(m map[string]any) string {
	c, ok := m["content"]
	if !ok {
		return ""
	}
	if s, ok := c.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", c)
}

// dispatcherCaller adapts the backend dispatcher to the narrow single-turn
// contracts the routing arbitrator and the summarizer need, so neither of
// those packages has to import internal/backend.
type dispatcherCaller struct {
	d *backend.Dispatcher
}

// Forward satisfies routing.Caller.
func (c dispatcherCaller) Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error) {
	resp, _, err := c.d.Forward(ctx, backend.ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateSummary satisfies summarizer.Caller.
func (c dispatcherCaller) GenerateSummary(ctx context.Context, model, prompt string) (string, error) {
	return c.Forward(ctx, model, []bbtypes.ChatMessage{{Role: "user", Content: prompt}})
}
