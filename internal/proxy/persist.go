package proxy

import (
	"context"
	"time"

	"github.com/beigebox/beigebox/internal/hooks"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// logUserMessage persists the final user-role content sent to the backend
// (step 10). Persistence is fire-and-forget: the durable log write is
// synchronous and its error only logged, never surfaced; vector indexing
// is dispatched in the background and may complete after the response.
// Synthetic requests are not persisted at all, nor background-indexed —
// per spec.md §9's open question, BeigeBox resolves the ambiguity by
// suppressing both uniformly, since an internal follow-up call shouldn't
// pollute recall either.
func (p *Proxy) logUserMessage(ctx context.Context, pr *prepared, content string) {
	if pr.synthetic || p.store == nil {
		return
	}
	msg := bbtypes.Message{
		ID:             p.newID(),
		ConversationID: pr.conversationID,
		Role:           bbtypes.RoleUser,
		Content:        content,
		Model:          pr.model,
		Timestamp:      p.now(),
		TokenCount:     estimateTokens(content),
	}
	if err := p.store.StoreMessage(ctx, msg); err != nil {
		p.logger.Warn("store user message failed", "conversation_id", pr.conversationID, "error", err)
	}
	if p.index != nil {
		go p.index.IndexMessage(pr.conversationID, string(bbtypes.RoleUser), pr.model, content, msg.Timestamp)
	}
}

// logAssistantMessage persists the assistant turn (step 12), with cost and
// latency when the backend reported them.
func (p *Proxy) logAssistantMessage(ctx context.Context, pr *prepared, content string, cost *float64, latency time.Duration) {
	if pr.synthetic || p.store == nil {
		return
	}
	latencyMs := latency.Milliseconds()
	msg := bbtypes.Message{
		ID:             p.newID(),
		ConversationID: pr.conversationID,
		Role:           bbtypes.RoleAssistant,
		Content:        content,
		Model:          pr.model,
		Timestamp:      p.now(),
		TokenCount:     estimateTokens(content),
		CostUSD:        cost,
		LatencyMs:      &latencyMs,
	}
	if err := p.store.StoreMessage(ctx, msg); err != nil {
		p.logger.Warn("store assistant message failed", "conversation_id", pr.conversationID, "error", err)
	}
	if p.index != nil {
		go p.index.IndexMessage(pr.conversationID, string(bbtypes.RoleAssistant), pr.model, content, msg.Timestamp)
	}
}

// finish runs post-response hooks and emits the closing wire event (steps
// 13-14), then closes the flight record. Returns the (possibly hook-
// rewritten) final content.
func (p *Proxy) finish(pr *prepared, content string, backendName string, latency time.Duration) string {
	pr.rc.Stage = hooks.StagePostResponse
	if pr.rc.Body == nil {
		pr.rc.Body = map[string]any{}
	}
	pr.rc.Body["content"] = content
	if p.hooks != nil {
		p.hooks.Run(hooks.StagePostResponse, pr.rc)
	}
	if final, ok := pr.rc.Body["content"].(string); ok {
		content = final
	}

	if p.flights != nil {
		p.flights.Close(pr.flightID)
	}

	if p.wire != nil {
		latencyMs := latency.Milliseconds()
		var timing map[string]int64
		if p.flights != nil {
			if rec, ok := p.flights.Get(pr.flightID); ok {
				timing = make(map[string]int64, len(rec.Stages))
				for _, s := range rec.Stages {
					timing[s.Name] = s.ElapsedMs
				}
			}
		}
		_ = p.wire.Emit(bbtypes.WireEvent{
			Timestamp:      p.now(),
			Direction:      bbtypes.WireOutbound,
			Role:           "assistant",
			Model:          backendName,
			ConversationID: pr.conversationID,
			Tokens:         estimateTokens(content),
			Content:        content,
			LatencyMs:      &latencyMs,
			Timing:         timing,
		})
	}
	return content
}
