package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beigebox/beigebox/internal/backend"
)

// chatResult is the fully-assembled non-streaming answer, ready for the
// HTTP handler to marshal.
type chatResult struct {
	ID      string
	Model   string
	Content string
	Usage   usage
}

type usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// RunChatCompletion executes the full pipeline for one non-streaming
// request: prepare, persist the user turn, dispatch, persist the
// assistant turn, run post-response hooks, emit the wire event.
func (p *Proxy) RunChatCompletion(ctx context.Context, raw map[string]any) (chatResult, error) {
	in := parseInbound(raw)

	pr, sc := p.prepare(ctx, in)
	if sc != nil {
		return chatResult{ID: p.newID(), Model: in.model, Content: sc.content}, nil
	}

	finalUserContent := ""
	if idx := lastUserIndex(pr.messages); idx >= 0 {
		finalUserContent = contentOf(pr.messages[idx])
	}
	p.logUserMessage(ctx, pr, finalUserContent)

	dispatchStart := p.now()
	content, backendName, cost, err := p.dispatchOnce(ctx, pr)
	latency := time.Since(dispatchStart)

	p.logAssistantMessage(ctx, pr, content, cost, latency)
	content = p.finish(pr, content, backendName, latency)

	if err != nil {
		p.logger.Warn("dispatch failed, returning diagnostic content", "conversation_id", pr.conversationID, "error", err)
	}

	promptTokens := 0
	for _, m := range pr.messages {
		promptTokens += estimateTokens(contentOf(m))
	}
	completionTokens := estimateTokens(content)

	return chatResult{
		ID:      p.newID(),
		Model:   pr.model,
		Content: content,
		Usage: usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// dispatchOnce runs step 11 for the non-streaming path. A
// DispatchExhaustedError (every backend failed) degrades to a 200 response
// whose content is a diagnostic string, per spec.md §7.ii — the proxy
// never surfaces a raw dispatcher failure as an HTTP 500.
func (p *Proxy) dispatchOnce(ctx context.Context, pr *prepared) (content string, backendName string, cost *float64, err error) {
	if p.dispatcher == nil {
		return "[BeigeBox] Backend error: no backend configured", "", nil, errors.New("no backend configured")
	}
	resp, name, derr := p.dispatcher.Forward(ctx, backend.ChatRequest{
		Model:    pr.model,
		Messages: toChatMessages(pr.messages),
		Params:   pr.genParams,
	})
	if derr != nil {
		return fmt.Sprintf("[BeigeBox] Backend error: %v", derr), "", nil, derr
	}
	return resp.Content, name, resp.CostUSD, nil
}
