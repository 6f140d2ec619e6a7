package proxy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beigebox/beigebox/internal/backend"
)

// StreamEvent is one server-sent-event payload the HTTP handler relays to
// the client. Done marks the terminal event; after it the handler writes
// the "data: [DONE]" line and closes the response.
type StreamEvent struct {
	Payload map[string]any
	Done    bool
}

// RunChatCompletionStream executes the streaming variant of the pipeline.
// The backend's event stream is teed: every chunk is relayed to the
// returned channel verbatim and also accumulated for logging, per
// spec.md §4.1's streaming specifics. Cancellation of ctx (client
// disconnect) stops the relay; the accumulated content is then discarded
// rather than stored, since a partial response isn't reliably what the
// client actually saw.
func (p *Proxy) RunChatCompletionStream(ctx context.Context, raw map[string]any) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		p.runStream(ctx, raw, out)
	}()
	return out
}

func (p *Proxy) runStream(ctx context.Context, raw map[string]any, out chan<- StreamEvent) {
	in := parseInbound(raw)

	pr, sc := p.prepare(ctx, in)
	if sc != nil {
		emitDelta(out, p.newID(), in.model, sc.content)
		out <- StreamEvent{Done: true}
		return
	}

	finalUserContent := ""
	if idx := lastUserIndex(pr.messages); idx >= 0 {
		finalUserContent = contentOf(pr.messages[idx])
	}
	p.logUserMessage(ctx, pr, finalUserContent)

	streamStart := p.now()
	id := p.newID()

	if p.dispatcher == nil {
		emitDelta(out, id, pr.model, "[BeigeBox] Backend error: no backend configured")
		out <- StreamEvent{Done: true}
		return
	}

	chunks, backendName, err := p.dispatcher.ForwardStream(ctx, backend.ChatRequest{
		Model:    pr.model,
		Messages: toChatMessages(pr.messages),
		Params:   pr.genParams,
	})
	if err != nil {
		emitDelta(out, id, pr.model, fmt.Sprintf("[BeigeBox] Backend error: %v", err))
		out <- StreamEvent{Done: true}
		return
	}

	var content strings.Builder
	var cost *float64
	var streamErr error
	for chunk := range chunks {
		if chunk.Cost != nil {
			cost = chunk.Cost
		}
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if chunk.Data != "" {
			content.WriteString(chunk.Data)
			emitDelta(out, id, pr.model, chunk.Data)
		}
		if chunk.Done {
			break
		}
	}
	latency := time.Since(streamStart)

	if ctx.Err() != nil {
		// Client disconnected mid-stream: nothing reliable to persist.
		return
	}
	if streamErr != nil {
		emitDelta(out, id, pr.model, fmt.Sprintf("[BeigeBox] Backend error: %v", streamErr))
		out <- StreamEvent{Done: true}
		return
	}

	final := content.String()
	p.logAssistantMessage(ctx, pr, final, cost, latency)
	p.finish(pr, final, backendName, latency)

	out <- StreamEvent{Done: true}
}

func emitDelta(out chan<- StreamEvent, id, model, delta string) {
	out <- StreamEvent{Payload: map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]any{
			{
				"index": 0,
				"delta": map[string]any{"content": delta},
			},
		},
	}}
}
