// Package summarizer implements the proxy's auto-summarize context-shaping
// stage: when a conversation's estimated token count exceeds a budget, older
// turns are collapsed into a single summary system message via a
// model-backed call, and the most recent turns are kept verbatim.
package summarizer

import (
	"context"
	"fmt"

	"github.com/beigebox/beigebox/internal/compaction"
)

// Config controls one summarization pass.
type Config struct {
	// Model is the backend model used to generate the summary.
	Model string

	// TokenBudget is the estimated-token threshold above which
	// summarization triggers.
	TokenBudget int

	// KeepLastTurns is how many of the most recent non-system messages are
	// kept verbatim, never summarized.
	KeepLastTurns int

	// SummaryPrefix is prepended to the generated summary text when it
	// replaces the older turns, e.g. "[summary]".
	SummaryPrefix string
}

// Caller abstracts the backend round-trip used to generate a summary, so
// this package doesn't import the dispatcher directly.
type Caller interface {
	GenerateSummary(ctx context.Context, model, prompt string) (string, error)
}

// EstimateTokens approximates a chat-completion messages array's token
// count at roughly 4 characters per token, matching the proxy's budget
// check.
func EstimateTokens(messages []map[string]any) int {
	chars := 0
	for _, m := range messages {
		chars += len(contentString(m))
	}
	if chars == 0 {
		return 0
	}
	return (chars + 3) / 4
}

// Summarize compresses messages if their estimated token count exceeds
// cfg.TokenBudget. Leading system messages and the last cfg.KeepLastTurns
// non-system messages are kept verbatim; everything between them is
// replaced by one new system message "<prefix> <summary>". On any error —
// including a nil caller — the original messages are returned unchanged,
// since a degraded proxy response is worse than an oversized one dropped
// by the backend.
func Summarize(ctx context.Context, messages []map[string]any, cfg Config, caller Caller) []map[string]any {
	if EstimateTokens(messages) <= cfg.TokenBudget {
		return messages
	}
	if caller == nil {
		return messages
	}

	leadIdx := 0
	for leadIdx < len(messages) && roleOf(messages[leadIdx]) == "system" {
		leadIdx++
	}
	rest := messages[leadIdx:]

	keepLast := cfg.KeepLastTurns
	if keepLast < 0 {
		keepLast = 0
	}
	if keepLast >= len(rest) {
		return messages
	}
	toSummarize := rest[:len(rest)-keepLast]
	keptTail := rest[len(rest)-keepLast:]
	if len(toSummarize) == 0 {
		return messages
	}

	compMessages := make([]*compaction.Message, 0, len(toSummarize))
	for _, m := range toSummarize {
		compMessages = append(compMessages, &compaction.Message{
			Role:    roleOf(m),
			Content: contentString(m),
		})
	}

	scfg := compaction.DefaultSummarizationConfig()
	scfg.Model = cfg.Model
	if cfg.TokenBudget > 0 {
		scfg.ContextWindow = cfg.TokenBudget
	}

	adapter := &callerAdapter{caller: caller, model: cfg.Model}
	summary, err := compaction.SummarizeWithFallback(ctx, compMessages, adapter, scfg)
	if err != nil {
		return messages
	}

	prefix := cfg.SummaryPrefix
	if prefix == "" {
		prefix = "[summary]"
	}
	summaryMsg := map[string]any{
		"role":    "system",
		"content": fmt.Sprintf("%s %s", prefix, summary),
	}

	out := make([]map[string]any, 0, leadIdx+1+len(keptTail))
	out = append(out, messages[:leadIdx]...)
	out = append(out, summaryMsg)
	out = append(out, keptTail...)
	return out
}

// callerAdapter lets Caller satisfy compaction.Summarizer without the
// compaction package knowing about BeigeBox's map-based message shape.
type callerAdapter struct {
	caller Caller
	model  string
}

func (a *callerAdapter) GenerateSummary(ctx context.Context, messages []*compaction.Message, cfg *compaction.SummarizationConfig) (string, error) {
	prompt := compaction.FormatMessagesForSummary(messages)
	if cfg != nil && cfg.CustomInstructions != "" {
		prompt = cfg.CustomInstructions + "\n\n" + prompt
	}
	model := a.model
	if cfg != nil && cfg.Model != "" {
		model = cfg.Model
	}
	return a.caller.GenerateSummary(ctx, model, prompt)
}

func roleOf(m map[string]any) string {
	if r, ok := m["role"].(string); ok {
		return r
	}
	return ""
}

func contentString(m map[string]any) string {
	c, ok := m["content"]
	if !ok {
		return ""
	}
	if s, ok := c.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", c)
}
