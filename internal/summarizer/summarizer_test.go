package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCaller struct {
	summary string
	err     error
}

func (f *fakeCaller) GenerateSummary(ctx context.Context, model, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func bigMessages(n int) []map[string]any {
	msgs := []map[string]any{
		{"role": "system", "content": "you are a helpful assistant"},
	}
	for i := 0; i < n; i++ {
		msgs = append(msgs, map[string]any{"role": "user", "content": strings.Repeat("x", 500)})
		msgs = append(msgs, map[string]any{"role": "assistant", "content": strings.Repeat("y", 500)})
	}
	return msgs
}

func TestSummarize_BelowBudgetPassesThrough(t *testing.T) {
	msgs := bigMessages(1)
	cfg := Config{TokenBudget: 1_000_000, KeepLastTurns: 2}
	out := Summarize(context.Background(), msgs, cfg, &fakeCaller{summary: "s"})
	if len(out) != len(msgs) {
		t.Fatalf("expected passthrough, got %d messages", len(out))
	}
}

func TestSummarize_CompactsOlderTurns(t *testing.T) {
	msgs := bigMessages(20)
	cfg := Config{TokenBudget: 100, KeepLastTurns: 4, SummaryPrefix: "[summary]"}
	out := Summarize(context.Background(), msgs, cfg, &fakeCaller{summary: "condensed history"})

	if roleOf(out[0]) != "system" || contentString(out[0]) != "you are a helpful assistant" {
		t.Fatalf("expected leading system message kept, got %v", out[0])
	}
	if roleOf(out[1]) != "system" || !strings.Contains(contentString(out[1]), "condensed history") {
		t.Fatalf("expected summary system message, got %v", out[1])
	}
	if !strings.HasPrefix(contentString(out[1]), "[summary]") {
		t.Fatalf("expected summary prefix, got %q", contentString(out[1]))
	}
	if len(out) != 2+4 {
		t.Fatalf("expected 2 leading + 4 kept tail messages, got %d", len(out))
	}
}

func TestSummarize_FailureFallsThrough(t *testing.T) {
	msgs := bigMessages(20)
	cfg := Config{TokenBudget: 100, KeepLastTurns: 4}
	out := Summarize(context.Background(), msgs, cfg, &fakeCaller{err: errors.New("backend down")})
	if len(out) != len(msgs) {
		t.Fatalf("expected original messages on failure, got %d", len(out))
	}
}

func TestSummarize_NilCallerPassesThrough(t *testing.T) {
	msgs := bigMessages(20)
	cfg := Config{TokenBudget: 100, KeepLastTurns: 4}
	out := Summarize(context.Background(), msgs, cfg, nil)
	if len(out) != len(msgs) {
		t.Fatalf("expected original messages with nil caller, got %d", len(out))
	}
}

func TestEstimateTokens(t *testing.T) {
	msgs := []map[string]any{{"role": "user", "content": "abcd"}}
	if got := EstimateTokens(msgs); got != 1 {
		t.Fatalf("EstimateTokens = %d, want 1", got)
	}
}
