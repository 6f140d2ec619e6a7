package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeSearcher struct {
	hits []VectorHit
	err  error
}

func (f fakeSearcher) Search(_ context.Context, _ string, _ int) ([]VectorHit, error) {
	return f.hits, f.err
}

func TestMemoryTool_NoResults(t *testing.T) {
	tool := NewMemoryTool(fakeSearcher{}, 3, 0.3)
	got, err := tool.Run(context.Background(), "what did we discuss")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "No relevant past conversations found") {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryTool_FiltersByMinScore(t *testing.T) {
	tool := NewMemoryTool(fakeSearcher{hits: []VectorHit{
		{Content: "irrelevant", Distance: 0.9, Role: "user"}, // score 0.1 < 0.3
	}}, 3, 0.3)
	got, err := tool.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "No sufficiently relevant") {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryTool_ReturnsFormattedHits(t *testing.T) {
	tool := NewMemoryTool(fakeSearcher{hits: []VectorHit{
		{Content: "we discussed the proxy design", Distance: 0.2, Role: "assistant", Model: "gpt-4o"},
	}}, 3, 0.3)
	got, err := tool.Run(context.Background(), "proxy design")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "Found 1 relevant past messages:") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "[ASSISTANT] (score: 0.80, model: gpt-4o)") {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryTool_SearchError(t *testing.T) {
	tool := NewMemoryTool(fakeSearcher{err: errors.New("index unavailable")}, 3, 0.3)
	got, err := tool.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "Memory search failed: index unavailable") {
		t.Fatalf("got %q", got)
	}
}
