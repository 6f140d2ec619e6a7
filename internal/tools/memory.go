package tools

import (
	"context"
	"fmt"
	"strings"
)

// VectorHit is one nearest-neighbor result from a VectorSearcher.
type VectorHit struct {
	Content  string
	Distance float64 // cosine distance, lower is more similar
	Role     string
	Model    string
}

// VectorSearcher is the subset of the vector index the memory tool needs.
// Satisfied by the vector index package once it exists; kept as a narrow
// interface here so this package has no dependency on storage internals.
type VectorSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]VectorHit, error)
}

// MemoryTool lets the model recall semantically relevant past conversation
// turns. It is only registered when a VectorSearcher is configured (the
// donor's MemoryTool similarly requires a vector_store to be constructed).
type MemoryTool struct {
	Searcher   VectorSearcher
	MaxResults int
	MinScore   float64
}

// NewMemoryTool creates a MemoryTool with the donor's defaults
// (max_results=3, min_score=0.3).
func NewMemoryTool(searcher VectorSearcher, maxResults int, minScore float64) *MemoryTool {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &MemoryTool{Searcher: searcher, MaxResults: maxResults, MinScore: minScore}
}

const memoryContentTruncateLen = 300

// Run implements Tool.
func (m *MemoryTool) Run(ctx context.Context, query string) (string, error) {
	hits, err := m.Searcher.Search(ctx, query, m.MaxResults)
	if err != nil {
		return fmt.Sprintf("Memory search failed: %v", err), nil
	}

	if len(hits) == 0 {
		return fmt.Sprintf("No relevant past conversations found for: %q", query), nil
	}

	var kept []string
	for _, h := range hits {
		score := 1 - h.Distance
		if score < m.MinScore {
			continue
		}
		content := h.Content
		if len(content) > memoryContentTruncateLen {
			content = content[:memoryContentTruncateLen] + "..."
		}
		role := strings.ToUpper(h.Role)
		kept = append(kept, fmt.Sprintf("\n[%s] (score: %.2f, model: %s)\n%s", role, score, h.Model, content))
	}

	if len(kept) == 0 {
		return fmt.Sprintf("No sufficiently relevant past conversations found for: %q", query), nil
	}

	header := fmt.Sprintf("Found %d relevant past messages:", len(kept))
	return header + strings.Join(kept, ""), nil
}
