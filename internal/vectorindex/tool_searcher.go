package vectorindex

import (
	"context"

	"github.com/beigebox/beigebox/internal/tools"
)

// ToolSearcher adapts Index to tools.VectorSearcher, the narrow interface
// the memory tool depends on. Kept as its own type rather than a method on
// Index directly since tools.VectorSearcher and proxy.Searcher both want a
// method named Search with different signatures — one type can't
// implement both.
type ToolSearcher struct {
	Index *Index
}

// Search returns the topK nearest conversation turns to query, converted
// to cosine distance (1 - similarity, so lower is more similar, matching
// tools.VectorHit's documented convention) with no role filtering.
func (s ToolSearcher) Search(ctx context.Context, query string, topK int) ([]tools.VectorHit, error) {
	scored, err := s.Index.queryTopK(ctx, query, topK, "")
	if err != nil {
		return nil, err
	}
	hits := make([]tools.VectorHit, 0, len(scored))
	for _, sc := range scored {
		hits = append(hits, tools.VectorHit{
			Content:  sc.rec.Document,
			Distance: 1 - sc.score,
			Role:     sc.rec.Metadata.Role,
			Model:    sc.rec.Metadata.Model,
		})
	}
	return hits, nil
}
