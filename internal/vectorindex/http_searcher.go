package vectorindex

import (
	"context"
	"time"

	"github.com/beigebox/beigebox/internal/proxy"
)

// HTTPSearcher adapts Index to proxy.Searcher, the synchronous (no
// context parameter) interface the GET /search operational endpoint
// depends on. A bounded context.Background timeout stands in for the
// request context the interface doesn't carry.
type HTTPSearcher struct {
	Index *Index
}

// Search returns the n nearest conversation turns to query, optionally
// filtered to role, as proxy.SearchHit entries.
func (s HTTPSearcher) Search(query string, n int, role string) ([]proxy.SearchHit, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	scored, err := s.Index.queryTopK(ctx, query, n, role)
	if err != nil {
		return nil, err
	}
	hits := make([]proxy.SearchHit, 0, len(scored))
	for _, sc := range scored {
		hits = append(hits, proxy.SearchHit{
			ConversationID: sc.rec.Metadata.ConversationID,
			Role:           sc.rec.Metadata.Role,
			Content:        sc.rec.Document,
			Score:          sc.score,
		})
	}
	return hits, nil
}
