package tools

import "context"

// WebSearchTool is a stub: the search provider (DuckDuckGo, Google, or a
// scraper) is a thin wrapper over an external HTTP service, out of scope
// per the leaf-tool exclusion. It satisfies Tool so the registry can name
// "web_search" in its namespace and the routing core can route to it; a
// real deployment wires Run to whichever provider it has credentials for.
type WebSearchTool struct {
	// Search, if set, performs the actual lookup. Left nil, Run reports
	// that no provider is configured.
	Search func(ctx context.Context, query string) (string, error)
}

// Run implements Tool.
func (t *WebSearchTool) Run(ctx context.Context, query string) (string, error) {
	if t.Search == nil {
		return "Web search is not configured for this deployment.", nil
	}
	result, err := t.Search(ctx, query)
	if err != nil {
		return "Search failed: " + err.Error(), nil
	}
	return result, nil
}
