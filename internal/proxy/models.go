package proxy

import "context"

// ListModels returns the union of every backend's advertised model ids, in
// backend priority order, deduplicated. In advertise mode every id is
// prefixed with the configured tag; malformed or empty ids are dropped
// rather than surfaced as garbage entries.
func (p *Proxy) ListModels(ctx context.Context) []map[string]any {
	seen := make(map[string]bool)
	var out []map[string]any
	if p.dispatcher == nil {
		return out
	}
	for _, b := range p.dispatcher.Backends() {
		ids, err := b.ListModels(ctx)
		if err != nil {
			p.logger.Debug("list models failed", "backend", b.Name(), "error", err)
			continue
		}
		for _, id := range ids {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			name := id
			if p.advertiseMode && p.advertisePrefix != "" {
				name = p.advertisePrefix + id
			}
			out = append(out, map[string]any{
				"id":     name,
				"object": "model",
				"name":   name,
				"model":  name,
				"owned_by": b.Name(),
			})
		}
	}
	return out
}
