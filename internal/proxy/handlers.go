package proxy

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Mount registers every HTTP endpoint from spec.md §6 onto mux.
func (p *Proxy) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat/completions", p.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", p.handleModels)
	mux.HandleFunc("GET /health", p.handleHealth)
	mux.HandleFunc("GET /stats", p.handleStats)
	mux.HandleFunc("GET /search", p.handleSearch)
	mux.HandleFunc("GET /api/v1/config", p.handleConfigGet)
	mux.HandleFunc("POST /api/v1/config", p.handleConfigPost)
	mux.HandleFunc("POST /api/v1/web-ui/toggle-vi-mode", p.handleToggleViMode)
}

func (p *Proxy) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	streaming, _ := raw["stream"].(bool)
	if streaming {
		p.serveStream(w, r, raw)
		return
	}

	result, err := p.RunChatCompletion(r.Context(), raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      result.ID,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   result.Model,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": result.Content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
			"total_tokens":      result.Usage.TotalTokens,
		},
	})
}

func (p *Proxy) serveStream(w http.ResponseWriter, r *http.Request, raw map[string]any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	events := p.RunChatCompletionStream(ctx, raw)
	bw := bufio.NewWriter(w)
	for ev := range events {
		if ev.Done {
			_, _ = bw.WriteString("data: [DONE]\n\n")
			_ = bw.Flush()
			flusher.Flush()
			return
		}
		line, err := json.Marshal(ev.Payload)
		if err != nil {
			continue
		}
		_, _ = bw.WriteString("data: ")
		_, _ = bw.Write(line)
		_, _ = bw.WriteString("\n\n")
		_ = bw.Flush()
		flusher.Flush()
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Proxy) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   p.ListModels(r.Context()),
	})
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "ok"
	backends := map[string]string{}
	if p.dispatcher != nil {
		for _, b := range p.dispatcher.Backends() {
			if err := b.HealthCheck(ctx); err != nil {
				backends[b.Name()] = err.Error()
				status = "degraded"
			} else {
				backends[b.Name()] = "ok"
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"backends": backends,
	})
}

func (p *Proxy) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")
	if p.store == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{})
		return
	}
	stats, err := p.store.Stats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(stats)
}

func (p *Proxy) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	n := 10
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	role := r.URL.Query().Get("role")

	w.Header().Set("Content-Type", "application/json")
	if p.search == nil || q == "" {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []SearchHit{}})
		return
	}
	hits, err := p.search.Search(q, n, role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"results": hits})
}

func (p *Proxy) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p.overlay.Snapshot())
}

func (p *Proxy) handleConfigPost(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	p.overlay.Merge(updates)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p.overlay.Snapshot())
}

func (p *Proxy) handleToggleViMode(w http.ResponseWriter, r *http.Request) {
	value := p.overlay.ToggleBool("vi_mode")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"vi_mode": value})
}
