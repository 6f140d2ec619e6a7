package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beigebox/beigebox/internal/embedclient"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// embedServer returns a test server that embeds each input text via
// vectorFor, enough to produce distinguishable dot products for classifier
// tests without a real embedding model.
func embedServer(t *testing.T, vectorFor func(text string) []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		type entry struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []entry
		for i, text := range req.Input {
			data = append(data, entry{Embedding: vectorFor(text), Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestCentroidClassifier_TerminalAboveThreshold(t *testing.T) {
	srv := embedServer(t, func(text string) []float32 { return []float32{1, 0} })
	defer srv.Close()

	client := embedclient.New(srv.URL, "", "test-model", 0)
	centroids := []bbtypes.Centroid{
		{Route: "code", Vector: []float32{1, 0}},
		{Route: "fast", Vector: []float32{0, 1}},
	}
	classifier := NewCentroidClassifier(client, centroids, 0.04, map[string]string{"code": "gpt-4o", "fast": "gpt-4o-mini"})

	result, err := classifier.classify(context.Background(), "write me a function")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !result.Terminal || result.Model != "gpt-4o" {
		t.Fatalf("got %+v", result)
	}
}

func TestCentroidClassifier_FallsThroughBelowThreshold(t *testing.T) {
	srv := embedServer(t, func(text string) []float32 { return []float32{0.6, 0.4} })
	defer srv.Close()

	client := embedclient.New(srv.URL, "", "test-model", 0)
	centroids := []bbtypes.Centroid{
		{Route: "code", Vector: []float32{0.6, 0.41}},
		{Route: "fast", Vector: []float32{0.6, 0.4}},
	}
	classifier := NewCentroidClassifier(client, centroids, 0.5, map[string]string{"code": "gpt-4o", "fast": "gpt-4o-mini"})

	result, err := classifier.classify(context.Background(), "hi")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Terminal {
		t.Fatalf("expected non-terminal, got %+v", result)
	}
}

func TestCentroidClassifier_NoCentroidsSkipsStage(t *testing.T) {
	classifier := NewCentroidClassifier(nil, nil, 0.04, nil)
	result, err := classifier.classify(context.Background(), "hi")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Terminal || result.Route != "" {
		t.Fatalf("expected empty skipped result, got %+v", result)
	}
}
