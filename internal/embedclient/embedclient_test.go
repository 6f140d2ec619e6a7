package embedclient

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed_NormalizesAndOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type entry struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		// Return in reverse order to exercise index-based reordering.
		data := []entry{
			{Embedding: []float32{0, 2}, Index: 1},
			{Embedding: []float32{3, 4}, Index: 0},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	client := New(srv.URL, "", "test-model", 0)
	vecs, err := client.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if math.Abs(float64(vecs[0][0])-0.6) > 1e-6 || math.Abs(float64(vecs[0][1])-0.8) > 1e-6 {
		t.Fatalf("expected normalized [3,4] -> [0.6,0.8], got %v", vecs[0])
	}
	if math.Abs(float64(vecs[1][0])-0) > 1e-6 || math.Abs(float64(vecs[1][1])-1) > 1e-6 {
		t.Fatalf("expected normalized [0,2] -> [0,1], got %v", vecs[1])
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	client := New("http://unused", "", "m", 0)
	vecs, err := client.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil, nil got %v, %v", vecs, err)
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	if got := Normalize(v); got[0] != 0 || got[1] != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestDot_MismatchedLengthsReturnsZero(t *testing.T) {
	if got := Dot([]float32{1, 2}, []float32{1}); got != 0 {
		t.Fatalf("got %f", got)
	}
}

func TestEmbed_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := New(srv.URL, "", "m", 0)
	if _, err := client.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
}
