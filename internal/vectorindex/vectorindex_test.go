package vectorindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// fakeEmbedder maps known text to a fixed vector so cosine ranking is
// deterministic in tests.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"tell me about cats":  {1, 0, 0},
		"tell me about dogs":  {0, 1, 0},
		"cats are great pets": {1, 0, 0},
		"query about cats":    {1, 0, 0},
	}}
}

func TestIndex_IndexThenSearch_RanksByCosineSimilarity(t *testing.T) {
	idx := New(newFakeEmbedder(), "", nil)
	idx.IndexMessage("conv-1", "user", "gpt-4o", "tell me about cats", time.Now())
	idx.IndexMessage("conv-1", "assistant", "gpt-4o", "tell me about dogs", time.Now())

	ts := ToolSearcher{Index: idx}
	hits, err := ts.Search(context.Background(), "query about cats", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Content != "tell me about cats" {
		t.Fatalf("expected the cats message to rank first, got %q", hits[0].Content)
	}
	if hits[0].Distance >= hits[1].Distance {
		t.Fatalf("expected the closer match to have smaller distance: %+v", hits)
	}
}

func TestHTTPSearcher_FiltersByRole(t *testing.T) {
	idx := New(newFakeEmbedder(), "", nil)
	idx.IndexMessage("conv-1", "user", "gpt-4o", "tell me about cats", time.Now())
	idx.IndexMessage("conv-1", "assistant", "gpt-4o", "cats are great pets", time.Now())

	hs := HTTPSearcher{Index: idx}
	hits, err := hs.Search("query about cats", 5, "assistant")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after role filter, got %d", len(hits))
	}
	if hits[0].Role != "assistant" {
		t.Fatalf("got role %q", hits[0].Role)
	}
	if hits[0].ConversationID != "conv-1" {
		t.Fatalf("got conversation id %q", hits[0].ConversationID)
	}
}

func TestIndex_SnapshotPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.gob")

	idx := New(newFakeEmbedder(), path, nil)
	idx.IndexMessage("conv-1", "user", "gpt-4o", "tell me about cats", time.Now())

	reloaded := New(newFakeEmbedder(), path, nil)
	ts := ToolSearcher{Index: reloaded}
	hits, err := ts.Search(context.Background(), "query about cats", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected the reloaded index to carry the snapshot forward, got %d hits", len(hits))
	}
}

func TestIndex_NoEmbedderIndexMessageIsNoop(t *testing.T) {
	idx := New(nil, "", nil)
	idx.IndexMessage("conv-1", "user", "gpt-4o", "hello", time.Now())

	ts := ToolSearcher{Index: idx}
	if _, err := ts.Search(context.Background(), "hello", 5); err == nil {
		t.Fatal("expected an error when no embedder is configured")
	}
}

func TestIndex_EmptyContentIndexMessageIsNoop(t *testing.T) {
	idx := New(newFakeEmbedder(), "", nil)
	idx.IndexMessage("conv-1", "user", "gpt-4o", "", time.Now())

	ts := ToolSearcher{Index: idx}
	hits, err := ts.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty content to be dropped, got %d hits", len(hits))
	}
}
