package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/beigebox/beigebox/internal/proxy"
	"github.com/beigebox/beigebox/internal/storage"
	"github.com/beigebox/beigebox/internal/wirelog"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// fakeStore implements storage.MessageStore with just enough behavior for
// replay's tests; every method replay doesn't use panics if called.
type fakeStore struct {
	conversations map[string][]bbtypes.Message
}

func (f *fakeStore) EnsureConversation(ctx context.Context, id, createdAt string) error { return nil }
func (f *fakeStore) StoreMessage(ctx context.Context, msg bbtypes.Message) error        { return nil }
func (f *fakeStore) GetConversation(ctx context.Context, id string) ([]bbtypes.Message, error) {
	msgs, ok := f.conversations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return msgs, nil
}
func (f *fakeStore) RecentConversations(ctx context.Context, limit int) ([]storage.ConversationSummary, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) ModelPerformance(ctx context.Context, days int) (map[string]storage.ModelPerformance, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) Fork(ctx context.Context, sourceConvID, newConvID string, branchAt int) (int, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) ExportAll(ctx context.Context) ([]storage.ExportRecord, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) Stats(ctx context.Context) (storage.Stats, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) StoreHarnessRun(ctx context.Context, run bbtypes.HarnessRun) error {
	panic("not used by replay tests")
}
func (f *fakeStore) GetHarnessRun(ctx context.Context, id string) (*bbtypes.HarnessRun, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) ListHarnessRuns(ctx context.Context, limit int) ([]bbtypes.HarnessRun, error) {
	panic("not used by replay tests")
}
func (f *fakeStore) Close() error { return nil }

var _ storage.MessageStore = (*fakeStore)(nil)

type fakeSearcher struct {
	hits []proxy.SearchHit
	err  error
}

func (f *fakeSearcher) Search(query string, n int, role string) ([]proxy.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func TestView_Timeline_MergesMessagesAndWireEventsInOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{conversations: map[string][]bbtypes.Message{
		"conv-1": {
			{ID: "m1", ConversationID: "conv-1", Role: bbtypes.RoleUser, Content: "hi", Timestamp: base},
			{ID: "m2", ConversationID: "conv-1", Role: bbtypes.RoleAssistant, Content: "hello", Timestamp: base.Add(2 * time.Second)},
		},
	}}

	wirePath := filepath.Join(t.TempDir(), "wire.jsonl")
	log, err := wirelog.Open(wirePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = log.Emit(bbtypes.WireEvent{Timestamp: base.Add(1 * time.Second), Direction: bbtypes.WireInternal, Role: "router", ConversationID: "conv-1", Content: "routed to gpt-4o"})
	_ = log.Close()

	v := New(store, wirePath, nil)
	entries, err := v.Timeline(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Kind != EntryMessage || entries[0].Message.ID != "m1" {
		t.Fatalf("expected m1 first, got %+v", entries[0])
	}
	if entries[1].Kind != EntryWire {
		t.Fatalf("expected the wire event second, got %+v", entries[1])
	}
	if entries[2].Kind != EntryMessage || entries[2].Message.ID != "m2" {
		t.Fatalf("expected m2 last, got %+v", entries[2])
	}
}

func TestView_Timeline_FiltersWireEventsByTruncatedConversationPrefix(t *testing.T) {
	longID := "conversation-id-that-is-much-longer-than-sixteen-chars"
	store := &fakeStore{conversations: map[string][]bbtypes.Message{
		longID: {{ID: "m1", ConversationID: longID, Role: bbtypes.RoleUser, Content: "hi", Timestamp: time.Now()}},
	}}

	wirePath := filepath.Join(t.TempDir(), "wire.jsonl")
	log, _ := wirelog.Open(wirePath)
	_ = log.Emit(bbtypes.WireEvent{Timestamp: time.Now(), ConversationID: longID, Content: "matches"})
	_ = log.Emit(bbtypes.WireEvent{Timestamp: time.Now(), ConversationID: "some-other-conversation", Content: "does not match"})
	_ = log.Close()

	v := New(store, wirePath, nil)
	entries, err := v.Timeline(context.Background(), longID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	wireCount := 0
	for _, e := range entries {
		if e.Kind == EntryWire {
			wireCount++
		}
	}
	if wireCount != 1 {
		t.Fatalf("expected exactly 1 matching wire event, got %d", wireCount)
	}
}

func TestView_Timeline_NoStoreConfiguredReturnsError(t *testing.T) {
	v := New(nil, "", nil)
	if _, err := v.Timeline(context.Background(), "conv-1"); err == nil {
		t.Fatal("expected an error when no store is configured")
	}
}

func TestView_Timeline_UnknownConversationPropagatesNotFound(t *testing.T) {
	store := &fakeStore{conversations: map[string][]bbtypes.Message{}}
	v := New(store, "", nil)
	_, err := v.Timeline(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestView_SemanticNeighbors_GroupsHitsByConversationKeepingBestScore(t *testing.T) {
	store := &fakeStore{conversations: map[string][]bbtypes.Message{
		"conv-1": {{ID: "m1", ConversationID: "conv-1", Content: "tell me about cats", Timestamp: time.Now()}},
	}}
	searcher := &fakeSearcher{hits: []proxy.SearchHit{
		{ConversationID: "conv-1", Content: "self match, excluded", Score: 0.99},
		{ConversationID: "conv-2", Content: "cats are great", Score: 0.8},
		{ConversationID: "conv-2", Content: "cats again", Score: 0.6},
		{ConversationID: "conv-3", Content: "dogs though", Score: 0.5},
	}}

	v := New(store, "", searcher)
	neighbors, err := v.SemanticNeighbors(context.Background(), "conv-1", 5)
	if err != nil {
		t.Fatalf("SemanticNeighbors: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbor conversations (conv-1 excluded), got %d: %+v", len(neighbors), neighbors)
	}
	if neighbors[0].ConversationID != "conv-2" || neighbors[0].BestScore != 0.8 {
		t.Fatalf("expected conv-2 to rank first with best score 0.8, got %+v", neighbors[0])
	}
	if neighbors[0].HitCount != 2 {
		t.Fatalf("expected conv-2's 2 hits to be counted, got %d", neighbors[0].HitCount)
	}
	if neighbors[1].ConversationID != "conv-3" {
		t.Fatalf("expected conv-3 second, got %+v", neighbors[1])
	}
}

func TestView_SemanticNeighbors_TruncatesToTopK(t *testing.T) {
	store := &fakeStore{conversations: map[string][]bbtypes.Message{
		"conv-1": {{ID: "m1", ConversationID: "conv-1", Content: "query", Timestamp: time.Now()}},
	}}
	searcher := &fakeSearcher{hits: []proxy.SearchHit{
		{ConversationID: "conv-2", Score: 0.9},
		{ConversationID: "conv-3", Score: 0.8},
		{ConversationID: "conv-4", Score: 0.7},
	}}
	v := New(store, "", searcher)
	neighbors, err := v.SemanticNeighbors(context.Background(), "conv-1", 2)
	if err != nil {
		t.Fatalf("SemanticNeighbors: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(neighbors))
	}
}

func TestView_SemanticNeighbors_NoSearcherConfiguredReturnsError(t *testing.T) {
	store := &fakeStore{conversations: map[string][]bbtypes.Message{"conv-1": {{Content: "x"}}}}
	v := New(store, "", nil)
	if _, err := v.SemanticNeighbors(context.Background(), "conv-1", 5); err == nil {
		t.Fatal("expected an error when no search backend is configured")
	}
}

func TestView_SemanticNeighbors_EmptyConversationReturnsNilWithoutSearching(t *testing.T) {
	store := &fakeStore{conversations: map[string][]bbtypes.Message{"conv-1": {}}}
	searcher := &fakeSearcher{err: errors.New("should not be called")}
	v := New(store, "", searcher)
	neighbors, err := v.SemanticNeighbors(context.Background(), "conv-1", 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if neighbors != nil {
		t.Fatalf("expected nil, got %+v", neighbors)
	}
}
