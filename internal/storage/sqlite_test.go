package storage

import (
	"context"
	"testing"
	"time"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleMessage(convID, role, content string) bbtypes.Message {
	return bbtypes.Message{
		ID:             role + "-" + content,
		ConversationID: convID,
		Role:           bbtypes.Role(role),
		Content:        content,
		Model:          "test-model",
		Timestamp:      time.Now().UTC(),
		TokenCount:     10,
	}
}

func TestSQLiteStore_StoreAndGetConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.StoreMessage(ctx, sampleMessage("conv-1", "user", "hello")); err != nil {
		t.Fatalf("StoreMessage: %v", err)
	}
	if err := store.StoreMessage(ctx, sampleMessage("conv-1", "assistant", "hi there")); err != nil {
		t.Fatalf("StoreMessage: %v", err)
	}

	msgs, err := store.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != bbtypes.RoleUser || msgs[1].Role != bbtypes.RoleAssistant {
		t.Errorf("unexpected role ordering: %v, %v", msgs[0].Role, msgs[1].Role)
	}
}

func TestSQLiteStore_Fork(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now().UTC()
	for i, role := range []string{"user", "assistant", "user", "assistant"} {
		m := sampleMessage("conv-src", role, role)
		m.ID = role + "-" + string(rune('a'+i))
		m.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := store.StoreMessage(ctx, m); err != nil {
			t.Fatalf("StoreMessage: %v", err)
		}
	}

	n, err := store.Fork(ctx, "conv-src", "conv-fork", 1)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 forked messages, got %d", n)
	}

	forked, err := store.GetConversation(ctx, "conv-fork")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(forked) != 2 {
		t.Fatalf("expected 2 messages in fork, got %d", len(forked))
	}
	if forked[0].ID == "user-a" {
		t.Error("forked message retained source id; fork must assign fresh identities")
	}
}

func TestSQLiteStore_RecentConversations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.StoreMessage(ctx, sampleMessage("conv-a", "user", "hi")); err != nil {
		t.Fatalf("StoreMessage: %v", err)
	}

	convos, err := store.RecentConversations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentConversations: %v", err)
	}
	if len(convos) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convos))
	}
	if convos[0].MessageCount != 1 {
		t.Errorf("expected message count 1, got %d", convos[0].MessageCount)
	}
}

func TestSQLiteStore_ExportFormats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_ = store.StoreMessage(ctx, sampleMessage("conv-1", "user", "what is 2+2"))
	_ = store.StoreMessage(ctx, sampleMessage("conv-1", "assistant", "4"))

	records, err := store.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	alpaca := ExportAlpaca(records, "")
	if len(alpaca) != 1 {
		t.Fatalf("expected 1 alpaca record, got %d", len(alpaca))
	}
	if alpaca[0].Instruction != "what is 2+2" || alpaca[0].Output != "4" {
		t.Errorf("unexpected alpaca record: %+v", alpaca[0])
	}

	sharegpt := ExportShareGPT(records, "")
	if len(sharegpt) != 1 || len(sharegpt[0].Conversations) != 2 {
		t.Fatalf("unexpected sharegpt export: %+v", sharegpt)
	}
	if sharegpt[0].Conversations[0].From != "human" {
		t.Errorf("expected first turn from human, got %s", sharegpt[0].Conversations[0].From)
	}

	jsonl := ExportJSONL(records, "")
	if len(jsonl) != 1 || len(jsonl[0].Messages) != 2 {
		t.Fatalf("unexpected jsonl export: %+v", jsonl)
	}
}

func TestSQLiteStore_HarnessRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := bbtypes.HarnessRun{
		ID:          "run-1",
		Goal:        "ship the feature",
		Targets:     []string{"gpt-4", "claude"},
		DriverModel: "gpt-4",
		RoundCap:    8,
		FinalAnswer: "done",
		RoundsRun:   3,
		CreatedAt:   time.Now().UTC(),
		Events: []bbtypes.HarnessEvent{
			{Type: bbtypes.HarnessEventStart, Timestamp: time.Now().UTC()},
			{Type: bbtypes.HarnessEventFinish, Round: 3, Timestamp: time.Now().UTC()},
		},
	}

	if err := store.StoreHarnessRun(ctx, run); err != nil {
		t.Fatalf("StoreHarnessRun: %v", err)
	}

	got, err := store.GetHarnessRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetHarnessRun: %v", err)
	}
	if got.Goal != run.Goal || len(got.Targets) != 2 || len(got.Events) != 2 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if p := percentile(vals, 50); p != 60 {
		t.Errorf("p50 = %v, want 60", p)
	}
	if p := percentile(vals, 95); p != 100 {
		t.Errorf("p95 = %v, want 100", p)
	}
	if p := percentile(nil, 50); p != 0 {
		t.Errorf("percentile of empty slice = %v, want 0", p)
	}
}
