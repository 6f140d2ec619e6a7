package wirelog

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

func TestLog_EmitAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wire.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	err = log.Emit(bbtypes.WireEvent{
		Timestamp:      time.Now(),
		Direction:      bbtypes.WireInbound,
		Role:           "user",
		ConversationID: "abcdefghijklmnopqrstuvwxyz",
		Content:        "hello world",
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	events, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if len(ev.ConversationID) != 16 {
		t.Errorf("expected 16-char conversation prefix, got %q", ev.ConversationID)
	}
	if ev.Content != "hello world" {
		t.Errorf("content = %q", ev.Content)
	}
}

func TestLog_TruncatesLongContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wire.jsonl")
	log, _ := Open(path)
	defer log.Close()

	long := strings.Repeat("x", 5000)
	_ = log.Emit(bbtypes.WireEvent{Role: "user", Content: long})

	events, _ := ReadAll(path)
	got := events[0].Content
	if len(got) >= len(long) {
		t.Fatalf("expected truncation, got length %d", len(got))
	}
	if !strings.Contains(got, "chars truncated") {
		t.Errorf("expected truncation marker, got %q", got[:50])
	}
	if !strings.HasPrefix(got, strings.Repeat("x", 1000)) {
		t.Error("expected 1000-char prefix preserved")
	}
	if !strings.HasSuffix(got, strings.Repeat("x", 1000)) {
		t.Error("expected 1000-char suffix preserved")
	}
}
