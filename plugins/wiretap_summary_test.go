package plugins

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beigebox/beigebox/pkg/bbtypes"

	"github.com/beigebox/beigebox/internal/wirelog"
)

func writeWireLog(t *testing.T, events []bbtypes.WireEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wire.jsonl")
	log, err := wirelog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()
	for _, ev := range events {
		if err := log.Emit(ev); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	return path
}

func TestWiretapSummaryTool_MissingFile(t *testing.T) {
	tool := NewWiretapSummaryTool(filepath.Join(t.TempDir(), "nope.jsonl"))
	got, err := tool.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "No wiretap data found") {
		t.Fatalf("got %q", got)
	}
}

func TestWiretapSummaryTool_SummarizesTraffic(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	path := writeWireLog(t, []bbtypes.WireEvent{
		{Timestamp: now, Direction: bbtypes.WireInbound, Role: "user", Content: "hi"},
		{Timestamp: now, Direction: bbtypes.WireOutbound, Role: "assistant", Model: "gpt-4o", Content: "hello"},
		{Timestamp: now, Direction: bbtypes.WireInternal, Content: "session cache hit"},
	})

	tool := NewWiretapSummaryTool(path)
	got, err := tool.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "Traffic events: 2") || !strings.Contains(got, "Internal events: 1") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "gpt-4o") {
		t.Fatalf("expected model listed, got %q", got)
	}
	if !strings.Contains(got, "Session cache hits: 1") {
		t.Fatalf("expected cache hit count, got %q", got)
	}
}

func TestWiretapSummaryTool_ToolName(t *testing.T) {
	if (WiretapSummaryTool{}).ToolName() != "wiretap_summary" {
		t.Fatal("unexpected tool name")
	}
}
