package tools

import (
	"strings"
	"testing"
	"time"
)

func TestDateTimeTool_NamedTimezone(t *testing.T) {
	tool := NewDateTimeTool(-5)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := tool.RunAt(now, "what time is it in tokyo")
	if !strings.Contains(got, "Current time in TOKYO") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "UTC+9.0") {
		t.Fatalf("expected JST offset, got %q", got)
	}
}

func TestDateTimeTool_FallsBackToLocal(t *testing.T) {
	tool := NewDateTimeTool(-5)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := tool.RunAt(now, "what time is it")
	if !strings.Contains(got, "Local time:") || !strings.Contains(got, "UTC time:") || !strings.Contains(got, "Unix timestamp:") {
		t.Fatalf("got %q", got)
	}
}

func TestDateTimeTool_HalfHourOffset(t *testing.T) {
	tool := NewDateTimeTool(0)
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	got := tool.RunAt(now, "time in india right now")
	if !strings.Contains(got, "UTC+5.5") {
		t.Fatalf("got %q", got)
	}
}
