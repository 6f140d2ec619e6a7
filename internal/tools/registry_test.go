package tools

import (
	"context"
	"errors"
	"testing"
)

type recordingRecorder struct {
	calls []struct {
		name, status string
	}
}

func (r *recordingRecorder) RecordToolExecution(toolName, status string, _ float64) {
	r.calls = append(r.calls, struct{ name, status string }{toolName, status})
}

func TestRegistry_RegisterGetRun(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", Func(func(_ context.Context, input string) (string, error) {
		return "echo: " + input, nil
	}))

	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected missing tool to be absent")
	}

	got, err := r.Run(context.Background(), "echo", "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "echo: hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRegistry_UnknownToolReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Run(context.Background(), "nope", "x")
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistry_RecordsMetrics(t *testing.T) {
	rec := &recordingRecorder{}
	r := NewRegistry(WithRecorder(rec))
	r.Register("fails", Func(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("boom")
	}))

	if _, err := r.Run(context.Background(), "fails", "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.calls) != 1 || rec.calls[0].status != "error" {
		t.Fatalf("unexpected recorder calls: %+v", rec.calls)
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", Func(func(context.Context, string) (string, error) { return "", nil }))
	r.Register("alpha", Func(func(context.Context, string) (string, error) { return "", nil }))

	list := r.List()
	if len(list) != 2 || list[0] != "alpha" || list[1] != "zeta" {
		t.Fatalf("got %v", list)
	}
}
