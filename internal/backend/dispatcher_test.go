package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/beigebox/beigebox/internal/berrors"
)

// fakeBackend is a scripted Backend for dispatcher tests: each call to
// Forward/ForwardStream pops the next entry from its queue.
type fakeBackend struct {
	name    string
	queue   []error
	calls   int
	model   string
	content string
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) SupportsModel(model string) bool {
	return f.model == "" || f.model == model
}
func (f *fakeBackend) Forward(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	err := f.next()
	if err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{Content: f.content}, nil
}
func (f *fakeBackend) ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	err := f.next()
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}
func (f *fakeBackend) HealthCheck(ctx context.Context) error      { return nil }
func (f *fakeBackend) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeBackend) next() error {
	if f.calls >= len(f.queue) {
		return nil
	}
	err := f.queue[f.calls]
	f.calls++
	return err
}

var fastPolicy = RetryPolicy{MaxRetries: 2, BackoffBase: 1, BackoffCapS: 0.001}

func TestDispatcher_ForwardSucceedsOnFirstBackend(t *testing.T) {
	primary := &fakeBackend{name: "primary", content: "hi"}
	d := New([]Backend{primary}, fastPolicy)

	resp, name, err := d.Forward(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if name != "primary" || resp.Content != "hi" {
		t.Fatalf("got %q %q", name, resp.Content)
	}
}

func TestDispatcher_RetriesTransientThenSucceeds(t *testing.T) {
	transient := &berrors.TransientBackendError{Backend: "a", StatusCode: 503}
	b := &fakeBackend{name: "a", queue: []error{transient, transient}, content: "ok"}
	d := New([]Backend{b}, fastPolicy)

	resp, _, err := d.Forward(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("got %q", resp.Content)
	}
	if b.calls != 3 {
		t.Fatalf("expected 3 calls (2 retries + success), got %d", b.calls)
	}
}

func TestDispatcher_PermanentErrorSkipsRetryFallsThrough(t *testing.T) {
	permanent := &berrors.PermanentBackendError{Backend: "a", StatusCode: 401}
	a := &fakeBackend{name: "a", queue: []error{permanent}}
	b := &fakeBackend{name: "b", content: "from-b"}
	d := New([]Backend{a, b}, fastPolicy)

	resp, name, err := d.Forward(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if name != "b" || resp.Content != "from-b" {
		t.Fatalf("got %q %q", name, resp.Content)
	}
	if a.calls != 1 {
		t.Fatalf("expected permanent error to abort retry after 1 call, got %d", a.calls)
	}
}

func TestDispatcher_ExhaustsAllBackends(t *testing.T) {
	errA := errors.New("boom a")
	errB := errors.New("boom b")
	a := &fakeBackend{name: "a", queue: []error{errA, errA, errA}}
	b := &fakeBackend{name: "b", queue: []error{errB, errB, errB}}
	d := New([]Backend{a, b}, fastPolicy)

	_, _, err := d.Forward(context.Background(), ChatRequest{})
	var exhausted *berrors.DispatchExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected DispatchExhaustedError, got %v", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Fatalf("expected one attempt entry per backend, got %v", exhausted.Attempts)
	}
}

func TestDispatcher_CandidatesFilterBySupportsModel(t *testing.T) {
	claude := &fakeBackend{name: "claude", model: "claude-3", content: "from-claude"}
	gpt := &fakeBackend{name: "gpt", model: "gpt-4o", content: "from-gpt"}
	d := New([]Backend{claude, gpt}, fastPolicy)

	resp, name, err := d.Forward(context.Background(), ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if name != "gpt" || resp.Content != "from-gpt" {
		t.Fatalf("got %q %q", name, resp.Content)
	}
}

func TestDispatcher_ForwardStream(t *testing.T) {
	a := &fakeBackend{name: "a"}
	d := New([]Backend{a}, fastPolicy)

	ch, name, err := d.ForwardStream(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("ForwardStream: %v", err)
	}
	if name != "a" {
		t.Fatalf("got %q", name)
	}
	chunk := <-ch
	if !chunk.Done {
		t.Fatalf("expected final chunk to be Done")
	}
}

func TestExtractCostSentinel(t *testing.T) {
	text, cost := extractCostSentinel("the answer is 4 __bb_cost__:0.0021")
	if text != "the answer is 4" {
		t.Fatalf("got %q", text)
	}
	if cost == nil || *cost != 0.0021 {
		t.Fatalf("got cost %v", cost)
	}
}

func TestExtractCostSentinel_NoSentinel(t *testing.T) {
	text, cost := extractCostSentinel("plain text")
	if text != "plain text" || cost != nil {
		t.Fatalf("got %q %v", text, cost)
	}
}
