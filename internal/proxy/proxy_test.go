package proxy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beigebox/beigebox/internal/backend"
	"github.com/beigebox/beigebox/internal/hooks"
	"github.com/beigebox/beigebox/internal/routing"
	"github.com/beigebox/beigebox/internal/session"
	"github.com/beigebox/beigebox/internal/storage"
	"github.com/beigebox/beigebox/internal/tools"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

type fakeBackend struct {
	name       string
	forwardErr error
	content    string
	lastReq    backend.ChatRequest
	calls      int
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Forward(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.forwardErr != nil {
		return backend.ChatResponse{}, f.forwardErr
	}
	return backend.ChatResponse{Content: f.content, Model: req.Model}, nil
}
func (f *fakeBackend) ForwardStream(ctx context.Context, req backend.ChatRequest) (<-chan backend.StreamChunk, error) {
	f.calls++
	f.lastReq = req
	if f.forwardErr != nil {
		return nil, f.forwardErr
	}
	ch := make(chan backend.StreamChunk, 2)
	ch <- backend.StreamChunk{Data: f.content}
	ch <- backend.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}
func (f *fakeBackend) HealthCheck(ctx context.Context) error          { return nil }
func (f *fakeBackend) ListModels(ctx context.Context) ([]string, error) { return []string{f.name}, nil }
func (f *fakeBackend) SupportsModel(model string) bool                { return true }

type fakeStore struct {
	messages []bbtypes.Message
}

func (s *fakeStore) EnsureConversation(ctx context.Context, id, createdAt string) error { return nil }
func (s *fakeStore) StoreMessage(ctx context.Context, msg bbtypes.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}
func (s *fakeStore) GetConversation(ctx context.Context, id string) ([]bbtypes.Message, error) {
	return s.messages, nil
}
func (s *fakeStore) RecentConversations(ctx context.Context, limit int) ([]storage.ConversationSummary, error) {
	return nil, nil
}
func (s *fakeStore) ModelPerformance(ctx context.Context, days int) (map[string]storage.ModelPerformance, error) {
	return nil, nil
}
func (s *fakeStore) Fork(ctx context.Context, src, dst string, branchAt int) (int, error) {
	return 0, nil
}
func (s *fakeStore) ExportAll(ctx context.Context) ([]storage.ExportRecord, error) { return nil, nil }
func (s *fakeStore) Stats(ctx context.Context) (storage.Stats, error)              { return storage.Stats{}, nil }
func (s *fakeStore) StoreHarnessRun(ctx context.Context, run bbtypes.HarnessRun) error {
	return nil
}
func (s *fakeStore) GetHarnessRun(ctx context.Context, id string) (*bbtypes.HarnessRun, error) {
	return nil, nil
}
func (s *fakeStore) ListHarnessRuns(ctx context.Context, limit int) ([]bbtypes.HarnessRun, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

func newTestProxy(t *testing.T, be *fakeBackend, store *fakeStore, routes map[string]string, hookReg *hooks.Registry) *Proxy {
	t.Helper()
	d := backend.New([]backend.Backend{be}, backend.RetryPolicy{MaxRetries: 0, BackoffBase: 1, BackoffCapS: 1})
	r := routing.New(session.New(time.Hour), nil, nil, "default-model", routes, nil)
	if hookReg == nil {
		hookReg = hooks.NewRegistry(nil)
	}
	return New(Config{
		Dispatcher:   d,
		Router:       r,
		Hooks:        hookReg,
		Tools:        tools.NewRegistry(),
		Store:        store,
		DefaultModel: "default-model",
	})
}

func TestProxy_NonStreamingHappyPath(t *testing.T) {
	be := &fakeBackend{name: "be1", content: "hello"}
	store := &fakeStore{}
	p := newTestProxy(t, be, store, nil, nil)

	result, err := p.RunChatCompletion(context.Background(), map[string]any{
		"model": "default-model",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	})
	if err != nil {
		t.Fatalf("RunChatCompletion: %v", err)
	}
	if result.Content != "hello" {
		t.Fatalf("got content %q", result.Content)
	}
	if len(store.messages) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(store.messages))
	}
	if store.messages[0].Role != bbtypes.RoleUser || store.messages[1].Role != bbtypes.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", store.messages)
	}
}

func TestProxy_HelpDirectiveShortCircuits(t *testing.T) {
	be := &fakeBackend{name: "be1", content: "hello"}
	store := &fakeStore{}
	p := newTestProxy(t, be, store, nil, nil)

	result, err := p.RunChatCompletion(context.Background(), map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "z: help"},
		},
	})
	if err != nil {
		t.Fatalf("RunChatCompletion: %v", err)
	}
	if !strings.Contains(result.Content, "Available z-commands") {
		t.Fatalf("expected help text, got %q", result.Content)
	}
	if be.calls != 0 {
		t.Fatalf("expected no backend call, got %d", be.calls)
	}
	if len(store.messages) != 0 {
		t.Fatalf("expected no persistence, got %d messages", len(store.messages))
	}
}

func TestProxy_BlockedByHookShortCircuits(t *testing.T) {
	be := &fakeBackend{name: "be1", content: "hello"}
	store := &fakeStore{}
	reg := hooks.NewRegistry(nil)
	reg.Register(hooks.StagePreRequest, "blocker", func(rc *hooks.RequestContext) error {
		rc.Block("nope, not allowed")
		return nil
	})
	p := newTestProxy(t, be, store, nil, reg)

	result, err := p.RunChatCompletion(context.Background(), map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "do something bad"},
		},
	})
	if err != nil {
		t.Fatalf("RunChatCompletion: %v", err)
	}
	if result.Content != "nope, not allowed" {
		t.Fatalf("got %q", result.Content)
	}
	if be.calls != 0 {
		t.Fatalf("expected no backend call, got %d", be.calls)
	}
}

func TestProxy_SyntheticHookSuppressesPersistence(t *testing.T) {
	be := &fakeBackend{name: "be1", content: "hello"}
	store := &fakeStore{}
	reg := hooks.NewRegistry(nil)
	reg.Register(hooks.StagePreRequest, "marker", func(rc *hooks.RequestContext) error {
		rc.MarkSynthetic()
		return nil
	})
	p := newTestProxy(t, be, store, nil, reg)

	result, err := p.RunChatCompletion(context.Background(), map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "generate a title"},
		},
	})
	if err != nil {
		t.Fatalf("RunChatCompletion: %v", err)
	}
	if result.Content != "hello" {
		t.Fatalf("expected dispatch to still run, got %q", result.Content)
	}
	if be.calls != 1 {
		t.Fatalf("expected one backend call, got %d", be.calls)
	}
	if len(store.messages) != 0 {
		t.Fatalf("expected no persistence for synthetic request, got %d", len(store.messages))
	}
}

func TestProxy_DirectiveOverrideRoutesAndStripsPrefix(t *testing.T) {
	be := &fakeBackend{name: "be1", content: "fizzbuzz output"}
	store := &fakeStore{}
	p := newTestProxy(t, be, store, map[string]string{"code": "coder-model"}, nil)

	_, err := p.RunChatCompletion(context.Background(), map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "z: code write fizzbuzz"},
		},
	})
	if err != nil {
		t.Fatalf("RunChatCompletion: %v", err)
	}
	if be.lastReq.Model != "coder-model" {
		t.Fatalf("expected routed model coder-model, got %q", be.lastReq.Model)
	}
	last := be.lastReq.Messages[len(be.lastReq.Messages)-1]
	if strings.Contains(strings.ToLower(last.Content), "z:") {
		t.Fatalf("expected directive prefix stripped, got %q", last.Content)
	}
	if last.Content != "write fizzbuzz" {
		t.Fatalf("got %q", last.Content)
	}
}

func TestProxy_DispatchFailureReturnsDiagnostic(t *testing.T) {
	be := &fakeBackend{name: "be1", forwardErr: errors.New("upstream 400")}
	store := &fakeStore{}
	p := newTestProxy(t, be, store, nil, nil)

	result, err := p.RunChatCompletion(context.Background(), map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	})
	if err != nil {
		t.Fatalf("RunChatCompletion: %v", err)
	}
	if !strings.HasPrefix(result.Content, "[BeigeBox] Backend error:") {
		t.Fatalf("got %q", result.Content)
	}
}
