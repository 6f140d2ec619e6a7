package routing

import (
	"context"
	"testing"
	"time"

	"github.com/beigebox/beigebox/internal/session"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

func TestRouter_DirectiveOverrideIsTerminalAndSkipsCacheWrite(t *testing.T) {
	cache := session.New(time.Hour)
	r := New(cache, nil, nil, "default-model", map[string]string{"large": "gpt-4o"}, nil)

	directive := bbtypes.ZCommand{Active: true, Route: "large"}
	result := r.Route(context.Background(), "conv1", directive, "hello")

	if result.Stage != "directive" || result.Decision.Model != "gpt-4o" {
		t.Fatalf("got %+v", result)
	}
	if _, ok := cache.Get("conv1"); ok {
		t.Fatal("directive override must not write the session cache")
	}
}

func TestRouter_SessionCacheIsTerminal(t *testing.T) {
	cache := session.New(time.Hour)
	cache.Set("conv1", "sticky-model")
	r := New(cache, nil, nil, "default-model", nil, nil)

	result := r.Route(context.Background(), "conv1", bbtypes.ZCommand{}, "hello again")
	if result.Stage != "session_cache" || result.Decision.Model != "sticky-model" {
		t.Fatalf("got %+v", result)
	}
}

func TestRouter_FallsThroughToArbitratorWithNoCentroids(t *testing.T) {
	cache := session.New(time.Hour)
	arb := NewArbitrator(fakeCaller{response: `{"model":"gpt-4o","reasoning":"test"}`}, "router-model", "default-model", nil, nil)
	r := New(cache, nil, arb, "default-model", nil, nil)

	result := r.Route(context.Background(), "conv2", bbtypes.ZCommand{}, "what's new today")
	if result.Stage != "arbitrator" || result.Decision.Model != "gpt-4o" {
		t.Fatalf("got %+v", result)
	}
	if cached, ok := cache.Get("conv2"); !ok || cached != "gpt-4o" {
		t.Fatalf("expected arbitrator decision to write cache, got %q %v", cached, ok)
	}
}

func TestRouter_NoStagesConfiguredDefaultsToFallback(t *testing.T) {
	cache := session.New(time.Hour)
	r := New(cache, nil, nil, "default-model", nil, nil)

	result := r.Route(context.Background(), "conv3", bbtypes.ZCommand{}, "hello")
	if !result.Decision.Fallback || result.Decision.Model != "default-model" {
		t.Fatalf("got %+v", result)
	}
}

type fakeCaller struct {
	response string
	err      error
}

func (f fakeCaller) Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error) {
	return f.response, f.err
}
