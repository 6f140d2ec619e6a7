package routing

import (
	"context"
	"errors"
	"testing"
)

func TestArbitrator_Decide_Success(t *testing.T) {
	caller := fakeCaller{response: "```json\n{\"model\":\"large\",\"needs_search\":true,\"reasoning\":\"why not\"}\n```"}
	a := NewArbitrator(caller, "router-model", "default-model", map[string]string{"large": "gpt-4o"}, nil)

	decision, err := a.Decide(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Model != "gpt-4o" || !decision.NeedsSearch {
		t.Fatalf("got %+v", decision)
	}
}

func TestArbitrator_Decide_UnknownRouteWithColonIsLiteralModel(t *testing.T) {
	caller := fakeCaller{response: `{"model":"llama3:8b"}`}
	a := NewArbitrator(caller, "router-model", "default-model", map[string]string{"large": "gpt-4o"}, nil)

	decision, err := a.Decide(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Model != "llama3:8b" {
		t.Fatalf("got %q", decision.Model)
	}
}

func TestArbitrator_Decide_UnknownRouteWithoutColonFallsBackToDefault(t *testing.T) {
	caller := fakeCaller{response: `{"model":"not_a_route"}`}
	a := NewArbitrator(caller, "router-model", "default-model", map[string]string{"large": "gpt-4o"}, nil)

	decision, err := a.Decide(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Model != "default-model" {
		t.Fatalf("got %q", decision.Model)
	}
}

func TestArbitrator_Decide_CallFailureFallsBack(t *testing.T) {
	caller := fakeCaller{err: errors.New("boom")}
	a := NewArbitrator(caller, "router-model", "default-model", nil, nil)

	decision, err := a.Decide(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected a classifier fallback error")
	}
	if !decision.Fallback {
		t.Fatalf("expected fallback decision, got %+v", decision)
	}
}

func TestArbitrator_Decide_UnparseableResponseFallsBack(t *testing.T) {
	caller := fakeCaller{response: "not json at all {{{"}
	a := NewArbitrator(caller, "router-model", "default-model", nil, nil)

	decision, err := a.Decide(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected a classifier fallback error")
	}
	if !decision.Fallback {
		t.Fatalf("expected fallback decision, got %+v", decision)
	}
}
