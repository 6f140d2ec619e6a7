package ensemble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// fakeCaller returns a canned response per model, recording every model it
// was asked to serve.
type fakeCaller struct {
	byModel map[string]string
	errFor  map[string]error
}

func (f *fakeCaller) Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error) {
	if err, ok := f.errFor[model]; ok {
		return "", err
	}
	return f.byModel[model], nil
}

func TestRunner_Run_JudgePicksNamedWinner(t *testing.T) {
	caller := &fakeCaller{byModel: map[string]string{
		"model-a": "a response",
		"model-b": "b response",
		"judge":   `{"winner":"model-b","reasoning":"more thorough"}`,
	}}
	r := New(caller, "judge", time.Second, nil)

	result, err := r.Run(context.Background(), "which is better?", []string{"model-a", "model-b"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Winner != "model-b" {
		t.Fatalf("got winner %q", result.Winner)
	}
	if result.Reasoning != "more thorough" {
		t.Fatalf("got reasoning %q", result.Reasoning)
	}
	if len(result.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(result.Responses))
	}
}

func TestRunner_Run_JudgeMismatchFallsBackToFirst(t *testing.T) {
	caller := &fakeCaller{byModel: map[string]string{
		"model-a": "a response",
		"model-b": "b response",
		"judge":   `{"winner":"not-a-real-model","reasoning":"confused"}`,
	}}
	r := New(caller, "judge", time.Second, nil)

	result, err := r.Run(context.Background(), "prompt", []string{"model-a", "model-b"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Winner != "model-a" {
		t.Fatalf("expected fallback to first model, got %q", result.Winner)
	}
}

func TestRunner_Run_JudgeParseFailureFallsBackToFirst(t *testing.T) {
	caller := &fakeCaller{byModel: map[string]string{
		"model-a": "a response",
		"model-b": "b response",
		"judge":   `not json at all`,
	}}
	r := New(caller, "judge", time.Second, nil)

	result, err := r.Run(context.Background(), "prompt", []string{"model-a", "model-b"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Winner != "model-a" {
		t.Fatalf("expected fallback to first model, got %q", result.Winner)
	}
}

func TestRunner_Run_ModelErrorStillProducesResponse(t *testing.T) {
	caller := &fakeCaller{
		byModel: map[string]string{"model-a": "a response", "judge": `{"winner":"model-a","reasoning":"only one answered"}`},
		errFor:  map[string]error{"model-b": errors.New("backend down")},
	}
	r := New(caller, "judge", time.Second, nil)

	result, err := r.Run(context.Background(), "prompt", []string{"model-a", "model-b"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Responses) != 2 {
		t.Fatalf("expected 2 responses even with one error, got %d", len(result.Responses))
	}
	var sawError bool
	for _, resp := range result.Responses {
		if resp.Model == "model-b" && resp.Error != "" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected model-b's response to carry its error, got %+v", result.Responses)
	}
}

func TestRunner_Run_NoJudgeConfiguredDefaultsToFirst(t *testing.T) {
	caller := &fakeCaller{byModel: map[string]string{"model-a": "a", "model-b": "b"}}
	r := New(caller, "", time.Second, nil)

	result, err := r.Run(context.Background(), "prompt", []string{"model-a", "model-b"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Winner != "model-a" {
		t.Fatalf("got %q", result.Winner)
	}
}

func TestRunner_Run_NoCallerConfiguredReturnsError(t *testing.T) {
	r := New(nil, "judge", time.Second, nil)
	if _, err := r.Run(context.Background(), "prompt", []string{"model-a"}); err == nil {
		t.Fatal("expected an error when no caller is configured")
	}
}

func TestRunner_Run_NoModelsReturnsError(t *testing.T) {
	r := New(&fakeCaller{}, "judge", time.Second, nil)
	if _, err := r.Run(context.Background(), "prompt", nil); err == nil {
		t.Fatal("expected an error when no models are given")
	}
}
