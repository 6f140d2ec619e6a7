package operator

import (
	"context"
	"errors"
	"testing"

	"github.com/beigebox/beigebox/internal/tools"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

type fakeCaller struct {
	responses []string
	calls     int
}

func (f *fakeCaller) Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		return `{"thought":"done","answer":"ran out of script"}`, nil
	}
	return f.responses[idx], nil
}

func echoTool(ctx context.Context, input string) (string, error) {
	return "echo: " + input, nil
}

func TestAgent_Run_AnswersImmediately(t *testing.T) {
	caller := &fakeCaller{responses: []string{`{"thought":"I know this","answer":"42"}`}}
	a := New(caller, tools.NewRegistry(), "model", 8)

	answer, err := a.Run(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "42" {
		t.Fatalf("got %q", answer)
	}
}

func TestAgent_Run_CallsToolThenAnswers(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register("echo", tools.Func(echoTool))
	caller := &fakeCaller{responses: []string{
		`{"thought":"need to check","tool":"echo","input":"hello"}`,
		`{"thought":"got it","answer":"the echo said hello"}`,
	}}
	a := New(caller, reg, "model", 8)

	answer, err := a.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "the echo said hello" {
		t.Fatalf("got %q", answer)
	}
}

func TestAgent_Run_UnknownToolBecomesErrorMessageAndContinues(t *testing.T) {
	reg := tools.NewRegistry()
	caller := &fakeCaller{responses: []string{
		`{"thought":"try it","tool":"nonexistent","input":"x"}`,
		`{"thought":"ok give up","answer":"could not find tool"}`,
	}}
	a := New(caller, reg, "model", 8)

	answer, err := a.Run(context.Background(), "do something")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "could not find tool" {
		t.Fatalf("got %q", answer)
	}
}

func TestAgent_Run_FirstParseFailureGetsCorrectiveReprompt(t *testing.T) {
	caller := &fakeCaller{responses: []string{
		"this is not json",
		`{"thought":"sorry","answer":"corrected"}`,
	}}
	a := New(caller, tools.NewRegistry(), "model", 8)

	answer, err := a.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "corrected" {
		t.Fatalf("got %q", answer)
	}
	if caller.calls != 2 {
		t.Fatalf("expected exactly 2 calls (original + corrective), got %d", caller.calls)
	}
}

func TestAgent_Run_SecondConsecutiveParseFailureReturnsRawText(t *testing.T) {
	caller := &fakeCaller{responses: []string{
		"still not json",
		"again not json, give up now",
	}}
	a := New(caller, tools.NewRegistry(), "model", 8)

	answer, err := a.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "again not json, give up now" {
		t.Fatalf("expected raw text fallback, got %q", answer)
	}
}

func TestAgent_Run_NoCallerConfiguredReturnsError(t *testing.T) {
	a := New(nil, tools.NewRegistry(), "model", 8)
	if _, err := a.Run(context.Background(), "question"); err == nil {
		t.Fatal("expected an error when no caller is configured")
	}
}

func TestAgent_Run_ModelCallErrorPropagates(t *testing.T) {
	caller := &erroringCaller{err: errors.New("upstream down")}
	a := New(caller, tools.NewRegistry(), "model", 8)
	if _, err := a.Run(context.Background(), "question"); err == nil {
		t.Fatal("expected the model call error to propagate")
	}
}

type erroringCaller struct{ err error }

func (e *erroringCaller) Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error) {
	return "", e.err
}
