// Package ensemble implements BeigeBox's ensemble voter: dispatch one
// prompt to several models in parallel, then ask a judge model to pick a
// winner from the labeled responses.
package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/beigebox/beigebox/internal/jsonrecover"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Caller is the single-turn model contract the ensemble needs, the same
// shape internal/routing and internal/harness each keep their own copy
// of — no other reason for this package to depend on either.
type Caller interface {
	Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error)
}

// Response is one model's answer to the ensemble prompt.
type Response struct {
	Model     string `json:"model"`
	Text      string `json:"text"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of one ensemble vote.
type Result struct {
	Prompt    string             `json:"prompt"`
	Responses []Response         `json:"responses"`
	Winner    string             `json:"winner"`
	Reasoning string             `json:"reasoning"`
	Events    []bbtypes.HarnessEvent `json:"events"`
}

type judgeResponse struct {
	Winner    string `json:"winner"`
	Reasoning string `json:"reasoning"`
}

// Runner drives one ensemble vote at a time; it holds no per-run state and
// can be reused across calls.
type Runner struct {
	caller     Caller
	judgeModel string
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a Runner. judgeModel is the model asked to pick a winner.
func New(caller Caller, judgeModel string, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{caller: caller, judgeModel: judgeModel, timeout: timeout, logger: logger, now: time.Now}
}

// Run dispatches prompt to every model in models concurrently, then calls
// the judge model to pick a winner. A model that errors still produces a
// Response (with Error set and empty Text); it is not excluded from the
// judge's view, so the judge can see how many backends actually answered.
func (r *Runner) Run(ctx context.Context, prompt string, models []string) (Result, error) {
	result := Result{Prompt: prompt}
	r.emit(&result, bbtypes.HarnessEventStart, map[string]any{"prompt": prompt, "models": models})

	if r.caller == nil {
		return result, fmt.Errorf("ensemble: no model caller configured")
	}
	if len(models) == 0 {
		return result, fmt.Errorf("ensemble: no models given to vote")
	}

	responses := r.dispatchAll(ctx, prompt, models)
	result.Responses = responses
	r.emit(&result, bbtypes.HarnessEventDispatch, map[string]any{"count": len(responses)})
	for _, resp := range responses {
		r.emit(&result, bbtypes.HarnessEventResult, map[string]any{
			"model": resp.Model, "latency_ms": resp.LatencyMs, "error": resp.Error,
		})
	}

	winner, reasoning := r.judge(ctx, prompt, responses)
	result.Winner = winner
	result.Reasoning = reasoning
	r.emit(&result, bbtypes.HarnessEventEvaluate, map[string]any{"winner": winner, "reasoning": reasoning})
	r.emit(&result, bbtypes.HarnessEventFinish, map[string]any{"winner": winner})

	return result, nil
}

func (r *Runner) dispatchAll(ctx context.Context, prompt string, models []string) []Response {
	responses := make([]Response, len(models))
	var wg sync.WaitGroup
	wg.Add(len(models))

	for i, model := range models {
		go func(idx int, m string) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					responses[idx] = Response{Model: m, Error: fmt.Sprintf("panic: %v", p)}
				}
			}()
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			start := r.now()
			text, err := r.caller.Forward(callCtx, m, []bbtypes.ChatMessage{{Role: "user", Content: prompt}})
			elapsed := r.now().Sub(start).Milliseconds()
			if err != nil {
				responses[idx] = Response{Model: m, LatencyMs: elapsed, Error: err.Error()}
				return
			}
			responses[idx] = Response{Model: m, Text: text, LatencyMs: elapsed}
		}(i, model)
	}

	wg.Wait()
	return responses
}

// judge asks the judge model to pick a winner among the labeled responses.
// Any parse failure, call error, or a winner name that doesn't match one
// of the responding models falls back to the first response winning, with
// the reasoning recording why.
func (r *Runner) judge(ctx context.Context, prompt string, responses []Response) (string, string) {
	if len(responses) == 0 {
		return "", "no responses to judge"
	}
	first := responses[0].Model

	if r.judgeModel == "" {
		return first, "no judge model configured, defaulting to the first response"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original prompt:\n%s\n\nLabeled responses:\n", prompt)
	for _, resp := range responses {
		if resp.Error != "" {
			fmt.Fprintf(&b, "[%s] (error: %s)\n", resp.Model, resp.Error)
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", resp.Model, resp.Text)
	}
	b.WriteString(`Pick the best response. Respond with exactly one JSON object: {"winner":"<model label>","reasoning":"..."}`)

	raw, err := r.caller.Forward(ctx, r.judgeModel, []bbtypes.ChatMessage{{Role: "system", Content: b.String()}})
	if err != nil {
		return first, fmt.Sprintf("judge call failed (%v), defaulting to the first response", err)
	}

	var parsed judgeResponse
	if _, err := jsonrecover.Parse(raw, &parsed); err != nil {
		return first, fmt.Sprintf("judge response unparseable (%v), defaulting to the first response", err)
	}

	for _, resp := range responses {
		if resp.Model == parsed.Winner {
			return parsed.Winner, parsed.Reasoning
		}
	}
	return first, fmt.Sprintf("judge named an unknown model %q, defaulting to the first response", parsed.Winner)
}

func (r *Runner) emit(result *Result, t bbtypes.HarnessEventType, detail map[string]any) {
	result.Events = append(result.Events, bbtypes.HarnessEvent{Type: t, Detail: detail, Timestamp: r.now()})
}
