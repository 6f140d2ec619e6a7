package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/beigebox/beigebox/internal/jsonrecover"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// taskMessages builds the single-turn message list a task's own model call
// is sent with; tasks carry no conversation history of their own.
func taskMessages(prompt string) []bbtypes.ChatMessage {
	return []bbtypes.ChatMessage{{Role: "user", Content: prompt}}
}

func historyBlock(history []taskResult) string {
	if len(history) == 0 {
		return "(no results yet)"
	}
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "- target=%s status=%s", h.Target, h.Status)
		if h.Status == "error" {
			fmt.Fprintf(&b, " error=%q\n", h.Error)
		} else {
			fmt.Fprintf(&b, " output=%q\n", truncate(h.Output, 800))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

func (r *Runner) plan(ctx context.Context, goal string, targets []string, history []taskResult) (plannerResponse, error) {
	system := fmt.Sprintf(`You are the planner stage of a task-dispatch loop. Goal:
%s

Available dispatch targets: %s. Use "operator" for anything requiring tool use (file access, shell, search);
use a target name directly to send a sub-task straight to that model.

Prior results this run:
%s

Respond with exactly one JSON object. Either:
{"action":"finish","answer":"..."}
or:
{"action":"dispatch","tasks":[{"target":"...","prompt":"...","rationale":"..."}]}`,
		goal, strings.Join(targets, ", "), historyBlock(history))

	raw, err := r.caller.Forward(ctx, r.cfg.PlannerModel, []bbtypes.ChatMessage{{Role: "system", Content: system}})
	if err != nil {
		return plannerResponse{}, fmt.Errorf("planner call failed: %w", err)
	}

	var parsed plannerResponse
	if _, err := jsonrecover.Parse(raw, &parsed); err != nil {
		return plannerResponse{}, fmt.Errorf("planner response unparseable: %w", err)
	}
	return parsed, nil
}

func (r *Runner) evaluate(ctx context.Context, goal string, history []taskResult) (evaluatorResponse, error) {
	system := fmt.Sprintf(`You are the evaluator stage of a task-dispatch loop. Goal:
%s

All results so far:
%s

Decide whether the goal has been satisfied. Respond with exactly one JSON object:
{"action":"finish","answer":"...","assessment":"..."}
or:
{"action":"continue","assessment":"..."}`,
		goal, historyBlock(history))

	raw, err := r.caller.Forward(ctx, r.cfg.EvaluatorModel, []bbtypes.ChatMessage{{Role: "system", Content: system}})
	if err != nil {
		return evaluatorResponse{}, fmt.Errorf("evaluator call failed: %w", err)
	}

	var parsed evaluatorResponse
	if _, err := jsonrecover.Parse(raw, &parsed); err != nil {
		return evaluatorResponse{}, fmt.Errorf("evaluator response unparseable: %w", err)
	}
	return parsed, nil
}

// synthesize is called once, only when the round cap is hit without the
// evaluator ever reaching finish; it asks the evaluator model to commit to
// a best-effort answer from whatever history exists.
func (r *Runner) synthesize(ctx context.Context, goal string, history []taskResult) (string, error) {
	system := fmt.Sprintf(`You are the final-answer stage of a task-dispatch loop that has run out of
rounds. Goal:
%s

All results gathered:
%s

Give the best answer you can from what's here. Respond with exactly one JSON object:
{"answer":"..."}`,
		goal, historyBlock(history))

	raw, err := r.caller.Forward(ctx, r.cfg.EvaluatorModel, []bbtypes.ChatMessage{{Role: "system", Content: system}})
	if err != nil {
		return "", fmt.Errorf("synthesizer call failed: %w", err)
	}

	var parsed synthesizerResponse
	if _, err := jsonrecover.Parse(raw, &parsed); err != nil {
		return "", fmt.Errorf("synthesizer response unparseable: %w", err)
	}
	return parsed.Answer, nil
}
