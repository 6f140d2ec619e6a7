package harness

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// runTasks fans tasks out to their targets, staggering each launch by
// stagger to avoid several tasks hitting the same operator endpoint in
// the same instant. Results land at the same index as their task,
// indexed-slice-plus-WaitGroup style, grounded on the donor's broadcast
// fan-out; a panicking task is recovered into an error result rather
// than taking the whole round down with it.
func (r *Runner) runTasks(ctx context.Context, tasks []task, stagger time.Duration) []taskResult {
	results := make([]taskResult, len(tasks))
	done := make(chan int, len(tasks))

	for i, t := range tasks {
		go func(idx int, tk task) {
			defer func() {
				if p := recover(); p != nil {
					results[idx] = taskResult{
						Target: tk.Target,
						Prompt: tk.Prompt,
						Status: "error",
						Error:  fmt.Sprintf("panic: %v", p),
					}
				}
				done <- idx
			}()
			results[idx] = r.runOneTask(ctx, tk)
		}(i, t)

		if stagger > 0 && i < len(tasks)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(stagger):
			}
		}
	}

	for range tasks {
		<-done
	}
	return results
}

// runOneTask resolves a task's target to either the local operator or the
// backend dispatcher and runs it, catching every error into a result so
// the round loop never sees one.
func (r *Runner) runOneTask(ctx context.Context, t task) taskResult {
	timeout := r.perTaskTimeout()
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		output string
		err    error
	)

	switch {
	case t.Target == "operator":
		if r.operator == nil {
			err = fmt.Errorf("operator target requested but no operator is configured")
		} else {
			output, err = r.operator.Run(taskCtx, t.Prompt)
		}
	default:
		model := strings.TrimPrefix(t.Target, "model:")
		if r.caller == nil {
			err = fmt.Errorf("no model caller configured")
		} else {
			output, err = r.caller.Forward(taskCtx, model, taskMessages(t.Prompt))
		}
	}

	if err != nil {
		return taskResult{Target: t.Target, Prompt: t.Prompt, Status: "error", Error: err.Error()}
	}
	return taskResult{Target: t.Target, Prompt: t.Prompt, Output: output, Status: "ok"}
}
