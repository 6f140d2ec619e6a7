// Package harness implements BeigeBox's goal-directed task orchestrator: a
// planner/dispatch/evaluate loop that fans sub-tasks out to the operator
// agent or the backend dispatcher directly, bounded by a round cap, and
// emits a typed event stream the caller can persist or stream to a client.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beigebox/beigebox/internal/config"
	"github.com/beigebox/beigebox/internal/jsonrecover"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Runner drives harness invocations. OnEvent is mutable per-Runner state,
// so a caller that needs a distinct live event callback per request (an
// HTTP handler, say) should build a fresh Runner per call rather than
// share one across concurrent calls to Run.
type Runner struct {
	caller   Caller
	operator OperatorCaller
	cfg      config.HarnessConfig
	logger   *slog.Logger

	// OnEvent, if set, is called synchronously as each event is emitted,
	// in addition to it being appended to the returned run's Events. Use
	// it to stream progress to a client while the loop is still running.
	OnEvent func(bbtypes.HarnessEvent)

	newID func() string
	now   func() time.Time
}

// New builds a Runner. operator may be nil if no operator agent is wired
// yet; any task targeting "operator" then fails with an error result
// instead of panicking.
func New(caller Caller, operator OperatorCaller, cfg config.HarnessConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		caller:   caller,
		operator: operator,
		cfg:      cfg,
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Run drives the plan/dispatch/evaluate loop for goal against targets (the
// model/operator names the planner is told it may dispatch to) and returns
// the completed HarnessRun, including its full event stream. Run never
// returns an error for task-level failures; those surface as *error*
// events and taskResult entries. It returns an error only if the planner
// or evaluator call itself cannot proceed at all (e.g. no caller configured).
func (r *Runner) Run(ctx context.Context, goal string, targets []string) (bbtypes.HarnessRun, error) {
	start := r.now()
	run := bbtypes.HarnessRun{
		ID:          r.newID(),
		Goal:        goal,
		Targets:     targets,
		DriverModel: r.cfg.PlannerModel,
		RoundCap:    r.roundCap(),
		CreatedAt:   start,
	}

	if r.caller == nil {
		return run, fmt.Errorf("harness: no model caller configured")
	}

	r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventStart, Detail: map[string]any{"goal": goal, "targets": targets}})

	var history []taskResult
	roundCap := r.roundCap()

	for round := 1; round <= roundCap; round++ {
		run.RoundsRun = round

		plan, err := r.plan(ctx, goal, targets, history)
		if err != nil {
			run.ErrorCount++
			r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventError, Round: round, Detail: map[string]any{"stage": "plan", "error": err.Error()}})
			plan = plannerResponse{Action: "finish", Answer: "I was unable to make progress on this goal."}
		}
		r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventPlan, Round: round, Detail: map[string]any{"action": plan.Action, "task_count": len(plan.Tasks)}})

		if plan.Action == "finish" {
			run.FinalAnswer = plan.Answer
			r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventFinish, Round: round, Detail: map[string]any{"answer": plan.Answer}})
			run.WallClockMs = r.now().Sub(start).Milliseconds()
			return run, nil
		}

		tasks := plan.Tasks
		if max := r.maxTasksPerRound(); len(tasks) > max {
			r.logger.Warn("harness: planner dispatched more tasks than allowed, truncating", "requested", len(tasks), "max", max)
			tasks = tasks[:max]
		}

		r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventDispatch, Round: round, Detail: map[string]any{"tasks": tasks}})
		results := r.runTasks(ctx, tasks, r.staggerInterval())
		for _, res := range results {
			if res.Status == "error" {
				run.ErrorCount++
			}
			r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventResult, Round: round, Detail: map[string]any{
				"target": res.Target, "status": res.Status, "output": res.Output, "error": res.Error,
			}})
			history = append(history, res)
		}

		evalResp, err := r.evaluate(ctx, goal, history)
		if err != nil {
			run.ErrorCount++
			r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventError, Round: round, Detail: map[string]any{"stage": "evaluate", "error": err.Error()}})
			continue
		}
		r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventEvaluate, Round: round, Detail: map[string]any{"action": evalResp.Action, "assessment": evalResp.Assessment}})

		if evalResp.Action == "finish" {
			run.FinalAnswer = evalResp.Answer
			r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventFinish, Round: round, Detail: map[string]any{"answer": evalResp.Answer}})
			run.WallClockMs = r.now().Sub(start).Milliseconds()
			return run, nil
		}
	}

	answer, err := r.synthesize(ctx, goal, history)
	if err != nil {
		run.ErrorCount++
		answer = "The task could not be completed within the allotted number of rounds."
	}
	run.FinalAnswer = answer
	run.Capped = true
	r.emit(&run, bbtypes.HarnessEvent{Type: bbtypes.HarnessEventFinish, Round: roundCap, Detail: map[string]any{"answer": answer, "capped": true}})
	run.WallClockMs = r.now().Sub(start).Milliseconds()
	return run, nil
}

func (r *Runner) emit(run *bbtypes.HarnessRun, ev bbtypes.HarnessEvent) {
	ev.Timestamp = r.now()
	run.Events = append(run.Events, ev)
	if r.OnEvent != nil {
		r.OnEvent(ev)
	}
}

func (r *Runner) roundCap() int {
	if r.cfg.MaxRounds > 0 {
		return r.cfg.MaxRounds
	}
	return 8
}

func (r *Runner) maxTasksPerRound() int {
	if r.cfg.MaxTasksPerRound > 0 {
		return r.cfg.MaxTasksPerRound
	}
	return 6
}

func (r *Runner) staggerInterval() time.Duration {
	if r.cfg.StaggerSeconds > 0 {
		return time.Duration(r.cfg.StaggerSeconds * float64(time.Second))
	}
	return 400 * time.Millisecond
}

func (r *Runner) perTaskTimeout() time.Duration {
	if r.cfg.PerTaskTimeoutS > 0 {
		return time.Duration(r.cfg.PerTaskTimeoutS) * time.Second
	}
	return 120 * time.Second
}
