package harness

import (
	"context"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Caller is the single-turn model contract the planner, evaluator, and
// synthesizer stages need. internal/routing defines its own equivalent for
// the arbitrator stage; this package keeps its own copy rather than import
// routing, since the two concerns have no other reason to depend on
// each other.
type Caller interface {
	Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error)
}

// OperatorCaller is the local-only contract a task targeting "operator"
// is dispatched through. internal/operator doesn't exist yet; callers
// wire a concrete implementation once it does. A nil OperatorCaller
// makes any "operator" task fail with a result, never a panic.
type OperatorCaller interface {
	Run(ctx context.Context, goal string) (string, error)
}

// task is one unit of work the planner asked to dispatch.
type task struct {
	Target    string `json:"target"`
	Prompt    string `json:"prompt"`
	Rationale string `json:"rationale"`
}

// plannerResponse is the JSON shape the planner model must return.
type plannerResponse struct {
	Action string `json:"action"` // "finish" or "dispatch"
	Answer string `json:"answer"`
	Tasks  []task `json:"tasks"`
}

// evaluatorResponse is the JSON shape the evaluator model must return.
type evaluatorResponse struct {
	Action     string `json:"action"` // "finish" or "continue"
	Answer     string `json:"answer"`
	Assessment string `json:"assessment"`
}

// synthesizerResponse is the JSON shape the final synthesizer must return
// when the round cap is hit without the evaluator reaching finish.
type synthesizerResponse struct {
	Answer string `json:"answer"`
}

// taskResult is the outcome of running one dispatched task.
type taskResult struct {
	Target string `json:"target"`
	Prompt string `json:"prompt"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"` // "ok" or "error"
	Error  string `json:"error,omitempty"`
}
