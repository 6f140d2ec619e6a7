// Package operator implements BeigeBox's operator agent: a JSON-tool-
// calling loop, independent of the routing core, that answers a single
// question by iteratively calling tools from the tool registry.
package operator

import (
	"context"
	"fmt"
	"strings"

	"github.com/beigebox/beigebox/internal/jsonrecover"
	"github.com/beigebox/beigebox/internal/tools"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Caller is the single-turn model contract the operator loop needs.
type Caller interface {
	Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error)
}

// step is the JSON shape the model must respond with on every iteration:
// exactly one of (Tool, Input) or Answer is expected to be set.
type step struct {
	Thought string `json:"thought"`
	Tool    string `json:"tool,omitempty"`
	Input   string `json:"input,omitempty"`
	Answer  string `json:"answer,omitempty"`
}

const correctivePrompt = `Your last response was not valid JSON. Respond with exactly one JSON object,
either {"thought":"...","tool":"...","input":"..."} to call a tool, or
{"thought":"...","answer":"..."} to finish. No other text.`

// Agent drives one operator invocation at a time; it holds no per-run
// state and can be reused across calls.
type Agent struct {
	caller    Caller
	tools     *tools.Registry
	model     string
	maxIters  int
}

// New builds an Agent. maxIters <= 0 defaults to 8, matching
// config.OperatorConfig's documented default.
func New(caller Caller, toolReg *tools.Registry, model string, maxIters int) *Agent {
	if maxIters <= 0 {
		maxIters = 8
	}
	return &Agent{caller: caller, tools: toolReg, model: model, maxIters: maxIters}
}

// Run answers question by iterating the think/call-tool/observe loop up to
// maxIters times. It returns the final answer text. A parse failure on the
// very first iteration gets one corrective reprompt; a second consecutive
// parse failure returns the raw model text verbatim rather than erroring,
// per spec.md's explicit fallback rule.
func (a *Agent) Run(ctx context.Context, question string) (string, error) {
	if a.caller == nil {
		return "", fmt.Errorf("operator: no model caller configured")
	}

	messages := []bbtypes.ChatMessage{
		{Role: "system", Content: a.systemPrompt()},
		{Role: "user", Content: question},
	}

	consecutiveParseFailures := 0

	for i := 0; i < a.maxIters; i++ {
		raw, err := a.caller.Forward(ctx, a.model, messages)
		if err != nil {
			return "", fmt.Errorf("operator: model call failed: %w", err)
		}

		var s step
		if _, err := jsonrecover.Parse(raw, &s); err != nil {
			consecutiveParseFailures++
			if consecutiveParseFailures >= 2 {
				return raw, nil
			}
			messages = append(messages,
				bbtypes.ChatMessage{Role: "assistant", Content: raw},
				bbtypes.ChatMessage{Role: "user", Content: correctivePrompt},
			)
			continue
		}
		consecutiveParseFailures = 0

		if s.Tool == "" {
			return s.Answer, nil
		}

		messages = append(messages, bbtypes.ChatMessage{Role: "assistant", Content: raw})
		observation := a.runTool(ctx, s.Tool, s.Input)
		messages = append(messages, bbtypes.ChatMessage{Role: "user", Content: observation})
	}

	return "", fmt.Errorf("operator: iteration cap (%d) reached without an answer", a.maxIters)
}

func (a *Agent) runTool(ctx context.Context, name, input string) string {
	if a.tools == nil {
		return fmt.Sprintf("Error: unknown tool %q. Available: (none configured)", name)
	}
	if _, ok := a.tools.Get(name); !ok {
		return fmt.Sprintf("Error: unknown tool %q. Available: %s", name, strings.Join(a.tools.List(), ", "))
	}
	output, err := a.tools.Run(ctx, name, input)
	if err != nil {
		return fmt.Sprintf("Error: tool %q failed: %v", name, err)
	}
	return output
}

func (a *Agent) systemPrompt() string {
	var names []string
	if a.tools != nil {
		names = a.tools.List()
	}
	var b strings.Builder
	b.WriteString("You are an operator agent answering a question by calling tools.\n")
	b.WriteString("Available tools: " + strings.Join(names, ", ") + "\n")
	b.WriteString(`On every turn, respond with exactly one JSON object: either
{"thought":"...","tool":"<tool name>","input":"..."} to call a tool, or
{"thought":"...","answer":"..."} once you can answer the question.`)
	return b.String()
}
