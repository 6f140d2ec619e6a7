package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/beigebox/beigebox/internal/hooks"
	"github.com/beigebox/beigebox/internal/summarizer"
	"github.com/beigebox/beigebox/internal/zcommand"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// shortCircuit is returned by prepare when the pipeline must answer
// without ever reaching a backend: a help directive or a hook block.
// Neither case persists anything.
type shortCircuit struct {
	content string
}

// prepared is everything dispatch and persistence need once steps 1-9 of
// the per-request pipeline have run.
type prepared struct {
	conversationID string
	model          string
	messages       []map[string]any
	genParams      map[string]any
	synthetic      bool
	decision       bbtypes.Decision
	rc             *hooks.RequestContext
	flightID       string
	startedAt      time.Time
}

// prepare runs steps 1-9 of the proxy's per-request pipeline (spec.md
// §4.1): identity extraction, directive parsing, pre-request hooks, forced
// tools, hybrid routing, summarization, global context, and the generation
// parameter overlay. It returns either a prepared request ready for
// dispatch, or a shortCircuit answer that skips the backend entirely.
func (p *Proxy) prepare(ctx context.Context, in *inboundRequest) (*prepared, *shortCircuit) {
	startedAt := p.now()
	conversationID := in.conversationID
	if conversationID == "" {
		conversationID = p.newID()
	}

	flightID := p.newID()
	if p.flights != nil {
		p.flights.Start(flightID, conversationID, in.model)
	}
	stage := func(name string, since time.Time) {
		if p.flights != nil {
			p.flights.Stage(flightID, name, time.Since(since), nil)
		}
	}

	messages := append([]map[string]any(nil), in.messages...)
	uIdx := lastUserIndex(messages)
	latestUserMessage := ""
	if uIdx >= 0 {
		latestUserMessage = contentOf(messages[uIdx])
	}

	// Step 2: directive parsing.
	t := p.now()
	directive := zcommand.Parse(latestUserMessage)
	if directive.IsHelp {
		stage("directive", t)
		return nil, &shortCircuit{content: directive.Message}
	}
	if directive.Active && uIdx >= 0 {
		messages[uIdx] = map[string]any{"role": "user", "content": directive.Message}
		latestUserMessage = directive.Message
	}
	stage("directive", t)

	// Step 3: pre-request hooks.
	t = p.now()
	rc := &hooks.RequestContext{
		Stage:             hooks.StagePreRequest,
		ConversationID:    conversationID,
		Model:             in.model,
		LatestUserMessage: latestUserMessage,
		Body:              in.raw,
		Timestamp:         startedAt,
	}
	if p.hooks != nil {
		p.hooks.Run(hooks.StagePreRequest, rc)
	}
	stage("pre_request_hooks", t)
	if reason, blocked := rc.Blocked(); blocked {
		return nil, &shortCircuit{content: reason}
	}

	// Step 4: synthetic flag. Remembered, doesn't short-circuit anything.
	synthetic := rc.Synthetic()

	// Step 5: forced tools from the directive.
	t = p.now()
	if len(directive.Tools) > 0 && p.toolsReg != nil {
		var outputs []string
		for _, name := range directive.Tools {
			input := directive.ToolInput
			if input == "" {
				input = latestUserMessage
			}
			out, err := p.toolsReg.Run(ctx, name, input)
			if err != nil {
				outputs = append(outputs, err.Error())
				continue
			}
			outputs = append(outputs, out)
		}
		messages = injectToolResults(messages, outputs)
	}
	stage("forced_tools", t)

	// Step 6: hybrid routing.
	t = p.now()
	result := p.router.Route(ctx, conversationID, directive, latestUserMessage)
	decision := result.Decision
	stage("routing:"+result.Stage, t)

	model := decision.Model
	if model == "" {
		model = in.model
	}
	if model == "" {
		model = p.defaultModel
	}
	rc.Model = model
	rc.Decision = &decision

	if p.toolsReg != nil {
		var extra []string
		if decision.NeedsSearch {
			if out, err := p.toolsReg.Run(ctx, "web_search", latestUserMessage); err == nil {
				extra = append(extra, out)
			}
		}
		if decision.NeedsRAG {
			if out, err := p.toolsReg.Run(ctx, "memory", latestUserMessage); err == nil {
				extra = append(extra, out)
			}
		}
		for _, name := range decision.Tools {
			if containsString(directive.Tools, name) {
				continue // already run as a forced directive tool
			}
			if out, err := p.toolsReg.Run(ctx, name, latestUserMessage); err == nil {
				extra = append(extra, out)
			}
		}
		if len(extra) > 0 {
			messages = injectToolResults(messages, extra)
		}
	}

	// Step 7: auto-summarize if over budget.
	t = p.now()
	if p.dispatcher != nil && p.sumCfg.TokenBudget > 0 {
		messages = summarizer.Summarize(ctx, messages, p.sumCfg, dispatcherCaller{p.dispatcher})
	}
	stage("summarize", t)

	// Step 8: global system context.
	t = p.now()
	if p.sysctx != nil {
		messages = p.sysctx.Inject(messages)
	}
	stage("global_context", t)

	// Step 9: generation parameter overlay.
	t = p.now()
	genParams := p.genOverlay.Apply(extractGenParams(in.raw))
	stage("gen_overlay", t)

	return &prepared{
		conversationID: conversationID,
		model:          model,
		messages:       messages,
		genParams:      genParams,
		synthetic:      synthetic,
		decision:       decision,
		rc:             rc,
		flightID:       flightID,
		startedAt:      startedAt,
	}, nil
}

// injectToolResults appends one system message (tool outputs, newline
// joined) immediately before the final user message, per spec.md §4.1 step
// 5's "just before the final user message" placement.
func injectToolResults(messages []map[string]any, outputs []string) []map[string]any {
	if len(outputs) == 0 {
		return messages
	}
	content := ""
	for i, o := range outputs {
		if i > 0 {
			content += "\n\n"
		}
		content += o
	}
	toolMsg := map[string]any{"role": "system", "content": fmt.Sprintf("Tool output:\n%s", content)}

	idx := lastUserIndex(messages)
	if idx < 0 {
		return append(messages, toolMsg)
	}
	out := make([]map[string]any, 0, len(messages)+1)
	out = append(out, messages[:idx]...)
	out = append(out, toolMsg)
	out = append(out, messages[idx:]...)
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
