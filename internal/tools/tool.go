// Package tools implements BeigeBox's tool registry: a flat name→tool
// namespace shared by built-ins, the memory (conversation-recall) tool, and
// auto-discovered plugins, all behind one uniform contract.
package tools

import "context"

// Tool is the uniform contract every built-in and plugin tool satisfies.
// Run takes the tool's free-text input (the decision LLM's tool_input, or a
// directive's raw tool argument) and returns free-text output suitable for
// wrapping as a system message.
type Tool interface {
	Run(ctx context.Context, input string) (string, error)
}

// Func adapts a plain function to a Tool, for built-ins with no state.
type Func func(ctx context.Context, input string) (string, error)

// Run calls f.
func (f Func) Run(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Named is satisfied by a plugin that wants to choose its own registry name
// instead of one derived from its Go type name. Mirrors the donor's
// PLUGIN_NAME module constant.
type Named interface {
	ToolName() string
}

// NameOf returns t's self-reported name if it implements Named, otherwise
// fallback. Used by plugin auto-discovery to mirror the donor's
// PLUGIN_NAME-overrides-class-name-derived-default rule.
func NameOf(t Tool, fallback string) string {
	if n, ok := t.(Named); ok {
		if name := n.ToolName(); name != "" {
			return name
		}
	}
	return fallback
}
