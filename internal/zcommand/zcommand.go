// Package zcommand parses the z: user directive prefix that lets a client
// bypass routing and force a route, model, or tool for a single message.
package zcommand

import (
	"strings"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// RouteAliases maps a z: directive token to a route name.
var RouteAliases = map[string]string{
	"simple":    "fast",
	"easy":      "fast",
	"fast":      "fast",
	"complex":   "large",
	"hard":      "large",
	"large":     "large",
	"code":      "code",
	"coding":    "code",
	"reason":    "large",
	"reasoning": "large",
	"default":   "default",
}

// ToolDirectives maps a z: directive token to a tool name.
var ToolDirectives = map[string]string{
	"search":    "web_search",
	"websearch": "web_search",
	"memory":    "memory",
	"rag":       "memory",
	"recall":    "memory",
	"calc":      "calculator",
	"math":      "calculator",
	"time":      "datetime",
	"date":      "datetime",
	"clock":     "datetime",
	"sysinfo":   "system_info",
	"system":    "system_info",
	"status":    "system_info",
}

// HelpText is the canned response returned for "z: help".
const HelpText = `Available z-commands:

  ROUTING
    z: simple/easy/fast    -> route to fast model
    z: complex/hard/large  -> route to large model
    z: code/coding         -> route to code model
    z: <model:tag>         -> route to exact model (e.g. llama3:8b)

  TOOLS
    z: search              -> force web search
    z: memory/rag/recall   -> search past conversations
    z: calc/math <expr>    -> evaluate math expression
    z: time/date/clock     -> current time and date
    z: sysinfo/system      -> system resource stats

  CHAINING
    z: complex,search      -> combine multiple directives

  META
    z: help                -> show this help`

// Parse inspects the first line of text for a case-insensitive "z:" prefix
// and, if found, parses its comma-separated directive tokens. If no prefix
// is present, it returns ZCommand{Active: false, Message: text}.
func Parse(text string) bbtypes.ZCommand {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	rest, ok := stripPrefix(firstLine)
	if !ok {
		return bbtypes.ZCommand{Active: false, Message: text}
	}
	// Reattach any lines after the first — they're part of the message.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		rest = rest + text[idx:]
	}
	rest = strings.TrimSpace(rest)

	parts := strings.SplitN(rest, " ", 2)
	if len(parts) == 0 || parts[0] == "" {
		return bbtypes.ZCommand{Active: false, Message: text}
	}

	firstToken := strings.ToLower(strings.TrimRight(parts[0], ","))
	remaining := ""
	if len(parts) > 1 {
		remaining = parts[1]
	}

	if firstToken == "help" {
		return bbtypes.ZCommand{Active: true, IsHelp: true, Message: HelpText, RawDirectives: "help"}
	}

	var route, model, toolInput string
	var tools []string

	tokens := strings.Split(firstToken, ",")
	for _, raw := range tokens {
		directive := strings.TrimSpace(raw)
		if directive == "" {
			continue
		}
		if r, ok := RouteAliases[directive]; ok {
			route = r
			continue
		}
		if t, ok := ToolDirectives[directive]; ok {
			tools = append(tools, t)
			if t == "calculator" && remaining != "" {
				toolInput = remaining
			}
			continue
		}
		if strings.ContainsAny(directive, ":/") {
			model = directive
			continue
		}
		// Unknown token: it's the start of the actual message.
		if remaining != "" {
			remaining = directive + " " + remaining
		} else {
			remaining = directive
		}
	}

	return bbtypes.ZCommand{
		Active:        true,
		Route:         route,
		Model:         model,
		Tools:         tools,
		ToolInput:     toolInput,
		Message:       remaining,
		RawDirectives: firstToken,
	}
}

// stripPrefix reports whether line begins with a case-insensitive "z:"
// (ignoring leading whitespace) and returns the text after it.
func stripPrefix(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) < 2 {
		return "", false
	}
	if (trimmed[0] == 'z' || trimmed[0] == 'Z') && trimmed[1] == ':' {
		return strings.TrimLeft(trimmed[2:], " \t"), true
	}
	return "", false
}
