package plugins

import "github.com/beigebox/beigebox/internal/tools"

// All lists every plugin shipped with BeigeBox, in the Go equivalent of the
// donor's "first Tool class found in the file" discovery: each entry's
// fallback name is what a class-name-to-snake-case derivation would have
// produced, overridden by the type's ToolName() where it implements Named.
// A real external plugin would live in its own repo and be wired in at the
// call site the same way — All is simply where this binary's own plugins
// are declared.
func All(wirePath string) []tools.Tool {
	return []tools.Tool{
		&DiceTool{},
		UnitsTool{},
		NewWiretapSummaryTool(wirePath),
	}
}

// RegisterAll registers every plugin in All into registry under its
// resolved name, skipping any whose name is explicitly disabled in
// pluginEnabled (absent = enabled, matching the donor's per-plugin
// "enabled" config default).
func RegisterAll(registry *tools.Registry, wirePath string, pluginEnabled map[string]bool) {
	for _, t := range All(wirePath) {
		name := tools.NameOf(t, "")
		if name == "" {
			continue // no Tool class with a resolvable name — skipped, matching the donor's broken-plugin handling
		}
		if enabled, ok := pluginEnabled[name]; ok && !enabled {
			continue
		}
		registry.Register(name, t)
	}
}
