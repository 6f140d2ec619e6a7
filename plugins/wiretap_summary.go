package plugins

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/beigebox/beigebox/internal/wirelog"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// WiretapSummaryTool reports recent proxy traffic read from the wire log —
// request counts, which models were used, and any errors — as an
// introspection tool that reads BeigeBox's own internals rather than
// calling an external service.
type WiretapSummaryTool struct {
	// WirePath is the wire log file to summarize.
	WirePath string
	// MaxEntries bounds how many trailing entries are read and reported.
	MaxEntries int
}

// ToolName overrides the registry name.
func (WiretapSummaryTool) ToolName() string { return "wiretap_summary" }

// NewWiretapSummaryTool creates a tool reading from path.
func NewWiretapSummaryTool(path string) *WiretapSummaryTool {
	return &WiretapSummaryTool{WirePath: path, MaxEntries: 200}
}

// Run implements tools.Tool.
func (t *WiretapSummaryTool) Run(_ context.Context, query string) (string, error) {
	maxEntries := t.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 200
	}

	events, err := wirelog.ReadAll(t.WirePath)
	if err != nil {
		return "No wiretap data found. Is the proxy running and wiretap enabled?", nil
	}
	if len(events) > maxEntries {
		events = events[len(events)-maxEntries:]
	}
	if len(events) == 0 {
		return "Wiretap is empty.", nil
	}

	var traffic, internal []bbtypes.WireEvent
	for _, e := range events {
		switch e.Direction {
		case bbtypes.WireInbound, bbtypes.WireOutbound:
			traffic = append(traffic, e)
		case bbtypes.WireInternal:
			internal = append(internal, e)
		}
	}

	models := map[string]int{}
	roles := map[string]int{}
	var errorEvents []bbtypes.WireEvent
	cacheHits := 0

	for _, e := range traffic {
		roles[e.Role]++
		if e.Role == "assistant" && e.Model != "" {
			models[e.Model]++
		}
	}
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Content), "error") {
			errorEvents = append(errorEvents, e)
		}
	}
	for _, e := range internal {
		if strings.Contains(e.Content, "session cache hit") {
			cacheHits++
		}
	}

	q := strings.ToLower(query)
	wantErrors := strings.Contains(q, "error") || strings.Contains(q, "fail") ||
		strings.Contains(q, "problem") || strings.Contains(q, "issue")

	var b strings.Builder
	fmt.Fprintf(&b, "**Wiretap — last %d entries**\n\n", len(events))
	fmt.Fprintf(&b, "Traffic events: %d  |  Internal events: %d\n", len(traffic), len(internal))
	fmt.Fprintf(&b, "Messages: %d user, %d assistant, %d system",
		roles["user"], roles["assistant"], roles["system"])

	if len(models) > 0 {
		b.WriteString("\n\n**Models used:**")
		type modelCount struct {
			name  string
			count int
		}
		counts := make([]modelCount, 0, len(models))
		for name, count := range models {
			counts = append(counts, modelCount{name, count})
		}
		sort.Slice(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
		if len(counts) > 8 {
			counts = counts[:8]
		}
		for _, mc := range counts {
			fmt.Fprintf(&b, "\n  %3d×  %s", mc.count, mc.name)
		}
	}

	if cacheHits > 0 {
		fmt.Fprintf(&b, "\n\nSession cache hits: %d", cacheHits)
	}

	if len(errorEvents) > 0 || wantErrors {
		if len(errorEvents) > 0 {
			fmt.Fprintf(&b, "\n\n**Recent errors (%d):**", len(errorEvents))
			start := 0
			if len(errorEvents) > 5 {
				start = len(errorEvents) - 5
			}
			for _, e := range errorEvents[start:] {
				ts := e.Timestamp.UTC().Format("2006-01-02T15:04:05")
				content := e.Content
				if len(content) > 120 {
					content = content[:120]
				}
				fmt.Fprintf(&b, "\n  [%s] %s", ts, content)
			}
		} else {
			b.WriteString("\n\nNo errors found in recent traffic. ✓")
		}
	}

	return b.String(), nil
}
