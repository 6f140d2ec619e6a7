// Package jsonrecover implements the five-step JSON recovery ladder shared by
// the harness orchestrator, the ensemble voter, and the operator agent when
// parsing a small model's free-text response as JSON.
//
// Step order is a contract: verbatim parse, markdown-fence strip, trailing
// comma repair, first-balanced-object extraction, then brace-balance repair.
// Any step that succeeds short-circuits the rest.
package jsonrecover

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// Parse attempts to unmarshal text into v, trying each recovery step in
// order. It returns the name of the step that succeeded ("verbatim",
// "fence_strip", "trailing_comma_repair", "balanced_extract",
// "brace_balance_repair") or "" with the last error if every step failed.
func Parse(text string, v any) (step string, err error) {
	candidates := []struct {
		name string
		fn   func(string) (string, bool)
	}{
		{"verbatim", stepVerbatim},
		{"fence_strip", stepFenceStrip},
		{"trailing_comma_repair", stepTrailingCommaRepair},
		{"balanced_extract", stepBalancedExtract},
		{"brace_balance_repair", stepBraceBalanceRepair},
	}

	var lastErr error
	for _, c := range candidates {
		candidate, ok := c.fn(text)
		if !ok {
			continue
		}
		if e := json.Unmarshal([]byte(candidate), v); e == nil {
			return c.name, nil
		} else {
			lastErr = e
		}
	}
	return "", lastErr
}

func stepVerbatim(text string) (string, bool) {
	return strings.TrimSpace(text), true
}

func stepFenceStrip(text string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	// Fall back to line-filtering any stray ``` markers, matching the
	// donor sources' looser fence-stripping behavior.
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return "", false
	}
	lines := strings.Split(trimmed, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n")), true
}

func stepTrailingCommaRepair(text string) (string, bool) {
	obj, ok := firstBalancedObject(text)
	if !ok {
		obj = strings.TrimSpace(text)
	}
	repaired := trailingCommaPattern.ReplaceAllString(obj, "$1")
	return repaired, repaired != ""
}

func stepBalancedExtract(text string) (string, bool) {
	return firstBalancedObject(text)
}

func stepBraceBalanceRepair(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	sub := text[start:]
	open, closeCount := 0, 0
	for _, r := range sub {
		switch r {
		case '{':
			open++
		case '}':
			closeCount++
		}
	}
	missing := open - closeCount
	if missing <= 0 {
		return sub, true
	}
	return sub + strings.Repeat("}", missing), true
}

// firstBalancedObject scans text for the first top-level balanced {...}
// block, respecting string literals so braces inside strings don't confuse
// the brace counter.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
