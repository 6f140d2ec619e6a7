package routing

import "regexp"

// keywordWeight is one entry in the agentic pre-filter's fixed pattern
// list: a compiled regex and the additive score it contributes on match.
type keywordWeight struct {
	pattern *regexp.Regexp
	weight  float64
}

// agenticKeywords is the pre-filter's fixed weight table. It never decides
// routing; it only produces an annotation score surfaced via a wire event
// for auditability, per the routing core's keyword stage.
var agenticKeywords = []keywordWeight{
	{regexp.MustCompile(`(?i)\bsearch\b|\blook\s*up\b|\bgoogle\b`), 0.4},
	{regexp.MustCompile(`(?i)\blatest\b|\brecent\b|\btoday'?s\b|\bcurrent(ly)?\b`), 0.2},
	{regexp.MustCompile(`(?i)\bremember\b|\brecall\b|\bearlier\b|\bpreviously\b`), 0.3},
	{regexp.MustCompile(`(?i)\bcalculate\b|\bcompute\b|\bsolve\b`), 0.2},
	{regexp.MustCompile(`(?i)\brun\b|\bexecute\b|\bfetch\b|\bdownload\b`), 0.3},
	{regexp.MustCompile(`(?i)\bwhat\s+time\b|\bwhat\s+(is\s+the\s+)?date\b`), 0.2},
}

// scoreAgenticKeywords sums every matching pattern's weight, clamped to
// [0, 1].
func scoreAgenticKeywords(text string) float64 {
	var score float64
	for _, kw := range agenticKeywords {
		if kw.pattern.MatchString(text) {
			score += kw.weight
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
