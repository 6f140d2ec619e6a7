package hooks

import "strings"

// syntheticMarkers are substrings found in auto-generated follow-up/title
// requests some OpenAI-compatible frontends send after every real turn.
var syntheticMarkers = []string{
	"### Task:",
	"Suggest 3-5 relevant follow-up",
	"suggest follow-up questions",
	"Generate a concise",
}

// FilterSynthetic tags frontend-generated follow-up/title requests so the
// proxy can skip persisting them to the message log. It never blocks the
// request — the backend still answers it, only the bookkeeping is skipped.
func FilterSynthetic(rc *RequestContext) error {
	content := rc.LatestUserMessage
	if content == "" {
		return nil
	}
	for _, marker := range syntheticMarkers {
		if strings.Contains(content, marker) {
			rc.MarkSynthetic()
			return nil
		}
	}
	return nil
}
