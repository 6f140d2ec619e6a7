package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DateTimeTool answers "what time is it" queries, either for a named
// timezone mentioned in the query or, failing that, for the configured
// local offset plus UTC and a unix timestamp. It uses a fixed table of
// numeric UTC offsets rather than IANA tz-database lookups, matching the
// donor's approach: no DST awareness, just the offsets a chat user is
// likely to type or mean.
type DateTimeTool struct {
	// LocalOffsetHours is the UTC offset (can be fractional, e.g. 5.5 for
	// India) used when no timezone name matches the query.
	LocalOffsetHours float64
}

// NewDateTimeTool creates a DateTimeTool with the given local offset.
func NewDateTimeTool(localOffsetHours float64) *DateTimeTool {
	return &DateTimeTool{LocalOffsetHours: localOffsetHours}
}

// timezoneOffsets maps timezone abbreviations and city names to their UTC
// offset in hours. Ported verbatim from the donor's TIMEZONE_OFFSETS table.
var timezoneOffsets = map[string]float64{
	"utc": 0, "gmt": 0,
	"est": -5, "edt": -4, "eastern": -5,
	"cst": -6, "cdt": -5, "central": -6,
	"mst": -7, "mdt": -6, "mountain": -7,
	"pst": -8, "pdt": -7, "pacific": -8,
	"akst": -9, "akdt": -8, "alaska": -9,
	"hst": -10, "hawaii": -10,
	"cet": 1, "cest": 2, "central european": 1,
	"eet": 2, "eest": 3, "eastern european": 2,
	"bst": 1, "london": 0, "uk": 0,
	"msk": 3, "moscow": 3,
	"ist": 5.5, "india": 5.5, "mumbai": 5.5, "delhi": 5.5,
	"jst": 9, "japan": 9, "tokyo": 9,
	"kst": 9, "korea": 9, "seoul": 9,
	"cst china": 8, "china": 8, "beijing": 8, "shanghai": 8,
	"sgt": 8, "singapore": 8,
	"aest": 10, "aedt": 11, "sydney": 10, "melbourne": 10,
	"awst": 8, "perth": 8,
	"nzst": 12, "nzdt": 13, "auckland": 12,
	"cat": 2, "eat": 3, "wat": 1,
	"cairo": 2, "johannesburg": 2, "nairobi": 3, "lagos": 1,
	"brt": -3, "sao paulo": -3, "buenos aires": -3,
	"new york": -5, "los angeles": -8, "chicago": -6, "denver": -7,
	"ann arbor": -5, "detroit": -5,
	"paris": 1, "berlin": 1, "madrid": 1, "rome": 1, "amsterdam": 1,
	"dubai": 4, "gmt+5:30": 5.5,
}

// Run implements Tool.
func (t *DateTimeTool) Run(_ context.Context, query string) (string, error) {
	return t.RunAt(time.Now(), query), nil
}

// RunAt is Run with an injected clock, used by tests.
func (t *DateTimeTool) RunAt(now time.Time, query string) string {
	q := strings.ToLower(strings.TrimSpace(query))

	for name, offset := range timezoneOffsets {
		if q != "" && strings.Contains(q, name) {
			local := now.UTC().Add(time.Duration(offset * float64(time.Hour)))
			return fmt.Sprintf("Current time in %s: %s (UTC%+.1f)",
				strings.ToUpper(name), local.Format("03:04 PM, Monday January 02, 2006"), offset)
		}
	}

	local := now.UTC().Add(time.Duration(t.LocalOffsetHours * float64(time.Hour)))
	utc := now.UTC()
	return fmt.Sprintf("Local time: %s (UTC%+.1f)\nUTC time: %s\nUnix timestamp: %d",
		local.Format("03:04 PM, Monday January 02, 2006"), t.LocalOffsetHours,
		utc.Format("03:04 PM, Monday January 02, 2006"), now.Unix())
}
