package wirelog

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// ReadAll loads every event from the wire log at path, in file order. Used
// by replay (§4's Replay & Semantic Map) and the `tap` CLI command's
// last-N-before-follow view.
func ReadAll(path string) ([]bbtypes.WireEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []bbtypes.WireEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev bbtypes.WireEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue // tolerate a malformed line; the log is append-only, not transactional
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
