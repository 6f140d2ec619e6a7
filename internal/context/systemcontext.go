package context

import (
	"os"
	"sync"
	"time"
)

// SystemContext lazily loads a markdown file and reloads it whenever its
// modification time changes, so an operator can edit the file on disk
// without restarting the proxy.
type SystemContext struct {
	mu      sync.Mutex
	path    string
	modTime time.Time
	text    string
}

// NewSystemContext creates a system context reader for path. The file is
// not read until the first call to Text.
func NewSystemContext(path string) *SystemContext {
	return &SystemContext{path: path}
}

// Text returns the file's current contents, reloading from disk if its
// modification time has changed since the last read. Returns an empty
// string (never an error) if the path is empty or the file doesn't exist,
// so a missing global-context file degrades to a no-op rather than
// breaking every request.
func (s *SystemContext) Text() string {
	if s.path == "" {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return s.text
	}
	if info.ModTime().Equal(s.modTime) && s.text != "" {
		return s.text
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s.text
	}
	s.text = string(data)
	s.modTime = info.ModTime()
	return s.text
}

// Inject merges the global system context into a chat-completion messages
// array: if the first message is a system message, the context text is
// prepended to it separated by a blank line; otherwise a new leading
// system message is inserted. If the context text is empty, messages is
// returned unchanged.
func (s *SystemContext) Inject(messages []map[string]any) []map[string]any {
	text := s.Text()
	if text == "" {
		return messages
	}

	if len(messages) > 0 {
		if role, _ := messages[0]["role"].(string); role == "system" {
			existing, _ := messages[0]["content"].(string)
			merged := make([]map[string]any, len(messages))
			copy(merged, messages)
			merged[0] = map[string]any{
				"role":    "system",
				"content": text + "\n\n" + existing,
			}
			return merged
		}
	}

	out := make([]map[string]any, 0, len(messages)+1)
	out = append(out, map[string]any{"role": "system", "content": text})
	out = append(out, messages...)
	return out
}
