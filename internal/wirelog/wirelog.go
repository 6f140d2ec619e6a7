// Package wirelog writes the structured, append-only JSONL record of
// everything that crosses the proxy's wire: inbound/outbound messages,
// internal routing decisions, tool fires, and errors.
package wirelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// maxContentChars is the content-field truncation threshold; above it, the
// middle is replaced with an ellipsis note, keeping prefix+suffix.
const maxContentChars = 2000

// Log is a line-buffered, mutex-serialized JSONL appender.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// Open creates (or appends to) the wire log at path, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

// Emit truncates ev.Content per the middle-ellipsis rule, truncates the
// conversation id to a 16-char prefix, and appends the event as one JSON
// line. Emit never returns an error to a caller that can't usefully react
// to one; write failures are reported so the caller can log them, but the
// request pipeline must never block on a wire-log failure.
func (l *Log) Emit(ev bbtypes.WireEvent) error {
	if len(ev.ConversationID) > 16 {
		ev.ConversationID = ev.ConversationID[:16]
	}
	ev.Length = len(ev.Content)
	ev.Content = truncate(ev.Content)

	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(line); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

func truncate(content string) string {
	if len(content) <= maxContentChars {
		return content
	}
	head := content[:1000]
	tail := content[len(content)-1000:]
	omitted := len(content) - 2000
	return fmt.Sprintf("%s\n\n[... %d chars truncated ...]\n\n%s", head, omitted, tail)
}
