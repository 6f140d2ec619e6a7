package tools

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/beigebox/beigebox/internal/berrors"
)

// Recorder is the subset of internal/observability's Metrics used by the
// registry, kept as a small local interface so this package never imports
// observability directly.
type Recorder interface {
	RecordToolExecution(toolName, status string, durationSeconds float64)
}

// Notifier fires a best-effort, never-blocking event for every tool
// invocation. Mirrors the donor's webhook ToolNotifier.
type Notifier interface {
	Notify(toolName, input, output string, durationMs float64)
}

// Registry is the flat name→tool namespace shared by built-ins and
// auto-discovered plugins.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string // registration order, for List()
	logger   *slog.Logger
	recorder Recorder
	notifier Notifier
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder wires Prometheus instrumentation.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// WithNotifier wires a webhook notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: slog.Default().With("component", "tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds tool under name, overwriting any existing registration
// under the same name (the last registration wins, matching the donor's
// dict-assignment semantics).
func (r *Registry) Register(name string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	r.logger.Debug("registered tool", "name", name)
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool name, in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Run invokes the named tool, timing the call and firing the optional
// recorder and notifier. Returns a *berrors.ToolError if the tool is
// unknown or its Run call fails; the caller wraps the result as a system
// message either way.
func (r *Registry) Run(ctx context.Context, name, input string) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		err := &berrors.ToolError{Tool: name, Err: errUnknownTool}
		r.record(name, "not_found", 0)
		return "", err
	}

	start := time.Now()
	output, err := tool.Run(ctx, input)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		err = &berrors.ToolError{Tool: name, Err: err}
	}
	r.record(name, status, elapsed.Seconds())

	if r.notifier != nil {
		go r.notifier.Notify(name, input, output, float64(elapsed.Microseconds())/1000.0)
	}
	return output, err
}

func (r *Registry) record(name, status string, seconds float64) {
	if r.recorder != nil {
		r.recorder.RecordToolExecution(name, status, seconds)
	}
}

var errUnknownTool = unknownToolError{}

type unknownToolError struct{}

func (unknownToolError) Error() string { return "no tool registered under that name" }
