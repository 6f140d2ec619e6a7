// Package berrors defines the error taxonomy BeigeBox's components use to
// distinguish transient from permanent failures without string-matching.
package berrors

import "fmt"

// TransientBackendError wraps a backend failure that the retry wrapper should
// retry: timeouts, connection refused, 429, and 5xx.
type TransientBackendError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error (%s, status %d): %v", e.Backend, e.StatusCode, e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// PermanentBackendError wraps a backend failure that must not be retried:
// 400, 401, 403, or a 404 whose retry budget is exhausted.
type PermanentBackendError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *PermanentBackendError) Error() string {
	return fmt.Sprintf("permanent backend error (%s, status %d): %v", e.Backend, e.StatusCode, e.Err)
}

func (e *PermanentBackendError) Unwrap() error { return e.Err }

// DispatchExhaustedError is returned when every backend in priority order
// failed to handle a request.
type DispatchExhaustedError struct {
	Attempts []string // human-readable "backend: error" strings, in try order
}

func (e *DispatchExhaustedError) Error() string {
	msg := "all backends exhausted: "
	for i, a := range e.Attempts {
		if i > 0 {
			msg += "; "
		}
		msg += a
	}
	return msg
}

// ClassifierFallbackError records why the arbitrator LLM fell back to the
// default decision. Never surfaced to the client; logged only.
type ClassifierFallbackError struct {
	Reason string
	Err    error
}

func (e *ClassifierFallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier fallback (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classifier fallback: %s", e.Reason)
}

func (e *ClassifierFallbackError) Unwrap() error { return e.Err }

// HookError records a single hook's failure. Callers log it and continue the
// pipeline; it must never abort dispatch.
type HookError struct {
	HookName string
	Stage    string // "pre_request" or "post_response"
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %q failed in %s: %v", e.HookName, e.Stage, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// ToolError is returned by the tool registry when a tool's Run fails. Its
// Error() text is what gets shown to the model, always prefixed "Error: ".
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("Error: tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// PersistenceError records a durable-log or vector-index write failure.
// Logged only; never surfaced, and the response still returns.
type PersistenceError struct {
	Store string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s): %v", e.Store, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
