package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/beigebox/beigebox/internal/backoff"
	"github.com/beigebox/beigebox/internal/berrors"
)

// retryableStatuses mirrors the donor's "worth another try" status set:
// rate limiting, and 5xx except ones that clearly won't resolve on retry.
var retryableStatuses = map[int]bool{
	404: true,
	429: true,
	500: true,
	501: true,
	502: true,
	503: true,
	504: true,
}

// Dispatcher holds a priority-ordered backend list and retries each one
// per policy before moving to the next. Backends are tried in the order
// given to New; callers are expected to have already sorted by priority.
type Dispatcher struct {
	backends []Backend
	retry    RetryPolicy
}

// RetryPolicy configures per-backend retry behavior before dispatch falls
// through to the next backend in priority order.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase float64
	BackoffCapS float64
}

func (p RetryPolicy) toBackoffPolicy() backoff.BackoffPolicy {
	return backoff.BackoffPolicy{
		InitialMs: 1000,
		MaxMs:     p.BackoffCapS * 1000,
		Factor:    p.BackoffBase,
		Jitter:    0.1,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// New builds a Dispatcher over backends, already in try order.
func New(backends []Backend, retry RetryPolicy) *Dispatcher {
	return &Dispatcher{backends: backends, retry: retry}
}

// Backends returns the dispatcher's backend list, in try order.
func (d *Dispatcher) Backends() []Backend {
	return d.backends
}

// candidates returns the subset of d.backends willing to serve model, in
// try order. If none claim the model (or model is empty), every backend is
// a candidate, letting priority order alone decide.
func (d *Dispatcher) candidates(model string) []Backend {
	if model == "" {
		return d.backends
	}
	var matched []Backend
	for _, b := range d.backends {
		if b.SupportsModel(model) {
			matched = append(matched, b)
		}
	}
	if len(matched) == 0 {
		return d.backends
	}
	return matched
}

// Forward dispatches req to the first candidate backend that succeeds,
// retrying transient failures per policy before falling through to the
// next backend. Returns berrors.DispatchExhaustedError if every candidate
// fails.
func (d *Dispatcher) Forward(ctx context.Context, req ChatRequest) (ChatResponse, string, error) {
	var attempts []string
	for _, b := range d.candidates(req.Model) {
		resp, err := d.forwardOne(ctx, b, req)
		if err == nil {
			return resp, b.Name(), nil
		}
		attempts = append(attempts, fmt.Sprintf("%s: %v", b.Name(), err))
		if ctx.Err() != nil {
			return ChatResponse{}, "", ctx.Err()
		}
	}
	return ChatResponse{}, "", &berrors.DispatchExhaustedError{Attempts: attempts}
}

// forwardOne retries a single backend's Forward call per policy, stopping
// immediately on a permanent error.
func (d *Dispatcher) forwardOne(ctx context.Context, b Backend, req ChatRequest) (ChatResponse, error) {
	policy := d.retry.toBackoffPolicy()
	var lastErr error
	for attempt := 1; attempt <= d.retry.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return ChatResponse{}, err
		}
		resp, err := b.Forward(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == d.retry.attempts() {
			return ChatResponse{}, err
		}
		if err := backoff.SleepWithContext(ctx, backoff.ComputeBackoff(policy, attempt)); err != nil {
			return ChatResponse{}, err
		}
	}
	return ChatResponse{}, lastErr
}

// ForwardStream dispatches req to the first candidate backend whose stream
// establishes successfully, retrying only the establishment of the stream;
// once a stream starts delivering chunks it is never retried or replaced.
func (d *Dispatcher) ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, string, error) {
	var attempts []string
	for _, b := range d.candidates(req.Model) {
		ch, err := d.forwardStreamOne(ctx, b, req)
		if err == nil {
			return ch, b.Name(), nil
		}
		attempts = append(attempts, fmt.Sprintf("%s: %v", b.Name(), err))
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}
	return nil, "", &berrors.DispatchExhaustedError{Attempts: attempts}
}

func (d *Dispatcher) forwardStreamOne(ctx context.Context, b Backend, req ChatRequest) (<-chan StreamChunk, error) {
	policy := d.retry.toBackoffPolicy()
	var lastErr error
	for attempt := 1; attempt <= d.retry.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch, err := b.ForwardStream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == d.retry.attempts() {
			return nil, err
		}
		if err := backoff.SleepWithContext(ctx, backoff.ComputeBackoff(policy, attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// isRetryable reports whether err should be retried against the same
// backend, per the transient/permanent split in berrors.
func isRetryable(err error) bool {
	var transient *berrors.TransientBackendError
	if errors.As(err, &transient) {
		return true
	}
	var permanent *berrors.PermanentBackendError
	if errors.As(err, &permanent) {
		return false
	}
	// Unclassified errors (network-level failures with no status code)
	// are treated as transient: worth one more try against the same
	// backend before falling through.
	return true
}

// classifyStatus wraps an HTTP status code from a backend call into the
// appropriate berrors type, used by every concrete backend implementation.
func classifyStatus(backendName string, status int, err error) error {
	if retryableStatuses[status] {
		return &berrors.TransientBackendError{Backend: backendName, StatusCode: status, Err: err}
	}
	return &berrors.PermanentBackendError{Backend: backendName, StatusCode: status, Err: err}
}
