// Package hooks implements the pre_request/post_response hook pipeline:
// an ordered, per-hook-isolated set of stages that can inspect or rewrite
// a request/response body, short-circuit it (block), or replace it with a
// synthetic reply before it reaches (or after it leaves) the backend.
package hooks

import (
	"time"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Stage names one point in the request lifecycle a hook can attach to.
type Stage string

const (
	// StagePreRequest runs after routing, before dispatch to a backend.
	StagePreRequest Stage = "pre_request"
	// StagePostResponse runs after a backend response is fully assembled,
	// before it's written back to the client.
	StagePostResponse Stage = "post_response"
)

// Priority determines call order within a stage; lower runs earlier.
type Priority int

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 25
	PriorityNormal  Priority = 50
	PriorityLow     Priority = 75
	PriorityLowest  Priority = 100
)

// blockKey and syntheticKey are the body markers a hook sets to short-
// circuit the pipeline or mark that it has replaced the payload outright.
const (
	blockKey     = "_block"
	syntheticKey = "_synthetic"
)

// RequestContext is what every hook sees and may mutate. Body carries the
// in-flight request (pre_request) or response (post_response) payload as
// a generic map, matching the donor's dict-based hook contract; hooks
// mutate it in place rather than returning a new value.
type RequestContext struct {
	Stage              Stage
	ConversationID     string
	Model              string
	LatestUserMessage  string
	Decision           *bbtypes.Decision
	Body               map[string]any
	Timestamp          time.Time
}

// Block marks the request as rejected by a hook; the pipeline stops
// running further hooks in this stage and the caller should respond with
// reason instead of dispatching to a backend.
func (rc *RequestContext) Block(reason string) {
	if rc.Body == nil {
		rc.Body = map[string]any{}
	}
	rc.Body[blockKey] = reason
}

// Blocked reports whether a prior hook called Block.
func (rc *RequestContext) Blocked() (string, bool) {
	reason, ok := rc.Body[blockKey].(string)
	return reason, ok
}

// SetSynthetic replaces the body's content with a hook-generated reply and
// marks it synthetic, so downstream stages (and the wire log) know the
// content didn't come from a backend.
func (rc *RequestContext) SetSynthetic(content string) {
	if rc.Body == nil {
		rc.Body = map[string]any{}
	}
	rc.Body["content"] = content
	rc.Body[syntheticKey] = true
}

// Synthetic reports whether the body's content was hook-injected.
func (rc *RequestContext) Synthetic() bool {
	v, _ := rc.Body[syntheticKey].(bool)
	return v
}

// MarkSynthetic flags the request as a framework-internal auxiliary call
// (title generation, follow-up suggestions) without replacing its content,
// for a hook that wants the rest of the pipeline — routing, dispatch — to
// run normally but the result never persisted to the message log.
func (rc *RequestContext) MarkSynthetic() {
	if rc.Body == nil {
		rc.Body = map[string]any{}
	}
	rc.Body[syntheticKey] = true
}

// HookFunc is a single hook's logic. It may mutate rc.Body, call
// rc.Block/rc.SetSynthetic, or return an error; an error or a panic is
// isolated to this hook and never aborts sibling hooks in the same stage.
type HookFunc func(rc *RequestContext) error

// Registration is one registered hook.
type Registration struct {
	ID       string
	Stage    Stage
	Name     string
	Source   string
	Priority Priority
	Handler  HookFunc
}

// RegisterOption configures a Registration at Register time.
type RegisterOption func(*Registration)

// WithPriority overrides the default PriorityNormal ordering.
func WithPriority(p Priority) RegisterOption {
	return func(r *Registration) { r.Priority = p }
}

// WithSource tags a hook with the plugin/config section that registered it.
func WithSource(source string) RegisterOption {
	return func(r *Registration) { r.Source = source }
}
