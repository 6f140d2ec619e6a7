// Package routing implements BeigeBox's hybrid routing core: a five-stage
// pipeline (session cache, directive override, keyword pre-filter,
// centroid classifier, arbitrator LLM) that picks a model and tool set for
// one user message.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/beigebox/beigebox/internal/session"
	"github.com/beigebox/beigebox/internal/wirelog"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Result is the routing core's output: the chosen decision plus the stage
// that produced it, for logging and tests.
type Result struct {
	Decision bbtypes.Decision
	Stage    string // "session_cache", "directive", "centroid", "arbitrator"
}

// Router composes the five routing stages over one conversation.
type Router struct {
	sessionCache *session.Cache
	centroid     *CentroidClassifier
	arbitrator   *Arbitrator
	defaultModel string
	routes       map[string]string // route name (e.g. "fast", "large") -> model
	wire         *wirelog.Log
}

// New builds a Router. centroid and arbitrator may be nil, in which case
// their stages are skipped (matching "no centroids loaded" / "arbitrator
// not configured" degrade-to-default behavior). routes resolves a z:
// directive's route alias (or a centroid's winning route) to a model.
func New(sessionCache *session.Cache, centroid *CentroidClassifier, arbitrator *Arbitrator, defaultModel string, routes map[string]string, wire *wirelog.Log) *Router {
	return &Router{sessionCache: sessionCache, centroid: centroid, arbitrator: arbitrator, defaultModel: defaultModel, routes: routes, wire: wire}
}

// Route runs the five-stage pipeline for one conversation turn. directive
// is the already-parsed z: command, if any (zcommand.Parse was already
// called by the proxy to extract the stripped message).
func (r *Router) Route(ctx context.Context, conversationID string, directive bbtypes.ZCommand, userMessage string) Result {
	// Stage 2: directive override. Checked before the session cache read
	// so an explicit user directive always wins, but still checked ahead
	// of stage 1 only logically — the session cache is consulted first
	// per the pipeline's stage order, then directive overrides it.
	if cached, ok := r.sessionCache.Get(conversationID); ok && !directive.Active {
		return Result{Decision: bbtypes.Decision{Model: cached, Confidence: 1}, Stage: "session_cache"}
	}

	if directive.Active && !directive.IsHelp {
		model := directive.Model
		if model == "" && directive.Route != "" {
			model = r.routes[directive.Route]
		}
		if model != "" {
			r.emitInternal("directive route override: "+model, conversationID)
			return Result{Decision: bbtypes.Decision{Model: model, Tools: directive.Tools, Confidence: 1}, Stage: "directive"}
		}
	}

	// Stage 3: keyword agentic pre-filter. Never terminal; annotation only.
	score := scoreAgenticKeywords(userMessage)
	r.emitInternal(fmt.Sprintf("agentic keyword score: %.2f", score), conversationID)

	// Stage 4: centroid classifier.
	if r.centroid != nil {
		result, err := r.centroid.classify(ctx, userMessage)
		if err == nil && result.Terminal {
			r.sessionCache.Set(conversationID, result.Model)
			return Result{Decision: bbtypes.Decision{Model: result.Model, Confidence: result.Confidence}, Stage: "centroid"}
		}
	}

	// Stage 5: arbitrator LLM.
	if r.arbitrator != nil {
		decision, err := r.arbitrator.Decide(ctx, userMessage)
		if err != nil {
			r.emitInternal("arbitrator fallback: "+err.Error(), conversationID)
		}
		if decision.Model == "" {
			decision.Model = r.defaultModel
		}
		if !decision.Fallback {
			r.sessionCache.Set(conversationID, decision.Model)
		}
		return Result{Decision: decision, Stage: "arbitrator"}
	}

	return Result{Decision: bbtypes.Decision{Model: r.defaultModel, Fallback: true}, Stage: "arbitrator"}
}

func (r *Router) emitInternal(content string, conversationID string) {
	if r.wire == nil {
		return
	}
	_ = r.wire.Emit(bbtypes.WireEvent{
		Timestamp:      time.Now(),
		Direction:      bbtypes.WireInternal,
		ConversationID: conversationID,
		Content:        content,
	})
}
