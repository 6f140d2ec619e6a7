// Package proxy implements BeigeBox's OpenAI-compatible chat-completion
// surface: the per-request pipeline that parses directives, runs hooks,
// routes to a model, shapes context, dispatches to a backend, and persists
// the turn, plus the small operational HTTP surface around it.
package proxy

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beigebox/beigebox/internal/backend"
	bbcontext "github.com/beigebox/beigebox/internal/context"
	"github.com/beigebox/beigebox/internal/flightrecorder"
	"github.com/beigebox/beigebox/internal/hooks"
	"github.com/beigebox/beigebox/internal/routing"
	"github.com/beigebox/beigebox/internal/storage"
	"github.com/beigebox/beigebox/internal/summarizer"
	"github.com/beigebox/beigebox/internal/tools"
	"github.com/beigebox/beigebox/internal/wirelog"
)

// Indexer is the vector index's facade surface the proxy depends on,
// kept as a small local interface so this package never imports the
// vector index directly; a nil Indexer degrades background indexing to
// a no-op.
type Indexer interface {
	IndexMessage(conversationID, role, model, content string, at time.Time)
}

// Searcher backs the /search operational endpoint. A nil Searcher makes
// /search report an empty result set rather than fail.
type Searcher interface {
	Search(query string, n int, role string) ([]SearchHit, error)
}

// SearchHit is one semantic-search result surfaced by GET /search.
type SearchHit struct {
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
}

// Config bundles every dependency the proxy wires together. Every field is
// required except where noted; Dispatcher, Router, Hooks, Tools and Store
// are the pipeline's load-bearing collaborators, the rest shape context or
// support the operational endpoints.
type Config struct {
	Dispatcher    *backend.Dispatcher
	Router        *routing.Router
	Hooks         *hooks.Registry
	Tools         *tools.Registry
	Store         storage.MessageStore
	Wire          *wirelog.Log // optional
	Flights       *flightrecorder.Recorder
	SystemContext *bbcontext.SystemContext  // optional
	GenOverlay    bbcontext.GenerationOverlay
	Summarizer    summarizer.Config
	Index         Indexer  // optional
	Search        Searcher // optional
	DefaultModel  string
	AdvertiseMode bool
	AdvertisePrefix string
	Logger        *slog.Logger
}

// Proxy is the assembled request pipeline plus its HTTP surface.
type Proxy struct {
	dispatcher *backend.Dispatcher
	router     *routing.Router
	hooks      *hooks.Registry
	toolsReg   *tools.Registry
	store      storage.MessageStore
	wire       *wirelog.Log
	flights    *flightrecorder.Recorder
	sysctx     *bbcontext.SystemContext
	genOverlay bbcontext.GenerationOverlay
	sumCfg     summarizer.Config
	index      Indexer
	search     Searcher

	defaultModel    string
	advertiseMode   bool
	advertisePrefix string

	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	overlay *overlay
}

// New assembles a Proxy from cfg.
func New(cfg Config) *Proxy {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		dispatcher:      cfg.Dispatcher,
		router:          cfg.Router,
		hooks:           cfg.Hooks,
		toolsReg:        cfg.Tools,
		store:           cfg.Store,
		wire:            cfg.Wire,
		flights:         cfg.Flights,
		sysctx:          cfg.SystemContext,
		genOverlay:      cfg.GenOverlay,
		sumCfg:          cfg.Summarizer,
		index:           cfg.Index,
		search:          cfg.Search,
		defaultModel:    cfg.DefaultModel,
		advertiseMode:   cfg.AdvertiseMode,
		advertisePrefix: cfg.AdvertisePrefix,
		logger:          logger.With("component", "proxy"),
		now:             time.Now,
		newID:           uuid.NewString,
		overlay:         newOverlay(),
	}
}
