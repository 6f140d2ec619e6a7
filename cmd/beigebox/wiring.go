package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/beigebox/beigebox/internal/backend"
	"github.com/beigebox/beigebox/internal/config"
	bbcontext "github.com/beigebox/beigebox/internal/context"
	"github.com/beigebox/beigebox/internal/embedclient"
	"github.com/beigebox/beigebox/internal/ensemble"
	"github.com/beigebox/beigebox/internal/flightrecorder"
	"github.com/beigebox/beigebox/internal/harness"
	"github.com/beigebox/beigebox/internal/hooks"
	"github.com/beigebox/beigebox/internal/operator"
	"github.com/beigebox/beigebox/internal/proxy"
	"github.com/beigebox/beigebox/internal/replay"
	"github.com/beigebox/beigebox/internal/routing"
	"github.com/beigebox/beigebox/internal/session"
	"github.com/beigebox/beigebox/internal/storage"
	"github.com/beigebox/beigebox/internal/summarizer"
	"github.com/beigebox/beigebox/internal/tools"
	"github.com/beigebox/beigebox/internal/vectorindex"
	"github.com/beigebox/beigebox/internal/wirelog"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// app bundles every long-lived component buildApp assembles, so runServe
// and the status/migrate commands can close what needs closing.
type app struct {
	proxy   *proxy.Proxy
	store   storage.MessageStore
	wire    *wirelog.Log
	cfg     *config.Config
	caller  dispatcherCaller
	toolReg *tools.Registry
	replay  replay.View
}

// newHarnessRunner builds a fresh harness.Runner for one request. Runner
// itself holds no per-run state except the OnEvent callback field, which
// IS per-run state — so a.mountOpsEndpoints builds one of these per
// request rather than sharing a single Runner (and its OnEvent closure)
// across concurrent requests.
func (a *app) newHarnessRunner() *harness.Runner {
	op := operator.New(a.caller, a.toolReg, a.cfg.Operator.Model, a.cfg.Operator.MaxIterations)
	return harness.New(a.caller, op, a.cfg.Harness, slog.Default())
}

func (a *app) newEnsembleRunner() *ensemble.Runner {
	return ensemble.New(a.caller, a.cfg.Ensemble.JudgeModel, time.Duration(a.cfg.Ensemble.TimeoutS)*time.Second, slog.Default())
}

func (a *app) newOperatorAgent() *operator.Agent {
	return operator.New(a.caller, a.toolReg, a.cfg.Operator.Model, a.cfg.Operator.MaxIterations)
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("error closing message store", "error", err)
		}
	}
	if a.wire != nil {
		if err := a.wire.Close(); err != nil {
			slog.Warn("error closing wire log", "error", err)
		}
	}
}

// buildApp wires every package built for BeigeBox into one running proxy,
// following the donor's single-call "construct everything in main, hand it
// to the server" wiring style rather than a DI framework.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := buildStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build storage: %w", err)
	}

	dispatcher, err := buildDispatcher(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	var wire *wirelog.Log
	if cfg.Wiretap.Path != "" {
		wire, err = wirelog.Open(cfg.Wiretap.Path)
		if err != nil {
			return nil, fmt.Errorf("open wire log: %w", err)
		}
	}

	router := buildRouter(cfg, dispatcher, wire)
	hookReg := buildHooks(cfg)

	vindex := buildVectorIndex(cfg)
	toolReg := buildTools(cfg, vindex)

	var sysctx *bbcontext.SystemContext
	if cfg.Context.GlobalContextOn && cfg.Context.GlobalContextFile != "" {
		sysctx = bbcontext.NewSystemContext(cfg.Context.GlobalContextFile)
	}

	var (
		idx    proxy.Indexer
		search proxy.Searcher
	)
	if vindex != nil {
		idx = vindex
		search = vectorindex.HTTPSearcher{Index: vindex}
	}

	p := proxy.New(proxy.Config{
		Dispatcher:    dispatcher,
		Router:        router,
		Hooks:         hookReg,
		Tools:         toolReg,
		Store:         store,
		Wire:          wire,
		Flights:       flightrecorder.New(flightrecorder.DefaultCapacity, flightrecorder.DefaultRetention),
		SystemContext: sysctx,
		GenOverlay:    bbcontext.GenerationOverlay{},
		Summarizer: summarizer.Config{
			Model:         cfg.Context.SummarizerModel,
			TokenBudget:   cfg.Context.TokenBudget,
			KeepLastTurns: cfg.Context.KeepLastTurns,
			SummaryPrefix: cfg.Context.SummaryPrefix,
		},
		Index:           idx,
		Search:          search,
		DefaultModel:    cfg.DefaultModel,
		AdvertiseMode:   cfg.Server.AdvertiseMode,
		AdvertisePrefix: cfg.Server.AdvertisePrefix,
		Logger:          slog.Default(),
	})

	caller := dispatcherCaller{dispatcher}

	var replaySearch replay.Searcher
	if vindex != nil {
		replaySearch = vectorindex.HTTPSearcher{Index: vindex}
	}
	view := replay.New(store, cfg.Wiretap.Path, replaySearch)

	return &app{proxy: p, store: store, wire: wire, cfg: cfg, caller: caller, toolReg: toolReg, replay: view}, nil
}

// buildVectorIndex builds the pluggable semantic-search backend over
// indexed conversation turns. It's optional: a deployment with no
// embedding endpoint configured gets a nil index, which degrades
// background indexing and the memory tool to no-ops rather than failing
// startup.
func buildVectorIndex(cfg *config.Config) *vectorindex.Index {
	if cfg.Storage.EmbeddingURL == "" {
		return nil
	}
	embedder := embedclient.New(cfg.Storage.EmbeddingURL, "", cfg.Storage.EmbeddingModel, 15*time.Second)
	snapshotPath := ""
	if cfg.Storage.VectorDir != "" {
		snapshotPath = cfg.Storage.VectorDir + "/snapshot.gob"
	}
	return vectorindex.New(embedder, snapshotPath, slog.Default())
}

func buildStore(cfg config.StorageConfig) (storage.MessageStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return storage.NewSQLiteStore(cfg.DSN)
	case "postgres":
		return storage.NewPostgresStore(cfg.DSN, storage.DefaultCockroachConfig())
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// buildDispatcher constructs one backend per entry in cfg.Backends, sorted
// by ascending priority (lowest tried first), and wraps them in a
// Dispatcher configured with cfg.Retry.
func buildDispatcher(ctx context.Context, cfg *config.Config) (*backend.Dispatcher, error) {
	entries := append([]config.BackendConfig(nil), cfg.Backends...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority < entries[j].Priority })

	backends := make([]backend.Backend, 0, len(entries))
	for _, b := range entries {
		built, err := buildBackend(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}
		backends = append(backends, built)
	}

	return backend.New(backends, backend.RetryPolicy{
		MaxRetries:  cfg.Retry.MaxRetries,
		BackoffBase: cfg.Retry.BackoffBase,
		BackoffCapS: cfg.Retry.BackoffCapS,
	}), nil
}

func buildBackend(ctx context.Context, b config.BackendConfig) (backend.Backend, error) {
	switch b.Kind {
	case "ollama":
		return backend.NewOpenAICompatible(b.Name, b.URL, b.APIKey, backend.AuthNone, false)
	case "openrouter":
		return backend.NewOpenAICompatible(b.Name, b.URL, b.APIKey, backend.AuthRequiredBearer, true)
	case "openai_compatible":
		return backend.NewOpenAICompatible(b.Name, b.URL, b.APIKey, backend.AuthOptionalBearer, false)
	case "anthropic":
		return backend.NewAnthropic(b.Name, b.APIKey, b.URL)
	case "gemini":
		return backend.NewGemini(ctx, b.Name, b.APIKey)
	case "bedrock":
		return backend.NewBedrock(ctx, b.Name, b.URL)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", b.Kind)
	}
}

// buildRouter assembles the five-stage hybrid routing core. The centroid
// classifier and arbitrator are both optional: a deployment with neither
// configured degrades straight to defaultModel, per routing.Router's own
// nil-collaborator handling.
func buildRouter(cfg *config.Config, dispatcher *backend.Dispatcher, wire *wirelog.Log) *routing.Router {
	routes := make(map[string]string, len(cfg.DecisionLLM.Routes))
	for name, r := range cfg.DecisionLLM.Routes {
		routes[name] = r.Model
	}

	var centroidClassifier *routing.CentroidClassifier
	if cfg.Classifier.Enabled && cfg.Classifier.CentroidsDir != "" {
		centroids, err := routing.LoadCentroids(cfg.Classifier.CentroidsDir)
		if err != nil {
			slog.Warn("failed to load centroids, classifier stage disabled", "error", err)
		} else {
			embedder := embedclient.New(cfg.Classifier.URL, "", cfg.Classifier.Model, 10*time.Second)
			centroidClassifier = routing.NewCentroidClassifier(embedder, centroids, cfg.Classifier.Threshold, routes)
		}
	}

	var arbitrator *routing.Arbitrator
	if cfg.DecisionLLM.Enabled {
		arbitrator = routing.NewArbitrator(dispatcherCaller{dispatcher}, cfg.DecisionLLM.Model, cfg.DefaultModel, routes, nil)
	}

	sessionCache := session.New(time.Duration(cfg.SessionCache.TTLSeconds) * time.Second)
	return routing.New(sessionCache, centroidClassifier, arbitrator, cfg.DefaultModel, routes, wire)
}

// dispatcherCaller adapts backend.Dispatcher to the single-turn Forward
// contract every one of routing.Caller, harness.Caller, ensemble.Caller
// and operator.Caller separately declares (same shape, four packages,
// none importing another). internal/proxy defines its own unexported
// equivalent for the summarizer stage; this package needs its own copy
// since the two live in different packages.
type dispatcherCaller struct {
	dispatcher *backend.Dispatcher
}

func (c dispatcherCaller) Forward(ctx context.Context, model string, messages []bbtypes.ChatMessage) (string, error) {
	resp, _, err := c.dispatcher.Forward(ctx, backend.ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func buildHooks(cfg *config.Config) *hooks.Registry {
	reg := hooks.NewRegistry(slog.Default())
	reg.Register(hooks.StagePreRequest, "filter_synthetic", hooks.FilterSynthetic, hooks.WithPriority(hooks.PriorityHigh))
	reg.Register(hooks.StagePreRequest, "prompt_injection",
		hooks.NewPromptInjectionHook(hooks.PromptInjectionFlag, 2, slog.Default()),
		hooks.WithPriority(hooks.PriorityNormal))
	return reg
}

func buildTools(cfg *config.Config, vindex *vectorindex.Index) *tools.Registry {
	reg := tools.NewRegistry(tools.WithLogger(slog.Default()))
	if !cfg.Tools.Enabled {
		return reg
	}
	if cfg.Tools.Calculator.Enabled {
		reg.Register("calculator", tools.Calculator{})
	}
	if cfg.Tools.DateTime.Enabled {
		reg.Register("datetime", tools.NewDateTimeTool(0))
	}
	if cfg.Tools.SystemInfo.Enabled {
		reg.Register("system_info", tools.NewSystemInfoTool())
	}
	if cfg.Tools.Memory.Enabled && vindex != nil {
		searcher := vectorindex.ToolSearcher{Index: vindex}
		reg.Register("memory", tools.NewMemoryTool(searcher, cfg.Tools.Memory.MaxResults, cfg.Tools.Memory.MinScore))
	}
	reg.Register("web_search", &tools.WebSearchTool{})
	return reg
}
