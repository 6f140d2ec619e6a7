// Package config loads BeigeBox's static base config once at startup and
// exposes a hot-reloaded runtime overlay for session-scoped overrides.
//
// Base config (config.yaml) supports $include directives (resolved by
// loader.go, recursively, with cycle detection) and ${NAME} environment
// variable expansion, applied to the raw file bytes before YAML parsing.
package config

import (
	"fmt"
	"os"
	"sync"
)

// RouteConfig is one entry in routes:, naming the model a route resolves to.
type RouteConfig struct {
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// BackendConfig describes one entry in the dispatcher's priority-ordered
// backend list.
type BackendConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // "ollama", "openai_compatible", "openrouter", "anthropic", "gemini", "bedrock"
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Priority int    `yaml:"priority"`
	TimeoutS int    `yaml:"timeout_s"`
}

// RetryConfig configures the backend retry wrapper.
type RetryConfig struct {
	MaxRetries  int     `yaml:"max_retries"`
	BackoffBase float64 `yaml:"backoff_base"`
	BackoffCapS float64 `yaml:"backoff_cap_s"`
}

// DecisionLLMConfig configures the arbitrator stage.
type DecisionLLMConfig struct {
	Enabled     bool                   `yaml:"enabled"`
	Model       string                 `yaml:"model"`
	BackendURL  string                 `yaml:"backend_url"`
	TimeoutS    int                    `yaml:"timeout_s"`
	Routes      map[string]RouteConfig `yaml:"routes"`
}

// EmbeddingClassifierConfig configures the centroid classifier.
type EmbeddingClassifierConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Model        string  `yaml:"model"`
	URL          string  `yaml:"url"`
	CentroidsDir string  `yaml:"centroids_dir"`
	Threshold    float64 `yaml:"threshold"`
}

// SessionCacheConfig configures the routing core's stickiness cache.
type SessionCacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// ToolsConfig gates and configures the built-in tool set and plugin loader.
type ToolsConfig struct {
	Enabled        bool                    `yaml:"enabled"`
	WebhookURL     string                  `yaml:"webhook_url"`
	PluginsDir     string                  `yaml:"plugins_dir"`
	PluginsEnabled bool                    `yaml:"plugins_enabled"`
	Calculator     ToolEnableConfig        `yaml:"calculator"`
	DateTime       ToolEnableConfig        `yaml:"datetime"`
	SystemInfo     ToolEnableConfig        `yaml:"system_info"`
	Memory         MemoryToolConfig        `yaml:"memory"`
	PluginEnabled  map[string]bool         `yaml:"plugin_enabled"`
}

// ToolEnableConfig is the per-tool enable flag shared by the no-dependency
// built-ins (calculator, datetime, system_info).
type ToolEnableConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MemoryToolConfig configures the conversation-recall tool.
type MemoryToolConfig struct {
	Enabled    bool    `yaml:"enabled"`
	MaxResults int     `yaml:"max_results"`
	MinScore   float64 `yaml:"min_score"`
}

// HooksConfig configures the hook pipeline's directory/explicit-list loading.
type HooksConfig struct {
	Dir   string       `yaml:"dir"`
	Hooks []HookConfig `yaml:"hooks"`
}

// HookConfig names one explicitly configured hook.
type HookConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// StorageConfig configures the durable message log and vector index.
type StorageConfig struct {
	Driver       string `yaml:"driver"` // "sqlite" or "postgres"
	DSN          string `yaml:"dsn"`
	VectorDir    string `yaml:"vector_dir"`
	EmbeddingURL string `yaml:"embedding_url"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AdminToken string `yaml:"admin_token"`
	AdvertisePrefix string `yaml:"advertise_prefix"`
	AdvertiseMode   bool   `yaml:"advertise_mode"`
}

// WiretapConfig configures the wire log.
type WiretapConfig struct {
	Path string `yaml:"path"`
}

// ContextConfig configures auto-summarization and the global system context
// file.
type ContextConfig struct {
	TokenBudget        int    `yaml:"token_budget"`
	SummarizerModel    string `yaml:"summarizer_model"`
	KeepLastTurns      int    `yaml:"keep_last_turns"`
	SummaryPrefix      string `yaml:"summary_prefix"`
	GlobalContextFile  string `yaml:"global_context_file"`
	GlobalContextOn    bool   `yaml:"global_context_enabled"`
}

// HarnessConfig configures the harness orchestrator's defaults.
type HarnessConfig struct {
	MaxRounds         int     `yaml:"max_rounds"`
	MaxTasksPerRound  int     `yaml:"max_tasks_per_round"`
	StaggerSeconds    float64 `yaml:"stagger_seconds"`
	PerTaskTimeoutS   int     `yaml:"per_task_timeout_s"`
	TotalTimeoutS     int     `yaml:"total_timeout_s"`
	PlannerModel      string  `yaml:"planner_model"`
	EvaluatorModel    string  `yaml:"evaluator_model"`
}

// OperatorConfig configures the operator agent's defaults.
type OperatorConfig struct {
	Model         string `yaml:"model"`
	MaxIterations int    `yaml:"max_iterations"`
	TimeoutS      int    `yaml:"timeout_s"`
}

// EnsembleConfig configures the ensemble voter's judge model.
type EnsembleConfig struct {
	JudgeModel string `yaml:"judge_model"`
	TimeoutS   int    `yaml:"timeout_s"`
}

// Config is the fully-parsed static config.yaml.
type Config struct {
	Server       ServerConfig                `yaml:"server"`
	Backends     []BackendConfig             `yaml:"backends"`
	Retry        RetryConfig                 `yaml:"retry"`
	DecisionLLM  DecisionLLMConfig           `yaml:"decision_llm"`
	Classifier   EmbeddingClassifierConfig   `yaml:"embedding_classifier"`
	SessionCache SessionCacheConfig          `yaml:"session_cache"`
	Tools        ToolsConfig                 `yaml:"tools"`
	Hooks        HooksConfig                 `yaml:"hooks"`
	Storage      StorageConfig               `yaml:"storage"`
	Wiretap      WiretapConfig               `yaml:"wiretap"`
	Context      ContextConfig               `yaml:"context"`
	Harness      HarnessConfig               `yaml:"harness"`
	Operator     OperatorConfig              `yaml:"operator"`
	Ensemble     EnsembleConfig              `yaml:"ensemble"`
	DefaultModel string                      `yaml:"default_model"`
}

// Default returns a Config populated with BeigeBox's documented defaults,
// used when a key is absent from config.yaml.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: ":8088"},
		Retry: RetryConfig{
			MaxRetries:  2,
			BackoffBase: 1.5,
			BackoffCapS: 10,
		},
		Classifier: EmbeddingClassifierConfig{Threshold: 0.04},
		SessionCache: SessionCacheConfig{TTLSeconds: 1800},
		Tools: ToolsConfig{
			Calculator: ToolEnableConfig{Enabled: true},
			DateTime:   ToolEnableConfig{Enabled: true},
			SystemInfo: ToolEnableConfig{Enabled: true},
			Memory:     MemoryToolConfig{MaxResults: 3, MinScore: 0.3},
		},
		Storage: StorageConfig{Driver: "sqlite", DSN: "./data/beigebox.db", VectorDir: "./data/vectors"},
		Wiretap: WiretapConfig{Path: "./data/wire.jsonl"},
		Context: ContextConfig{TokenBudget: 8000, KeepLastTurns: 6, SummaryPrefix: "[summary]"},
		Harness: HarnessConfig{
			MaxRounds:        8,
			MaxTasksPerRound: 6,
			StaggerSeconds:   0.4,
			PerTaskTimeoutS:  120,
			TotalTimeoutS:    300,
		},
		Operator: OperatorConfig{MaxIterations: 8, TimeoutS: 60},
		Ensemble: EnsembleConfig{TimeoutS: 60},
	}
}

var (
	baseOnce sync.Once
	baseCfg  *Config
	baseErr  error
)

// Load reads and caches the base config from path. Subsequent calls return
// the cached value regardless of path; BeigeBox loads config exactly once
// at startup, matching the donor's load-once-read-only base config pattern.
func Load(path string) (*Config, error) {
	baseOnce.Do(func() {
		raw, err := LoadRaw(path)
		if err != nil {
			baseErr = err
			return
		}
		cfg, err := decodeRawConfig(raw)
		if err != nil {
			baseErr = err
			return
		}
		merged := Default()
		overlayDefaults(&merged, cfg)
		baseCfg = &merged
	})
	return baseCfg, baseErr
}

// overlayDefaults copies every non-zero field from loaded into defaults,
// in place of a generic deep-merge: only the few fields with documented
// defaults need this treatment, everything else is taken verbatim.
func overlayDefaults(defaults *Config, loaded *Config) {
	if loaded.Server.ListenAddr != "" {
		defaults.Server.ListenAddr = loaded.Server.ListenAddr
	}
	defaults.Server.AdminToken = loaded.Server.AdminToken
	defaults.Server.AdvertiseMode = loaded.Server.AdvertiseMode
	defaults.Server.AdvertisePrefix = loaded.Server.AdvertisePrefix

	if len(loaded.Backends) > 0 {
		defaults.Backends = loaded.Backends
	}
	if loaded.Retry.MaxRetries > 0 {
		defaults.Retry.MaxRetries = loaded.Retry.MaxRetries
	}
	if loaded.Retry.BackoffBase > 0 {
		defaults.Retry.BackoffBase = loaded.Retry.BackoffBase
	}
	if loaded.Retry.BackoffCapS > 0 {
		defaults.Retry.BackoffCapS = loaded.Retry.BackoffCapS
	}

	defaults.DecisionLLM = loaded.DecisionLLM

	if loaded.Classifier.Threshold > 0 {
		defaults.Classifier.Threshold = loaded.Classifier.Threshold
	}
	defaults.Classifier.Enabled = loaded.Classifier.Enabled
	defaults.Classifier.Model = loaded.Classifier.Model
	defaults.Classifier.URL = loaded.Classifier.URL
	defaults.Classifier.CentroidsDir = loaded.Classifier.CentroidsDir

	if loaded.SessionCache.TTLSeconds > 0 {
		defaults.SessionCache.TTLSeconds = loaded.SessionCache.TTLSeconds
	}

	defaults.Tools = loaded.Tools
	defaults.Hooks = loaded.Hooks

	if loaded.Storage.Driver != "" {
		defaults.Storage.Driver = loaded.Storage.Driver
	}
	if loaded.Storage.DSN != "" {
		defaults.Storage.DSN = loaded.Storage.DSN
	}
	if loaded.Storage.VectorDir != "" {
		defaults.Storage.VectorDir = loaded.Storage.VectorDir
	}
	defaults.Storage.EmbeddingURL = loaded.Storage.EmbeddingURL
	defaults.Storage.EmbeddingModel = loaded.Storage.EmbeddingModel

	if loaded.Wiretap.Path != "" {
		defaults.Wiretap.Path = loaded.Wiretap.Path
	}

	if loaded.Context.TokenBudget > 0 {
		defaults.Context.TokenBudget = loaded.Context.TokenBudget
	}
	if loaded.Context.KeepLastTurns > 0 {
		defaults.Context.KeepLastTurns = loaded.Context.KeepLastTurns
	}
	if loaded.Context.SummaryPrefix != "" {
		defaults.Context.SummaryPrefix = loaded.Context.SummaryPrefix
	}
	defaults.Context.SummarizerModel = loaded.Context.SummarizerModel
	defaults.Context.GlobalContextFile = loaded.Context.GlobalContextFile
	defaults.Context.GlobalContextOn = loaded.Context.GlobalContextOn

	if loaded.Harness.MaxRounds > 0 {
		defaults.Harness.MaxRounds = loaded.Harness.MaxRounds
	}
	if loaded.Harness.MaxTasksPerRound > 0 {
		defaults.Harness.MaxTasksPerRound = loaded.Harness.MaxTasksPerRound
	}
	if loaded.Harness.StaggerSeconds > 0 {
		defaults.Harness.StaggerSeconds = loaded.Harness.StaggerSeconds
	}
	if loaded.Harness.PerTaskTimeoutS > 0 {
		defaults.Harness.PerTaskTimeoutS = loaded.Harness.PerTaskTimeoutS
	}
	if loaded.Harness.TotalTimeoutS > 0 {
		defaults.Harness.TotalTimeoutS = loaded.Harness.TotalTimeoutS
	}
	defaults.Harness.PlannerModel = loaded.Harness.PlannerModel
	defaults.Harness.EvaluatorModel = loaded.Harness.EvaluatorModel

	if loaded.Operator.MaxIterations > 0 {
		defaults.Operator.MaxIterations = loaded.Operator.MaxIterations
	}
	if loaded.Operator.TimeoutS > 0 {
		defaults.Operator.TimeoutS = loaded.Operator.TimeoutS
	}
	defaults.Operator.Model = loaded.Operator.Model

	if loaded.Ensemble.TimeoutS > 0 {
		defaults.Ensemble.TimeoutS = loaded.Ensemble.TimeoutS
	}
	defaults.Ensemble.JudgeModel = loaded.Ensemble.JudgeModel

	defaults.DefaultModel = loaded.DefaultModel
}

// MustGetenv returns an environment variable or panics with a clear message;
// used only at startup for required secrets that ${NAME} expansion can't
// supply a fallback for.
func MustGetenv(name string) string {
	v := os.Getenv(name)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", name))
	}
	return v
}
