// Package bbtypes holds the data shapes shared across BeigeBox's internal
// packages and any external caller (plugins, tests, CLI).
package bbtypes

import "time"

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn in a Conversation. Immutable once stored.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TokenCount     int       `json:"token_count"`
	CostUSD        *float64  `json:"cost_usd,omitempty"`
	LatencyMs      *int64    `json:"latency_ms,omitempty"`
}

// Conversation is an ordered sequence of Messages.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// HarnessEventType names one of the typed events the harness orchestrator
// and ensemble voter emit.
type HarnessEventType string

const (
	HarnessEventStart    HarnessEventType = "start"
	HarnessEventPlan     HarnessEventType = "plan"
	HarnessEventDispatch HarnessEventType = "dispatch"
	HarnessEventResult   HarnessEventType = "result"
	HarnessEventEvaluate HarnessEventType = "evaluate"
	HarnessEventFinish   HarnessEventType = "finish"
	HarnessEventError    HarnessEventType = "error"
)

// HarnessEvent is one entry in a HarnessRun's event stream.
type HarnessEvent struct {
	Type      HarnessEventType `json:"type"`
	Round     int              `json:"round,omitempty"`
	Detail    map[string]any   `json:"detail,omitempty"`
	Timestamp time.Time        `json:"ts"`
}

// HarnessRun is the persisted record of one harness-orchestrator invocation.
type HarnessRun struct {
	ID           string         `json:"id"`
	Goal         string         `json:"goal"`
	Targets      []string       `json:"targets"`
	DriverModel  string         `json:"driver_model"`
	RoundCap     int            `json:"round_cap"`
	FinalAnswer  string         `json:"final_answer"`
	RoundsRun    int            `json:"rounds_run"`
	Capped       bool           `json:"capped"`
	WallClockMs  int64          `json:"wall_clock_ms"`
	ErrorCount   int            `json:"error_count"`
	Events       []HarnessEvent `json:"events"`
	CreatedAt    time.Time      `json:"created_at"`
}

// VectorRecord is one embedded document in the vector index. Its ID matches
// the Message ID it was derived from.
type VectorRecord struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"-"`
	Document  string    `json:"document"`
	Metadata  VectorMeta `json:"metadata"`
}

// VectorMeta is the metadata bag attached to every VectorRecord.
type VectorMeta struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Model          string `json:"model,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// WireDirection classifies a WireEvent's direction.
type WireDirection string

const (
	WireInbound  WireDirection = "inbound"
	WireOutbound WireDirection = "outbound"
	WireInternal WireDirection = "internal"
)

// WireEvent is one append-only entry in the wire log.
type WireEvent struct {
	Timestamp      time.Time      `json:"ts"`
	Direction      WireDirection  `json:"dir"`
	Role           string         `json:"role"`
	Model          string         `json:"model,omitempty"`
	ConversationID string         `json:"conv,omitempty"`
	Length         int            `json:"len"`
	Tokens         int            `json:"tokens,omitempty"`
	Content        string         `json:"content,omitempty"`
	Tool           string         `json:"tool,omitempty"`
	LatencyMs      *int64         `json:"latency_ms,omitempty"`
	Timing         map[string]int64 `json:"timing,omitempty"`
}

// Centroid is the L2-normalized mean embedding of one route's prototype set.
type Centroid struct {
	Route  string    `json:"route"`
	Vector []float32 `json:"vector"`
}

// Decision is the ephemeral output of the routing core's arbitrator stage.
type Decision struct {
	Model      string   `json:"model"`
	NeedsSearch bool    `json:"needs_search"`
	NeedsRAG   bool     `json:"needs_rag"`
	Tools      []string `json:"tools"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	Fallback   bool     `json:"fallback"`
}

// ZCommand is the parsed result of a user-level z: directive.
type ZCommand struct {
	Active        bool
	Route         string
	Model         string
	Tools         []string
	ToolInput     string
	Message       string
	RawDirectives string
	IsHelp        bool
}

// FlightStage is one named, timed stage of a request's lifecycle.
type FlightStage struct {
	Name      string         `json:"name"`
	ElapsedMs int64          `json:"elapsed_ms"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// FlightRecord is an in-memory, per-request timeline. Never persisted.
type FlightRecord struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Model          string        `json:"model"`
	Stages         []FlightStage `json:"stages"`
	Closed         bool          `json:"closed"`
	StartedAt      time.Time     `json:"started_at"`
}

// ChatMessage is the wire-format request/response message shape, matching
// the OpenAI chat-completion contract.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ModelPerformance summarizes per-model request stats over a window.
type ModelPerformance struct {
	Model        string  `json:"model"`
	Requests     int     `json:"requests"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P50LatencyMs float64 `json:"p50_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	AvgTokens    float64 `json:"avg_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}
