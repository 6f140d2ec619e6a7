// Package storage implements the durable message log: a relational store
// of conversations, messages, and harness orchestration runs, backed by
// either SQLite (single-file, embedded) or Postgres (shared, concurrent).
package storage

import (
	"context"
	"errors"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ModelPerformance is the per-model stats block returned by
// MessageStore.ModelPerformance, keyed by model name.
type ModelPerformance = bbtypes.ModelPerformance

// ConversationSummary describes one row of MessageStore.RecentConversations.
type ConversationSummary struct {
	ID           string
	CreatedAt    string
	LastMessage  string
	MessageCount int
}

// Stats summarizes the whole store, as returned by MessageStore.Stats.
type Stats struct {
	Conversations     int
	Messages          int
	UserMessages      int
	AssistantMessages int
	TotalTokens       int64
	UserTokens        int64
	AssistantTokens   int64
	TotalCostUSD      float64
	ByModel           map[string]ModelCounters
}

// ModelCounters is one model's contribution to Stats.ByModel.
type ModelCounters struct {
	Messages int
	Tokens   int64
	CostUSD  float64
}

// ExportRecord is one conversation's worth of exported messages, in the
// OpenAI-list export shape; narrower exports (JSONL/Alpaca/ShareGPT) are
// derived from this in-process rather than re-queried.
type ExportRecord struct {
	ConversationID string
	Messages       []bbtypes.Message
}

// MessageStore is the durable message log: conversations, messages, and
// harness runs, with export and fork support. Both the SQLite and Postgres
// implementations satisfy this identically; callers never branch on driver.
type MessageStore interface {
	// EnsureConversation creates the conversation row if absent; a no-op
	// otherwise.
	EnsureConversation(ctx context.Context, conversationID string, createdAt string) error

	// StoreMessage persists msg, creating its conversation if needed.
	StoreMessage(ctx context.Context, msg bbtypes.Message) error

	// GetConversation returns every message in conversationID, timestamp
	// order.
	GetConversation(ctx context.Context, conversationID string) ([]bbtypes.Message, error)

	// RecentConversations returns the most recently created conversations,
	// each annotated with its last message and message count.
	RecentConversations(ctx context.Context, limit int) ([]ConversationSummary, error)

	// ModelPerformance returns per-model latency/cost/throughput stats
	// over the trailing window, keyed by model name.
	ModelPerformance(ctx context.Context, days int) (map[string]ModelPerformance, error)

	// Fork copies messages from sourceConvID into a new conversation
	// newConvID, truncating at branchAt (inclusive) when branchAt >= 0,
	// or copying the full history when branchAt < 0. Every copied message
	// gets a fresh identity; returns the number of messages copied.
	Fork(ctx context.Context, sourceConvID, newConvID string, branchAt int) (int, error)

	// ExportAll returns every conversation's messages, ordered by
	// conversation creation time, for the OpenAI-list / JSONL / Alpaca /
	// ShareGPT exporters to project down from.
	ExportAll(ctx context.Context) ([]ExportRecord, error)

	// Stats returns store-wide counters.
	Stats(ctx context.Context) (Stats, error)

	// StoreHarnessRun persists a completed or in-progress harness run.
	StoreHarnessRun(ctx context.Context, run bbtypes.HarnessRun) error

	// GetHarnessRun retrieves a harness run by id.
	GetHarnessRun(ctx context.Context, id string) (*bbtypes.HarnessRun, error)

	// ListHarnessRuns lists the most recent harness runs, most recent first.
	ListHarnessRuns(ctx context.Context, limit int) ([]bbtypes.HarnessRun, error)

	// Close releases underlying resources (DB connections, open files).
	Close() error
}
