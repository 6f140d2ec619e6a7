// Package replay implements the read-only "Replay & Semantic Map"
// derivations: reconstructing one conversation's full timeline (app-level
// messages interleaved with the wire log's lower-level events) and mapping
// a conversation to others that are semantically related via the vector
// index.
package replay

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/beigebox/beigebox/internal/proxy"
	"github.com/beigebox/beigebox/internal/storage"
	"github.com/beigebox/beigebox/internal/wirelog"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Searcher is the semantic-search contract SemanticNeighbors depends on.
// It is the same shape internal/proxy.Searcher declares, kept as its own
// copy rather than imported directly — the same pattern routing, harness,
// ensemble, and operator each follow for their Caller contract, so that
// replay doesn't need to import proxy's whole Config surface just to use
// one method off it.
type Searcher interface {
	Search(query string, n int, role string) ([]proxy.SearchHit, error)
}

// View is a read-only join across three independent sources: the message
// log, the wire log, and the vector index (reached here through Searcher).
// Per spec.md §9's design note on "cyclic references", it carries three
// independent handles rather than cross-referencing them at write time —
// a bbtypes.Message never stores a pointer to the bbtypes.WireEvent it
// corresponds to; Timeline below joins them on the fly, by timestamp.
type View struct {
	Store    storage.MessageStore
	WirePath string
	Search   Searcher
}

// New builds a View over the given message store, wire log path, and
// semantic search backend. Any of the three may be left zero-valued; the
// methods that need the missing one return an error rather than panic.
func New(store storage.MessageStore, wirePath string, search Searcher) View {
	return View{Store: store, WirePath: wirePath, Search: search}
}

// EntryKind discriminates a TimelineEntry's origin.
type EntryKind string

const (
	EntryMessage EntryKind = "message"
	EntryWire    EntryKind = "wire"
)

// TimelineEntry is one interleaved item in a Timeline: either a persisted
// Message or a WireEvent, never both.
type TimelineEntry struct {
	Kind    EntryKind          `json:"kind"`
	Message *bbtypes.Message   `json:"message,omitempty"`
	Wire    *bbtypes.WireEvent `json:"wire,omitempty"`
}

// Timeline reconstructs conversationID's full history: every stored
// Message plus every WireEvent the wire log recorded under the same
// conversation id, merged into one chronological sequence.
//
// Wire events are matched by prefix, not equality: wirelog.Log.Emit
// truncates every conversation id to 16 characters before writing
// (internal/wirelog/wirelog.go), so a full-length conversationID is
// shortened the same way before comparing.
func (v View) Timeline(ctx context.Context, conversationID string) ([]TimelineEntry, error) {
	if v.Store == nil {
		return nil, fmt.Errorf("replay: no message store configured")
	}

	messages, err := v.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("replay: load conversation: %w", err)
	}

	type stamped struct {
		ts    int64
		entry TimelineEntry
	}
	stampedEntries := make([]stamped, 0, len(messages))
	for _, m := range messages {
		m := m
		stampedEntries = append(stampedEntries, stamped{ts: m.Timestamp.UnixNano(), entry: TimelineEntry{Kind: EntryMessage, Message: &m}})
	}

	if v.WirePath != "" {
		wireEvents, err := wirelog.ReadAll(v.WirePath)
		if err != nil {
			return nil, fmt.Errorf("replay: read wire log: %w", err)
		}
		prefix := conversationID
		if len(prefix) > 16 {
			prefix = prefix[:16]
		}
		for _, ev := range wireEvents {
			ev := ev
			if ev.ConversationID != prefix {
				continue
			}
			stampedEntries = append(stampedEntries, stamped{ts: ev.Timestamp.UnixNano(), entry: TimelineEntry{Kind: EntryWire, Wire: &ev}})
		}
	}

	sort.SliceStable(stampedEntries, func(i, j int) bool { return stampedEntries[i].ts < stampedEntries[j].ts })

	out := make([]TimelineEntry, len(stampedEntries))
	for i, s := range stampedEntries {
		out[i] = s.entry
	}
	return out, nil
}

// NeighborConversation is one related conversation surfaced by
// SemanticNeighbors, grouped from flat vector-index hits.
type NeighborConversation struct {
	ConversationID string  `json:"conversation_id"`
	BestScore      float64 `json:"best_score"`
	Snippet        string  `json:"snippet"`
	HitCount       int     `json:"hit_count"`
}

// SemanticNeighbors builds the semantic-map half of this package: using
// conversationID's most recent message as the query, it searches the
// vector index for the nearest indexed turns system-wide, then groups the
// hits by conversation (excluding the source conversation itself) and
// keeps each group's single best-scoring hit as its representative
// snippet — the same "grouped-by-conversation, keep the best hit" rule
// spec.md §4.7 describes for the router's own semantic search, reused
// here to rank whole conversations instead of individual messages.
func (v View) SemanticNeighbors(ctx context.Context, conversationID string, topK int) ([]NeighborConversation, error) {
	if v.Search == nil {
		return nil, fmt.Errorf("replay: no semantic search backend configured")
	}
	if v.Store == nil {
		return nil, fmt.Errorf("replay: no message store configured")
	}
	if topK <= 0 {
		topK = 5
	}

	messages, err := v.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("replay: load conversation: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}
	query := strings.TrimSpace(messages[len(messages)-1].Content)
	if query == "" {
		return nil, nil
	}

	hits, err := v.Search.Search(query, topK*4, "")
	if err != nil {
		return nil, fmt.Errorf("replay: semantic search: %w", err)
	}

	grouped := make(map[string]*NeighborConversation)
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ConversationID == "" || h.ConversationID == conversationID {
			continue
		}
		n, ok := grouped[h.ConversationID]
		if !ok {
			n = &NeighborConversation{ConversationID: h.ConversationID, BestScore: h.Score, Snippet: h.Content}
			grouped[h.ConversationID] = n
			order = append(order, h.ConversationID)
		}
		n.HitCount++
		if h.Score > n.BestScore {
			n.BestScore = h.Score
			n.Snippet = h.Content
		}
	}

	out := make([]NeighborConversation, 0, len(order))
	for _, id := range order {
		out = append(out, *grouped[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BestScore > out[j].BestScore })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
