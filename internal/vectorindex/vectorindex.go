// Package vectorindex implements BeigeBox's pluggable semantic-search
// backend over indexed conversation turns: a flat, in-process cosine index
// with a gob-encoded on-disk snapshot, satisfying the small Indexer/
// Searcher facades internal/proxy and internal/tools depend on without
// either importing this package directly.
//
// No vector-database client library appears anywhere in the example pack
// (the donor's own go.mod carries a commented-out lancedb-go dependency,
// never enabled) so this is the one component built on the standard
// library by necessity rather than preference; see DESIGN.md.
package vectorindex

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beigebox/beigebox/internal/embedclient"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// Embedder is the subset of internal/embedclient.Client the index needs,
// kept as a local interface so tests can fake it without an HTTP server.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// record is the on-disk/in-memory unit: a bbtypes.VectorRecord plus its
// vector, gob-encoded directly (VectorRecord.Vector carries a json:"-" tag
// for the HTTP surface, but gob ignores json tags and encodes every
// exported field, so the snapshot round-trips the vector fine).
type record = bbtypes.VectorRecord

// Index is a flat, brute-force cosine-similarity vector store. Every
// Search scans the full record set; this is the right tradeoff at the
// scale of one proxy's conversation history (thousands, not millions, of
// turns) and avoids an external vector database dependency entirely.
type Index struct {
	mu       sync.RWMutex
	records  []record
	embedder Embedder
	path     string // gob snapshot path; "" disables persistence
	logger   *slog.Logger
	timeout  time.Duration
	newID    func() string
}

// New builds an Index. If path is non-empty and a snapshot already exists
// there, it is loaded; a missing or unreadable snapshot just starts empty
// (vector search degrading to "no results yet" rather than failing
// startup, matching the rest of BeigeBox's soft-fail-on-missing-state
// posture).
func New(embedder Embedder, path string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{
		embedder: embedder,
		path:     path,
		logger:   logger,
		timeout:  15 * time.Second,
		newID:    uuid.NewString,
	}
	idx.load()
	return idx
}

func (idx *Index) load() {
	if idx.path == "" {
		return
	}
	f, err := os.Open(idx.path)
	if err != nil {
		if !os.IsNotExist(err) {
			idx.logger.Warn("vectorindex: failed to open snapshot, starting empty", "path", idx.path, "error", err)
		}
		return
	}
	defer f.Close()

	var records []record
	if err := gob.NewDecoder(f).Decode(&records); err != nil {
		idx.logger.Warn("vectorindex: failed to decode snapshot, starting empty", "path", idx.path, "error", err)
		return
	}
	idx.records = records
}

func (idx *Index) save() {
	if idx.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		idx.logger.Warn("vectorindex: failed to create snapshot dir", "path", idx.path, "error", err)
		return
	}
	tmp := idx.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		idx.logger.Warn("vectorindex: failed to write snapshot", "path", idx.path, "error", err)
		return
	}
	if err := gob.NewEncoder(f).Encode(idx.records); err != nil {
		f.Close()
		idx.logger.Warn("vectorindex: failed to encode snapshot", "path", idx.path, "error", err)
		return
	}
	if err := f.Close(); err != nil {
		idx.logger.Warn("vectorindex: failed to close snapshot", "path", idx.path, "error", err)
		return
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		idx.logger.Warn("vectorindex: failed to rename snapshot into place", "path", idx.path, "error", err)
	}
}

// IndexMessage embeds content and appends it to the index, snapshotting to
// disk afterward. Satisfies internal/proxy's Indexer facade exactly;
// proxy already calls this in its own background goroutine (see
// persist.go), so IndexMessage blocks on the embedding call rather than
// spawning a second one. A nil embedder or an embedding failure logs a
// warning and drops the message rather than crashing the caller's
// goroutine.
func (idx *Index) IndexMessage(conversationID, role, model, content string, at time.Time) {
	if idx.embedder == nil || content == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), idx.timeout)
	defer cancel()

	vec, err := idx.embedder.EmbedOne(ctx, content)
	if err != nil {
		idx.logger.Warn("vectorindex: embedding failed, dropping message", "conversation_id", conversationID, "error", err)
		return
	}

	rec := record{
		ID:       idx.newID(),
		Vector:   vec,
		Document: content,
		Metadata: bbtypes.VectorMeta{
			ConversationID: conversationID,
			Role:           role,
			Model:          model,
			Timestamp:      at.UTC().Format(time.RFC3339),
		},
	}

	idx.mu.Lock()
	idx.records = append(idx.records, rec)
	idx.mu.Unlock()

	idx.save()
}

// scored is one record paired with its cosine similarity to a query
// vector, used internally by both Search shapes before each adapts it to
// its own caller's hit type.
type scored struct {
	rec   record
	score float64
}

// queryTopK embeds query and returns the topK highest-cosine-similarity
// records whose Metadata.Role matches roleFilter (empty roleFilter means
// no filtering), highest score first.
func (idx *Index) queryTopK(ctx context.Context, query string, topK int, roleFilter string) ([]scored, error) {
	if idx.embedder == nil {
		return nil, fmt.Errorf("vectorindex: no embedder configured")
	}
	qVec, err := idx.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query embedding failed: %w", err)
	}

	idx.mu.RLock()
	candidates := make([]scored, 0, len(idx.records))
	for _, rec := range idx.records {
		if roleFilter != "" && rec.Metadata.Role != roleFilter {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: embedclient.Dot(qVec, rec.Vector)})
	}
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}
