package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// SQLiteStore is the single-file durable message log used by default:
// one portable database, queryable with SQL, backing up as one file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the SQLite database at path
// and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite serializes writers internally; a single connection avoids
	// "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTablesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureConversation(ctx context.Context, conversationID string, createdAt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, created_at) VALUES (?, ?)`,
		conversationID, createdAt)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) StoreMessage(ctx context.Context, msg bbtypes.Message) error {
	if err := s.EnsureConversation(ctx, msg.ConversationID, msg.Timestamp.Format(time.RFC3339)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages
		   (id, conversation_id, role, content, model, timestamp, token_count, cost_usd, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.Model,
		msg.Timestamp.Format(time.RFC3339), msg.TokenCount, msg.CostUSD, msg.LatencyMs)
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) ([]bbtypes.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, model, timestamp, token_count, cost_usd, latency_ms
		 FROM messages WHERE conversation_id = ? ORDER BY timestamp`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]bbtypes.Message, error) {
	var out []bbtypes.Message
	for rows.Next() {
		var m bbtypes.Message
		var role, ts string
		var costUSD sql.NullFloat64
		var latencyMs sql.NullFloat64
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Model, &ts,
			&m.TokenCount, &costUSD, &latencyMs); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = bbtypes.Role(role)
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			m.Timestamp = parsed
		}
		if costUSD.Valid {
			m.CostUSD = &costUSD.Float64
		}
		if latencyMs.Valid {
			v := int64(latencyMs.Float64)
			m.LatencyMs = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecentConversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.created_at,
		        (SELECT content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.timestamp DESC LIMIT 1),
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c ORDER BY c.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var cs ConversationSummary
		var lastMessage sql.NullString
		if err := rows.Scan(&cs.ID, &cs.CreatedAt, &lastMessage, &cs.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		cs.LastMessage = lastMessage.String
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ModelPerformance(ctx context.Context, days int) (map[string]ModelPerformance, error) {
	since := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COUNT(*), AVG(latency_ms), AVG(token_count), COALESCE(SUM(cost_usd), 0)
		 FROM messages
		 WHERE role = 'assistant' AND latency_ms IS NOT NULL AND timestamp > ?
		 GROUP BY model ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("model performance: %w", err)
	}
	defer rows.Close()

	type agg struct {
		model      string
		requests   int
		avgLatency float64
		avgTokens  float64
		totalCost  float64
	}
	var aggs []agg
	for rows.Next() {
		var a agg
		if err := rows.Scan(&a.model, &a.requests, &a.avgLatency, &a.avgTokens, &a.totalCost); err != nil {
			return nil, fmt.Errorf("scan model performance: %w", err)
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]ModelPerformance, len(aggs))
	for _, a := range aggs {
		latRows, err := s.db.QueryContext(ctx,
			`SELECT latency_ms FROM messages
			 WHERE role = 'assistant' AND model = ? AND latency_ms IS NOT NULL AND timestamp > ?
			 ORDER BY latency_ms`, a.model, since)
		if err != nil {
			return nil, fmt.Errorf("model latencies: %w", err)
		}
		lats, err := scanFloats(latRows)
		latRows.Close()
		if err != nil {
			return nil, err
		}
		out[a.model] = ModelPerformance{
			Model:         a.model,
			Requests:      a.requests,
			AvgLatencyMs:  a.avgLatency,
			P50LatencyMs:  percentile(lats, 50),
			P95LatencyMs:  percentile(lats, 95),
			AvgTokens:     a.avgTokens,
			TotalCostUSD:  a.totalCost,
		}
	}
	return out, nil
}

func scanFloats(rows *sql.Rows) ([]float64, error) {
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan float: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Fork(ctx context.Context, sourceConvID, newConvID string, branchAt int) (int, error) {
	messages, err := s.GetConversation(ctx, sourceConvID)
	if err != nil {
		return 0, err
	}
	if branchAt >= 0 && branchAt+1 < len(messages) {
		messages = messages[:branchAt+1]
	}
	if len(messages) == 0 {
		return 0, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.EnsureConversation(ctx, newConvID, now); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("fork begin: %w", err)
	}
	defer tx.Rollback()

	for _, m := range messages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, model, timestamp, token_count, cost_usd, latency_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), newConvID, string(m.Role), m.Content, m.Model,
			m.Timestamp.Format(time.RFC3339), m.TokenCount, m.CostUSD, m.LatencyMs)
		if err != nil {
			return 0, fmt.Errorf("fork copy message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("fork commit: %w", err)
	}
	return len(messages), nil
}

func (s *SQLiteStore) ExportAll(ctx context.Context) ([]ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("export list conversations: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ExportRecord, 0, len(ids))
	for _, id := range ids {
		msgs, err := s.GetConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ExportRecord{ConversationID: id, Messages: msgs})
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	st.ByModel = map[string]ModelCounters{}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`)
	if err := row.Scan(&st.Conversations); err != nil {
		return st, fmt.Errorf("stats conversations: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`)
	if err := row.Scan(&st.Messages); err != nil {
		return st, fmt.Errorf("stats messages: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE role = 'user'`)
	if err := row.Scan(&st.UserMessages); err != nil {
		return st, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE role = 'assistant'`)
	if err := row.Scan(&st.AssistantMessages); err != nil {
		return st, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(token_count), 0) FROM messages`)
	if err := row.Scan(&st.TotalTokens); err != nil {
		return st, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(token_count), 0) FROM messages WHERE role = 'user'`)
	if err := row.Scan(&st.UserTokens); err != nil {
		return st, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(token_count), 0) FROM messages WHERE role = 'assistant'`)
	if err := row.Scan(&st.AssistantTokens); err != nil {
		return st, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost_usd), 0) FROM messages`)
	if err := row.Scan(&st.TotalCostUSD); err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COUNT(*), COALESCE(SUM(token_count), 0), COALESCE(SUM(cost_usd), 0)
		 FROM messages WHERE model != '' GROUP BY model ORDER BY COUNT(*) DESC`)
	if err != nil {
		return st, fmt.Errorf("stats by model: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var model string
		var mc ModelCounters
		if err := rows.Scan(&model, &mc.Messages, &mc.Tokens, &mc.CostUSD); err != nil {
			return st, fmt.Errorf("scan stats by model: %w", err)
		}
		st.ByModel[model] = mc
	}
	return st, rows.Err()
}

func (s *SQLiteStore) StoreHarnessRun(ctx context.Context, run bbtypes.HarnessRun) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	events, err := marshalEventsJSONL(run.Events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO harness_runs
		   (id, created_at, goal, targets, model, max_rounds, final_answer,
		    total_rounds, was_capped, total_latency_ms, error_count, events_jsonl)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339), run.Goal, string(targets), run.DriverModel,
		run.RoundCap, run.FinalAnswer, run.RoundsRun, run.Capped, run.WallClockMs, run.ErrorCount, events)
	if err != nil {
		return fmt.Errorf("store harness run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHarnessRun(ctx context.Context, id string) (*bbtypes.HarnessRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, goal, targets, model, max_rounds, final_answer,
		        total_rounds, was_capped, total_latency_ms, error_count, events_jsonl
		 FROM harness_runs WHERE id = ?`, id)
	run, err := scanHarnessRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func scanHarnessRun(row *sql.Row) (*bbtypes.HarnessRun, error) {
	var run bbtypes.HarnessRun
	var createdAt, targets, events string
	if err := row.Scan(&run.ID, &createdAt, &run.Goal, &targets, &run.DriverModel, &run.RoundCap,
		&run.FinalAnswer, &run.RoundsRun, &run.Capped, &run.WallClockMs, &run.ErrorCount, &events); err != nil {
		return nil, err
	}
	if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
		run.CreatedAt = parsed
	}
	if err := json.Unmarshal([]byte(targets), &run.Targets); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	evs, err := unmarshalEventsJSONL(events)
	if err != nil {
		return nil, err
	}
	run.Events = evs
	return &run, nil
}

func (s *SQLiteStore) ListHarnessRuns(ctx context.Context, limit int) ([]bbtypes.HarnessRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, goal, total_rounds, total_latency_ms, error_count, was_capped
		 FROM harness_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list harness runs: %w", err)
	}
	defer rows.Close()

	var out []bbtypes.HarnessRun
	for rows.Next() {
		var run bbtypes.HarnessRun
		var createdAt string
		if err := rows.Scan(&run.ID, &createdAt, &run.Goal, &run.RoundsRun, &run.WallClockMs,
			&run.ErrorCount, &run.Capped); err != nil {
			return nil, fmt.Errorf("scan harness run summary: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			run.CreatedAt = parsed
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func marshalEventsJSONL(events []bbtypes.HarnessEvent) (string, error) {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return "", fmt.Errorf("marshal harness event: %w", err)
		}
		lines = append(lines, string(b))
	}
	return strings.Join(lines, "\n"), nil
}

func unmarshalEventsJSONL(blob string) ([]bbtypes.HarnessEvent, error) {
	var out []bbtypes.HarnessEvent
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev bbtypes.HarnessEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal harness event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
