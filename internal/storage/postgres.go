package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// PostgresStore is the Postgres-backed durable message log, used when
// multiple proxy instances share one database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a Postgres connection pool at dsn and ensures the
// schema exists.
func NewPostgresStore(dsn string, cfg *CockroachConfig) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg == nil {
		cfg = DefaultCockroachConfig()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTablesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) EnsureConversation(ctx context.Context, conversationID string, createdAt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		conversationID, createdAt)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreMessage(ctx context.Context, msg bbtypes.Message) error {
	if err := s.EnsureConversation(ctx, msg.ConversationID, msg.Timestamp.Format(time.RFC3339)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, model, timestamp, token_count, cost_usd, latency_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, cost_usd = EXCLUDED.cost_usd, latency_ms = EXCLUDED.latency_ms`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.Model,
		msg.Timestamp.Format(time.RFC3339), msg.TokenCount, msg.CostUSD, msg.LatencyMs)
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, conversationID string) ([]bbtypes.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, model, timestamp, token_count, cost_usd, latency_ms
		 FROM messages WHERE conversation_id = $1 ORDER BY timestamp`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *PostgresStore) RecentConversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.created_at,
		        (SELECT content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.timestamp DESC LIMIT 1),
		        (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		 FROM conversations c ORDER BY c.created_at DESC LIMIT $1`, limit)
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

func (s *PostgresStore) ModelPerformance(ctx context.Context, days int) (map[string]ModelPerformance, error) {
	since := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COUNT(*), AVG(latency_ms), AVG(token_count), COALESCE(SUM(cost_usd), 0)
		 FROM messages
		 WHERE role = 'assistant' AND latency_ms IS NOT NULL AND timestamp > $1
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
			 WHERE role = 'assistant' AND model = $1 AND latency_ms IS NOT NULL AND timestamp > $2
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
			Model:        a.model,
			Requests:     a.requests,
			AvgLatencyMs: a.avgLatency,
			P50LatencyMs: percentile(lats, 50),
			P95LatencyMs: percentile(lats, 95),
			AvgTokens:    a.avgTokens,
			TotalCostUSD: a.totalCost,
		}
	}
	return out, nil
}

func (s *PostgresStore) Fork(ctx context.Context, sourceConvID, newConvID string, branchAt int) (int, error) {
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
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
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

func (s *PostgresStore) ExportAll(ctx context.Context) ([]ExportRecord, error) {
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

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	st.ByModel = map[string]ModelCounters{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.Conversations); err != nil {
		return st, fmt.Errorf("stats conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.Messages); err != nil {
		return st, fmt.Errorf("stats messages: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE role = 'user'`).Scan(&st.UserMessages); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE role = 'assistant'`).Scan(&st.AssistantMessages); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(token_count), 0) FROM messages`).Scan(&st.TotalTokens); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(token_count), 0) FROM messages WHERE role = 'user'`).Scan(&st.UserTokens); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(token_count), 0) FROM messages WHERE role = 'assistant'`).Scan(&st.AssistantTokens); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost_usd), 0) FROM messages`).Scan(&st.TotalCostUSD); err != nil {
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

func (s *PostgresStore) StoreHarnessRun(ctx context.Context, run bbtypes.HarnessRun) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	events, err := marshalEventsJSONL(run.Events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO harness_runs
		   (id, created_at, goal, targets, model, max_rounds, final_answer,
		    total_rounds, was_capped, total_latency_ms, error_count, events_jsonl)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (id) DO UPDATE SET
		   final_answer = EXCLUDED.final_answer,
		   total_rounds = EXCLUDED.total_rounds,
		   was_capped = EXCLUDED.was_capped,
		   total_latency_ms = EXCLUDED.total_latency_ms,
		   error_count = EXCLUDED.error_count,
		   events_jsonl = EXCLUDED.events_jsonl`,
		run.ID, run.CreatedAt.Format(time.RFC3339), run.Goal, string(targets), run.DriverModel,
		run.RoundCap, run.FinalAnswer, run.RoundsRun, run.Capped, run.WallClockMs, run.ErrorCount, events)
	if err != nil {
		return fmt.Errorf("store harness run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHarnessRun(ctx context.Context, id string) (*bbtypes.HarnessRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, goal, targets, model, max_rounds, final_answer,
		        total_rounds, was_capped, total_latency_ms, error_count, events_jsonl
		 FROM harness_runs WHERE id = $1`, id)
	run, err := scanHarnessRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) ListHarnessRuns(ctx context.Context, limit int) ([]bbtypes.HarnessRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, goal, total_rounds, total_latency_ms, error_count, was_capped
		 FROM harness_runs ORDER BY created_at DESC LIMIT $1`, limit)
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
